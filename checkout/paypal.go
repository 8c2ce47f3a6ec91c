package checkout

import (
	"context"
	"fmt"

	"github.com/moviehub/theater-api/config"
	"github.com/plutov/paypal/v4"
)

// PaypalProvider is the alternate checkout backend. The PayPal order id
// doubles as the session id; payment is confirmed through the explicit
// capture endpoint rather than a webhook.
type PaypalProvider struct {
	client *paypal.Client
	cfg    config.Stripe
}

// NewPaypalProvider reuses the success/cancel return URLs from the Stripe
// config: the buyer lands on the same pages whichever provider hosted the
// payment.
func NewPaypalProvider(client *paypal.Client, cfg config.Stripe) *PaypalProvider {
	return &PaypalProvider{client: client, cfg: cfg}
}

func (p *PaypalProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	units := []paypal.PurchaseUnitRequest{{
		Description: req.Titles,

		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    req.Amount.StringFixed(2),
		},
	}}

	app := &paypal.ApplicationContext{
		ReturnURL: withOrderID(p.cfg.SuccessURL, req.OrderID),
		CancelURL: withOrderID(p.cfg.CancelURL, req.OrderID),
	}

	ord, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, app)
	if err != nil {
		return Session{}, fmt.Errorf("creating paypal order: %w", err)
	}

	var approve string
	for _, l := range ord.Links {
		if l.Rel == "approve" {
			approve = l.Href
			break
		}
	}
	if approve == "" {
		return Session{}, fmt.Errorf("paypal order[%s] has no approval link", ord.ID)
	}

	return Session{ID: ord.ID, URL: approve}, nil
}
