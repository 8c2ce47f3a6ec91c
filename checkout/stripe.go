package checkout

import (
	"context"
	"fmt"
	"net/url"

	"github.com/moviehub/theater-api/config"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

// StripeProvider creates hosted checkout sessions on Stripe. The whole order
// is billed as a single line whose description lists the movie titles, the
// way the storefront has always presented it.
type StripeProvider struct {
	client *stripecl.API
	cfg    config.Stripe
}

func NewStripeProvider(client *stripecl.API, cfg config.Stripe) *StripeProvider {
	return &StripeProvider{client: client, cfg: cfg}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},

		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withOrderID(p.cfg.SuccessURL, req.OrderID)),
		CancelURL:  stripe.String(withOrderID(p.cfg.CancelURL, req.OrderID)),

		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(req.Amount.Shift(2).IntPart()),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("order"),
					Description: stripe.String(req.Titles),
				},
			},
		}},

		CustomText: &stripe.CheckoutSessionCustomTextParams{
			Submit: &stripe.CheckoutSessionCustomTextSubmitParams{
				Message: stripe.String(req.Message),
			},
		},
	}

	s, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("creating stripe session: %w", err)
	}

	return Session{ID: s.ID, URL: s.URL}, nil
}

func withOrderID(base string, orderID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}
