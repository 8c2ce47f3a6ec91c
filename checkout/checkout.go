package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

// Session is the provider-hosted payment flow a placed order is bound to.
// ID is opaque and later referenced by webhook events; URL is where the
// buyer gets redirected to pay.
type Session struct {
	ID  string
	URL string
}

// SessionRequest carries everything a provider needs to host the payment.
type SessionRequest struct {
	Amount decimal.Decimal

	// Titles is the human-readable list of purchased movie names, joined
	// by ", ". Providers show it as the line description.
	Titles string

	// Message is shown to the buyer on the payment page. It is either a
	// thank-you note or a warning about movies excluded from the order.
	Message string

	// OrderID identifies the order for building return URLs.
	OrderID string
}

// Provider creates hosted checkout sessions. Implementations must honor the
// context deadline: order placement calls this inside its transaction with a
// bounded timeout.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
