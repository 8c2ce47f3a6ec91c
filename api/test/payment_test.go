package test

import (
	"net/http"
	"path"
	"testing"

	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/core/payment"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
)

func TestPaymentListing(t *testing.T) {
	env, err := NewTestEnv(t, "payment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	mt := &movieTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	m := mt.createMovieOK(t, "Metropolis", "2.75")
	rt.createItemOK(t, m.ID)
	env.Stripe.expectedCart = []movie.Movie{m}

	_, loc := ot.placeOK(t)
	w := env.sendEvent(t, "checkout.session.completed", map[string]any{
		"id":   path.Base(loc),
		"mode": string(stripe.CheckoutSessionModePayment),
	})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("completion event: status code %s", w.Status)
	}
	w.Body.Close()

	w = env.request(t, http.MethodGet, "/payments/", "", nil)
	if w.StatusCode != http.StatusUnauthorized {
		t.Fatalf("listing payments without token: status code %s", w.Status)
	}
	w.Body.Close()

	if pays := env.paymentsOK(t, env.UserToken()); len(pays) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(pays))
	}

	// the history is scoped to the caller
	if pays := env.paymentsOK(t, env.AdminToken()); len(pays) != 0 {
		t.Fatalf("expected no payments for another caller, got %d", len(pays))
	}

	// the full listing is staff only
	w = env.request(t, http.MethodGet, "/payments/all/", env.UserToken(), nil)
	if w.StatusCode != http.StatusForbidden {
		t.Fatalf("listing all payments as plain user: status code %s", w.Status)
	}
	w.Body.Close()

	listAll := func(query string) []payment.Payment {
		t.Helper()
		w := env.request(t, http.MethodGet, "/payments/all/"+query, env.AdminToken(), nil)
		if w.StatusCode != http.StatusOK {
			t.Fatalf("can't list all payments: status code %s", w.Status)
		}
		var resp struct {
			Payments []payment.Payment `json:"payments"`
		}
		decode(t, w, &resp)
		return resp.Payments
	}

	if pays := listAll(""); len(pays) != 1 {
		t.Fatalf("expected 1 payment in full listing, got %d", len(pays))
	}
	if pays := listAll("?status=successful&user_id=" + env.UserID); len(pays) != 1 {
		t.Fatalf("expected 1 filtered payment, got %d", len(pays))
	}
	if pays := listAll("?status=refunded"); len(pays) != 0 {
		t.Fatalf("expected no refunded payments, got %d", len(pays))
	}

	w = env.request(t, http.MethodGet, "/payments/all/?status=bogus", env.AdminToken(), nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("listing with bad status: status code %s", w.Status)
	}
	w.Body.Close()
}

func TestPaypal(t *testing.T) {
	env, err := NewPaypalTestEnv(t, "paypal_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	mt := &movieTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	m := mt.createMovieOK(t, "Paprika", "7.25")
	rt.createItemOK(t, m.ID)
	env.Paypal.expectedCart = []movie.Movie{m}

	placed, loc := ot.placeOK(t)
	if path.Dir(loc) != "http://paypal.test/approve" {
		t.Fatalf("unexpected approval location %q", loc)
	}
	providerID := path.Base(loc)

	// capture settles the order through the same recorder as the webhook
	w := env.request(t, http.MethodPost, "/orders/paypal/"+providerID+"/capture/", env.UserToken(), nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't capture paypal order: status code %s", w.Status)
	}

	if s := ot.statusOK(t, placed.ID); s != order.Paid {
		t.Fatalf("expected paid order, got %s", s)
	}

	pays := env.paymentsOK(t, env.UserToken())
	if len(pays) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(pays))
	}
	if pays[0].ExternalPaymentID != providerID || !pays[0].Amount.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("unexpected payment: %+v", pays[0])
	}

	// retried captures are settled already
	w = env.request(t, http.MethodPost, "/orders/paypal/"+providerID+"/capture/", env.UserToken(), nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("retried capture: status code %s", w.Status)
	}
	if pays := env.paymentsOK(t, env.UserToken()); len(pays) != 1 {
		t.Fatalf("expected 1 payment after retry, got %d", len(pays))
	}

	// captures for orders we never placed
	w = env.request(t, http.MethodPost, "/orders/paypal/paypal-unknown/capture/", env.UserToken(), nil)
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("capture for unknown order: status code %s", w.Status)
	}
	w.Body.Close()
}
