package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/core/payment"
	"github.com/moviehub/theater-api/core/purchase"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// sendEvent signs a provider event the way Stripe would and posts it to the
// webhook endpoint.
func (te *TestEnv) sendEvent(t *testing.T, eventType string, obj map[string]any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: stripe.APIVersion,
		Type:       eventType,
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}
	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    te.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, te.URL+"/webhooks/", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err := te.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (te *TestEnv) paymentsOK(t *testing.T, token string) []payment.Payment {
	t.Helper()

	w := te.request(t, http.MethodGet, "/payments/", token, nil)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list payments: status code %s", w.Status)
	}

	var resp struct {
		Payments []payment.Payment `json:"payments"`
	}
	decode(t, w, &resp)
	return resp.Payments
}

func (ot *orderTest) statusOK(t *testing.T, orderID string) order.Status {
	t.Helper()

	for _, s := range ot.listOK(t, ot.UserToken(), "") {
		if s.ID == orderID {
			return s.Status
		}
	}
	t.Fatalf("order %s not found in listing", orderID)
	return ""
}

func TestWebhook(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	mt := &movieTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	m1 := mt.createMovieOK(t, "Alien", "3.50")
	m2 := mt.createMovieOK(t, "Brazil", "4.50")

	rt.createItemOK(t, m1.ID)
	env.Stripe.expectedCart = []movie.Movie{m1}
	env.Stripe.expectedMessage = ""

	placed, loc := ot.placeOK(t)
	sessionID := path.Base(loc)

	// unsigned and badly signed deliveries are rejected outright
	r, err := http.NewRequest(http.MethodPost, env.URL+"/webhooks/", bytes.NewBufferString("{}"))
	if err != nil {
		t.Fatal(err)
	}
	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsigned event: status code %s", w.Status)
	}
	w.Body.Close()

	r, err = http.NewRequest(http.MethodPost, env.URL+"/webhooks/", bytes.NewBufferString("{}"))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", "t=12345,v1=deadbeef")
	w, err = env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("badly signed event: status code %s", w.Status)
	}
	w.Body.Close()

	// completion settles the order and records exactly one payment
	w = env.sendEvent(t, "checkout.session.completed", map[string]any{
		"id":   sessionID,
		"mode": "payment",
	})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("completion event: status code %s", w.Status)
	}
	w.Body.Close()

	if s := ot.statusOK(t, placed.ID); s != order.Paid {
		t.Fatalf("expected paid order, got %s", s)
	}

	pays := env.paymentsOK(t, env.UserToken())
	if len(pays) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(pays))
	}
	if pays[0].ExternalPaymentID != sessionID || pays[0].OrderID != placed.ID {
		t.Fatalf("unexpected payment: %+v", pays[0])
	}
	if pays[0].Status != payment.Successful || !pays[0].Amount.Equal(decimal.RequireFromString("3.50")) {
		t.Fatalf("unexpected payment: %+v", pays[0])
	}

	// redelivery of the same completion is acknowledged without a second payment
	w = env.sendEvent(t, "checkout.session.completed", map[string]any{
		"id":   sessionID,
		"mode": "payment",
	})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("replayed completion event: status code %s", w.Status)
	}
	w.Body.Close()

	if pays := env.paymentsOK(t, env.UserToken()); len(pays) != 1 {
		t.Fatalf("expected 1 payment after replay, got %d", len(pays))
	}

	// the movie is owned now
	w = env.request(t, http.MethodGet, "/movies/owned/", env.UserToken(), nil)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list owned movies: status code %s", w.Status)
	}
	var owned []purchase.Purchase
	decode(t, w, &owned)
	if len(owned) != 1 || owned[0].MovieID != m1.ID {
		t.Fatalf("unexpected owned movies: %+v", owned)
	}

	w = env.request(t, http.MethodPost, "/cart/items/"+m1.ID+"/", env.UserToken(), nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("adding owned movie: status code %s", w.Status)
	}
	if msg := errorMessage(t, w); msg != "You already purchased this movie." {
		t.Fatalf("adding owned movie: unexpected message %q", msg)
	}

	// and the paid order can no longer be cancelled by the user
	w = env.request(t, http.MethodPatch, "/orders/cancel/"+placed.ID+"/", env.UserToken(), nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("cancelling paid order: status code %s", w.Status)
	}
	if msg := errorMessage(t, w); msg != "Order already paid" {
		t.Fatalf("cancelling paid order: unexpected message %q", msg)
	}

	// completion for a session no order knows about
	w = env.sendEvent(t, "checkout.session.completed", map[string]any{
		"id":   "cs_test_unknown",
		"mode": "payment",
	})
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("completion for unknown session: status code %s", w.Status)
	}
	w.Body.Close()

	// event types outside the contract are acknowledged and ignored
	w = env.sendEvent(t, "invoice.created", map[string]any{"id": "in_123"})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("unknown event type: status code %s", w.Status)
	}
	w.Body.Close()

	// expiration cancels the pending order without recording a payment
	rt.createItemOK(t, m2.ID)
	env.Stripe.expectedCart = []movie.Movie{m2}
	placed2, loc2 := ot.placeOK(t)
	sessionID2 := path.Base(loc2)

	w = env.sendEvent(t, "checkout.session.expired", map[string]any{"id": sessionID2})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("expiration event: status code %s", w.Status)
	}
	w.Body.Close()

	if s := ot.statusOK(t, placed2.ID); s != order.Canceled {
		t.Fatalf("expected canceled order, got %s", s)
	}
	if pays := env.paymentsOK(t, env.UserToken()); len(pays) != 1 {
		t.Fatalf("expected 1 payment after expiration, got %d", len(pays))
	}

	// replayed expirations and expirations of settled orders are final
	w = env.sendEvent(t, "checkout.session.expired", map[string]any{"id": sessionID2})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("replayed expiration event: status code %s", w.Status)
	}
	w.Body.Close()

	w = env.sendEvent(t, "payment_intent.canceled", map[string]any{"id": sessionID})
	if w.StatusCode != http.StatusOK {
		t.Fatalf("cancellation of paid session: status code %s", w.Status)
	}
	w.Body.Close()

	if s := ot.statusOK(t, placed.ID); s != order.Paid {
		t.Fatalf("paid order flipped by late cancellation: %s", s)
	}
}
