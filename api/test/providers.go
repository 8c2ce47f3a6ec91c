package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/core/movie"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	mock "github.com/stripe/stripe-mock/param"
)

func cartTotal(cart []movie.Movie) decimal.Decimal {
	tot := decimal.Zero
	for _, m := range cart {
		tot = tot.Add(m.Price)
	}
	return tot
}

// mockStripe stands in for the Stripe API. Before placing an order a test
// sets expectedCart (and optionally expectedMessage) and the mock rejects
// any session request that doesn't match.
type mockStripe struct {
	expectedCart    []movie.Movie
	expectedMessage string
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)
		lines := params["line_items"].(map[string]any)

		if len(lines) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		li := lines["0"].(map[string]any)
		if li["quantity"] != "1" {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		pd := li["price_data"].(map[string]any)
		cents, err := strconv.ParseInt(pd["unit_amount"].(string), 10, 64)
		if err != nil {
			web.Respond(context.Background(), w, err, 400)
			return
		}

		if cents != cartTotal(m.expectedCart).Shift(2).IntPart() {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if m.expectedMessage != "" {
			ct := params["custom_text"].(map[string]any)
			sub := ct["submit"].(map[string]any)
			if sub["message"] != m.expectedMessage {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
		}

		id := fmt.Sprintf("cs_test_%d", rand.Intn(100000))
		session := map[string]any{
			"id":   id,
			"url":  "http://stripe.test/pay/" + id,
			"mode": "payment",
		}
		web.Respond(context.Background(), w, session, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}

// mockPaypal stands in for the PayPal API: token endpoint, order creation
// verified against expectedCart, and a capture that always completes.
type mockPaypal struct {
	expectedCart []movie.Movie
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		web.Respond(context.Background(), w, resp, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != cartTotal(m.expectedCart).StringFixed(2) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		id := fmt.Sprintf("paypal-%d", rand.Intn(100000))
		ord := paypal.Order{
			ID:     id,
			Status: "CREATED",
			Links: []paypal.Link{
				{Href: "http://paypal.test/approve/" + id, Rel: "approve"},
			},
		}
		web.Respond(context.Background(), w, ord, 201)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ord := paypal.Order{ID: web.Param(r, "id"), Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}
