package test

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/validate"
	"github.com/shopspring/decimal"
)

type orderTest struct {
	*TestEnv
}

func (ot *orderTest) place(t *testing.T) *http.Response {
	t.Helper()
	return ot.request(t, http.MethodPost, "/orders/place/", ot.UserToken(), nil)
}

// placeOK places the cart and returns the order response plus the checkout
// URL advertised in the Location header.
func (ot *orderTest) placeOK(t *testing.T) (order.Placed, string) {
	t.Helper()

	w := ot.place(t)
	if w.StatusCode != http.StatusSeeOther {
		t.Fatalf("can't place order: status code %s", w.Status)
	}

	loc := w.Header.Get("Location")
	if loc == "" {
		t.Fatal("placement response is missing the Location header")
	}

	var placed order.Placed
	decode(t, w, &placed)
	return placed, loc
}

func (ot *orderTest) listOK(t *testing.T, token string, query string) []order.Summary {
	t.Helper()

	w := ot.request(t, http.MethodGet, "/orders/list/"+query, token, nil)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list orders: status code %s", w.Status)
	}

	var resp struct {
		Orders []order.Summary `json:"orders"`
	}
	decode(t, w, &resp)
	return resp.Orders
}

// namesDiff compares movie name sets regardless of order.
func namesDiff(want, got []string) string {
	less := func(a, b string) bool { return a < b }
	return cmp.Diff(want, got, cmpopts.SortSlices(less))
}

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	mt := &movieTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	mA := mt.createMovieOK(t, "Alien", "3.50")
	mB := mt.createMovieOK(t, "Brazil", "4.50")
	mC := mt.createMovieOK(t, "Casablanca", "5.00")

	w := ot.place(t)
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("placing without a cart: status code %s", w.Status)
	}
	if msg := errorMessage(t, w); msg != "Cart not found." {
		t.Fatalf("placing without a cart: unexpected message %q", msg)
	}

	rt.createItemOK(t, mA.ID)
	rt.createItemOK(t, mB.ID)

	env.Stripe.expectedCart = []movie.Movie{mA, mB}
	env.Stripe.expectedMessage = "Thank you for your purchase."

	placed, loc := ot.placeOK(t)
	if !strings.HasPrefix(loc, "http://stripe.test/pay/") {
		t.Fatalf("unexpected checkout location %q", loc)
	}
	if !placed.TotalAmount.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("expected total 8.00, got %s", placed.TotalAmount)
	}
	if diff := namesDiff([]string{"Alien", "Brazil"}, placed.Movies); diff != "" {
		t.Fatalf("unexpected order movies: %s", diff)
	}
	if placed.Status != order.Pending {
		t.Fatalf("expected pending order, got %s", placed.Status)
	}
	if placed.Detail != "Thank you for your purchase." {
		t.Fatalf("unexpected order detail %q", placed.Detail)
	}

	// placement flushes the cart
	if items := rt.cartItemsOK(t); len(items) != 0 {
		t.Fatalf("expected empty cart after placement, got %d items", len(items))
	}

	w = ot.place(t)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("placing with empty cart: status code %s", w.Status)
	}
	if msg := errorMessage(t, w); msg != "You don't have any items in cart." {
		t.Fatalf("placing with empty cart: unexpected message %q", msg)
	}

	// Alien is still reserved by the pending order, so only Casablanca
	// makes it into the next one.
	rt.createItemOK(t, mA.ID)
	rt.createItemOK(t, mC.ID)

	warning := "WARNING! Movies: Alien have not been added to the order because" +
		" they are already in your other orders awaiting payment."
	env.Stripe.expectedCart = []movie.Movie{mC}
	env.Stripe.expectedMessage = warning

	placed2, _ := ot.placeOK(t)
	if !placed2.TotalAmount.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected total 5.00, got %s", placed2.TotalAmount)
	}
	if diff := namesDiff([]string{"Casablanca"}, placed2.Movies); diff != "" {
		t.Fatalf("unexpected order movies: %s", diff)
	}
	if placed2.Detail != warning {
		t.Fatalf("unexpected order detail %q", placed2.Detail)
	}

	// movies deleted from the catalog after being carted are dropped, the
	// rest of the cart still goes through
	mD := mt.createMovieOK(t, "Dune", "6.00")
	mE := mt.createMovieOK(t, "Eraserhead", "1.25")
	rt.createItemOK(t, mD.ID)
	rt.createItemOK(t, mE.ID)
	w = env.request(t, http.MethodDelete, "/movies/"+mD.ID+"/", env.AdminToken(), nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't delete movie: status code %s", w.Status)
	}

	env.Stripe.expectedCart = []movie.Movie{mE}
	env.Stripe.expectedMessage = "Thank you for your purchase."

	placed3, _ := ot.placeOK(t)
	if diff := namesDiff([]string{"Eraserhead"}, placed3.Movies); diff != "" {
		t.Fatalf("unexpected order movies: %s", diff)
	}
	if !placed3.TotalAmount.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("expected total 1.25, got %s", placed3.TotalAmount)
	}

	// a cart holding nothing but reserved movies still places, as an empty
	// order carrying the warning
	rt.createItemOK(t, mA.ID)
	env.Stripe.expectedCart = nil
	env.Stripe.expectedMessage = warning

	placed4, _ := ot.placeOK(t)
	if len(placed4.Movies) != 0 {
		t.Fatalf("expected no movies in order, got %v", placed4.Movies)
	}
	if !placed4.TotalAmount.Equal(decimal.Zero) {
		t.Fatalf("expected zero total, got %s", placed4.TotalAmount)
	}
	if placed4.Detail != warning {
		t.Fatalf("unexpected order detail %q", placed4.Detail)
	}

	sums := ot.listOK(t, env.UserToken(), "")
	if len(sums) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(sums))
	}
	sums = ot.listOK(t, env.UserToken(), "?status=pending&limit=2")
	if len(sums) != 2 {
		t.Fatalf("expected 2 orders with limit, got %d", len(sums))
	}

	// plain users can't peek at other users' orders through the filter
	sums = ot.listOK(t, env.Token(validate.GenerateID(), "USER"), "?user_id="+env.UserID)
	if len(sums) != 0 {
		t.Fatalf("expected no orders for another user, got %d", len(sums))
	}
	sums = ot.listOK(t, env.AdminToken(), "?user_id="+env.UserID)
	if len(sums) != 4 {
		t.Fatalf("expected 4 orders for admin filter, got %d", len(sums))
	}

	w = ot.request(t, http.MethodGet, "/orders/list/?status=bogus", env.UserToken(), nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("listing with bad status: status code %s", w.Status)
	}
	w.Body.Close()

	// cancellation
	w = ot.request(t, http.MethodPatch, "/orders/cancel/"+placed2.ID+"/", env.UserToken(), nil)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't cancel order: status code %s", w.Status)
	}
	w.Body.Close()

	w = ot.request(t, http.MethodPatch, "/orders/cancel/"+placed2.ID+"/", env.UserToken(), nil)
	if w.StatusCode != http.StatusConflict {
		t.Fatalf("cancelling twice: status code %s", w.Status)
	}
	if msg := errorMessage(t, w); msg != "Order already cancelled" {
		t.Fatalf("cancelling twice: unexpected message %q", msg)
	}

	w = ot.request(t, http.MethodPatch, "/orders/cancel/"+validate.GenerateID()+"/", env.UserToken(), nil)
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("cancelling unknown order: status code %s", w.Status)
	}
	w.Body.Close()

	// someone else's order looks like a missing one
	other := env.Token(validate.GenerateID(), "USER")
	w = ot.request(t, http.MethodPatch, "/orders/cancel/"+placed.ID+"/", other, nil)
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("cancelling another user's order: status code %s", w.Status)
	}
	w.Body.Close()

	// a canceled order releases its movies for the next placement
	rt.createItemOK(t, mC.ID)
	env.Stripe.expectedCart = []movie.Movie{mC}
	env.Stripe.expectedMessage = "Thank you for your purchase."
	placed5, _ := ot.placeOK(t)
	if diff := namesDiff([]string{"Casablanca"}, placed5.Movies); diff != "" {
		t.Fatalf("unexpected order movies: %s", diff)
	}
}

// TestConcurrentPlacement fires two simultaneous placements of the same
// cart. The per-user advisory lock must serialize them: one wins the movie,
// the other sees the already flushed cart, and the movie never ends up
// reserved by two pending orders at once.
func TestConcurrentPlacement(t *testing.T) {
	env, err := NewTestEnv(t, "concurrent_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}
	mt := &movieTest{env}
	rt := &cartTest{env}
	ot := &orderTest{env}

	m := mt.createMovieOK(t, "Solaris", "9.00")
	rt.createItemOK(t, m.ID)

	env.Stripe.expectedCart = []movie.Movie{m}
	env.Stripe.expectedMessage = ""

	results := make(chan *http.Response, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := http.NewRequest(http.MethodPost, env.URL+"/orders/place/", nil)
			if err != nil {
				t.Error(err)
				return
			}
			r.Header.Set("Authorization", "Bearer "+env.UserToken())

			w, err := env.Client().Do(r)
			if err != nil {
				t.Error(err)
				return
			}
			results <- w
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for w := range results {
		switch w.StatusCode {
		case http.StatusSeeOther:
			var placed order.Placed
			decode(t, w, &placed)
			for _, name := range placed.Movies {
				if name == "Solaris" {
					wins++
				}
			}

		case http.StatusBadRequest:
			// the loser found the cart already flushed
			if msg := errorMessage(t, w); msg != "You don't have any items in cart." {
				t.Errorf("losing placement: unexpected message %q", msg)
			}

		default:
			t.Errorf("unexpected placement status %s", w.Status)
		}
	}
	if wins != 1 {
		t.Fatalf("expected the movie in exactly 1 placement response, got %d", wins)
	}

	reserved := 0
	for _, s := range ot.listOK(t, env.UserToken(), "?status=pending") {
		for _, name := range s.Movies {
			if name == "Solaris" {
				reserved++
			}
		}
	}
	if reserved != 1 {
		t.Fatalf("movie reserved by %d pending orders, want 1", reserved)
	}
}
