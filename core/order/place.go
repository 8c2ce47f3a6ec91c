package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/checkout"
	"github.com/moviehub/theater-api/core/cart"
	"github.com/moviehub/theater-api/core/claims"
	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/validate"
	"github.com/shopspring/decimal"
)

const thankYou = "Thank you for your purchase."

func exclusionWarning(names []string) string {
	return fmt.Sprintf(
		"WARNING! Movies: %s have not been added to the order because they"+
			" are already in your other orders awaiting payment.",
		strings.Join(names, ", "),
	)
}

// HandlePlace moves the caller's cart into a new PENDING order and redirects
// to the provider-hosted checkout. The whole placement, provider call
// included, runs in one transaction: a provider failure or a constraint
// violation leaves no trace of the attempt.
func HandlePlace(db *sqlx.DB, provider checkout.Provider, timeout time.Duration) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var placed Placed
		var redirect string

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			// Serialize placements per user: the reservation read below
			// must not race a concurrent placement claiming the same
			// movies.
			if err := LockUser(ctx, tx, clm.UserID); err != nil {
				return err
			}

			crt, err := cart.Fetch(ctx, tx, clm.UserID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return weberr.NewError(err, "Cart not found.", http.StatusNotFound)
				}
				return err
			}

			items, err := cart.FetchItems(ctx, tx, crt.ID)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return weberr.NewError(
					errors.New("cart is empty"),
					"You don't have any items in cart.",
					http.StatusBadRequest,
				)
			}

			// Movies deleted from the catalog since they were added are
			// dropped here without failing the placement.
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.MovieID)
			}
			candidates, err := movie.FetchMany(ctx, tx, ids)
			if err != nil {
				return err
			}

			reserved, err := FetchReservedMovieIDs(ctx, tx, clm.UserID, ids)
			if err != nil {
				return err
			}
			reservedSet := make(map[string]bool, len(reserved))
			for _, id := range reserved {
				reservedSet[id] = true
			}

			var eligible []movie.Movie
			var excludedNames []string
			for _, m := range candidates {
				if reservedSet[m.ID] {
					excludedNames = append(excludedNames, m.Name)
					continue
				}
				eligible = append(eligible, m)
			}

			message := thankYou
			if len(excludedNames) > 0 {
				message = exclusionWarning(excludedNames)
			}

			now := time.Now().UTC()
			total := decimal.Zero
			for _, m := range eligible {
				total = total.Add(m.Price)
			}

			ord := Order{
				ID:          validate.GenerateID(),
				UserID:      clm.UserID,
				Status:      Pending,
				TotalAmount: total,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := Create(ctx, tx, ord); err != nil {
				return err
			}

			titles := make([]string, 0, len(eligible))
			for _, m := range eligible {
				it := Item{
					ID:           validate.GenerateID(),
					OrderID:      ord.ID,
					MovieID:      m.ID,
					PriceAtOrder: m.Price,
					CreatedAt:    now,
				}
				if err := CreateItem(ctx, tx, it); err != nil {
					return err
				}
				titles = append(titles, m.Name)
			}

			// The provider is external and can stall: bound the call so a
			// slow checkout backend fails the placement instead of
			// holding the transaction open indefinitely.
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			session, err := provider.CreateSession(sctx, checkout.SessionRequest{
				Amount:  total,
				Titles:  strings.Join(titles, ", "),
				Message: message,
				OrderID: ord.ID,
			})
			if err != nil {
				return weberr.BadGateway(
					fmt.Errorf("creating checkout session: %w", err),
					"checkout provider is unavailable, try again later",
				)
			}

			if err := SetSession(ctx, tx, ord.ID, session.ID, now); err != nil {
				return err
			}

			if err := cart.DeleteItems(ctx, tx, crt.ID); err != nil {
				return err
			}

			redirect = session.URL
			placed = Placed{
				ID:          ord.ID,
				CreatedAt:   now,
				Movies:      titles,
				TotalAmount: total,
				Status:      Pending,
				Detail:      message,
			}
			return nil
		})

		if err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.NewError(err, "Integrity error: "+err.Error(), http.StatusBadRequest)
			}
			return err
		}

		w.Header().Set("Location", redirect)
		return web.Respond(ctx, w, placed, http.StatusSeeOther)
	}
}
