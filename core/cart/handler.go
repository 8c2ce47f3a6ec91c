package cart

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/core/claims"
	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/core/purchase"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/validate"
)

func snapshot(ctx context.Context, db *sqlx.DB, c Cart) (Cart, error) {
	items, err := FetchItems(ctx, db, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Items = items
	return c, nil
}

// HandleCreateItem adds a movie to the caller's cart, creating the cart on
// first use.
func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		movieID := web.Param(r, "movie_id")
		if err := validate.CheckID(movieID); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := movie.Fetch(ctx, db, movieID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NewError(err, "Movie with the ID provided does not exist.", http.StatusNotFound)
			}
			return err
		}

		owned, err := purchase.Exists(ctx, db, clm.UserID, movieID)
		if err != nil {
			return err
		}
		if owned {
			return weberr.NewError(
				errors.New("movie already purchased"),
				"You already purchased this movie.",
				http.StatusBadRequest,
			)
		}

		now := time.Now().UTC()

		c, err := Fetch(ctx, db, clm.UserID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c = Cart{
				ID:        validate.GenerateID(),
				UserID:    clm.UserID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := Create(ctx, db, c); err != nil {
				// A concurrent first add won the cart creation.
				if database.IsUniqueViolation(err) {
					return weberr.NewError(err, "Integrity error: "+err.Error(), http.StatusBadRequest)
				}
				return err
			}

		case err != nil:
			return err

		default:
			present, err := HasItem(ctx, db, c.ID, movieID)
			if err != nil {
				return err
			}
			if present {
				return weberr.NewError(
					errors.New("movie already in cart"),
					"Movie already exists in shopping cart.",
					http.StatusBadRequest,
				)
			}
		}

		if err := AddItem(ctx, db, c.ID, movieID, now); err != nil {
			// A concurrent duplicate add can slip past the check above and
			// land on the primary key instead.
			if database.IsUniqueViolation(err) {
				return weberr.NewError(
					errors.New("movie already in cart"),
					"Movie already exists in shopping cart.",
					http.StatusBadRequest,
				)
			}
			return err
		}

		c, err = snapshot(ctx, db, c)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		movieID := web.Param(r, "movie_id")
		if err := validate.CheckID(movieID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NewError(err, "You do not have shopping cart yet.", http.StatusNotFound)
			}
			return err
		}

		deleted, err := DeleteItem(ctx, db, c.ID, movieID)
		if err != nil {
			return err
		}
		if !deleted {
			return weberr.NewError(
				errors.New("movie not in cart"),
				"Movie not exists in shopping cart.",
				http.StatusBadRequest,
			)
		}

		c, err = snapshot(ctx, db, c)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		c, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NewError(err, "You do not have shopping cart yet.", http.StatusNotFound)
			}
			return err
		}

		c, err = snapshot(ctx, db, c)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleClear(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		c, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NewError(err, "You do not have shopping cart yet.", http.StatusNotFound)
			}
			return err
		}

		if err := DeleteItems(ctx, db, c.ID); err != nil {
			return err
		}

		msg := struct {
			Detail string `json:"detail"`
		}{"Shopping cart has been cleared successfully."}
		return web.Respond(ctx, w, msg, http.StatusOK)
	}
}
