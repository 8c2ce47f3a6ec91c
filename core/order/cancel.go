package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/background"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/core/claims"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/notify"
	"github.com/moviehub/theater-api/validate"
)

func cancelLocked(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	switch ord.Status {
	case Paid:
		return ErrAlreadyPaid
	case Canceled:
		return ErrAlreadyCanceled
	}

	up := StatusUp{
		ID:        ord.ID,
		Status:    Canceled,
		UpdatedAt: time.Now().UTC(),
	}
	return UpdateStatus(ctx, tx, up)
}

// Cancel flips the user's own PENDING order to CANCELED. Orders of other
// users are reported as not found, not as forbidden.
func Cancel(ctx context.Context, db *sqlx.DB, orderID string, userID string) error {
	return database.Transaction(db, func(tx sqlx.ExtContext) error {
		ord, err := FetchForUpdate(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}
		if ord.UserID != userID {
			return fmt.Errorf("order[%s] does not belong to caller: %w", orderID, sql.ErrNoRows)
		}
		return cancelLocked(ctx, tx, ord)
	})
}

// CancelBySession resolves the order through the checkout session id, the
// path taken by expiration/cancellation webhooks. The canceled order is
// returned so callers can notify its owner.
func CancelBySession(ctx context.Context, db *sqlx.DB, sessionID string) (Order, error) {
	var ord Order

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		var err error
		ord, err = FetchForUpdateBySession(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("fetching order bound to session[%s]: %w", sessionID, err)
		}
		return cancelLocked(ctx, tx, ord)
	})

	if err != nil {
		return Order{}, err
	}
	return ord, nil
}

func HandleCancel(db *sqlx.DB, bg *background.Background, ntf notify.Notifier) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "order_id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(err)
		}

		if err := Cancel(ctx, db, orderID, clm.UserID); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return weberr.NewError(err, "Order not found.", http.StatusNotFound)
			case errors.Is(err, ErrAlreadyPaid):
				return weberr.NewError(err, "Order already paid", http.StatusBadRequest)
			case errors.Is(err, ErrAlreadyCanceled):
				return weberr.Conflict(err, "Order already cancelled")
			}
			return err
		}

		bg.Go("cancellation-notification", func() error {
			return ntf.PaymentStatus(clm.UserID, orderID, "cancelled")
		})

		msg := struct {
			Detail string `json:"detail"`
		}{"Order has been cancelled successfully."}
		return web.Respond(ctx, w, msg, http.StatusOK)
	}
}
