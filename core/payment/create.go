package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/core/purchase"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/validate"
)

// Create is the payment recorder: it converts a completed checkout session
// into a payment, snapshots every order item, marks the movies as owned and
// flips the order to PAID, all in one transaction.
//
// The order row is locked and its status checked first: a redelivered
// completion event finds the order no longer PENDING and gets
// order.ErrAlreadyPaid instead of writing a second payment. The unique
// constraint on external_payment_id backs that guard at the store level.
func Create(ctx context.Context, db *sqlx.DB, sessionID string) (Payment, error) {
	var pay Payment

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		ord, err := order.FetchForUpdateBySession(ctx, tx, sessionID)
		if err != nil {
			return fmt.Errorf("fetching order bound to session[%s]: %w", sessionID, err)
		}

		switch ord.Status {
		case order.Paid:
			return order.ErrAlreadyPaid
		case order.Canceled:
			return order.ErrAlreadyCanceled
		}

		now := time.Now().UTC()
		pay = Payment{
			ID:                validate.GenerateID(),
			UserID:            ord.UserID,
			OrderID:           ord.ID,
			Status:            Successful,
			Amount:            ord.TotalAmount,
			ExternalPaymentID: sessionID,
			CreatedAt:         now,
		}
		if err := Insert(ctx, tx, pay); err != nil {
			return err
		}

		items, err := order.FetchItems(ctx, tx, ord.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			pi := Item{
				PaymentID:      pay.ID,
				OrderItemID:    it.ID,
				PriceAtPayment: it.PriceAtOrder,
			}
			if err := InsertItem(ctx, tx, pi); err != nil {
				return err
			}

			p := purchase.Purchase{
				UserID:      ord.UserID,
				MovieID:     it.MovieID,
				PurchasedAt: now,
			}
			if err := purchase.Create(ctx, tx, p); err != nil {
				return err
			}
		}

		up := order.StatusUp{
			ID:        ord.ID,
			Status:    order.Paid,
			UpdatedAt: now,
		}
		return order.UpdateStatus(ctx, tx, up)
	})

	if err != nil {
		return Payment{}, err
	}
	return pay, nil
}
