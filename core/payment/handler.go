package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/background"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/config"
	"github.com/moviehub/theater-api/core/claims"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/notify"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

func notifyStatus(bg *background.Background, ntf notify.Notifier, userID, orderID string, status Status) {
	bg.Go("payment-status-notification", func() error {
		return ntf.PaymentStatus(userID, orderID, string(status))
	})
}

// HandleWebhook is the dispatcher for provider notifications. The contract
// with the provider: 400 on a signature we can't trust, 200 once an event is
// processed or recognized as already settled, so redelivery stops; anything
// in between keeps the provider retrying.
func HandleWebhook(db *sqlx.DB, cfg config.Stripe, bg *background.Background, ntf notify.Notifier) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot verify event signature: %w", err))
		}

		switch event.Type {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode event payload: %w", err))
			}
			if session.Mode != stripe.CheckoutSessionModePayment {
				break
			}

			pay, err := Create(ctx, db, session.ID)
			switch {
			case err == nil:
				notifyStatus(bg, ntf, pay.UserID, pay.OrderID, Successful)

			case errors.Is(err, order.ErrAlreadyPaid), errors.Is(err, order.ErrAlreadyCanceled):
				// Replay of an event we already settled: acknowledge so
				// the provider stops redelivering.

			case errors.Is(err, sql.ErrNoRows):
				return weberr.NewError(err, "Order not found", http.StatusNotFound)

			case database.IsUniqueViolation(err):
				return weberr.NewError(err, "Integrity error: "+err.Error(), http.StatusBadRequest)

			default:
				return fmt.Errorf("recording payment for session[%s]: %w", session.ID, err)
			}

		case "checkout.session.expired", "payment_intent.canceled":
			sessionID, _ := event.Data.Object["id"].(string)
			if sessionID == "" {
				return weberr.BadRequest(errors.New("event payload is missing the object id"))
			}

			ord, err := order.CancelBySession(ctx, db, sessionID)
			switch {
			case err == nil:
				notifyStatus(bg, ntf, ord.UserID, ord.ID, Cancelled)

			case errors.Is(err, order.ErrAlreadyPaid),
				errors.Is(err, order.ErrAlreadyCanceled),
				errors.Is(err, sql.ErrNoRows):
				// Already terminal or no matching order: final state, not
				// retryable, acknowledge.

			default:
				return fmt.Errorf("cancelling order for expired session: %w", err)
			}
		}

		return web.Respond(ctx, w, nil, http.StatusOK)
	}
}

// HandlePaypalCapture confirms a PayPal-hosted payment. PayPal has no signed
// completion webhook here: the buyer returns and the frontend triggers an
// explicit capture, which then goes through the same payment recorder.
func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, bg *background.Background, ntf notify.Notifier) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return weberr.BadGateway(
				fmt.Errorf("capturing paypal order[%s]: %w", providerID, err),
				"checkout provider is unavailable, try again later",
			)
		}
		if resp.Status != "COMPLETED" {
			return weberr.BadRequest(
				fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status),
			)
		}

		pay, err := Create(ctx, db, providerID)
		switch {
		case err == nil:
			notifyStatus(bg, ntf, pay.UserID, pay.OrderID, Successful)

		case errors.Is(err, order.ErrAlreadyPaid):
			// Capture retried after a success: settled already.

		case errors.Is(err, order.ErrAlreadyCanceled):
			return weberr.Conflict(err, "Order already cancelled")

		case errors.Is(err, sql.ErrNoRows):
			return weberr.NewError(err, "Order not found", http.StatusNotFound)

		default:
			return fmt.Errorf("the order was payed but recording the payment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleHistory returns the caller's own payments.
func HandleHistory(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		ps, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		resp := struct {
			Payments []Payment `json:"payments"`
		}{ps}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	f.UserID = q.Get("user_id")

	if raw := q.Get("status"); raw != "" {
		s := Status(raw)
		if s != Successful && s != Cancelled && s != Refunded {
			return Filter{}, fmt.Errorf("invalid status %q", raw)
		}
		f.Status = s
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Filter{}, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Filter{}, fmt.Errorf("invalid offset %q", raw)
		}
		f.Offset = n
	}

	return f, nil
}

// HandleListAll is the staff view over every user's payments.
func HandleListAll(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := parseFilter(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		ps, err := List(ctx, db, f)
		if err != nil {
			return err
		}

		resp := struct {
			Payments []Payment `json:"payments"`
		}{ps}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
