package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Purchase permanently records that a user owns a movie. The cart refuses
// movies the user already owns, and the payment recorder writes these rows
// when an order is paid.
type Purchase struct {
	UserID      string    `json:"userId" db:"user_id"`
	MovieID     string    `json:"movieId" db:"movie_id"`
	PurchasedAt time.Time `json:"purchasedAt" db:"purchased_at"`
}

func Exists(ctx context.Context, db sqlx.ExtContext, userID string, movieID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND movie_id = $2)`

	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, q, userID, movieID); err != nil {
		return false, fmt.Errorf("checking purchase: %w", err)
	}
	return exists, nil
}

// Create is idempotent: paying for an order twice must not fail on the
// ownership rows.
func Create(ctx context.Context, db sqlx.ExtContext, p Purchase) error {
	const q = `
	INSERT INTO purchases (user_id, movie_id, purchased_at)
	VALUES (:user_id, :movie_id, :purchased_at)
	ON CONFLICT (user_id, movie_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting purchase: %w", err)
	}
	return nil
}

func FetchByUser(ctx context.Context, db *sqlx.DB, userID string) ([]Purchase, error) {
	const q = `SELECT * FROM purchases WHERE user_id = $1 ORDER BY purchased_at`

	ps := []Purchase{}
	if err := db.SelectContext(ctx, &ps, q, userID); err != nil {
		return nil, fmt.Errorf("fetching purchases: %w", err)
	}
	return ps, nil
}
