package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Cart) error {
	const q = `
	INSERT INTO carts (cart_id, user_id, created_at, updated_at)
	VALUES (:cart_id, :user_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting cart: %w", err)
	}
	return nil
}

// Fetch returns the user's cart without items; sql.ErrNoRows if the user has
// no cart yet.
func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, userID); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// FetchItems eagerly joins the catalog: the ordering flow needs names and
// current prices, never a lazy item graph.
func FetchItems(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Item, error) {
	const q = `
	SELECT ci.cart_id, ci.movie_id, ci.added_at, m.name AS movie_name, m.price
	FROM cart_items ci
	JOIN movies m ON m.movie_id = ci.movie_id
	WHERE ci.cart_id = $1
	ORDER BY ci.added_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, cartID); err != nil {
		return nil, fmt.Errorf("fetching cart items: %w", err)
	}
	return items, nil
}

func HasItem(ctx context.Context, db sqlx.ExtContext, cartID string, movieID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM cart_items WHERE cart_id = $1 AND movie_id = $2)`

	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, q, cartID, movieID); err != nil {
		return false, fmt.Errorf("checking cart item: %w", err)
	}
	return exists, nil
}

func AddItem(ctx context.Context, db sqlx.ExtContext, cartID string, movieID string, now time.Time) error {
	const q = `INSERT INTO cart_items (cart_id, movie_id, added_at) VALUES ($1, $2, $3)`

	if _, err := db.ExecContext(ctx, q, cartID, movieID, now); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

// DeleteItem reports whether the item was actually present.
func DeleteItem(ctx context.Context, db sqlx.ExtContext, cartID string, movieID string) (bool, error) {
	const q = `DELETE FROM cart_items WHERE cart_id = $1 AND movie_id = $2`

	res, err := db.ExecContext(ctx, q, cartID, movieID)
	if err != nil {
		return false, fmt.Errorf("deleting cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking deleted cart item: %w", err)
	}
	return n > 0, nil
}

// DeleteItems flushes the cart. Order placement runs it inside the placement
// transaction so the cart and the new order change together or not at all.
func DeleteItems(ctx context.Context, db sqlx.ExtContext, cartID string) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := db.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("flushing cart[%s]: %w", cartID, err)
	}
	return nil
}
