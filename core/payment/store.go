package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

func Insert(ctx context.Context, db sqlx.ExtContext, p Payment) error {
	const q = `
	INSERT INTO payments (payment_id, user_id, order_id, status, amount, external_payment_id, created_at)
	VALUES (:payment_id, :user_id, :order_id, :status, :amount, :external_payment_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func InsertItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO payment_items (payment_id, order_item_id, price_at_payment)
	VALUES (:payment_id, :order_item_id, :price_at_payment)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting payment item: %w", err)
	}
	return nil
}

func FetchByUser(ctx context.Context, db *sqlx.DB, userID string) ([]Payment, error) {
	const q = `SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	ps := []Payment{}
	if err := db.SelectContext(ctx, &ps, q, userID); err != nil {
		return nil, fmt.Errorf("fetching payments: %w", err)
	}
	return ps, nil
}

// Filter narrows List. Zero values mean "don't filter".
type Filter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

func List(ctx context.Context, db *sqlx.DB, f Filter) ([]Payment, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT * FROM payments`)

	var clauses []string
	var args []interface{}
	add := func(clause string, arg interface{}) string {
		args = append(args, arg)
		return fmt.Sprintf(clause, len(args))
	}

	if f.UserID != "" {
		clauses = append(clauses, add(`user_id = $%d`, f.UserID))
	}
	if f.Status != "" {
		clauses = append(clauses, add(`status = $%d`, f.Status))
	}

	if len(clauses) > 0 {
		q.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC")

	if f.Limit > 0 {
		q.WriteString(add(` LIMIT $%d`, f.Limit))
	}
	if f.Offset > 0 {
		q.WriteString(add(` OFFSET $%d`, f.Offset))
	}

	ps := []Payment{}
	if err := db.SelectContext(ctx, &ps, q.String(), args...); err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return ps, nil
}
