package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (order_id, user_id, status, total_amount, session_id, created_at, updated_at)
	VALUES (:order_id, :user_id, :status, :total_amount, :session_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_item_id, order_id, movie_id, price_at_order, created_at)
	VALUES (:order_item_id, :order_id, :movie_id, :price_at_order, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func SetSession(ctx context.Context, db sqlx.ExtContext, orderID string, sessionID string, now time.Time) error {
	const q = `UPDATE orders SET session_id = $2, updated_at = $3 WHERE order_id = $1`

	if _, err := db.ExecContext(ctx, q, orderID, sessionID, now); err != nil {
		return fmt.Errorf("binding order[%s] to session: %w", orderID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, orderID); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// FetchForUpdate row-locks the order so concurrent webhook deliveries
// serialize on the status check.
func FetchForUpdate(ctx context.Context, tx sqlx.ExtContext, orderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1 FOR UPDATE`

	var ord Order
	if err := sqlx.GetContext(ctx, tx, &ord, q, orderID); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// FetchForUpdateBySession resolves an order from the provider's session id,
// row-locked for the same reason.
func FetchForUpdateBySession(ctx context.Context, tx sqlx.ExtContext, sessionID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE session_id = $1 FOR UPDATE`

	var ord Order
	if err := sqlx.GetContext(ctx, tx, &ord, q, sessionID); err != nil {
		return Order{}, err
	}
	return ord, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("fetching order items: %w", err)
	}
	return items, nil
}

// FetchReservedMovieIDs is the reservation query: among movieIDs, the ones
// already claimed by another PENDING order of the same user.
func FetchReservedMovieIDs(ctx context.Context, db sqlx.ExtContext, userID string, movieIDs []string) ([]string, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}

	q, args, err := sqlx.In(`
	SELECT oi.movie_id
	FROM order_items oi
	JOIN orders o ON o.order_id = oi.order_id
	WHERE o.status = ? AND o.user_id = ? AND oi.movie_id IN (?)`,
		Pending, userID, movieIDs)
	if err != nil {
		return nil, fmt.Errorf("building reservation query: %w", err)
	}
	q = sqlx.Rebind(sqlx.DOLLAR, q)

	var ids []string
	if err := sqlx.SelectContext(ctx, db, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("fetching reserved movies: %w", err)
	}
	return ids, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `UPDATE orders SET status = :status, updated_at = :updated_at WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, up); err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	return nil
}

// LockUser takes a transaction-scoped advisory lock keyed on the user.
// Placement acquires it before reading the pending reservations so two
// concurrent placements by the same user can't both claim a movie.
func LockUser(ctx context.Context, tx sqlx.ExtContext, userID string) error {
	const q = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	if _, err := tx.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("locking user[%s] for placement: %w", userID, err)
	}
	return nil
}

// Filter narrows List. Zero values mean "don't filter".
type Filter struct {
	UserID   string
	DateFrom time.Time
	DateTo   time.Time
	Status   Status
	Limit    int
	Offset   int
}

// Summary is the listing row: order fields plus the names of its movies,
// eagerly joined.
type Summary struct {
	Order
	Movies []string `json:"movies"`
}

func List(ctx context.Context, db *sqlx.DB, f Filter) ([]Summary, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT * FROM orders`)

	var clauses []string
	var args []interface{}
	add := func(clause string, arg interface{}) string {
		args = append(args, arg)
		return fmt.Sprintf(clause, len(args))
	}

	if f.UserID != "" {
		clauses = append(clauses, add(`user_id = $%d`, f.UserID))
	}
	if !f.DateFrom.IsZero() {
		clauses = append(clauses, add(`created_at >= $%d`, f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		clauses = append(clauses, add(`created_at <= $%d`, f.DateTo))
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

	orders := []Order{}
	if err := db.SelectContext(ctx, &orders, q.String(), args...); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	sums := make([]Summary, 0, len(orders))
	ids := make([]string, 0, len(orders))
	for _, ord := range orders {
		sums = append(sums, Summary{Order: ord, Movies: []string{}})
		ids = append(ids, ord.ID)
	}
	if len(ids) == 0 {
		return sums, nil
	}

	nq, nargs, err := sqlx.In(`
	SELECT oi.order_id, COALESCE(m.name, '') AS name
	FROM order_items oi
	LEFT JOIN movies m ON m.movie_id = oi.movie_id
	WHERE oi.order_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building order names query: %w", err)
	}
	nq = sqlx.Rebind(sqlx.DOLLAR, nq)

	var names []struct {
		OrderID string `db:"order_id"`
		Name    string `db:"name"`
	}
	if err := db.SelectContext(ctx, &names, nq, nargs...); err != nil {
		return nil, fmt.Errorf("fetching order movie names: %w", err)
	}

	byID := make(map[string]int, len(sums))
	for i, s := range sums {
		byID[s.ID] = i
	}
	for _, n := range names {
		i := byID[n.OrderID]
		sums[i].Movies = append(sums[i].Movies, n.Name)
	}
	return sums, nil
}
