package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the per-user staging area of selected movies. It is created
// lazily on the first add and survives order placement; only its items are
// flushed.
type Cart struct {
	ID        string    `json:"-" db:"cart_id"`
	UserID    string    `json:"-" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Items     []Item    `json:"items" db:"-"`
}

// Item is a (cart, movie) pairing, joined with the catalog so responses can
// show what a movie costs right now. The price here is informational: the
// binding snapshot is taken at order placement.
type Item struct {
	CartID    string          `json:"-" db:"cart_id"`
	MovieID   string          `json:"movieId" db:"movie_id"`
	MovieName string          `json:"movieName" db:"movie_name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	AddedAt   time.Time       `json:"addedAt" db:"added_at"`
}
