package movie

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movie is the catalog record the ordering flow consumes: an id, a name to
// show the buyer and a current price. Everything else about the catalog
// lives outside this service.
type Movie struct {
	ID          string          `json:"id" db:"movie_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type MovieNew struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required"`
}
