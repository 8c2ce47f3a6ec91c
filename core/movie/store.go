package movie

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, m Movie) error {
	const q = `
	INSERT INTO movies (movie_id, name, description, price, created_at, updated_at)
	VALUES (:movie_id, :name, :description, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, m); err != nil {
		return fmt.Errorf("inserting movie: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id string) (Movie, error) {
	const q = `SELECT * FROM movies WHERE movie_id = $1`

	var m Movie
	if err := db.GetContext(ctx, &m, q, id); err != nil {
		return Movie{}, fmt.Errorf("fetching movie[%s]: %w", id, err)
	}
	return m, nil
}

// FetchMany returns the movies that still exist among ids, preserving no
// particular order. Ids that don't resolve are simply absent from the
// result; the caller decides whether that matters.
func FetchMany(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Movie, error) {
	if len(ids) == 0 {
		return []Movie{}, nil
	}

	q, args, err := sqlx.In(`SELECT * FROM movies WHERE movie_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building movie query: %w", err)
	}
	q = sqlx.Rebind(sqlx.DOLLAR, q)

	var ms []Movie
	if err := sqlx.SelectContext(ctx, db, &ms, q, args...); err != nil {
		return nil, fmt.Errorf("fetching movies: %w", err)
	}
	return ms, nil
}

func List(ctx context.Context, db *sqlx.DB) ([]Movie, error) {
	const q = `SELECT * FROM movies ORDER BY name`

	ms := []Movie{}
	if err := db.SelectContext(ctx, &ms, q); err != nil {
		return nil, fmt.Errorf("listing movies: %w", err)
	}
	return ms, nil
}

func Delete(ctx context.Context, db *sqlx.DB, id string) error {
	const q = `DELETE FROM movies WHERE movie_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting movie[%s]: %w", id, err)
	}
	return nil
}
