package order

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/core/claims"
)

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	f.UserID = q.Get("user_id")

	if raw := q.Get("date_from"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid date_from: %w", err)
		}
		f.DateFrom = t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid date_to: %w", err)
		}
		f.DateTo = t
	}

	if raw := q.Get("status"); raw != "" {
		s := Status(raw)
		if s != Pending && s != Paid && s != Canceled {
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

// HandleList returns orders matching the query filters. Non-admin callers
// only ever see their own orders: whatever user_id they pass is overridden
// with the one from their token.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		f, err := parseFilter(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		if !claims.IsAdmin(ctx) {
			f.UserID = clm.UserID
		}

		sums, err := List(ctx, db, f)
		if err != nil {
			return err
		}

		resp := struct {
			Orders []Summary `json:"orders"`
		}{sums}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
