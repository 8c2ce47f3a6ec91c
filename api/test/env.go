// Package test runs the API black box style: a real postgres from
// dockertest, the full router wired with mock checkout providers, and
// plain HTTP requests against an httptest server.
package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api"
	"github.com/moviehub/theater-api/api/background"
	"github.com/moviehub/theater-api/checkout"
	"github.com/moviehub/theater-api/config"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/notify"
	"github.com/moviehub/theater-api/validate"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

const (
	tokenSecret   = "test-token-secret"
	webhookSecret = "whsec_test_secret"
)

var (
	pgOnce     sync.Once
	pgHost     string
	pgErr      error
	pgPool     *dockertest.Pool
	pgResource *dockertest.Resource
)

// startPostgres boots one postgres container for the whole package. Every
// test env then creates its own database inside it.
func startPostgres() (string, error) {
	pgOnce.Do(func() {
		pgPool, pgErr = dockertest.NewPool("")
		if pgErr != nil {
			return
		}

		pgResource, pgErr = pgPool.Run("postgres", "15-alpine", []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=postgres",
		})
		if pgErr != nil {
			return
		}

		pgHost = "localhost:" + pgResource.GetPort("5432/tcp")
		pgErr = pgPool.Retry(func() error {
			db, err := database.Open(dbConfig("postgres"))
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Ping()
		})
	})
	return pgHost, pgErr
}

func purgePostgres() {
	if pgPool != nil && pgResource != nil {
		pgPool.Purge(pgResource)
	}
}

func dbConfig(name string) config.DB {
	return config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       name,
		DisableTLS: true,
	}
}

type TestEnv struct {
	DB     *sqlx.DB
	URL    string
	Server *httptest.Server

	WebhookSecret string
	Stripe        *mockStripe
	Paypal        *mockPaypal

	UserID  string
	AdminID string
}

// NewTestEnv spins up an isolated database named name and an API server
// whose placement goes through a mock Stripe backend.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	return newTestEnv(t, name, false)
}

// NewPaypalTestEnv is NewTestEnv with placement going through a mock
// PayPal backend instead, so the capture flow can be exercised.
func NewPaypalTestEnv(t *testing.T, name string) (*TestEnv, error) {
	return newTestEnv(t, name, true)
}

func newTestEnv(t *testing.T, name string, paypalCheckout bool) (*TestEnv, error) {
	if _, err := startPostgres(); err != nil {
		return nil, fmt.Errorf("starting postgres: %w", err)
	}

	admin, err := database.Open(dbConfig("postgres"))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := admin.Exec("CREATE DATABASE " + name); err != nil {
		admin.Close()
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}
	admin.Close()

	db, err := database.Open(dbConfig(name))
	if err != nil {
		return nil, fmt.Errorf("connecting to database %s: %w", name, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database %s: %w", name, err)
	}

	stripeCfg := config.Stripe{
		APISecret:     "sk_test_secret",
		WebhookSecret: webhookSecret,
		SuccessURL:    "http://frontend.test/success",
		CancelURL:     "http://frontend.test/cancel",
	}

	ms := &mockStripe{}
	stripeSrv := httptest.NewServer(ms.handle())
	t.Cleanup(stripeSrv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(stripeSrv.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	strp := &stripecl.API{}
	strp.Init(stripeCfg.APISecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	mp := &mockPaypal{}
	paypalSrv := httptest.NewServer(mp.handle())
	t.Cleanup(paypalSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", paypalSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}
	if _, err := pp.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("getting paypal access token: %w", err)
	}

	var provider checkout.Provider = checkout.NewStripeProvider(strp, stripeCfg)
	if paypalCheckout {
		provider = checkout.NewPaypalProvider(pp, stripeCfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mux := api.APIMux(api.APIConfig{
		Log:             logger,
		DB:              db,
		TokenSecret:     tokenSecret,
		Background:      background.New(logger),
		Checkout:        provider,
		CheckoutTimeout: 5 * time.Second,
		Paypal:          pp,
		StripeCfg:       stripeCfg,
		Notifier:        &notify.Log{Logger: logger},
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &TestEnv{
		DB:            db,
		URL:           srv.URL + "/api/v1",
		Server:        srv,
		WebhookSecret: webhookSecret,
		Stripe:        ms,
		Paypal:        mp,
		UserID:        validate.GenerateID(),
		AdminID:       validate.GenerateID(),
	}, nil
}

// Client never follows redirects: placement answers 303 with the checkout
// URL in Location and the tests want to see that response, not chase it.
func (te *TestEnv) Client() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (te *TestEnv) Token(userID string, role string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	s, err := tok.SignedString([]byte(tokenSecret))
	if err != nil {
		panic(err)
	}
	return s
}

func (te *TestEnv) UserToken() string  { return te.Token(te.UserID, "USER") }
func (te *TestEnv) AdminToken() string { return te.Token(te.AdminID, "ADMIN") }

func (te *TestEnv) request(t *testing.T, method string, path string, token string, body io.Reader) *http.Response {
	t.Helper()

	r, err := http.NewRequest(method, te.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := te.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	return w
}
