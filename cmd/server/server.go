package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/moviehub/theater-api/api"
	"github.com/moviehub/theater-api/api/background"
	"github.com/moviehub/theater-api/checkout"
	"github.com/moviehub/theater-api/config"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/notify"
	"github.com/moviehub/theater-api/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	const prefix = "THEATER"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	bg := background.New(logger)

	strp := &stripecl.API{}
	strp.Init(cfg.Stripe.APISecret, nil)

	var provider checkout.Provider = checkout.NewStripeProvider(strp, cfg.Stripe)

	var pp *paypal.Client
	if cfg.Paypal.Enabled {
		pp, err = paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return fmt.Errorf("failed to build the paypal client: %w", err)
		}

		if _, err = pp.GetAccessToken(context.TODO()); err != nil {
			return fmt.Errorf("failed to get the first paypal access token: %w", err)
		}

		// With paypal enabled, placement goes through paypal and settlement
		// through the explicit capture endpoint instead of the webhook.
		provider = checkout.NewPaypalProvider(pp, cfg.Stripe)
	}

	var notifier notify.Notifier = &notify.Log{Logger: logger}
	if cfg.Email.Enabled {
		notifier = notify.NewEmail(cfg.Email)
	}

	var limiter *rate.Limiter
	if cfg.Rate.Enabled {
		limiter = rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.ExpiryMn, cfg.Rate.RPS)
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:      cfg.Cors.Origin,
		Log:             logger,
		DB:              db,
		TokenSecret:     cfg.Auth.TokenSecret,
		Background:      bg,
		Checkout:        provider,
		CheckoutTimeout: cfg.Checkout.Timeout,
		Paypal:          pp,
		StripeCfg:       cfg.Stripe,
		Notifier:        notifier,
		Limiter:         limiter,
	})

	srv := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
