package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/moviehub/theater-api/api/background"
	"github.com/moviehub/theater-api/api/middleware"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/checkout"
	"github.com/moviehub/theater-api/config"
	"github.com/moviehub/theater-api/core/cart"
	"github.com/moviehub/theater-api/core/movie"
	"github.com/moviehub/theater-api/core/order"
	"github.com/moviehub/theater-api/core/payment"
	"github.com/moviehub/theater-api/core/purchase"
	"github.com/moviehub/theater-api/database"
	"github.com/moviehub/theater-api/notify"
	"github.com/moviehub/theater-api/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin      string
	Log             logrus.FieldLogger
	DB              *sqlx.DB
	TokenSecret     string
	Background      *background.Background
	Checkout        checkout.Provider
	CheckoutTimeout time.Duration
	Paypal          *paypal.Client
	StripeCfg       config.Stripe
	Notifier        notify.Notifier
	Limiter         *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())
	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := middleware.Authenticate(cfg.TokenSecret)
	admin := middleware.Admin()

	health := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := database.StatusCheck(ctx, cfg.DB); err != nil {
			return fmt.Errorf("database is not ready: %w", err)
		}
		status := struct {
			Status string `json:"status"`
		}{"ok"}
		return web.Respond(ctx, w, status, http.StatusOK)
	}
	a.Handle(http.MethodGet, "/api/v1/health/", health)

	a.Handle(http.MethodGet, "/api/v1/movies/", movie.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/api/v1/movies/owned/", purchase.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/api/v1/movies/{id}/", movie.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/api/v1/movies/", movie.HandleCreate(cfg.DB), authen, admin)
	a.Handle(http.MethodDelete, "/api/v1/movies/{id}/", movie.HandleDelete(cfg.DB), authen, admin)

	a.Handle(http.MethodGet, "/api/v1/cart/items/", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/api/v1/cart/items/", cart.HandleClear(cfg.DB), authen)
	a.Handle(http.MethodPost, "/api/v1/cart/items/{movie_id}/", cart.HandleCreateItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/api/v1/cart/items/{movie_id}/", cart.HandleDeleteItem(cfg.DB), authen)

	a.Handle(http.MethodPost, "/api/v1/orders/place/", order.HandlePlace(cfg.DB, cfg.Checkout, cfg.CheckoutTimeout), authen)
	a.Handle(http.MethodGet, "/api/v1/orders/list/", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPatch, "/api/v1/orders/cancel/{order_id}/",
		order.HandleCancel(cfg.DB, cfg.Background, cfg.Notifier), authen)

	if cfg.Paypal != nil {
		a.Handle(http.MethodPost, "/api/v1/orders/paypal/{id}/capture/",
			payment.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.Background, cfg.Notifier), authen)
	}

	a.Handle(http.MethodPost, "/api/v1/webhooks/",
		payment.HandleWebhook(cfg.DB, cfg.StripeCfg, cfg.Background, cfg.Notifier))

	a.Handle(http.MethodGet, "/api/v1/payments/", payment.HandleHistory(cfg.DB), authen)
	a.Handle(http.MethodGet, "/api/v1/payments/all/", payment.HandleListAll(cfg.DB), authen, admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
