package config

import "time"

// Config collects every knob the server needs. It is parsed once in main
// and handed down explicitly; nothing in the codebase reads the environment
// after startup.
type Config struct {
	Web      Web
	Cors     Cors
	DB       DB
	Auth     Auth
	Stripe   Stripe
	Paypal   Paypal
	Checkout Checkout
	Rate     Rate
	Email    Email
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:theater"`
	DisableTLS bool   `conf:"default:true"`
}

type Auth struct {
	// TokenSecret verifies access tokens minted by the identity service.
	TokenSecret string `conf:"mask"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:8000/api/v1/notifications/success/"`
	CancelURL     string `conf:"default:http://localhost:8000/api/v1/notifications/cancel/"`
}

type Paypal struct {
	Enabled  bool   `conf:"default:false"`
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type Checkout struct {
	// Timeout bounds the provider call made inside order placement.
	Timeout time.Duration `conf:"default:10s"`
}

type Rate struct {
	Enabled  bool    `conf:"default:true"`
	RPS      float64 `conf:"default:20"`
	Burst    int     `conf:"default:40"`
	ExpiryMn int     `conf:"default:10"`
}

type Email struct {
	Enabled  bool `conf:"default:false"`
	Host     string
	Port     string `conf:"default:25"`
	Address  string
	Password string `conf:"mask"`
	// BillingAddress receives payment status notifications.
	BillingAddress string
}
