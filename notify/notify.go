// Package notify delivers payment-status notifications. Delivery is
// fire-and-forget: callers hand tasks to the background runner and never
// block a request on SMTP.
package notify

import (
	"fmt"
	"net/smtp"

	"github.com/moviehub/theater-api/config"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	// PaymentStatus reports that the order's payment reached the given
	// state ("successful" or "cancelled").
	PaymentStatus(userID string, orderID string, status string) error
}

// Log writes notifications to the server log. It is the default when no
// mail transport is configured.
type Log struct {
	Logger logrus.FieldLogger
}

func (l *Log) PaymentStatus(userID string, orderID string, status string) error {
	l.Logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": orderID,
		"status":   status,
	}).Info("payment status notification")
	return nil
}

// Email sends notifications to the configured billing inbox.
type Email struct {
	cfg config.Email
}

func NewEmail(cfg config.Email) *Email {
	return &Email{cfg: cfg}
}

func (e *Email) PaymentStatus(userID string, orderID string, status string) error {
	msg := fmt.Sprintf(
		"To: %s\r\nSubject: Payment %s\r\n\r\n"+
			"Payment for order %s of user %s is %s.\r\n",
		e.cfg.BillingAddress, status, orderID, userID, status,
	)

	addr := e.cfg.Host + ":" + e.cfg.Port
	auth := smtp.PlainAuth("", e.cfg.Address, e.cfg.Password, e.cfg.Host)

	err := smtp.SendMail(addr, auth, e.cfg.Address, []string{e.cfg.BillingAddress}, []byte(msg))
	if err != nil {
		return fmt.Errorf("sending payment status mail: %w", err)
	}
	return nil
}
