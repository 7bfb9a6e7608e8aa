package email

import (
	"fmt"
	"net/smtp"
	"time"

	"fintrack/internal/config"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sender delivers fraud alerts to the review inbox via SMTP. Delivery is
// fire-and-forget: transport failures are logged, never surfaced to the
// analysis path.
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendFraudAlert notifies the review inbox about a flagged transaction.
func (s *Sender) SendFraudAlert(txID int64, amount decimal.Decimal, location string) {
	if err := s.send(txID, amount, location); err != nil {
		s.logger.Errorf("Failed to send fraud alert for transaction %d: %v", txID, err)
	}
}

func (s *Sender) send(txID int64, amount decimal.Decimal, location string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.AlertEmail}
	e.Subject = fmt.Sprintf("Fraud Alert: Transaction %d", txID)

	if location == "" {
		location = "unknown"
	}
	body := fmt.Sprintf(
		"A transaction has been flagged as suspicious.\n\n"+
			"Transaction ID: %d\n"+
			"Amount: %s\n"+
			"Location: %s\n"+
			"Flagged at: %s\n\n"+
			"Please review it in the fraud console.\n",
		txID, amount, location, time.Now().Format("2006-01-02 15:04:05"),
	)
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.AlertEmail, e.Subject)
	return nil
}
