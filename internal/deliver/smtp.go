// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliver

import (
	"context"
	"errors"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"
	"github.com/wneessen/go-mail/smtp"

	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrDelivery marks a failure to hand the outcome to its recipients.
var ErrDelivery = errors.New("delivery failed")

// Error reports a delivery failure. It is distinguishable from pipeline
// failures by its class.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("delivery: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() []error { return []error{ErrDelivery, e.Err} }

// Class implements types.Classified.
func (e *Error) Class() types.ErrorClass { return types.ClassDelivery }

// Report counts per-recipient results of one send.
type Report struct {
	Sent   int
	Failed int
	Errors map[string]string
}

// mailClient is the subset of *mail.Client used for sending.
type mailClient interface {
	DialToSMTPClientWithContext(ctx context.Context) (*smtp.Client, error)
	SendWithSMTPClient(client *smtp.Client, messages ...*mail.Msg) error
	CloseWithSMTPClient(client *smtp.Client) error
}

// SMTPSender sends one message per recipient over a single connection.
type SMTPSender struct {
	From     string
	FromName string
	Log      logger.Logger

	client mailClient
}

// NewSMTPSender returns a sender authenticating as cfg.SMTPUsername with
// STARTTLS required.
func NewSMTPSender(cfg types.DeliveryConfig, log logger.Logger) (*SMTPSender, error) {
	if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
		return nil, &Error{Op: "configure", Err: errors.New("SMTP username and password must be set")}
	}
	c, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, &Error{Op: "configure", Err: err}
	}
	return &SMTPSender{From: cfg.SMTPUsername, FromName: cfg.FromName, Log: log, client: c}, nil
}

// Send delivers msg to every recipient. Failure to connect or authenticate
// is an *Error; per-recipient failures are counted in the report and become
// an *Error only when no recipient was reached.
func (s *SMTPSender) Send(ctx context.Context, msg Message, to []types.Subscriber) (Report, error) {
	log := logOrDiscard(s.Log)
	report := Report{Errors: make(map[string]string)}
	if len(to) == 0 {
		log.Warn("deliver: no recipients, skipping send")
		return report, nil
	}

	conn, err := s.client.DialToSMTPClientWithContext(ctx)
	if err != nil {
		return report, &Error{Op: "connect", Err: err}
	}
	defer s.client.CloseWithSMTPClient(conn)

	for _, sub := range to {
		m, err := s.message(msg, sub)
		if err == nil {
			err = s.client.SendWithSMTPClient(conn, m)
		}
		if err != nil {
			log.Errorf("deliver: failed to send to %s: %v", sub.Email, err)
			report.Failed++
			report.Errors[sub.Email] = err.Error()
			continue
		}
		log.Infof("deliver: sent to %s", sub.Email)
		report.Sent++
	}

	log.Infof("deliver: %d sent, %d failed", report.Sent, report.Failed)
	if report.Sent == 0 {
		return report, &Error{Op: "send", Err: fmt.Errorf("all %d recipient(s) failed", report.Failed)}
	}
	return report, nil
}

func (s *SMTPSender) message(msg Message, to types.Subscriber) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.FromName, s.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.AddToFormat(to.DisplayName(), to.Email); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
