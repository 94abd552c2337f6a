package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"
)

type EmailService interface {
	Send(ctx context.Context, to, subject, body string) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	dialer  mailSender
	from    string
	breaker *gobreaker.CircuitBreaker
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	return newEmailService(gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword), fromEmail)
}

func newEmailService(dialer mailSender, from string) *emailService {
	return &emailService{
		dialer: dialer,
		from:   from,
		// после 5 подряд ошибок SMTP не трогаем минуту
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "smtp",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *emailService) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.dialer.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
