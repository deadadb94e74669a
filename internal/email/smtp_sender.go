package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	// El puerto 465 usa TLS implícito; en el resto gomail negocia STARTTLS si el servidor lo ofrece.
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = port == 465
	if useTLS {
		d.TLSConfig = &tls.Config{ServerName: host}
	}
	return &SMTPSender{
		dialer:   d,
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SMTPSender) Send(_ context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("to email is required")
	}
	m := buildMessage(s.from, s.fromName, to, subject, htmlBody)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMessage(from, fromName, to, subject, htmlBody string) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	if strings.TrimSpace(fromName) != "" {
		m.SetAddressHeader("From", from, fromName)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return m
}
