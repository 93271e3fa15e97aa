// Package email sends owner notifications via SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendStatusChanged notifies the request owner that an admin moved their
// project to a new status.
func (s *Service) SendStatusChanged(to, projectName, status string) error {
	subject := fmt.Sprintf("Your project %q is now %s", projectName, status)
	body := fmt.Sprintf(
		"Hello,\n\nThe status of your hosting request %q has changed to %q.\n\nLog in to your dashboard to see the details.\n",
		projectName, status,
	)
	return s.SendEmail([]string{to}, subject, body)
}

// SendNewComment notifies the request owner about a new admin message.
func (s *Service) SendNewComment(to, projectName, author string) error {
	subject := fmt.Sprintf("New message on your project %q", projectName)
	body := fmt.Sprintf(
		"Hello,\n\n%s left a new message on your hosting request %q.\n\nLog in to your dashboard to read and reply.\n",
		author, projectName,
	)
	return s.SendEmail([]string{to}, subject, body)
}
