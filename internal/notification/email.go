package notification

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
)

// EmailConfig holds SMTP relay settings.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string

	// OwnerEmail receives alerts about newly submitted requests.
	OwnerEmail string
	// AdminBaseURL is used to build links into the review queue.
	AdminBaseURL string
}

// EmailService sends onboarding notifications over SMTP. It implements
// the notifier contract consumed by the onboarding service.
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email notification service.
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendSetupLink emails the magic setup link to an approved requester.
func (s *EmailService) SendSetupLink(to, name, link string, validFor time.Duration) error {
	subject := "Your Institute Setup Link"
	body := fmt.Sprintf(`<html><body>
		<h2>Welcome, %s!</h2>
		<p>Your institute onboarding request has been approved.</p>
		<p><a href="%s">Click here to set up your institute</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in %d hours.</p>
	</body></html>`, name, link, link, int(validFor.Hours()))
	return s.sendEmail(to, subject, body)
}

// SendRejection emails the requester that their request was declined.
func (s *EmailService) SendRejection(to, name, reason string) error {
	subject := "Update on Your Institute Onboarding Request"
	body := fmt.Sprintf(`<html><body>
		<h2>Hello, %s</h2>
		<p>We are sorry to inform you that your institute onboarding request was not approved.</p>
		<p>Reason: %s</p>
		<p>You may submit a new request with updated details at any time.</p>
	</body></html>`, name, reason)
	return s.sendEmail(to, subject, body)
}

// SendOwnerAlert notifies the platform owner that a new request awaits
// review.
func (s *EmailService) SendOwnerAlert(requestID uuid.UUID, adminEmail, instituteName string) error {
	if s.config.OwnerEmail == "" {
		return nil
	}
	subject := "New Institute Onboarding Request"
	body := fmt.Sprintf(`<html><body>
		<h2>New Onboarding Request</h2>
		<p>Institute: %s</p>
		<p>Requested by: %s</p>
		<p>Request ID: %s</p>
		<p>Review it at: %s/admin/onboarding</p>
	</body></html>`, instituteName, adminEmail, requestID, s.config.AdminBaseURL)
	return s.sendEmail(s.config.OwnerEmail, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
