package notification

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogService is a notifier for environments without an SMTP relay: it logs
// what would have been sent instead of failing every approval.
type LogService struct {
	logger *slog.Logger
}

// NewLogService creates a log-only notification service.
func NewLogService(logger *slog.Logger) *LogService {
	return &LogService{logger: logger}
}

func (s *LogService) SendSetupLink(to, name, link string, validFor time.Duration) error {
	s.logger.Info("setup link (email not configured)",
		"to", to, "name", name, "link", link, "valid_for", validFor)
	return nil
}

func (s *LogService) SendRejection(to, name, reason string) error {
	s.logger.Info("rejection notice (email not configured)",
		"to", to, "name", name, "reason", reason)
	return nil
}

func (s *LogService) SendOwnerAlert(requestID uuid.UUID, adminEmail, instituteName string) error {
	s.logger.Info("owner alert (email not configured)",
		"request_id", requestID, "admin_email", adminEmail, "institute", instituteName)
	return nil
}
