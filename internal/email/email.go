// Package email sends transactional mail (admin verification links,
// employee welcome notes) through a pluggable provider.
package email

import (
	"fmt"

	"github.com/your-org/attendo/internal/config"
)

type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Service delivers messages. Implementations must be safe for
// concurrent use; delivery is fire-and-forget from the caller's side.
type Service interface {
	Send(msg Message) error
}

// NewService builds the provider selected in config.
func NewService(cfg config.EmailConfig) (Service, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendgridKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires sendgrid_key")
		}
		return newSendgridService(cfg), nil
	case "console":
		return &consoleService{appName: cfg.AppName}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
