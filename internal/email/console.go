package email

import "log/slog"

// consoleService logs messages instead of delivering them. Used in
// development and as the default provider.
type consoleService struct {
	appName string
}

func (s *consoleService) Send(msg Message) error {
	slog.Info("email (console provider)",
		"app", s.appName,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}
