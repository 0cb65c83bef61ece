package email

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/your-org/attendo/internal/config"
)

type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

func newSendgridService(cfg config.EmailConfig) *sendgridService {
	return &sendgridService{
		client:     sendgrid.NewSendClient(cfg.SendgridKey),
		from:       sgmail.NewEmail(cfg.AppName, cfg.FromAddress),
		subjPrefix: "[" + cfg.AppName + "] ",
	}
}

func (s *sendgridService) Send(msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.To)
	m := sgmail.NewSingleEmail(s.from, s.subjPrefix+msg.Subject, to, msg.TextBody, msg.HTMLBody)

	res, err := s.client.Send(m)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
