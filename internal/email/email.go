package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/petmatch/clinic-api/internal/config"
	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/pkg/logger"
)

// Sender delivers the invite link by email when the owner record has one.
type Sender interface {
	SendInvite(to string, view *model.InviteView) error
}

type Service struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewService(cfg config.EmailConfig, logger *logger.Logger) *Service {
	return &Service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *Service) SendInvite(to string, view *model.InviteView) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("%s added %s", view.ClinicName, view.PatientName))
	m.SetBody("text/plain", view.InviteMessage)
	m.AddAlternative("text/html", s.htmlBody(view))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send invite email: %w", err)
	}
	return nil
}

func (s *Service) htmlBody(view *model.InviteView) string {
	return fmt.Sprintf(
		`<p>%s added your pet <strong>%s</strong>.</p>
<p><a href="%s">Open the invite</a> to follow its health records in the app.</p>`,
		view.ClinicName, view.PatientName, view.InviteLink,
	)
}
