package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/playerhoods/match-system/config"
)

// FormationEmailData — данные письма «матч собран».
type FormationEmailData struct {
	RecipientName    string
	MatchDate        string
	MatchTimeRange   string
	Venue            string
	GameTypeLabel    string
	OrganizerName    string
	MatchURL         string
	ParticipantNames []string
}

// FormationEmailSender — то, что нужно нотификатору от почтового слоя.
type FormationEmailSender interface {
	SendFormationEmail(toEmail string, data FormationEmailData) error
}

type EmailService struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewEmailService(cfg *config.Config, logger *slog.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger}
}

func (s *EmailService) SendEmail(to []string, subject string, body string) error {
	// Без настроенного SMTP письма пропускаются (локальная разработка).
	if s.cfg.SMTPHost == "" {
		s.logger.Info("email skipped, SMTP is not configured",
			slog.Any("to", to), slog.String("subject", subject))
		return nil
	}

	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		// Прямое TLS-соединение (обычно порт 465)
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS (обычно порт 587)
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
	}

	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}

	return nil
}

var formationEmailTemplate = template.Must(template.New("formation_email").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Match is on</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #059669; color: white; padding: 30px; border-radius: 12px 12px 0 0; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">Your match is on!</h1>
  </div>
  <div style="background: #f9fafb; padding: 30px; border-radius: 0 0 12px 12px;">
    <p style="margin: 0 0 20px 0;">Hi {{.RecipientName}},</p>
    <p style="margin: 0 0 20px 0;">A match you joined has been formed. Here are the details:</p>
    <div style="background: white; border-radius: 8px; padding: 20px; margin-bottom: 20px; border: 1px solid #e5e7eb;">
      <table style="width: 100%; border-collapse: collapse;">
        <tr><td style="padding: 8px 0; color: #6b7280; width: 90px;">Type</td><td style="padding: 8px 0;">{{.GameTypeLabel}}</td></tr>
        <tr><td style="padding: 8px 0; color: #6b7280;">When</td><td style="padding: 8px 0;">{{.MatchDate}}{{if .MatchTimeRange}}<br><span style="color: #6b7280;">{{.MatchTimeRange}}</span>{{end}}</td></tr>
        <tr><td style="padding: 8px 0; color: #6b7280;">Where</td><td style="padding: 8px 0;">{{.Venue}}</td></tr>
        <tr><td style="padding: 8px 0; color: #6b7280;">Organizer</td><td style="padding: 8px 0;">{{.OrganizerName}}</td></tr>
      </table>
    </div>
    <div style="background: white; border-radius: 8px; padding: 20px; margin-bottom: 20px; border: 1px solid #e5e7eb;">
      <p style="margin: 0 0 10px 0; font-weight: 500;">Lineup:</p>
      <ul style="margin: 0; padding-left: 20px; color: #374151;">
        {{range .ParticipantNames}}<li>{{.}}</li>{{end}}
      </ul>
    </div>
    <div style="text-align: center; margin-top: 25px;">
      <a href="{{.MatchURL}}" style="display: inline-block; background: #059669; color: white; padding: 12px 30px; border-radius: 8px; text-decoration: none;">View match</a>
    </div>
  </div>
  <p style="text-align: center; color: #9ca3af; font-size: 12px; margin-top: 20px;">
    This email was sent automatically, please do not reply.
  </p>
</body>
</html>
`))

func (s *EmailService) SendFormationEmail(toEmail string, data FormationEmailData) error {
	var body bytes.Buffer
	if err := formationEmailTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("ошибка выполнения шаблона письма о сборе матча: %w", err)
	}

	subject := fmt.Sprintf("Match is on - %s %s", data.MatchDate, data.GameTypeLabel)
	return s.SendEmail([]string{toEmail}, subject, body.String())
}
