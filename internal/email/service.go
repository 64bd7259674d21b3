// Package email sends owner notifications over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	msg := s.buildMessage(to, subject, htmlBody, textBody)
	if err := s.send(s.server, s.auth, s.config.From, to, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *Service) buildMessage(to []string, subject, htmlBody, textBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	boundary := "boundary-authorsite"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

// ContactNotification is the data of the email the site owner receives for every new
// contact message.
type ContactNotification struct {
	SiteName   string
	Name       string
	Email      string
	Phone      string
	Message    string
	ReceivedAt time.Time
}

// SendContactNotification tells the owner about a new contact message.
func (s *Service) SendContactNotification(to string, data ContactNotification) error {
	if data.SiteName == "" {
		data.SiteName = s.config.FromName
	}
	html, err := renderTemplate(contactNotification, data)
	if err != nil {
		return fmt.Errorf("render contact notification: %w", err)
	}
	text := fmt.Sprintf("Nuevo mensaje de %s <%s>\n\n%s", data.Name, data.Email, data.Message)
	subject := fmt.Sprintf("Nuevo mensaje de contacto de %s", data.Name)
	return s.SendHTMLEmail([]string{to}, subject, html, text)
}

var contactNotification = template.Must(template.New("contact").Parse(contactNotificationTemplate))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const contactNotificationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Nuevo mensaje de contacto</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #8b5e34; padding-bottom: 10px; margin-bottom: 20px; }
        .field { margin: 8px 0; }
        .label { font-weight: bold; }
        .message { white-space: pre-wrap; background: #f7f3ee; padding: 12px; border-radius: 4px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.SiteName}}</h1>
    </div>

    <h2>Nuevo mensaje de contacto</h2>

    <p class="field"><span class="label">Nombre:</span> {{.Name}}</p>
    <p class="field"><span class="label">Email:</span> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
    {{if .Phone}}<p class="field"><span class="label">Teléfono:</span> {{.Phone}}</p>{{end}}

    <div class="message">{{.Message}}</div>

    <div class="footer">
        <p>Recibido el {{.ReceivedAt.Format "02/01/2006 15:04"}}. Puedes gestionarlo desde el panel de administración.</p>
    </div>
</body>
</html>`
