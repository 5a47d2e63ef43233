package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
)

// SMTPConfig holds the connection settings for the email sink.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// EmailSink delivers notifications over SMTP.
type EmailSink struct {
	cfg SMTPConfig
}

// NewEmailSink creates an email sink.
func NewEmailSink(cfg SMTPConfig) *EmailSink {
	return &EmailSink{cfg: cfg}
}

func (e *EmailSink) Name() string { return "email" }

var emailTmpl = template.Must(template.New("email").Parse(`{{.Title}}

{{.Body}}
{{range .Facts}}
- {{.Name}}: {{.Value}}{{end}}
{{if .Link}}
Link: {{.Link}}
{{end}}
This is an automated notification from the PR automation service.
`))

// Send renders the payload as plain text and mails it to every recipient.
func (e *EmailSink) Send(_ context.Context, p Payload) error {
	var body strings.Builder
	if err := emailTmpl.Execute(&body, p); err != nil {
		return fmt.Errorf("error generating email body: %w", err)
	}

	to := strings.Join(e.cfg.To, ",")
	msg := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s",
		to, e.cfg.From, p.Title, body.String())

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	var auth smtp.Auth
	if e.cfg.User != "" && e.cfg.Password != "" {
		auth = smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
	}

	var err error
	if e.cfg.Port == 465 {
		err = e.sendWithTLS(addr, auth, e.cfg.From, e.cfg.To, []byte(msg))
	} else {
		// Port 587 negotiates STARTTLS inside SendMail; other ports
		// (local testing servers) go plain.
		err = smtp.SendMail(addr, auth, e.cfg.From, e.cfg.To, []byte(msg))
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// sendWithTLS sends email over an implicit-TLS connection.
func (e *EmailSink) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: e.cfg.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return err
		}
	}

	if err = client.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	defer writer.Close()

	_, err = writer.Write(msg)
	return err
}
