// Package mailer delivers the password-reset email over SMTP. Rendering and
// configuration checks happen synchronously so the caller can report a 400;
// the network send runs on its own goroutine and never blocks or fails the
// request that triggered it.
package mailer

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

type Config struct {
	Server   string
	Port     int
	UseTLS   bool
	Username string
	Password string
}

type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

const resetTemplate = `<html>
<body>
<p>Hello {1},</p>
<p>You requested a password reset for your Famiglia-Recipes account.
To choose a new password, {2}. The link expires shortly.</p>
<p>If you did not request this, you can ignore this email.</p>
</body>
</html>`

// SendPasswordReset renders and dispatches the reset email carrying the
// signed token. The returned error only covers preparation; transport
// failures are logged from the sending goroutine.
func (m *Mailer) SendPasswordReset(to, username, callback, token string) error {
	if m.cfg.Server == "" {
		return fmt.Errorf("mail server not configured")
	}
	if to == "" || callback == "" {
		return fmt.Errorf("recipient and callback are required")
	}

	link := fmt.Sprintf("%s/?token=%s", strings.TrimRight(callback, "/"), token)
	body := strings.ReplaceAll(resetTemplate, "{1}", username)
	body = strings.ReplaceAll(body, "{2}", fmt.Sprintf("<a href=%q>click here</a>", link))
	msg := m.buildMessage(to, "Famiglia-Recipes - Password Reset Request", body)

	go func() {
		if err := m.send(to, msg); err != nil {
			log.Printf("mailer: sending reset email to %s failed: %v", to, err)
		}
	}()
	return nil
}

func (m *Mailer) buildMessage(to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.Username)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

func (m *Mailer) send(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.cfg.UseTLS {
		tlsConfig := &tls.Config{ServerName: m.cfg.Server}
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(m.cfg.Username); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
