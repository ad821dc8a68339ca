package notifications

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"scribe/internal/config"
)

// NoteLink is a published note listed in the run report.
type NoteLink struct {
	Title string
	URL   string
}

// Report summarizes one pipeline run for email delivery.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Items     int
	Processed int
	Skipped   int
	Failed    int
	Errors    []string
	Notes     []NoteLink
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends run reports over SMTP. Port 465 uses implicit TLS; other ports
// go through smtp.SendMail, which upgrades with STARTTLS when offered.
type Mailer struct {
	cfg  config.Email
	send SendFunc
	now  func() time.Time
}

// NewMailer returns nil when email reports are disabled.
func NewMailer(cfg config.Email) *Mailer {
	if !cfg.Enabled || strings.TrimSpace(cfg.SMTPHost) == "" || len(cfg.To) == 0 {
		return nil
	}
	m := &Mailer{cfg: cfg, now: time.Now}
	if cfg.SMTPPort == 465 {
		m.send = m.sendImplicitTLS
	} else {
		m.send = smtp.SendMail
	}
	return m
}

// WithSender replaces the SMTP transport (for testing).
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	if m != nil && send != nil {
		m.send = send
	}
	return m
}

// SendRunReport emails the report. A nil Mailer is a no-op.
func (m *Mailer) SendRunReport(report Report) error {
	if m == nil {
		return nil
	}
	from := strings.TrimSpace(m.cfg.From)
	if from == "" {
		from = m.cfg.Username
	}
	msg := m.compose(from, report)
	addr := net.JoinHostPort(m.cfg.SMTPHost, strconv.Itoa(m.cfg.SMTPPort))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}
	if err := m.send(addr, auth, from, m.cfg.To, msg); err != nil {
		return fmt.Errorf("send run report: %w", err)
	}
	return nil
}

// Subject returns the report subject line.
func (r Report) Subject() string {
	switch {
	case r.DryRun:
		return fmt.Sprintf("scribe dry run: %d items planned", r.Items)
	case r.Failed > 0:
		return fmt.Sprintf("scribe run: %d processed, %d failed", r.Processed, r.Failed)
	default:
		return fmt.Sprintf("scribe run: %d processed", r.Processed)
	}
}

// Body renders the plain-text report.
func (r Report) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", r.StartedAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "Duration: %s\n\n", r.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Items: %d\nStages processed: %d\nStages skipped: %d\nFailed: %d\n", r.Items, r.Processed, r.Skipped, r.Failed)
	if len(r.Notes) > 0 {
		b.WriteString("\nPublished notes:\n")
		for _, note := range r.Notes {
			fmt.Fprintf(&b, "- %s: %s\n", note.Title, note.URL)
		}
	}
	if len(r.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, msg := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}
	return b.String()
}

func (m *Mailer) compose(from string, report Report) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", report.Subject())
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(report.Body(), "\n", "\r\n"))
	return []byte(b.String())
}

func (m *Mailer) sendImplicitTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.SMTPHost, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
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
	if err := client.Quit(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
