package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/channel"
	"github.com/tuition-notify/internal/config"
)

// ErrNotConfigured is returned by NewMailer when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp: host not configured")

// Mailer is the fallback email transport. It keeps one SMTP session open and
// reuses it across sends; the session is dialled lazily on first use and
// re-dialled after any failure.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string

	connectTimeout time.Duration
	greetTimeout   time.Duration
	socketTimeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	client *smtp.Client
}

func NewMailer(cfg config.SMTP) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	return &Mailer{
		host:           cfg.Host,
		port:           cfg.Port,
		from:           cfg.From,
		username:       cfg.Username,
		password:       cfg.Password,
		connectTimeout: cfg.ConnectTimeout,
		greetTimeout:   cfg.GreetTimeout,
		socketTimeout:  cfg.SocketTimeout,
	}, nil
}

func (m *Mailer) Name() string { return "smtp" }

// Send delivers one message over the shared session.
func (m *Mailer) Send(ctx context.Context, to string, msg channel.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.session(ctx)
	if err != nil {
		return "", err
	}
	if err := m.deliver(ctx, c, to, msg); err != nil {
		m.reset()
		return "", err
	}
	return "", nil
}

// Close ends the shared session, if any.
func (m *Mailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Quit()
	m.client, m.conn = nil, nil
	return err
}

// session returns the open client, dialling when none exists. Caller holds mu.
func (m *Mailer) session(ctx context.Context) (*smtp.Client, error) {
	if m.client != nil {
		m.extendDeadline(ctx, m.conn)
		if err := m.client.Noop(); err == nil {
			return m.client, nil
		}
		m.reset()
	}

	dialer := net.Dialer{Timeout: m.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.host, m.port))
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	// The greeting must arrive within greetTimeout.
	if m.greetTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(m.greetTimeout))
	}
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp greeting: %w", err)
	}
	m.extendDeadline(ctx, conn)

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	m.conn, m.client = conn, c
	log.Debug().Str("host", m.host).Msg("smtp session opened")
	return c, nil
}

func (m *Mailer) deliver(ctx context.Context, c *smtp.Client, to string, msg channel.Message) error {
	m.extendDeadline(ctx, m.conn)
	if err := c.Mail(m.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		_ = c.Reset()
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.from, to, msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return nil
}

// extendDeadline applies the socket timeout, capped by the context deadline.
func (m *Mailer) extendDeadline(ctx context.Context, conn net.Conn) {
	if conn == nil {
		return
	}
	var deadline time.Time
	if m.socketTimeout > 0 {
		deadline = time.Now().Add(m.socketTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
}

func (m *Mailer) reset() {
	if m.client != nil {
		_ = m.client.Close()
	}
	m.client, m.conn = nil, nil
}

// buildMessage renders a MIME message: multipart/alternative when an HTML body exists.
func buildMessage(from, to string, msg channel.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Title))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	const boundary = "tuition-notify-alt"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, msg.Body)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
