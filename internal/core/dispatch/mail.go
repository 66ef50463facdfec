package dispatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core"
)

const mailDispatcherName = "mail"

// Test message content used by the send-test command.
const (
	TestSubject  = "Test: Contact Form Configuration"
	testName     = "Test User"
	testEmail    = "test@example.com"
	testClientID = "127.0.0.1 (Test)"
	testMessage  = "This is a test message from the contact form system. If you're seeing this, the email configuration is working correctly!"
	testText     = "This is a test message to verify email configuration is working correctly."
)

// SendFunc delivers a composed message and must return once ctx is done.
// Tests replace it.
type SendFunc func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error

// MailDispatcher relays submissions to a fixed inbox over SMTP.
type MailDispatcher struct {
	Host     string
	Port     int
	User     string
	Password string
	FromName string
	To       string
	SSL      bool
	SiteName string

	Send  SendFunc
	Clock func() time.Time
}

// NewMailDispatcher builds a MailDispatcher from configuration.
func NewMailDispatcher(cfg config.MailConfig) *MailDispatcher {
	return &MailDispatcher{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		FromName: cfg.FromName,
		To:       cfg.To,
		SSL:      cfg.SSL,
		SiteName: cfg.SiteName,
	}
}

// Name identifies the dispatcher in logs and metrics.
func (m *MailDispatcher) Name() string { return mailDispatcherName }

// Dispatch composes and sends the notification for sub.
func (m *MailDispatcher) Dispatch(ctx context.Context, sub core.Submission) core.DispatchResult {
	e, err := m.Compose(sub)
	if err != nil {
		return core.Failed("compose", err)
	}
	return m.deliver(ctx, e)
}

// Compose builds the notification message without sending it.
func (m *MailDispatcher) Compose(sub core.Submission) (*email.Email, error) {
	submitted := sub.SubmittedAt
	if submitted.IsZero() {
		submitted = m.now()
	}

	view := messageView{
		Title:     "New Contact Form Submission",
		Name:      sub.Name,
		Email:     sub.Email,
		Message:   sub.Message,
		Submitted: formatTimestamp(submitted),
		ClientID:  sub.ClientID,
		Footer:    footerFor(m.SiteName, false),
	}

	e, err := m.newEmail(view)
	if err != nil {
		return nil, err
	}
	e.Subject = "Contact Form: Message from " + headerSafe(sub.Name)
	e.ReplyTo = []string{headerSafe(sub.Email)}
	e.Text = renderText(view)
	return e, nil
}

// ComposeTest builds the fixed configuration test message.
func (m *MailDispatcher) ComposeTest() (*email.Email, error) {
	view := messageView{
		Title:     "Test Email - Contact Form",
		Name:      testName,
		Email:     testEmail,
		Message:   testMessage,
		Submitted: formatTimestamp(m.now()),
		ClientID:  testClientID,
		Footer:    footerFor(m.SiteName, true),
	}

	e, err := m.newEmail(view)
	if err != nil {
		return nil, err
	}
	e.Subject = TestSubject
	e.ReplyTo = []string{testEmail}
	e.Text = []byte(testText)
	return e, nil
}

// SendTest sends the configuration test message and returns its Message-Id.
func (m *MailDispatcher) SendTest(ctx context.Context) (string, error) {
	e, err := m.ComposeTest()
	if err != nil {
		return "", err
	}
	result := m.deliver(ctx, e)
	if !result.OK() {
		if result.Err != nil {
			return "", fmt.Errorf("%s: %w", result.Reason, result.Err)
		}
		return "", fmt.Errorf("%s", result.Reason)
	}
	return result.Ack, nil
}

func (m *MailDispatcher) newEmail(view messageView) (*email.Email, error) {
	html, err := renderHTML(view)
	if err != nil {
		return nil, err
	}

	from := (&mail.Address{Name: m.FromName, Address: m.User}).String()
	if m.FromName == "" {
		from = m.User
	}

	e := email.NewEmail()
	e.From = from
	e.To = []string{m.To}
	e.HTML = html
	e.Headers.Set("Message-Id", m.messageID())
	return e, nil
}

// deliver runs the SMTP exchange on the caller's goroutine, bounded by ctx.
func (m *MailDispatcher) deliver(ctx context.Context, e *email.Email) core.DispatchResult {
	if m.Host == "" || m.User == "" || m.To == "" {
		return core.Failed("mail dispatcher is not configured", nil)
	}

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	auth := smtp.PlainAuth("", m.User, m.Password, m.Host)
	tlsConfig := &tls.Config{ServerName: m.Host, MinVersion: tls.VersionTLS12}
	send := m.Send
	if send == nil {
		send = defaultSend(m.SSL)
	}

	if err := send(ctx, e, addr, auth, tlsConfig); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Failed("smtp send timed out", fmt.Errorf("%w: %v", ctxErr, err))
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return core.Failed("smtp send timed out", fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
		}
		return core.Failed("smtp send", err)
	}
	return core.Delivered(e.Headers.Get("Message-Id"))
}

func defaultSend(ssl bool) SendFunc {
	return func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
		return sendSMTP(ctx, e, addr, auth, tlsConfig, ssl)
	}
}

func (m *MailDispatcher) messageID() string {
	domain := "localhost"
	if _, host, ok := strings.Cut(m.User, "@"); ok && host != "" {
		domain = host
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

func (m *MailDispatcher) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}

// headerSafe drops line breaks so user input cannot inject headers.
func headerSafe(value string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(value)), " ")
}
