package dispatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
)

// smtpExchangeTimeout bounds a send when the caller's context has no deadline.
const smtpExchangeTimeout = 30 * time.Second

// sendSMTP delivers e over one connection whose lifetime is tied to ctx: the
// socket carries ctx's deadline and is closed when ctx is cancelled, so a
// relay that stops answering cannot hold the caller.
func sendSMTP(ctx context.Context, e *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config, implicitTLS bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, smtpExchangeTimeout)
		defer cancel()
	}

	from, recipients, err := envelope(e)
	if err != nil {
		return err
	}
	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("render message: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if implicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if !implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// envelope extracts the bare SMTP sender and recipient addresses.
func envelope(e *email.Email) (string, []string, error) {
	sender := e.Sender
	if sender == "" {
		sender = e.From
	}
	from, err := mail.ParseAddress(sender)
	if err != nil {
		return "", nil, fmt.Errorf("parse sender: %w", err)
	}

	var recipients []string
	for _, list := range [][]string{e.To, e.Cc, e.Bcc} {
		for _, raw := range list {
			addr, err := mail.ParseAddress(raw)
			if err != nil {
				return "", nil, fmt.Errorf("parse recipient %q: %w", raw, err)
			}
			recipients = append(recipients, addr.Address)
		}
	}
	if len(recipients) == 0 {
		return "", nil, errors.New("no recipients")
	}
	return from.Address, recipients, nil
}
