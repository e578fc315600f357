package proto

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/vulnverified/pry/internal/engine"
)

// SMTP performs AUTH PLAIN/LOGIN attempts against SMTP services, upgrading
// to STARTTLS when the server offers it.
type SMTP struct {
	dialer *Dialer
	helo   string
}

// NewSMTP returns an SMTP adapter using the given dialer.
func NewSMTP(d *Dialer) *SMTP {
	return &SMTP{dialer: d, helo: "mail.local"}
}

func (s *SMTP) Protocol() string { return "smtp" }

func (s *SMTP) Attempt(ctx context.Context, target engine.Target, cred engine.Candidate) engine.Verdict {
	conn, err := s.dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return connVerdict(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, target.Host)
	if err != nil {
		conn.Close()
		return classifySMTPError(err)
	}
	defer client.Close()

	if err := client.Hello(s.helo); err != nil {
		return classifySMTPError(err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName:         target.Host,
			InsecureSkipVerify: true,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return classifySMTPError(err)
		}
	}

	auth := s.pickAuth(client, cred)
	if err := client.Auth(auth); err != nil {
		return classifySMTPError(err)
	}
	client.Quit()
	return engine.Verdict{Outcome: engine.OutcomeSuccess}
}

// pickAuth chooses AUTH LOGIN when the server does not advertise PLAIN.
// Both are implemented locally: the stdlib PLAIN mechanism refuses
// unencrypted connections, which a tester hitting plaintext port 25 cannot
// afford.
func (s *SMTP) pickAuth(client *smtp.Client, cred engine.Candidate) smtp.Auth {
	if ok, mechs := client.Extension("AUTH"); ok && !strings.Contains(mechs, "PLAIN") &&
		strings.Contains(mechs, "LOGIN") {
		return &loginAuth{username: cred.Username, password: cred.Password}
	}
	return &plainAuth{username: cred.Username, password: cred.Password}
}

// plainAuth implements AUTH PLAIN without the stdlib's TLS requirement.
type plainAuth struct {
	username, password string
}

func (a *plainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	resp := []byte("\x00" + a.username + "\x00" + a.password)
	return "PLAIN", resp, nil
}

func (a *plainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge for PLAIN")
	}
	return nil, nil
}

// loginAuth implements the legacy AUTH LOGIN username/password dialogue.
type loginAuth struct {
	username, password string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
	case "username:":
		return []byte(a.username), nil
	case "password:":
		return []byte(a.password), nil
	}
	return nil, fmt.Errorf("unexpected LOGIN challenge %q", fromServer)
}

// classifySMTPError maps SMTP reply codes onto the outcome taxonomy.
// 535 is the normal rejection; 421/450/451/454 are the server shedding
// load or deferring the client.
func classifySMTPError(err error) engine.Verdict {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if outcome, ok := classifyMessage(protoErr.Msg); ok {
			return engine.Verdict{Outcome: outcome, Detail: protoErr.Error()}
		}
		switch protoErr.Code {
		case 535:
			return engine.Verdict{Outcome: engine.OutcomeInvalidCredential, Detail: protoErr.Error()}
		case 421, 450, 451, 454:
			return engine.Verdict{Outcome: engine.OutcomeRateLimited, Detail: protoErr.Error()}
		case 530, 538:
			// Auth required differently than offered (e.g. TLS first).
			return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: protoErr.Error()}
		}
		return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: protoErr.Error()}
	}
	return connVerdict(err)
}
