package proto

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vulnverified/pry/internal/engine"
)

// SSH performs password authentication attempts over SSH.
type SSH struct {
	dialer *Dialer
}

// NewSSH returns an SSH adapter using the given dialer.
func NewSSH(d *Dialer) *SSH {
	return &SSH{dialer: d}
}

func (s *SSH) Protocol() string { return "ssh" }

// Attempt dials the target and runs one password auth exchange. The
// connection read/write deadline is pinned to the context deadline so a
// stalled handshake cannot outlive the attempt budget.
func (s *SSH) Attempt(ctx context.Context, target engine.Target, cred engine.Candidate) engine.Verdict {
	conn, err := s.dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return connVerdict(err)
	}
	defer conn.Close()

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		timeout = time.Until(deadline)
	}

	config := &ssh.ClientConfig{
		User: cred.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cred.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), config)
	if err != nil {
		return classifySSHError(err)
	}

	client := ssh.NewClient(clientConn, chans, reqs)
	client.Close()
	return engine.Verdict{Outcome: engine.OutcomeSuccess}
}

// classifySSHError separates a clean auth rejection from disconnects,
// banners and transport failures.
func classifySSHError(err error) engine.Verdict {
	msg := err.Error()

	// Ban notices arrive as banners or disconnect messages; check those
	// before the generic auth-failure match.
	if outcome, ok := classifyMessage(msg); ok {
		return engine.Verdict{Outcome: outcome, Detail: msg}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unable to authenticate"):
		return engine.Verdict{Outcome: engine.OutcomeInvalidCredential, Detail: msg}
	case strings.Contains(lower, "keyboard-interactive"),
		strings.Contains(lower, "verification code"):
		return engine.Verdict{Outcome: engine.OutcomeChallengeRequired, Detail: msg}
	case isConnError(err):
		return engine.Verdict{Outcome: engine.OutcomeConnectionError, Detail: msg}
	}
	return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: msg}
}
