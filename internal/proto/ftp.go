package proto

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/jlaffaye/ftp"

	"github.com/vulnverified/pry/internal/engine"
)

// FTP performs USER/PASS authentication attempts against FTP services.
type FTP struct {
	dialer *Dialer
}

// NewFTP returns an FTP adapter using the given dialer.
func NewFTP(d *Dialer) *FTP {
	return &FTP{dialer: d}
}

func (f *FTP) Protocol() string { return "ftp" }

func (f *FTP) Attempt(ctx context.Context, target engine.Target, cred engine.Candidate) engine.Verdict {
	conn, err := ftp.Dial(target.Addr(),
		ftp.DialWithContext(ctx),
		ftp.DialWithDialFunc(func(network, addr string) (net.Conn, error) {
			return f.dialer.DialContext(ctx, network, addr)
		}),
	)
	if err != nil {
		return classifyFTPError(err)
	}
	defer conn.Quit()

	if err := conn.Login(cred.Username, cred.Password); err != nil {
		return classifyFTPError(err)
	}
	conn.Logout()
	return engine.Verdict{Outcome: engine.OutcomeSuccess}
}

// classifyFTPError maps FTP reply codes onto the outcome taxonomy. 530 is
// the normal rejection; 421 is the server shedding load or capping
// connections per source.
func classifyFTPError(err error) engine.Verdict {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if outcome, ok := classifyMessage(protoErr.Msg); ok {
			return engine.Verdict{Outcome: outcome, Detail: protoErr.Error()}
		}
		switch protoErr.Code {
		case ftp.StatusNotLoggedIn: // 530
			return engine.Verdict{Outcome: engine.OutcomeInvalidCredential, Detail: protoErr.Error()}
		case ftp.StatusNotAvailable: // 421
			return engine.Verdict{Outcome: engine.OutcomeRateLimited, Detail: protoErr.Error()}
		}
		return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: protoErr.Error()}
	}
	return connVerdict(err)
}
