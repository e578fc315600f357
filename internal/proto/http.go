package proto

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vulnverified/pry/internal/engine"
)

const httpMaxBody = 64 * 1024 // enough to spot an MFA or block page

// tlsPorts are ports probed over HTTPS instead of plain HTTP.
var tlsPorts = map[int]bool{
	443: true, 8443: true, 9443: true, 4443: true,
}

// HTTPBasic performs single-request HTTP Basic authentication attempts and
// classifies the outcome by status code, headers and body phrasing.
type HTTPBasic struct {
	client    *http.Client
	userAgent string
	path      string
}

// NewHTTPBasic returns an HTTP adapter. path is the request path to
// authenticate against ("/" when empty).
func NewHTTPBasic(d *Dialer, userAgent, path string) *HTTPBasic {
	if path == "" || !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	transport := &http.Transport{
		DialContext:     d.DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if d.HTTPProxy() != nil {
		transport.Proxy = http.ProxyURL(d.HTTPProxy())
	}
	return &HTTPBasic{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		path:      path,
	}
}

func (h *HTTPBasic) Protocol() string { return "http" }

func (h *HTTPBasic) Attempt(ctx context.Context, target engine.Target, cred engine.Candidate) engine.Verdict {
	scheme := "http"
	if tlsPorts[target.Port] {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, target.Addr(), h.path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: err.Error()}
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return connVerdict(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpMaxBody))
	return classifyHTTPResponse(resp, string(body))
}

func classifyHTTPResponse(resp *http.Response, body string) engine.Verdict {
	detail := resp.Status

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return engine.Verdict{Outcome: engine.OutcomeInvalidCredential, Detail: detail}

	case resp.StatusCode == http.StatusForbidden:
		return engine.Verdict{Outcome: engine.OutcomeBlocked, Detail: detail}

	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable:
		return engine.Verdict{Outcome: engine.OutcomeRateLimited, Detail: detail}

	case resp.Header.Get("Retry-After") != "":
		return engine.Verdict{Outcome: engine.OutcomeRateLimited,
			Detail: fmt.Sprintf("%s (Retry-After %s)", detail, resp.Header.Get("Retry-After"))}

	case resp.StatusCode == http.StatusAccepted:
		// Accepted-but-incomplete is how some portals signal a pending
		// second factor.
		return engine.Verdict{Outcome: engine.OutcomeChallengeRequired, Detail: detail}

	case resp.StatusCode < 400:
		// Authenticated, unless the page itself is a challenge or block
		// notice served with a 200.
		if outcome, ok := classifyMessage(body); ok {
			return engine.Verdict{Outcome: outcome, Detail: detail}
		}
		return engine.Verdict{Outcome: engine.OutcomeSuccess, Detail: detail}
	}

	if outcome, ok := classifyMessage(body); ok {
		return engine.Verdict{Outcome: outcome, Detail: detail}
	}
	return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: detail}
}
