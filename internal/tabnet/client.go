package tabnet

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	harvesterr "tabnet-harvester/internal/errors"
)

// Transport performs the remote calls for the harvester.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Warmup establishes the session cookie before any job runs.
	Warmup(ctx context.Context) error

	// Post sends one encoded payload and returns the decoded response body.
	// The context carries the per-attempt deadline.
	Post(ctx context.Context, payload string) (string, error)
}

// ClientConfig configures the HTTP transport.
type ClientConfig struct {
	// PostURL receives the query payloads (default PostURL)
	PostURL string

	// SessionURL is fetched once to obtain the session cookie (default SessionURL)
	SessionURL string

	// MaxConns bounds pooled connections to the service; at least the concurrency limit
	MaxConns int

	// UserAgent sent with every request
	UserAgent string
}

// HTTPTransport is the Transport backed by a shared, pooled http.Client.
type HTTPTransport struct {
	client *http.Client
	cfg    ClientConfig
}

// NewHTTPTransport creates a transport whose pool is sized to cfg.MaxConns.
func NewHTTPTransport(cfg ClientConfig) (*HTTPTransport, error) {
	if cfg.PostURL == "" {
		cfg.PostURL = PostURL
	}
	if cfg.SessionURL == "" {
		cfg.SessionURL = SessionURL
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 24
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     5 * time.Minute,
	}

	return &HTTPTransport{
		// No client-level timeout: every attempt carries its own deadline.
		client: &http.Client{Transport: transport, Jar: jar},
		cfg:    cfg,
	}, nil
}

// Warmup implements Transport.
func (t *HTTPTransport) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.SessionURL+"?PAINEL_ONCO/PAINEL_ONCOLOGIABR.def=", nil)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeRequestFailed, "build warm-up request", err)
	}
	t.decorate(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeRequestFailed, "warm-up request", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	zap.L().Debug("tabnet: session established",
		zap.Int("status", resp.StatusCode),
		zap.Int("cookies", len(t.client.Jar.Cookies(req.URL))))
	return nil
}

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, payload string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.PostURL, strings.NewReader(payload))
	if err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeRequestFailed, "build request", err)
	}
	t.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeTimeout, "request timed out", err)
		}
		return "", harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeRequestFailed, "post failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", harvesterr.Newf(harvesterr.ErrCategoryTransport, harvesterr.CodeBadStatus,
			"response status code does not indicate success: %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeTimeout, "reading body timed out", err)
		}
		return "", harvesterr.Wrap(harvesterr.ErrCategoryTransport, harvesterr.CodeRequestFailed, "read body", err)
	}
	return decodeBody(raw, resp.Header.Get("Content-Type")), nil
}

func (t *HTTPTransport) decorate(req *http.Request) {
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	req.Header.Set("Origin", Origin)
	req.Header.Set("Referer", t.cfg.SessionURL)
}

// decodeBody converts latin-1 responses to UTF-8; anything else is passed through.
func decodeBody(raw []byte, contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(raw)
	}
	switch strings.ToLower(params["charset"]) {
	case "iso-8859-1", "latin1", "latin-1":
		if out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	case "windows-1252", "cp1252":
		if out, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	return string(raw)
}
