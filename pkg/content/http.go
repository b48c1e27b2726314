package content

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jingkaihe/pluginreg/pkg/logger"
)

const (
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
	defaultTimeout  = 30 * time.Second
)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// HTTPSource serves content from a marketplace published over HTTP(S).
type HTTPSource struct {
	base     *url.URL
	client   *http.Client
	token    string
	attempts uint
	delay    time.Duration
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) HTTPOption {
	return func(s *HTTPSource) {
		s.token = token
	}
}

// WithRetry sets how many attempts a transient failure gets and the
// initial delay between them.
func WithRetry(attempts uint, delay time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.attempts = attempts
		s.delay = delay
	}
}

// NewHTTPSource returns a source rooted at baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid content URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported content URL scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	s := &HTTPSource{
		base:     u,
		client:   &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.token != "" {
		base := s.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *s.client
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.token}),
			Base:   base,
		}
		s.client = &authed
	}
	return s, nil
}

// URL returns the absolute URL of name.
func (s *HTTPSource) URL(name string) string {
	return s.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(name, "/")}).String()
}

func (s *HTTPSource) Stat(ctx context.Context, name string) error {
	_, err := s.do(ctx, http.MethodHead, name)
	return err
}

func (s *HTTPSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return s.do(ctx, http.MethodGet, name)
}

func (s *HTTPSource) do(ctx context.Context, method, name string) ([]byte, error) {
	target := s.URL(name)
	attempts := s.attempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.DoWithData(
		func() ([]byte, error) {
			return s.fetch(ctx, method, target)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("url", target).
				WithField("attempt", n+1).
				Warn("retrying content request")
		}),
	)
}

func (s *HTTPSource) fetch(ctx context.Context, method, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to %s %s", method, target)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.Wrapf(fs.ErrNotExist, "%s %s", method, target)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	}

	if method == http.MethodHead {
		return nil, nil
	}
	return readLimited(resp.Body, target)
}

// isRetryable keeps retries to failures that can go away on their own.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
