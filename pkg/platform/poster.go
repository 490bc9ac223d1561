package platform

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/logger"
)

const maxErrorBody = 512

// Poster posts JSON payloads to webhook endpoints.
type Poster struct {
	client    *http.Client
	retry     errors.RetryPolicy
	logger    logger.Logger
	userAgent string
	headers   map[string]string
}

// PosterOption configures a Poster
type PosterOption func(*Poster)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) PosterOption {
	return func(p *Poster) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTimeout sets the per-request timeout on the default client
func WithTimeout(d time.Duration) PosterOption {
	return func(p *Poster) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithRetryPolicy sets the gateway-local retry policy
func WithRetryPolicy(r errors.RetryPolicy) PosterOption {
	return func(p *Poster) {
		if r != nil {
			p.retry = r
		}
	}
}

// WithPosterLogger sets the logger
func WithPosterLogger(l logger.Logger) PosterOption {
	return func(p *Poster) { p.logger = logger.OrDiscard(l) }
}

// WithHeader adds a header to every request
func WithHeader(key, value string) PosterOption {
	return func(p *Poster) { p.headers[key] = value }
}

// NewPoster creates a Poster with a 10s timeout and no retries.
func NewPoster(opts ...PosterOption) *Poster {
	p := &Poster{
		client:    &http.Client{Timeout: 10 * time.Second},
		retry:     errors.NoRetry,
		logger:    logger.Discard,
		userAgent: "errmonitor/1.0",
		headers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostJSON encodes payload and posts it to endpoint, retrying per the policy.
// It returns the last HTTP status received, or zero when no response arrived.
func (p *Poster) PostJSON(ctx context.Context, platformName, endpoint string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrMessageEncoding, "encode payload").WithPlatform(platformName)
	}

	masked := destination.MaskEndpoint(endpoint)
	var status int
	attempt := 0
	err = errors.Retry(ctx, p.retry, func(ctx context.Context) error {
		attempt++
		var postErr error
		status, postErr = p.post(ctx, platformName, endpoint, body)
		if postErr != nil && attempt < p.retry.MaxAttempts() {
			p.logger.Warn("Webhook delivery attempt failed", "platform", platformName, "endpoint", masked,
				"attempt", attempt, "error", postErr)
		}
		return postErr
	})
	if err != nil {
		p.logger.Error("Webhook delivery failed", "platform", platformName, "endpoint", masked, "status", status, "error", err)
		return status, err
	}
	p.logger.Debug("Webhook delivered", "platform", platformName, "endpoint", masked, "status", status)
	return status, nil
}

func (p *Poster) post(ctx context.Context, platformName, endpoint string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(stripURL(err), errors.ErrInvalidMessage, "build request").WithPlatform(platformName)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, transportError(err, platformName)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, errors.Newf(errors.HTTPStatusCode(resp.StatusCode), "HTTP %d: %s",
		resp.StatusCode, strings.TrimSpace(string(excerpt))).
		WithPlatform(platformName).
		WithStatusCode(resp.StatusCode)
}

// stripURL drops the request URL from err so the endpoint never leaks into logs.
func stripURL(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// transportError classifies failures that never produced a response.
func transportError(err error, platformName string) error {
	cause := stripURL(err)
	code := errors.ErrNetworkConnection
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		code = errors.ErrNetworkTimeout
	}
	return errors.Wrap(cause, code, "webhook request failed").WithPlatform(platformName)
}

// CloseIdleConnections releases pooled connections
func (p *Poster) CloseIdleConnections() {
	p.client.CloseIdleConnections()
}
