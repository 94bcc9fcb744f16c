package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	maxResponseBytes      = 1 << 20
	defaultAttemptTimeout = 8 * time.Second
)

type Target struct {
	// Endpoint names the call in logs and metrics, e.g. "ads_config".
	Endpoint string
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
}

type RequestOptions struct {
	// Timeout bounds a single attempt, not the whole retry budget.
	Timeout time.Duration
	// Linear keeps the backoff delay fixed between attempts.
	Linear bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	URL        string
}

// Fetcher wraps one logical request with a per-attempt timeout and exponential
// backoff. It never panics on network conditions; every outcome is a Response
// or a *NetworkError.
type Fetcher struct {
	HTTPClient *http.Client
	// ClientOrigin is the origin the client runs under. When it is https and a
	// target is plain http, the https upgrade of the target is tried first.
	ClientOrigin string
	Metrics      ports.Metrics
	Logger       *zerolog.Logger

	mu            sync.Mutex
	upgradeFailed map[string]bool
}

func (f *Fetcher) Request(ctx context.Context, target Target, opts RequestOptions, maxRetries int, initialDelay time.Duration) (Response, error) {
	started := time.Now()
	delay := initialDelay
	attempts := 0

	for {
		attempts++
		resp, netErr := f.attempt(ctx, target, opts)
		if netErr == nil {
			resp.Attempts = attempts
			f.metrics().ObserveFetch(target.Endpoint, ports.FetchOutcomeSuccess, attempts, time.Since(started))
			return resp, nil
		}
		netErr.Attempts = attempts

		if !netErr.Retryable() {
			f.metrics().ObserveFetch(target.Endpoint, outcomeFor(netErr), attempts, time.Since(started))
			return Response{}, netErr
		}
		if maxRetries <= 0 {
			netErr.Exhausted = true
			f.metrics().ObserveFetch(target.Endpoint, ports.FetchOutcomeExhausted, attempts, time.Since(started))
			return Response{}, netErr
		}

		f.log().Debug().
			Str("endpoint", target.Endpoint).
			Int("attempt", attempts).
			Dur("backoff", delay).
			Err(netErr).
			Msg("request failed, retrying")

		if err := ports.Sleep(ctx, delay); err != nil {
			canceled := &NetworkError{Kind: KindCanceled, Endpoint: target.Endpoint, URL: target.URL, Attempts: attempts, Err: err}
			f.metrics().ObserveFetch(target.Endpoint, ports.FetchOutcomeCanceled, attempts, time.Since(started))
			return Response{}, canceled
		}
		maxRetries--
		if !opts.Linear {
			delay *= 2
		}
	}
}

// attempt makes one bounded try. A secure upgrade may use at most half of the
// attempt budget; the plain target gets whatever remains.
func (f *Fetcher) attempt(ctx context.Context, target Target, opts RequestOptions) (Response, *NetworkError) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	upgraded, ok := f.upgradeTarget(target.URL)
	if ok {
		upgradeCtx, cancelUpgrade := context.WithTimeout(attemptCtx, timeout/2)
		resp, netErr := f.do(ctx, upgradeCtx, target, upgraded)
		cancelUpgrade()
		if netErr == nil || (netErr.Kind != KindTransport && netErr.Kind != KindTimeout) {
			return resp, netErr
		}
		f.markUpgradeFailed(upgraded)
		f.log().Debug().Str("endpoint", target.Endpoint).Str("url", upgraded).Err(netErr).Msg("secure upgrade failed, falling back")
	}

	return f.do(ctx, attemptCtx, target, target.URL)
}

// do sends one request bound to attemptCtx, which must derive from parent.
func (f *Fetcher) do(parent context.Context, attemptCtx context.Context, target Target, rawURL string) (Response, *NetworkError) {
	fail := func(kind ErrorKind, status int, err error) *NetworkError {
		return &NetworkError{Kind: kind, Endpoint: target.Endpoint, URL: rawURL, StatusCode: status, Err: err}
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if target.Body != nil {
		body = bytes.NewReader(target.Body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, body)
	if err != nil {
		return Response{}, fail(KindInvalidRequest, 0, err)
	}
	for key, values := range target.Header {
		req.Header[key] = append([]string(nil), values...)
	}

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return Response{}, fail(classify(parent, attemptCtx), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fail(classify(parent, attemptCtx), resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return Response{}, fail(KindAuthRejected, resp.StatusCode, nil)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, fail(KindStatus, resp.StatusCode, nil)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        rawURL,
	}, nil
}

// classify reports an expired deadline as a timeout, including the caller's
// own deadline. Only an explicit cancellation is KindCanceled.
func classify(parent context.Context, attemptCtx context.Context) ErrorKind {
	if errors.Is(parent.Err(), context.Canceled) {
		return KindCanceled
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

func (f *Fetcher) upgradeTarget(rawURL string) (string, bool) {
	origin, err := url.Parse(f.ClientOrigin)
	if err != nil || origin.Scheme != "https" {
		return "", false
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme != "http" {
		return "", false
	}

	f.mu.Lock()
	failed := f.upgradeFailed[target.Host]
	f.mu.Unlock()
	if failed {
		return "", false
	}

	target.Scheme = "https"
	return target.String(), true
}

func (f *Fetcher) markUpgradeFailed(rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upgradeFailed == nil {
		f.upgradeFailed = map[string]bool{}
	}
	f.upgradeFailed[parsed.Host] = true
}

func (f *Fetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Fetcher) metrics() ports.Metrics {
	if f.Metrics != nil {
		return f.Metrics
	}
	return ports.NopMetrics{}
}

func (f *Fetcher) log() *zerolog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func outcomeFor(err *NetworkError) ports.FetchOutcome {
	switch err.Kind {
	case KindAuthRejected:
		return ports.FetchOutcomeAuthRejected
	case KindCanceled:
		return ports.FetchOutcomeCanceled
	default:
		return ports.FetchOutcomeRejected
	}
}
