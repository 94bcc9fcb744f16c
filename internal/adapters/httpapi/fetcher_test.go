package httpapi

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherReturnsBodyOnFirstSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	resp, err := fetcher.Request(context.Background(), Target{
		Endpoint: "probe",
		URL:      server.URL,
		Header:   http.Header{"Authorization": []string{"Bearer tok"}},
	}, RequestOptions{}, 3, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, 1, resp.Attempts)
}

func TestFetcherRetriesServerErrorsWithBackoff(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	var mu sync.Mutex
	var stamps [3]time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		mu.Lock()
		stamps[count-1] = time.Now()
		mu.Unlock()
		if count < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	resp, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{}, 4, 20*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), attempts.Load())

	mu.Lock()
	defer mu.Unlock()
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
}

func TestFetcherExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	_, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{}, 4, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, int32(5), attempts.Load())
	assert.True(t, errors.Is(err, domain.ErrTerminalSyncFailure))
	assert.True(t, errors.Is(err, domain.ErrTransientNetwork))

	netErr, ok := AsNetworkError(err)
	require.True(t, ok)
	assert.Equal(t, KindStatus, netErr.Kind)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
	assert.Equal(t, 5, netErr.Attempts)
}

func TestFetcherDoesNotRetryUnauthorized(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	_, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{}, 4, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.True(t, errors.Is(err, domain.ErrAuthRejected))
	assert.False(t, errors.Is(err, domain.ErrTerminalSyncFailure))
}

func TestFetcherDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	_, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{}, 4, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.False(t, errors.Is(err, domain.ErrTransientNetwork))
}

func TestFetcherAppliesPerAttemptTimeout(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
		}
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client()}
	started := time.Now()
	_, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{Timeout: 20 * time.Millisecond}, 1, time.Millisecond)

	require.Error(t, err)
	netErr, ok := AsNetworkError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, netErr.Kind)
	assert.True(t, netErr.Exhausted)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Less(t, time.Since(started), 200*time.Millisecond)
}

func TestFetcherStopsWhenCallerCancelsDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	fetcher := &Fetcher{HTTPClient: server.Client()}
	_, err := fetcher.Request(ctx, Target{Endpoint: "probe", URL: server.URL}, RequestOptions{}, 5, time.Second)

	require.Error(t, err)
	netErr, ok := AsNetworkError(err)
	require.True(t, ok)
	assert.Equal(t, KindCanceled, netErr.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetcherFallsBackWhenSecureUpgradeFails(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`plain`))
	}))
	t.Cleanup(server.Close)

	fetcher := &Fetcher{HTTPClient: server.Client(), ClientOrigin: "https://app.sweetdata.test"}

	resp, err := fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{Timeout: time.Second}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, server.URL, resp.URL)
	assert.Equal(t, 1, resp.Attempts)

	_, ok := fetcher.upgradeTarget(server.URL)
	assert.False(t, ok, "failed upgrade is remembered per host")

	_, err = fetcher.Request(context.Background(), Target{Endpoint: "probe", URL: server.URL}, RequestOptions{Timeout: time.Second}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherUpgradeOnlyForSecureOriginAndPlainTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		origin string
		target string
		want   string
		ok     bool
	}{
		{name: "secure origin plain target", origin: "https://app", target: "http://api:8080/x", want: "https://api:8080/x", ok: true},
		{name: "plain origin", origin: "http://app", target: "http://api/x"},
		{name: "no origin", target: "http://api/x"},
		{name: "already secure", origin: "https://app", target: "https://api/x"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &Fetcher{ClientOrigin: tc.origin}
			got, ok := fetcher.upgradeTarget(tc.target)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

const tlsHandshakeRecord = 0x16

// newStallingTLSServer answers plain HTTP requests with "plain" and holds TLS
// handshakes open without replying. With stallAll every connection stalls.
func newStallingTLSServer(t *testing.T, stallAll bool) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	t.Cleanup(func() {
		close(done)
		_ = listener.Close()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { _ = conn.Close() }()

				reader := bufio.NewReader(conn)
				first, err := reader.Peek(1)
				if err != nil {
					return
				}
				if stallAll || first[0] == tlsHandshakeRecord {
					<-done
					return
				}
				if _, err := http.ReadRequest(reader); err != nil {
					return
				}
				_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nplain")
			}()
		}
	}()

	return "http://" + listener.Addr().String()
}

func newIsolatedClient(t *testing.T) *http.Client {
	t.Helper()

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	return &http.Client{Transport: transport}
}

func TestFetcherStalledUpgradeFallsBackWithinCallerDeadline(t *testing.T) {
	t.Parallel()

	target := newStallingTLSServer(t, false)
	fetcher := &Fetcher{HTTPClient: newIsolatedClient(t), ClientOrigin: "https://app.sweetdata.test"}

	const timeout = 300 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	resp, err := fetcher.Request(ctx, Target{Endpoint: "tunnel_connect", URL: target}, RequestOptions{Timeout: timeout}, 0, 0)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, "plain", string(resp.Body))
	assert.Equal(t, target, resp.URL)
	assert.Less(t, elapsed, timeout)

	_, ok := fetcher.upgradeTarget(target)
	assert.False(t, ok, "stalled upgrade is remembered per host")
}

func TestFetcherStalledUpgradeStaysWithinAttemptTimeout(t *testing.T) {
	t.Parallel()

	target := newStallingTLSServer(t, true)
	fetcher := &Fetcher{HTTPClient: newIsolatedClient(t), ClientOrigin: "https://app.sweetdata.test"}

	const timeout = 200 * time.Millisecond
	started := time.Now()
	_, err := fetcher.Request(context.Background(), Target{Endpoint: "tunnel_connect", URL: target}, RequestOptions{Timeout: timeout}, 0, 0)
	elapsed := time.Since(started)

	require.Error(t, err)
	netErr, ok := AsNetworkError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, netErr.Kind)
	assert.Less(t, elapsed, timeout+100*time.Millisecond)

	_, upgradable := fetcher.upgradeTarget(target)
	assert.False(t, upgradable)
}

func TestClassifyTreatsDeadlinesAsTimeouts(t *testing.T) {
	t.Parallel()

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	attemptExpired, cancelAttempt := context.WithTimeout(context.Background(), -time.Second)
	defer cancelAttempt()

	tests := []struct {
		name    string
		parent  context.Context
		attempt context.Context
		want    ErrorKind
	}{
		{name: "attempt deadline", parent: context.Background(), attempt: attemptExpired, want: KindTimeout},
		{name: "caller deadline", parent: expired, attempt: expired, want: KindTimeout},
		{name: "caller canceled", parent: canceled, attempt: canceled, want: KindCanceled},
		{name: "live contexts", parent: context.Background(), attempt: context.Background(), want: KindTransport},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, classify(tc.parent, tc.attempt))
		})
	}
}
