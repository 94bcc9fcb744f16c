package application

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/bnema/sweetdata-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultConnectRequest = ports.ConnectRequest{DeviceID: DefaultDeviceID, Mode: DefaultTunnelMode}

func fastConnectionTimings() *ConnectionTimings {
	return &ConnectionTimings{
		HandshakeTimeout:  200 * time.Millisecond,
		HandshakeRetries:  2,
		HandshakePause:    5 * time.Millisecond,
		SettleDelay:       5 * time.Millisecond,
		FailedResetDelay:  20 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		DisconnectTimeout: 100 * time.Millisecond,
	}
}

func newTestController(t *testing.T) (*ConnectionController, *mocks.MockTunnelTransport, *AppContext) {
	t.Helper()

	app := NewAppContext(domain.DefaultAdPolicy(), nil)
	signedIn(t, app, demoSession())

	transport := mocks.NewMockTunnelTransport(t)
	c := NewConnectionController(app, ConnectionConfig{Transport: transport, Timings: fastConnectionTimings()})
	t.Cleanup(c.Close)

	return c, transport, app
}

func waitForState(t *testing.T, c *ConnectionController, want domain.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, time.Second, 2*time.Millisecond,
		"state never reached %s, last %s", want, c.State())
}

func collectTransitions(t *testing.T, ch <-chan domain.ConnectionTransition, n int) []domain.ConnectionTransition {
	t.Helper()

	var got []domain.ConnectionTransition
	timeout := time.After(time.Second)
	for len(got) < n {
		select {
		case event, ok := <-ch:
			require.True(t, ok, "subscription closed after %v", got)
			got = append(got, event)
		case <-timeout:
			require.FailNow(t, "timed out waiting for transitions", "got %v", got)
		}
	}
	return got
}

func TestConnectionHandshakeRetriesThenConnects(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	sample := domain.Telemetry{ThroughputUnitsPerSec: 12.5, PingMs: 24, TotalUsedUnits: 3}

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(errors.New("refused")).Twice()
	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(sample, nil).Maybe()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").Return(nil).Maybe()

	state, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionHandshaking, state)

	waitForState(t, c, domain.ConnectionConnected)
	require.Eventually(t, func() bool { return c.Telemetry() == sample }, time.Second, 2*time.Millisecond)
}

func TestConnectionHandshakeExhaustedFailsThenResets(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	events, stop := c.Subscribe()
	defer stop()

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(domain.ErrTransientNetwork).Times(3)

	_, err := c.Toggle()
	require.NoError(t, err)

	got := collectTransitions(t, events, 3)
	assert.Equal(t, []domain.ConnectionTransition{
		{From: domain.ConnectionDisconnected, To: domain.ConnectionHandshaking},
		{From: domain.ConnectionHandshaking, To: domain.ConnectionFailed},
		{From: domain.ConnectionFailed, To: domain.ConnectionDisconnected},
	}, got)
	assert.True(t, c.Telemetry().IsZero())
}

func TestConnectionRejectedCredentialSkipsRetries(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(domain.ErrAuthRejected).Once()

	_, err := c.Toggle()
	require.NoError(t, err)

	waitForState(t, c, domain.ConnectionFailed)
	waitForState(t, c, domain.ConnectionDisconnected)
}

func TestConnectionToggleIgnoredWhileHandshaking(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	started := make(chan struct{})
	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).RunAndReturn(func(ctx context.Context, _ string, _ ports.ConnectRequest) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}).Once()

	_, err := c.Toggle()
	require.NoError(t, err)
	<-started

	for range 3 {
		state, err := c.Toggle()
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionHandshaking, state)
	}
}

func TestConnectionToggleOffDisconnectsAndNotifies(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	notified := make(chan string, 1)
	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(domain.Telemetry{PingMs: 30}, nil).Maybe()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").RunAndReturn(func(_ context.Context, token string) error {
		notified <- token
		return errors.New("offline")
	}).Once()

	_, err := c.Toggle()
	require.NoError(t, err)
	waitForState(t, c, domain.ConnectionConnected)

	state, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionDisconnected, state)
	assert.True(t, c.Telemetry().IsZero())

	select {
	case token := <-notified:
		assert.Equal(t, "tok-1", token)
	case <-time.After(time.Second):
		t.Fatal("disconnect notice was never sent")
	}
}

func TestConnectionLatePollAnswerIsDiscarded(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	polling := make(chan struct{})
	release := make(chan struct{})

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").RunAndReturn(func(context.Context, string) (domain.Telemetry, error) {
		close(polling)
		<-release
		return domain.Telemetry{ThroughputUnitsPerSec: 99, PingMs: 1, TotalUsedUnits: 1}, nil
	}).Once()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").Return(nil).Once()

	_, err := c.Toggle()
	require.NoError(t, err)
	waitForState(t, c, domain.ConnectionConnected)
	<-polling

	_, err = c.Toggle()
	require.NoError(t, err)
	close(release)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, domain.ConnectionDisconnected, c.State())
	assert.True(t, c.Telemetry().IsZero())
}

func TestConnectionPollFailureKeepsPreviousSample(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	sample := domain.Telemetry{ThroughputUnitsPerSec: 8, PingMs: 24, TotalUsedUnits: 2.5}

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(sample, nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(domain.Telemetry{}, domain.ErrTransientNetwork).Maybe()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").Return(nil).Maybe()

	_, err := c.Toggle()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Telemetry() == sample }, time.Second, 2*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, sample, c.Telemetry())
}

func TestConnectionLogoutMidHandshakeResets(t *testing.T) {
	t.Parallel()

	c, transport, app := newTestController(t)
	events, stop := c.Subscribe()
	defer stop()

	started := make(chan struct{})
	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).RunAndReturn(func(ctx context.Context, _ string, _ ports.ConnectRequest) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}).Once()

	_, err := c.Toggle()
	require.NoError(t, err)
	<-started

	app.EndSession()

	got := collectTransitions(t, events, 2)
	assert.Equal(t, domain.ConnectionTransition{From: domain.ConnectionHandshaking, To: domain.ConnectionDisconnected}, got[1])
	assert.Equal(t, domain.ConnectionDisconnected, c.State())
}

func TestConnectionCloseStopsController(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	events, _ := c.Subscribe()

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).Return(nil).Once()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(domain.Telemetry{}, nil).Maybe()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").Return(nil).Once()

	_, err := c.Toggle()
	require.NoError(t, err)
	waitForState(t, c, domain.ConnectionConnected)

	c.Close()
	c.Close()

	assert.Equal(t, domain.ConnectionDisconnected, c.State())
	_, err = c.Toggle()
	assert.ErrorIs(t, err, ErrControllerClosed)

	for range events {
	}

	late, _ := c.Subscribe()
	_, open := <-late
	assert.False(t, open)
}

func TestConnectionRandomTogglesNeverSkipHandshake(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestController(t)
	events, stop := c.Subscribe()

	rng := rand.New(rand.NewPCG(7, 11))
	var rngMu sync.Mutex
	roll := func(n int) int {
		rngMu.Lock()
		defer rngMu.Unlock()
		return rng.IntN(n)
	}

	transport.EXPECT().Connect(mockAnyContext(), "tok-1", defaultConnectRequest).RunAndReturn(func(context.Context, string, ports.ConnectRequest) error {
		if roll(3) == 0 {
			return domain.ErrTransientNetwork
		}
		return nil
	}).Maybe()
	transport.EXPECT().Status(mockAnyContext(), "tok-1").Return(domain.Telemetry{PingMs: 5}, nil).Maybe()
	transport.EXPECT().Disconnect(mockAnyContext(), "tok-1").Return(nil).Maybe()

	var seen []domain.ConnectionTransition
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			seen = append(seen, event)
		}
	}()

	for range 200 {
		_, err := c.Toggle()
		require.NoError(t, err)
		time.Sleep(time.Duration(roll(4)) * time.Millisecond)
	}
	stop()
	<-done

	require.NotEmpty(t, seen)
	for _, event := range seen {
		assert.True(t, event.From.CanTransition(event.To), "illegal transition %s -> %s", event.From, event.To)
		assert.False(t, event.From == domain.ConnectionDisconnected && event.To == domain.ConnectionConnected)
	}
}
