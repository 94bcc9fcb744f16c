package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultDeviceID   = "system-main"
	DefaultTunnelMode = "full-tunnel"

	subscriberBuffer = 32
)

var ErrControllerClosed = errors.New("connection controller closed")

type ConnectionTimings struct {
	HandshakeTimeout  time.Duration
	HandshakeRetries  int
	HandshakePause    time.Duration
	SettleDelay       time.Duration
	FailedResetDelay  time.Duration
	PollInterval      time.Duration
	DisconnectTimeout time.Duration
}

func DefaultConnectionTimings() ConnectionTimings {
	return ConnectionTimings{
		HandshakeTimeout:  8 * time.Second,
		HandshakeRetries:  2,
		HandshakePause:    time.Second,
		SettleDelay:       time.Second,
		FailedResetDelay:  2 * time.Second,
		PollInterval:      2 * time.Second,
		DisconnectTimeout: 5 * time.Second,
	}
}

type ConnectionConfig struct {
	Transport ports.TunnelTransport
	Request   ports.ConnectRequest
	Timings   *ConnectionTimings
	Metrics   ports.Metrics
	Logger    *zerolog.Logger
}

// ConnectionController drives the logical tunnel state machine. All state
// lives behind mu; background work for one toggle cycle runs under a cycle
// context and is tagged with the cycle number so stale results are dropped.
type ConnectionController struct {
	app       *AppContext
	transport ports.TunnelTransport
	request   ports.ConnectRequest
	timings   ConnectionTimings
	metrics   ports.Metrics
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	state       domain.ConnectionState
	telemetry   domain.Telemetry
	token       string
	cycle       uint64
	cycleCancel context.CancelFunc
	subscribers map[int]chan domain.ConnectionTransition
	nextSub     int
}

// NewConnectionController starts Disconnected and resets itself whenever the
// session ends.
func NewConnectionController(app *AppContext, cfg ConnectionConfig) *ConnectionController {
	timings := DefaultConnectionTimings()
	if cfg.Timings != nil {
		timings = *cfg.Timings
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "connection").Logger()
	}
	request := cfg.Request
	if request.DeviceID == "" {
		request.DeviceID = DefaultDeviceID
	}
	if request.Mode == "" {
		request.Mode = DefaultTunnelMode
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &ConnectionController{
		app:         app,
		transport:   cfg.Transport,
		request:     request,
		timings:     timings,
		metrics:     metrics,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		state:       domain.ConnectionDisconnected,
		subscribers: map[int]chan domain.ConnectionTransition{},
	}
	app.OnLogout(c.Reset)

	return c
}

func (c *ConnectionController) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Telemetry returns the latest sample, or the zero value unless Connected.
func (c *ConnectionController) Telemetry() domain.Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ConnectionConnected {
		return domain.Telemetry{}
	}
	return c.telemetry
}

// Subscribe streams transitions until the returned stop func is called or the
// controller closes. Slow readers miss transitions rather than block.
func (c *ConnectionController) Subscribe() (<-chan domain.ConnectionTransition, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan domain.ConnectionTransition, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Toggle starts a handshake from Disconnected or disconnects from Connected.
// While Handshaking or Failed it does nothing.
func (c *ConnectionController) Toggle() (domain.ConnectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.state, ErrControllerClosed
	}

	switch c.state {
	case domain.ConnectionDisconnected:
		token := ""
		if session, ok := c.app.Session(); ok {
			token = session.AuthToken
		}
		c.token = token
		c.cycle++
		cycleCtx, cancel := context.WithCancel(c.ctx)
		c.cycleCancel = cancel
		c.transitionLocked(domain.ConnectionHandshaking)

		c.wg.Add(1)
		go c.run(cycleCtx, c.cycle, token)
	case domain.ConnectionConnected:
		c.disconnectLocked()
	default:
		c.logger.Debug().Str("state", string(c.state)).Msg("toggle ignored")
	}

	return c.state, nil
}

// Reset forces Disconnected, cancelling any handshake or poll in flight.
func (c *ConnectionController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.ConnectionDisconnected {
		return
	}
	c.disconnectLocked()
}

// Close resets the controller, stops every goroutine it owns and waits for
// them, including a pending disconnect notice.
func (c *ConnectionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state != domain.ConnectionDisconnected {
		c.disconnectLocked()
	}
	c.closed = true
	for id, sub := range c.subscribers {
		delete(c.subscribers, id)
		close(sub)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *ConnectionController) disconnectLocked() {
	wasConnected := c.state == domain.ConnectionConnected
	c.endCycleLocked()
	c.transitionLocked(domain.ConnectionDisconnected)

	if wasConnected {
		c.wg.Add(1)
		go c.sendDisconnect(c.token)
	}
}

func (c *ConnectionController) endCycleLocked() {
	if c.cycleCancel != nil {
		c.cycleCancel()
		c.cycleCancel = nil
	}
	c.cycle++
}

func (c *ConnectionController) transitionLocked(to domain.ConnectionState) {
	from := c.state
	if !from.CanTransition(to) {
		c.logger.Error().Str("from", string(from)).Str("to", string(to)).Msg("illegal transition refused")
		return
	}

	c.state = to
	if to != domain.ConnectionConnected {
		c.telemetry = domain.Telemetry{}
	}
	c.metrics.ObserveTransition(from, to)
	c.logger.Info().Str("from", string(from)).Str("to", string(to)).Msg("connection state changed")

	event := domain.ConnectionTransition{From: from, To: to}
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// advance moves from -> to only if cycle is still current.
func (c *ConnectionController) advance(cycle uint64, from, to domain.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycle != cycle || c.state != from {
		return false
	}
	if to == domain.ConnectionDisconnected {
		c.endCycleLocked()
	}
	c.transitionLocked(to)
	return true
}

func (c *ConnectionController) run(ctx context.Context, cycle uint64, token string) {
	defer c.wg.Done()

	if err := c.handshake(ctx, token); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Msg("handshake failed")
		if !c.advance(cycle, domain.ConnectionHandshaking, domain.ConnectionFailed) {
			return
		}
		if ports.Sleep(ctx, c.timings.FailedResetDelay) != nil {
			return
		}
		c.advance(cycle, domain.ConnectionFailed, domain.ConnectionDisconnected)
		return
	}

	if ports.Sleep(ctx, c.timings.SettleDelay) != nil {
		return
	}
	if !c.advance(cycle, domain.ConnectionHandshaking, domain.ConnectionConnected) {
		return
	}

	c.poll(ctx, cycle, token)
}

// handshake makes up to HandshakeRetries+1 connect attempts with a fixed
// pause between them.
func (c *ConnectionController) handshake(ctx context.Context, token string) error {
	attempts := c.timings.HandshakeRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := ports.Sleep(ctx, c.timings.HandshakePause); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timings.HandshakeTimeout)
		err := c.transport.Connect(attemptCtx, token, c.request)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		c.logger.Debug().Err(err).Int("attempt", attempt).Int("of", attempts).Msg("handshake attempt failed")
		if errors.Is(err, domain.ErrAuthRejected) {
			break
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrHandshakeFailed, lastErr)
}

// poll samples telemetry on a fixed interval. A sample only lands if the
// cycle is still current when it returns.
func (c *ConnectionController) poll(ctx context.Context, cycle uint64, token string) {
	for {
		if ports.Sleep(ctx, c.timings.PollInterval) != nil {
			return
		}

		telemetry, err := c.transport.Status(ctx, token)
		if ctx.Err() != nil {
			return
		}
		c.metrics.ObservePoll(err == nil)
		if err != nil {
			c.logger.Debug().Err(err).Msg("telemetry poll failed, keeping previous sample")
			continue
		}

		c.mu.Lock()
		if c.cycle == cycle && c.state == domain.ConnectionConnected {
			c.telemetry = telemetry
		}
		c.mu.Unlock()
	}
}

func (c *ConnectionController) sendDisconnect(token string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timings.DisconnectTimeout)
	defer cancel()

	if err := c.transport.Disconnect(ctx, token); err != nil {
		c.logger.Debug().Err(err).Msg("disconnect notice failed")
	}
}
