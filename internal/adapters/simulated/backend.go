// Package simulated is an in-process stand-in for the remote endpoint. It lets
// the client run end to end without network access.
package simulated

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
)

const (
	DefaultConnectLatency = 1500 * time.Millisecond

	demoUserID   = "demo-user"
	demoUsername = "sweetdata"
	demoEmail    = "demo@sweetdata.app"
	demoBalance  = 500
	demoPlan     = "Silver Tier"
	demoExpiry   = "2025-10-15"
)

type Options struct {
	ConnectLatency time.Duration
	// Policy replaces the default ad policy.
	Policy *domain.AdPolicy
	// Profile seeds the demo profile, typically from the state cache.
	Profile *domain.Session
	Rand    *rand.Rand
}

type Backend struct {
	latency time.Duration
	policy  domain.AdPolicy

	mu        sync.Mutex
	rng       *rand.Rand
	profile   domain.Session
	connected map[string]bool
	used      map[string]float64
}

var _ ports.Backend = (*Backend)(nil)

func New(opts Options) *Backend {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5d))
	}

	latency := opts.ConnectLatency
	if latency < 0 {
		latency = 0
	}

	policy := domain.DefaultAdPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	profile := domain.Session{
		UserID:       demoUserID,
		Username:     demoUsername,
		Email:        demoEmail,
		BalanceUnits: demoBalance,
		Plan:         demoPlan,
		ExpiryDate:   demoExpiry,
	}
	if opts.Profile != nil && opts.Profile.UserID != "" {
		profile = opts.Profile.WithToken("")
	}
	if strings.TrimSpace(profile.ReferralCode) == "" {
		profile.ReferralCode = fmt.Sprintf("SD-%04d", rng.IntN(10000))
	}

	return &Backend{
		latency:   latency,
		policy:    policy,
		rng:       rng,
		profile:   profile,
		connected: map[string]bool{},
		used:      map[string]float64{},
	}
}

func (b *Backend) FetchAdPolicy(ctx context.Context) (domain.AdPolicy, error) {
	if err := ctx.Err(); err != nil {
		return domain.AdPolicy{}, err
	}
	return b.policy, nil
}

func (b *Backend) FetchProfile(ctx context.Context, token string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, domain.ErrNotAuthenticated
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile.WithToken(token), nil
}

func (b *Backend) Logout(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connected, token)
	return ctx.Err()
}

func (b *Backend) Connect(ctx context.Context, token string, req ports.ConnectRequest) error {
	if strings.TrimSpace(req.DeviceID) == "" {
		return fmt.Errorf("connect: device id is required")
	}

	if b.latency > 0 {
		timer := time.NewTimer(b.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected[token] = true
	return nil
}

func (b *Backend) Disconnect(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connected, token)
	return ctx.Err()
}

// Status reports jittered throughput around 12 units/s and accumulates usage
// per token for as long as the token stays connected.
func (b *Backend) Status(ctx context.Context, token string) (domain.Telemetry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Telemetry{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected[token] {
		return domain.Telemetry{}, fmt.Errorf("status: %w", domain.ErrHandshakeFailed)
	}

	speed := 8 + b.rng.Float64()*8
	b.used[token] += speed * 2 / 10
	return domain.Telemetry{
		ThroughputUnitsPerSec: speed,
		PingMs:                int64(18 + b.rng.IntN(20)),
		TotalUsedUnits:        b.used[token],
	}, nil
}

// Credit mirrors a server-side balance change so later profile fetches agree
// with locally committed rewards.
func (b *Backend) Credit(session domain.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if session.UserID != b.profile.UserID {
		return
	}
	b.profile.BalanceUnits = session.BalanceUnits
	b.profile.DailyAdsWatched = session.DailyAdsWatched
}
