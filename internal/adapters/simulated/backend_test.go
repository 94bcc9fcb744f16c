package simulated

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(opts Options) *Backend {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return New(opts)
}

func TestBackendServesDefaultPolicy(t *testing.T) {
	t.Parallel()

	policy, err := newBackend(Options{}).FetchAdPolicy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAdPolicy(), policy)
}

func TestBackendDemoProfile(t *testing.T) {
	t.Parallel()

	backend := newBackend(Options{})

	session, err := backend.FetchProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(demoUserID), session.UserID)
	assert.Equal(t, int64(500), session.BalanceUnits)
	assert.Equal(t, "Silver Tier", session.Plan)
	assert.Equal(t, "tok", session.AuthToken)
	assert.Regexp(t, regexp.MustCompile(`^SD-\d{4}$`), session.ReferralCode)

	again, err := backend.FetchProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, session, again)
}

func TestBackendProfileRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := newBackend(Options{}).FetchProfile(context.Background(), " ")
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
}

func TestBackendSeedsProfileFromSnapshot(t *testing.T) {
	t.Parallel()

	seed := domain.Session{UserID: "u-9", BalanceUnits: 42, ReferralCode: "SD-0001", AuthToken: "stale"}
	session, err := newBackend(Options{Profile: &seed}).FetchProfile(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-9"), session.UserID)
	assert.Equal(t, int64(42), session.BalanceUnits)
	assert.Equal(t, "SD-0001", session.ReferralCode)
	assert.Equal(t, "fresh", session.AuthToken)
}

func TestBackendConnectHonoursLatencyAndCancellation(t *testing.T) {
	t.Parallel()

	backend := newBackend(Options{ConnectLatency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := backend.Connect(ctx, "tok", ports.ConnectRequest{DeviceID: "d", Mode: "full-tunnel"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = backend.Status(context.Background(), "tok")
	assert.Error(t, err)
}

func TestBackendStatusAccumulatesWhileConnected(t *testing.T) {
	t.Parallel()

	backend := newBackend(Options{})
	require.NoError(t, backend.Connect(context.Background(), "tok", ports.ConnectRequest{DeviceID: "d"}))

	first, err := backend.Status(context.Background(), "tok")
	require.NoError(t, err)
	second, err := backend.Status(context.Background(), "tok")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, first.ThroughputUnitsPerSec, 8.0)
	assert.Less(t, first.ThroughputUnitsPerSec, 16.0)
	assert.Greater(t, second.TotalUsedUnits, first.TotalUsedUnits)

	require.NoError(t, backend.Disconnect(context.Background(), "tok"))
	_, err = backend.Status(context.Background(), "tok")
	assert.Error(t, err)
}

func TestBackendConnectRequiresDevice(t *testing.T) {
	t.Parallel()

	err := newBackend(Options{}).Connect(context.Background(), "tok", ports.ConnectRequest{})
	assert.ErrorContains(t, err, "device id is required")
}

func TestBackendCreditUpdatesProfile(t *testing.T) {
	t.Parallel()

	backend := newBackend(Options{})
	session, err := backend.FetchProfile(context.Background(), "tok")
	require.NoError(t, err)

	backend.Credit(session.WithAdWatched(5, time.Now()))

	refreshed, err := backend.FetchProfile(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(505), refreshed.BalanceUnits)
	assert.Equal(t, int64(1), refreshed.DailyAdsWatched)
}
