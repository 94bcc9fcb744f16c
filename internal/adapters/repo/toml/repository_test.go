package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, statePath string) *Repository {
	t.Helper()

	config := viper.New()
	config.Set(StatePathKey, statePath)

	repo, err := NewRepository(config)
	require.NoError(t, err)
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))

	fetched := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	policy := domain.DefaultAdPolicy()
	policy.AdRewardUnits = 8
	session := domain.Session{
		UserID:              "123",
		Username:            "ada",
		Email:               "ada@example.com",
		BalanceUnits:        510,
		DailyAdsWatched:     2,
		ReferralCode:        "SD-4242",
		Plan:                "Silver Tier",
		ExpiryDate:          "2025-10-15",
		DailyBonusClaimedAt: fetched.Add(-time.Hour),
		LastAdWatchedAt:     fetched.Add(-30 * time.Minute),
	}
	want := ports.CachedState{
		DeviceID:  "device-1",
		Policy:    &policy,
		PolicyAt:  fetched,
		Session:   &session,
		SessionAt: fetched.Add(time.Minute),
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRepositoryNeverPersistsToken(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	repo := newTestRepository(t, statePath)

	session := domain.Session{UserID: "u-1", AuthToken: "secret-token"}
	require.NoError(t, repo.Save(context.Background(), ports.CachedState{Session: &session}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-token")

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	assert.Empty(t, got.Session.AuthToken)
}

func TestRepositoryDefaultPathUsesHomeDirectory(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	repo, err := NewRepository(viper.New())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, ".sweetdata", "state.toml"), repo.Path())

	require.NoError(t, repo.Save(context.Background(), ports.CachedState{DeviceID: "d"}))

	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryMissingFileIsEmptyState(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "state.toml"))

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ports.CachedState{}, state)
}

func TestRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("policy = ["), 0o600))

	_, err := newTestRepository(t, statePath).Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode state file")
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, ports.CachedState{DeviceID: "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte(strings.Join([]string{
		"version = 999",
		`device_id = "x"`,
		"",
	}, "\n")), 0o600))

	_, err := newTestRepository(t, statePath).Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported state schema version")
}

func TestRepositorySaveSerializedTOMLIncludesVersion(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, newTestRepository(t, statePath).Save(context.Background(), ports.CachedState{DeviceID: "d"}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestRepositoryEnsureDeviceIDGeneratesOnce(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))

	first, err := repo.EnsureDeviceID(context.Background())
	require.NoError(t, err)
	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	second, err := repo.EnsureDeviceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, state.DeviceID)
}

func TestRepositorySaveKeepsExistingDeviceID(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))
	id, err := repo.EnsureDeviceID(context.Background())
	require.NoError(t, err)

	policy := domain.DefaultAdPolicy()
	require.NoError(t, repo.Save(context.Background(), ports.CachedState{Policy: &policy}))

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, state.DeviceID)
}

func TestRepositoryEnsureDeviceIDKeepsCachedState(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))
	policy := domain.DefaultAdPolicy()
	require.NoError(t, repo.Save(context.Background(), ports.CachedState{Policy: &policy}))

	_, err := repo.EnsureDeviceID(context.Background())
	require.NoError(t, err)

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state.Policy)
	assert.Equal(t, policy, *state.Policy)
}

func TestRepositoryConcurrentDeviceIDAcrossInstancesAgree(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	repoA := newTestRepository(t, statePath)
	repoB := newTestRepository(t, statePath)

	const callers = 20
	ids := make(chan string, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		repo := repoA
		if i%2 == 1 {
			repo = repoB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := repo.EnsureDeviceID(context.Background())
			assert.NoError(t, err)
			ids <- id
		}()
	}

	close(start)
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}
