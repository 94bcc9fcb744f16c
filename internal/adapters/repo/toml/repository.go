package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StatePathKey = "state.path"

	stateFileMode   = 0o600
	stateDirMode    = 0o700
	stateConfigDir  = ".sweetdata"
	stateConfigFile = "state.toml"
	tempFilePattern = ".state-*.toml.tmp"
)

// Repository caches the last known policy, session snapshot and device id in
// a versioned TOML file.
type Repository struct {
	statePath string
	mu        *sync.RWMutex
	newID     func() (uuid.UUID, error)
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.StateRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	if cfg.GetString(StatePathKey) == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.SetDefault(StatePathKey, filepath.Join(homeDir, stateConfigDir, stateConfigFile))
	}

	statePath := cfg.GetString(StatePathKey)
	if statePath == "" {
		return nil, errors.New("state path is empty")
	}
	statePath, err := normalizeStatePath(statePath)
	if err != nil {
		return nil, err
	}

	return &Repository{statePath: statePath, mu: lockForPath(statePath), newID: uuid.NewV7}, nil
}

func (r *Repository) Path() string {
	return r.statePath
}

func (r *Repository) Load(ctx context.Context) (ports.CachedState, error) {
	if err := ctx.Err(); err != nil {
		return ports.CachedState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return ports.CachedState{}, err
	}

	return fromSchema(file), nil
}

func (r *Repository) Save(ctx context.Context, state ports.CachedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := toSchema(state)
	if next.DeviceID == "" {
		current, err := r.readSchema()
		if err != nil {
			return err
		}
		next.DeviceID = current.DeviceID
	}

	return r.writeSchema(next)
}

// EnsureDeviceID returns the persisted device id, generating and storing a
// UUIDv7 the first time.
func (r *Repository) EnsureDeviceID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return "", err
	}
	if id := strings.TrimSpace(file.DeviceID); id != "" {
		return id, nil
	}

	id, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	file.DeviceID = id.String()

	if err := r.writeSchema(file); err != nil {
		return "", err
	}

	return file.DeviceID, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeStatePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.statePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, r.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(state ports.CachedState) fileSchema {
	file := fileSchema{Version: currentSchemaVersion, DeviceID: state.DeviceID}

	if p := state.Policy; p != nil {
		file.Policy = &policySchema{
			Enabled:           p.Enabled,
			BannerID:          p.BannerID,
			InterstitialID:    p.InterstitialID,
			RewardedID:        p.RewardedID,
			DailyLoginAdGated: p.DailyLoginAdGated,
			ReferralAdGated:   p.ReferralAdGated,
			MaxDailyAds:       p.MaxDailyAds,
			AdRewardUnits:     p.AdRewardUnits,
			FetchedAt:         formatTime(state.PolicyAt),
		}
	}

	if s := state.Session; s != nil {
		file.Session = &sessionSchema{
			UserID:          string(s.UserID),
			Username:        s.Username,
			Email:           s.Email,
			BalanceUnits:    s.BalanceUnits,
			DailyAdsWatched: s.DailyAdsWatched,
			ReferralCode:    s.ReferralCode,
			Plan:            s.Plan,
			ExpiryDate:      s.ExpiryDate,
			DailyBonusAt:    formatTime(s.DailyBonusClaimedAt),
			LastAdAt:        formatTime(s.LastAdWatchedAt),
			RefreshedAt:     formatTime(state.SessionAt),
		}
	}

	return file
}

func fromSchema(file fileSchema) ports.CachedState {
	state := ports.CachedState{DeviceID: file.DeviceID}

	if p := file.Policy; p != nil {
		state.Policy = &domain.AdPolicy{
			Enabled:           p.Enabled,
			BannerID:          p.BannerID,
			InterstitialID:    p.InterstitialID,
			RewardedID:        p.RewardedID,
			DailyLoginAdGated: p.DailyLoginAdGated,
			ReferralAdGated:   p.ReferralAdGated,
			MaxDailyAds:       p.MaxDailyAds,
			AdRewardUnits:     p.AdRewardUnits,
		}
		state.PolicyAt = parseTime(p.FetchedAt)
	}

	if s := file.Session; s != nil && s.UserID != "" {
		session := domain.Session{
			UserID:              domain.UserID(s.UserID),
			Username:            s.Username,
			Email:               s.Email,
			BalanceUnits:        s.BalanceUnits,
			DailyAdsWatched:     s.DailyAdsWatched,
			ReferralCode:        s.ReferralCode,
			Plan:                s.Plan,
			ExpiryDate:          s.ExpiryDate,
			DailyBonusClaimedAt: parseTime(s.DailyBonusAt),
			LastAdWatchedAt:     parseTime(s.LastAdAt),
		}.Normalize()
		state.Session = &session
		state.SessionAt = parseTime(s.RefreshedAt)
	}

	return state
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
