package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultLogoutTimeout  = 5 * time.Second
	DefaultPersistTimeout = 2 * time.Second
)

type SyncDeps struct {
	Policies ports.PolicySource
	Profiles ports.ProfileSource
	Auth     ports.AuthClient
	Tokens   ports.TokenStore
	// State is optional. When set, every committed snapshot is written to it.
	State  ports.StateRepository
	Logger *zerolog.Logger

	LogoutTimeout time.Duration
}

// Synchronizer keeps the ad policy and the session record in step with the
// remote endpoint. Both flows are idempotent.
type Synchronizer struct {
	app           *AppContext
	policies      ports.PolicySource
	profiles      ports.ProfileSource
	auth          ports.AuthClient
	tokens        ports.TokenStore
	state         ports.StateRepository
	logger        zerolog.Logger
	logoutTimeout time.Duration
}

func NewSynchronizer(app *AppContext, deps SyncDeps) *Synchronizer {
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("component", "sync").Logger()
	}
	timeout := deps.LogoutTimeout
	if timeout <= 0 {
		timeout = DefaultLogoutTimeout
	}

	s := &Synchronizer{
		app:           app,
		policies:      deps.Policies,
		profiles:      deps.Profiles,
		auth:          deps.Auth,
		tokens:        deps.Tokens,
		state:         deps.State,
		logger:        logger,
		logoutTimeout: timeout,
	}
	if s.state != nil {
		app.OnCommit(s.persist)
	}

	return s
}

// SyncAdPolicy replaces the shared policy with the remote one. On failure the
// last known policy stays in place and is returned; the failure is only logged.
func (s *Synchronizer) SyncAdPolicy(ctx context.Context) domain.AdPolicy {
	ctx, _, cancel := s.app.Scope(ctx)
	defer cancel()

	policy, err := s.policies.FetchAdPolicy(ctx)
	if err != nil {
		current := s.app.Policy()
		s.logger.Warn().Err(err).
			Bool("terminal", errors.Is(err, domain.ErrTerminalSyncFailure)).
			Msg("ad policy sync failed, keeping last known policy")
		return current
	}

	s.app.SetPolicy(policy)
	s.logger.Debug().
		Bool("enabled", policy.Enabled).
		Int64("max_daily_ads", policy.MaxDailyAds).
		Int64("ad_reward_units", policy.AdRewardUnits).
		Msg("ad policy synced")
	return policy
}

// RefreshProfile fetches the authoritative session for token. A rejected
// credential ends the session; any other failure leaves the previous session
// untouched and reports ErrTerminalSyncFailure.
func (s *Synchronizer) RefreshProfile(ctx context.Context, token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, domain.ErrNotAuthenticated
	}

	scoped, generation, cancel := s.app.Scope(ctx)
	defer cancel()

	fetched, err := s.profiles.FetchProfile(scoped, token)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAuthRejected):
		s.logger.Warn().Msg("credential rejected, signing out")
		if clearErr := s.endLocal(context.WithoutCancel(ctx)); clearErr != nil {
			s.logger.Warn().Err(clearErr).Msg("clear rejected credential")
		}
		return domain.Session{}, fmt.Errorf("refresh profile: %w", err)
	case scoped.Err() != nil:
		if ctx.Err() == nil {
			return domain.Session{}, ErrSessionEnded
		}
		return domain.Session{}, fmt.Errorf("refresh profile: %w", ctx.Err())
	default:
		previous, _ := s.app.Session()
		s.logger.Warn().Err(err).Msg("profile refresh failed, keeping previous session")
		return previous, fmt.Errorf("refresh profile: %w: %w", domain.ErrTerminalSyncFailure, err)
	}

	next := fetched.WithToken(token)
	if previous, ok := s.app.Session(); ok {
		next = next.MergeLocal(previous, s.app.Now())
	}
	if err := s.app.Establish(generation, next); err != nil {
		return domain.Session{}, err
	}

	s.logger.Debug().Str("user_id", string(next.UserID)).Int64("balance_units", next.BalanceUnits).Msg("profile refreshed")
	return next, nil
}

// Resume attempts silent resumption from the persisted token. No token is not
// an error: the caller stays unauthenticated and any cached session is dropped.
func (s *Synchronizer) Resume(ctx context.Context) (domain.Session, bool, error) {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			if _, ok := s.app.Session(); ok {
				s.app.EndSession()
			}
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("load auth token: %w", err)
	}

	if cached, ok := s.app.Session(); ok && cached.AuthToken == "" {
		_ = s.app.Establish(s.app.Generation(), cached.WithToken(token))
	}

	session, err := s.RefreshProfile(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTerminalSyncFailure) && session.Authenticated() {
			return session, true, err
		}
		return domain.Session{}, false, err
	}

	return session, true, nil
}

// Login stores token and resolves the session it belongs to.
func (s *Synchronizer) Login(ctx context.Context, token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, errors.New("auth token is empty")
	}

	if current, ok := s.app.Session(); ok && current.AuthToken != token {
		s.app.EndSession()
	}

	if err := s.tokens.Save(ctx, token); err != nil {
		return domain.Session{}, fmt.Errorf("store auth token: %w", err)
	}

	return s.RefreshProfile(ctx, token)
}

// Logout notifies the remote endpoint on a best-effort basis, then clears the
// stored token and ends the session. Calling it twice is harmless.
func (s *Synchronizer) Logout(ctx context.Context) error {
	token := ""
	if current, ok := s.app.Session(); ok {
		token = current.AuthToken
	}
	if token == "" {
		if stored, err := s.tokens.Load(ctx); err == nil {
			token = stored
		}
	}

	if token != "" && s.auth != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
		if err := s.auth.Logout(notifyCtx, token); err != nil {
			s.logger.Debug().Err(err).Msg("logout notice failed")
		}
		cancel()
	}

	return s.endLocal(ctx)
}

func (s *Synchronizer) endLocal(ctx context.Context) error {
	err := s.tokens.Clear(ctx)
	s.app.EndSession()
	if err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	return nil
}

func (s *Synchronizer) persist(snapshot Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPersistTimeout)
	defer cancel()

	state := ports.CachedState{
		Policy:    &snapshot.Policy,
		PolicyAt:  snapshot.PolicyAt,
		SessionAt: snapshot.SessionAt,
	}
	if snapshot.Session != nil {
		session := snapshot.Session.WithToken("")
		state.Session = &session
	}

	if err := s.state.Save(ctx, state); err != nil {
		s.logger.Warn().Err(err).Msg("persist state cache")
	}
}
