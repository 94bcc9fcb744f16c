package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/rs/zerolog"
)

const progressComplete = 100

type RewardTimings struct {
	ProgressStep     int
	ProgressInterval time.Duration
}

func DefaultRewardTimings() RewardTimings {
	return RewardTimings{ProgressStep: 20, ProgressInterval: time.Second}
}

type RewardConfig struct {
	Timings *RewardTimings
	Metrics ports.Metrics
	Clock   ports.Clock
	Logger  *zerolog.Logger
}

// AdProgress is one step of a simulated ad watch.
type AdProgress struct {
	Percent int
	Active  bool
}

// RewardCoordinator runs reward actions, placing a simulated ad watch in
// front of the gated ones. Only one watch can be in flight.
type RewardCoordinator struct {
	app     *AppContext
	timings RewardTimings
	metrics ports.Metrics
	clock   ports.Clock
	logger  zerolog.Logger

	mu          sync.Mutex
	busy        bool
	progress    int
	subscribers map[int]chan AdProgress
	nextSub     int
}

func NewRewardCoordinator(app *AppContext, cfg RewardConfig) *RewardCoordinator {
	timings := DefaultRewardTimings()
	if cfg.Timings != nil {
		timings = *cfg.Timings
	}
	if timings.ProgressStep <= 0 {
		timings.ProgressStep = progressComplete
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "rewards").Logger()
	}

	return &RewardCoordinator{
		app:         app,
		timings:     timings,
		metrics:     metrics,
		clock:       clock,
		logger:      logger,
		subscribers: map[int]chan AdProgress{},
	}
}

func (r *RewardCoordinator) Progress() AdProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return AdProgress{Percent: r.progress, Active: r.busy}
}

// SubscribeProgress streams watch progress until stop is called. Slow readers
// miss intermediate steps.
func (r *RewardCoordinator) SubscribeProgress() (<-chan AdProgress, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan AdProgress, subscriberBuffer)
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subscribers, id)
			close(ch)
		})
	}
}

// Gate runs action right away when requiresGate is false or ads are
// disabled. Otherwise it first plays the simulated ad watch; a second gated
// request during a watch gets ErrGateBusy. Cancelling ctx, or ending the
// session, aborts the watch without running action.
func (r *RewardCoordinator) Gate(ctx context.Context, requiresGate bool, action func(ctx context.Context) error) error {
	if !requiresGate || !r.app.Policy().Enabled {
		return action(ctx)
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return domain.ErrGateBusy
	}
	r.busy = true
	r.setProgressLocked(0)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.busy = false
		r.setProgressLocked(0)
		r.mu.Unlock()
	}()

	scoped, _, cancel := r.app.Scope(ctx)
	defer cancel()

	for percent := 0; percent < progressComplete; {
		if err := ports.Sleep(scoped, r.timings.ProgressInterval); err != nil {
			r.logger.Debug().Int("percent", percent).Msg("ad watch aborted")
			return err
		}
		percent = min(percent+r.timings.ProgressStep, progressComplete)

		r.mu.Lock()
		r.setProgressLocked(percent)
		r.mu.Unlock()
	}

	return action(scoped)
}

func (r *RewardCoordinator) setProgressLocked(percent int) {
	r.progress = percent
	event := AdProgress{Percent: percent, Active: r.busy}
	for _, sub := range r.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// ClaimDailyBonus credits the daily bonus once per calendar day.
func (r *RewardCoordinator) ClaimDailyBonus(ctx context.Context) (domain.Session, error) {
	session, ok := r.app.Session()
	if !ok {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	if session.DailyBonusClaimed(r.clock.Now()) {
		return domain.Session{}, domain.ErrAlreadyClaimed
	}

	generation := r.app.Generation()
	var credited domain.Session
	err := r.Gate(ctx, r.app.Policy().Gates(domain.RewardActionDailyBonus), func(context.Context) error {
		now := r.clock.Now()
		next, err := r.app.CommitAt(generation, func(current domain.Session) (domain.Session, error) {
			if current.DailyBonusClaimed(now) {
				return domain.Session{}, domain.ErrAlreadyClaimed
			}
			return current.WithDailyBonus(domain.DailyBonusUnits, now), nil
		})
		credited = next
		return err
	})

	r.observe(domain.RewardActionDailyBonus, err)
	if err != nil {
		return domain.Session{}, err
	}
	return credited, nil
}

// RevealReferral returns the user's referral code, or the shared fallback
// code when none is known.
func (r *RewardCoordinator) RevealReferral(ctx context.Context) (string, error) {
	var code string
	err := r.Gate(ctx, r.app.Policy().Gates(domain.RewardActionReferralReveal), func(context.Context) error {
		session, _ := r.app.Session()
		code = session.ReferralCodeOrDefault()
		return nil
	})

	r.observe(domain.RewardActionReferralReveal, err)
	if err != nil {
		return "", err
	}
	return code, nil
}

// WatchAdTask credits one ad watch. The daily cap is checked when the request
// is made and again when the credit is committed, so a watch that finishes
// after the cap was reached elsewhere credits nothing.
func (r *RewardCoordinator) WatchAdTask(ctx context.Context) (domain.Session, error) {
	session, ok := r.app.Session()
	if !ok {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	if r.app.Policy().CapReached(session.DailyAdsWatched) {
		r.observe(domain.RewardActionAdTask, domain.ErrGateViolation)
		return domain.Session{}, domain.ErrGateViolation
	}

	generation := r.app.Generation()
	var credited domain.Session
	err := r.Gate(ctx, r.app.Policy().Gates(domain.RewardActionAdTask), func(context.Context) error {
		policy := r.app.Policy()
		now := r.clock.Now()
		next, err := r.app.CommitAt(generation, func(current domain.Session) (domain.Session, error) {
			if policy.CapReached(current.DailyAdsWatched) {
				return domain.Session{}, domain.ErrGateViolation
			}
			return current.WithAdWatched(policy.AdRewardUnits, now), nil
		})
		credited = next
		return err
	})

	r.observe(domain.RewardActionAdTask, err)
	if err != nil {
		return domain.Session{}, err
	}
	return credited, nil
}

// Catalog lists the reward tasks under the current policy.
func (r *RewardCoordinator) Catalog() []domain.RewardTask {
	return domain.RewardCatalog(r.app.Policy())
}

func (r *RewardCoordinator) observe(action domain.RewardAction, err error) {
	r.metrics.ObserveReward(action, err == nil)
	if err != nil {
		r.logger.Debug().Err(err).Str("action", string(action)).Msg("reward refused")
		return
	}
	r.logger.Info().Str("action", string(action)).Msg("reward applied")
}
