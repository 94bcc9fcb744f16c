package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
)

var ErrSessionEnded = errors.New("session ended while the request was in flight")

// Snapshot is a consistent copy of the shared state. Session is nil when
// nobody is signed in.
type Snapshot struct {
	Session   *domain.Session
	SessionAt time.Time
	Policy    domain.AdPolicy
	PolicyAt  time.Time
}

// AppContext owns the state shared by the synchronizer, the connection
// controller and the reward coordinator. Writers never touch the session
// directly; they hand a replacement function to Commit.
type AppContext struct {
	clock ports.Clock

	mu         sync.Mutex
	session    *domain.Session
	sessionAt  time.Time
	policy     domain.AdPolicy
	policyAt   time.Time
	generation uint64
	sessionCtx context.Context
	endCtx     context.CancelFunc
	onLogout   []func()
	onCommit   []func(Snapshot)

	notifyMu sync.Mutex
}

func NewAppContext(policy domain.AdPolicy, clock ports.Clock) *AppContext {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AppContext{
		clock:      clock,
		policy:     policy,
		sessionCtx: ctx,
		endCtx:     cancel,
	}
}

// Restore seeds the context from a cached snapshot without notifying
// observers.
func (a *AppContext) Restore(snapshot Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.policy = snapshot.Policy
	a.policyAt = snapshot.PolicyAt
	if snapshot.Session != nil {
		session := *snapshot.Session
		a.session = &session
		a.sessionAt = snapshot.SessionAt
	}
}

func (a *AppContext) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *AppContext) snapshotLocked() Snapshot {
	snap := Snapshot{SessionAt: a.sessionAt, Policy: a.policy, PolicyAt: a.policyAt}
	if a.session != nil {
		session := *a.session
		snap.Session = &session
	}
	return snap
}

func (a *AppContext) Session() (domain.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return domain.Session{}, false
	}
	return *a.session, true
}

func (a *AppContext) Now() time.Time {
	return a.clock.Now()
}

func (a *AppContext) Policy() domain.AdPolicy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy
}

func (a *AppContext) SetPolicy(policy domain.AdPolicy) {
	a.mu.Lock()
	a.policy = policy
	a.policyAt = a.clock.Now()
	a.mu.Unlock()

	a.notify()
}

// Scope derives a context that ends with parent or with the current session,
// whichever comes first, and reports the session generation it belongs to.
func (a *AppContext) Scope(parent context.Context) (context.Context, uint64, context.CancelFunc) {
	a.mu.Lock()
	sessionCtx := a.sessionCtx
	generation := a.generation
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(sessionCtx, cancel)
	return ctx, generation, func() {
		stop()
		cancel()
	}
}

func (a *AppContext) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Establish installs session as the current record, provided the session
// generation has not moved on since the caller's Scope.
func (a *AppContext) Establish(generation uint64, session domain.Session) error {
	a.mu.Lock()
	if a.generation != generation {
		a.mu.Unlock()
		return ErrSessionEnded
	}
	a.session = &session
	a.sessionAt = a.clock.Now()
	a.mu.Unlock()

	a.notify()
	return nil
}

// Commit applies fn to the current session under the context lock and stores
// the replacement it returns. fn must not call back into the AppContext.
func (a *AppContext) Commit(fn func(current domain.Session) (domain.Session, error)) (domain.Session, error) {
	return a.commit(nil, fn)
}

// CommitAt is Commit restricted to the session generation reported by Scope.
func (a *AppContext) CommitAt(generation uint64, fn func(current domain.Session) (domain.Session, error)) (domain.Session, error) {
	return a.commit(&generation, fn)
}

func (a *AppContext) commit(generation *uint64, fn func(current domain.Session) (domain.Session, error)) (domain.Session, error) {
	a.mu.Lock()
	if generation != nil && *generation != a.generation {
		a.mu.Unlock()
		return domain.Session{}, ErrSessionEnded
	}
	if a.session == nil {
		a.mu.Unlock()
		return domain.Session{}, domain.ErrNotAuthenticated
	}

	next, err := fn(*a.session)
	if err != nil {
		a.mu.Unlock()
		return domain.Session{}, err
	}
	a.session = &next
	a.mu.Unlock()

	a.notify()
	return next, nil
}

// EndSession clears the session, cancels every context obtained from Scope
// and runs the logout hooks. It is safe to call when nobody is signed in.
func (a *AppContext) EndSession() {
	a.mu.Lock()
	a.session = nil
	a.sessionAt = time.Time{}
	a.generation++
	a.endCtx()
	a.sessionCtx, a.endCtx = context.WithCancel(context.Background())
	hooks := append([]func(){}, a.onLogout...)
	a.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	a.notify()
}

func (a *AppContext) OnLogout(hook func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogout = append(a.onLogout, hook)
}

// OnCommit registers an observer called after every change with the latest
// snapshot. Observers run one at a time.
func (a *AppContext) OnCommit(observer func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCommit = append(a.onCommit, observer)
}

func (a *AppContext) notify() {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	snap := a.snapshotLocked()
	observers := append([]func(Snapshot){}, a.onCommit...)
	a.mu.Unlock()

	for _, observer := range observers {
		observer(snap)
	}
}
