package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mockAnyContext() interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		return ctx != nil
	})
}

func signedIn(t *testing.T, app *AppContext, session domain.Session) {
	t.Helper()
	require.NoError(t, app.Establish(app.Generation(), session))
}

func demoSession() domain.Session {
	return domain.Session{
		UserID:       "u-1",
		Username:     "ada",
		AuthToken:    "tok-1",
		BalanceUnits: 100,
		ReferralCode: "SD-1234",
	}
}
