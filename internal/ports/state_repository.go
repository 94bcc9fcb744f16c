package ports

import (
	"context"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
)

// CachedState is what survives between process runs besides the token.
type CachedState struct {
	DeviceID  string
	Policy    *domain.AdPolicy
	PolicyAt  time.Time
	Session   *domain.Session
	SessionAt time.Time
}

type StateRepository interface {
	Load(ctx context.Context) (CachedState, error)
	Save(ctx context.Context, state CachedState) error
}
