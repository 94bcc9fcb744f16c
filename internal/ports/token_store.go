package ports

import "context"

// TokenStore persists the single opaque auth token used for silent resumption.
// Load returns domain.ErrTokenNotFound when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
