package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/sweetdata-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/sweetdata-cli/internal/adapters/secrets/pass"
	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
)

type Store struct {
	primary  ports.TokenStore
	fallback ports.TokenStore
}

var _ ports.TokenStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary token store is nil")
	errNilFallbackStore = errors.New("fallback token store is nil")
)

func NewStore(primary ports.TokenStore, fallback ports.TokenStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.TokenStore, fallback ports.TokenStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(passEntry string, fileDir string) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(passEntry), filestore.NewStore(fileDir))
}

func (s *Store) Save(ctx context.Context, token string) error {
	err := s.primary.Save(ctx, token)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Save(ctx, token)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend save failed: %w; fallback backend save failed: %w", err, fallbackErr)
}

func (s *Store) Load(ctx context.Context) (string, error) {
	token, err := s.primary.Load(ctx)
	if err == nil {
		return token, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackToken, fallbackErr := s.fallback.Load(ctx)
	if fallbackErr == nil {
		return fallbackToken, nil
	}
	if errors.Is(err, domain.ErrTokenNotFound) && errors.Is(fallbackErr, domain.ErrTokenNotFound) {
		return "", domain.ErrTokenNotFound
	}
	// An unreachable primary with an empty fallback still means no token.
	if errors.Is(fallbackErr, domain.ErrTokenNotFound) && errors.Is(err, passstore.ErrUnavailable) {
		return "", domain.ErrTokenNotFound
	}

	return "", fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

// Clear removes the token from both backends so a stale copy cannot resume
// the session.
func (s *Store) Clear(ctx context.Context) error {
	err := s.primary.Clear(ctx)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Clear(ctx)
	if err != nil && errors.Is(err, passstore.ErrUnavailable) {
		err = nil
	}
	if err == nil && fallbackErr == nil {
		return nil
	}

	return errors.Join(wrap("primary", err), wrap("fallback", fallbackErr))
}

func wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s backend clear failed: %w", backend, err)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
