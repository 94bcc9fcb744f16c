package ports

import (
	"context"

	"github.com/bnema/sweetdata-cli/internal/domain"
)

type PolicySource interface {
	FetchAdPolicy(ctx context.Context) (domain.AdPolicy, error)
}

type ProfileSource interface {
	FetchProfile(ctx context.Context, token string) (domain.Session, error)
}

type AuthClient interface {
	Logout(ctx context.Context, token string) error
}

type ConnectRequest struct {
	DeviceID string `json:"deviceId"`
	Mode     string `json:"mode"`
}

type TunnelTransport interface {
	Connect(ctx context.Context, token string, req ConnectRequest) error
	Disconnect(ctx context.Context, token string) error
	Status(ctx context.Context, token string) (domain.Telemetry, error)
}

// Backend is everything the client needs from the remote endpoint.
type Backend interface {
	PolicySource
	ProfileSource
	AuthClient
	TunnelTransport
}
