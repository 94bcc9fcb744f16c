package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
)

const (
	DefaultBaseURL = "http://161.35.76.106:8080/api"

	anonymousToken = "anonymous"
)

// RetryPolicy is the Fetcher budget for one endpoint.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
	Timeout time.Duration
}

type Policies struct {
	AdConfig   RetryPolicy
	Profile    RetryPolicy
	Logout     RetryPolicy
	Connect    RetryPolicy
	Disconnect RetryPolicy
	Status     RetryPolicy
}

// DefaultPolicies keeps the handshake and status calls single-shot: the
// connection controller owns their retry and polling cadence.
func DefaultPolicies() Policies {
	return Policies{
		AdConfig:   RetryPolicy{Retries: 4, Delay: 500 * time.Millisecond, Timeout: 8 * time.Second},
		Profile:    RetryPolicy{Retries: 2, Delay: 500 * time.Millisecond, Timeout: 8 * time.Second},
		Logout:     RetryPolicy{Timeout: 5 * time.Second},
		Connect:    RetryPolicy{Timeout: 8 * time.Second},
		Disconnect: RetryPolicy{Timeout: 5 * time.Second},
		Status:     RetryPolicy{Timeout: 2 * time.Second},
	}
}

type Client struct {
	BaseURL  string
	Fetcher  *Fetcher
	Policies Policies
	Now      func() time.Time
}

var _ ports.Backend = (*Client)(nil)

func NewClient(baseURL string, fetcher *Fetcher) *Client {
	if fetcher == nil {
		fetcher = &Fetcher{}
	}
	return &Client{
		BaseURL:  baseURL,
		Fetcher:  fetcher,
		Policies: DefaultPolicies(),
		Now:      time.Now,
	}
}

type adConfigPayload struct {
	Enabled           bool   `json:"enabled"`
	BannerID          string `json:"bannerId"`
	InterstitialID    string `json:"interstitialId"`
	RewardedID        string `json:"rewardedId"`
	DailyLoginAdGated bool   `json:"dailyLoginAdGated"`
	ReferralAdGated   bool   `json:"referralAdGated"`
	MaxDailyAds       int64  `json:"maxDailyAds"`
	AdRewardMB        int64  `json:"adRewardMB"`
}

type profilePayload struct {
	ID              flexString `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	BalanceMB       flexNumber `json:"balanceMB"`
	Plan            string     `json:"plan"`
	ExpiryDate      string     `json:"expiryDate"`
	ReferralCode    string     `json:"referralCode"`
	DailyAdsWatched flexNumber `json:"dailyAdsWatched"`
}

type statusPayload struct {
	CurrentSpeed flexNumber `json:"currentSpeed"`
	Ping         flexNumber `json:"ping"`
	TotalUsed    flexNumber `json:"totalUsed"`
}

func (c *Client) FetchAdPolicy(ctx context.Context) (domain.AdPolicy, error) {
	endpoint, err := c.endpoint("ads/config")
	if err != nil {
		return domain.AdPolicy{}, err
	}
	query := url.Values{}
	query.Set("nocache", strconv.FormatInt(c.now().UnixMilli(), 10))
	endpoint += "?" + query.Encode()

	resp, err := c.fetch(ctx, Target{Endpoint: "ads_config", Method: http.MethodGet, URL: endpoint, Header: jsonHeader()}, c.Policies.AdConfig)
	if err != nil {
		return domain.AdPolicy{}, err
	}

	var payload adConfigPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return domain.AdPolicy{}, fmt.Errorf("decode ad config: %w", err)
	}

	policy := domain.AdPolicy{
		Enabled:           payload.Enabled,
		BannerID:          payload.BannerID,
		InterstitialID:    payload.InterstitialID,
		RewardedID:        payload.RewardedID,
		DailyLoginAdGated: payload.DailyLoginAdGated,
		ReferralAdGated:   payload.ReferralAdGated,
		MaxDailyAds:       payload.MaxDailyAds,
		AdRewardUnits:     payload.AdRewardMB,
	}
	if err := policy.Validate(); err != nil {
		return domain.AdPolicy{}, fmt.Errorf("validate ad config: %w", err)
	}

	return policy, nil
}

func (c *Client) FetchProfile(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrNotAuthenticated
	}

	endpoint, err := c.endpoint("user/profile")
	if err != nil {
		return domain.Session{}, err
	}

	resp, err := c.fetch(ctx, Target{Endpoint: "user_profile", Method: http.MethodGet, URL: endpoint, Header: bearerHeader(token)}, c.Policies.Profile)
	if err != nil {
		return domain.Session{}, err
	}

	var payload profilePayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return domain.Session{}, fmt.Errorf("decode profile: %w", err)
	}
	if payload.ID == "" {
		return domain.Session{}, errors.New("profile response missing id")
	}

	return domain.Session{
		UserID:          domain.UserID(payload.ID),
		Username:        payload.Username,
		Email:           payload.Email,
		AuthToken:       token,
		BalanceUnits:    int64(payload.BalanceMB),
		DailyAdsWatched: int64(payload.DailyAdsWatched),
		ReferralCode:    payload.ReferralCode,
		Plan:            payload.Plan,
		ExpiryDate:      payload.ExpiryDate,
	}.Normalize(), nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	endpoint, err := c.endpoint("auth/logout")
	if err != nil {
		return err
	}

	_, err = c.fetch(ctx, Target{Endpoint: "auth_logout", Method: http.MethodPost, URL: endpoint, Header: bearerHeader(token)}, c.Policies.Logout)
	return err
}

func (c *Client) Connect(ctx context.Context, token string, req ports.ConnectRequest) error {
	endpoint, err := c.endpoint("tunnel/connect")
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode connect request: %w", err)
	}

	if token == "" {
		token = anonymousToken
	}
	header := bearerHeader(token)
	header.Set("Content-Type", "application/json")

	_, err = c.fetch(ctx, Target{Endpoint: "tunnel_connect", Method: http.MethodPost, URL: endpoint, Header: header, Body: body}, c.Policies.Connect)
	return err
}

func (c *Client) Disconnect(ctx context.Context, token string) error {
	endpoint, err := c.endpoint("tunnel/disconnect")
	if err != nil {
		return err
	}

	_, err = c.fetch(ctx, Target{Endpoint: "tunnel_disconnect", Method: http.MethodPost, URL: endpoint, Header: bearerHeader(token)}, c.Policies.Disconnect)
	return err
}

func (c *Client) Status(ctx context.Context, token string) (domain.Telemetry, error) {
	endpoint, err := c.endpoint("tunnel/status")
	if err != nil {
		return domain.Telemetry{}, err
	}

	resp, err := c.fetch(ctx, Target{Endpoint: "tunnel_status", Method: http.MethodGet, URL: endpoint, Header: bearerHeader(token)}, c.Policies.Status)
	if err != nil {
		return domain.Telemetry{}, err
	}

	var payload statusPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return domain.Telemetry{}, fmt.Errorf("decode tunnel status: %w", err)
	}

	return domain.Telemetry{
		ThroughputUnitsPerSec: float64(payload.CurrentSpeed),
		PingMs:                int64(payload.Ping),
		TotalUsedUnits:        float64(payload.TotalUsed),
	}, nil
}

func (c *Client) fetch(ctx context.Context, target Target, policy RetryPolicy) (Response, error) {
	return c.Fetcher.Request(ctx, target, RequestOptions{Timeout: policy.Timeout}, policy.Retries, policy.Delay)
}

func (c *Client) endpoint(path string) (string, error) {
	return buildAPIURL(c.BaseURL, path)
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func jsonHeader() http.Header {
	header := http.Header{}
	header.Set("Accept", "application/json")
	return header
}

func bearerHeader(token string) http.Header {
	header := jsonHeader()
	header.Set("Authorization", "Bearer "+token)
	return header
}

// buildAPIURL resolves path under baseURL, keeping any base path such as /api.
func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	if len(parsed.Path) == 0 || parsed.Path[len(parsed.Path)-1] != '/' {
		parsed.Path += "/"
	}
	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
