// Package devserver serves the remote endpoint contract from memory. It backs
// `sd devserver` and the HTTP tests.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	DemoToken = "demo-token"

	// PathPrefix is where the API is mounted, matching the production base URL.
	PathPrefix = "/api"
)

type Profile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	BalanceMB       int64  `json:"balanceMB"`
	Plan            string `json:"plan"`
	ExpiryDate      string `json:"expiryDate"`
	ReferralCode    string `json:"referralCode"`
	DailyAdsWatched int64  `json:"dailyAdsWatched"`
}

type adConfig struct {
	Enabled           bool   `json:"enabled"`
	BannerID          string `json:"bannerId"`
	InterstitialID    string `json:"interstitialId"`
	RewardedID        string `json:"rewardedId"`
	DailyLoginAdGated bool   `json:"dailyLoginAdGated"`
	ReferralAdGated   bool   `json:"referralAdGated"`
	MaxDailyAds       int64  `json:"maxDailyAds"`
	AdRewardMB        int64  `json:"adRewardMB"`
}

type connectBody struct {
	DeviceID string `json:"deviceId" validate:"required,max=128"`
	Mode     string `json:"mode" validate:"omitempty,oneof=full-tunnel split-tunnel"`
}

type statusBody struct {
	CurrentSpeed string `json:"currentSpeed"`
	Ping         string `json:"ping"`
	TotalUsed    string `json:"totalUsed"`
}

type Server struct {
	Logger zerolog.Logger

	mu          sync.Mutex
	policy      domain.AdPolicy
	users       map[string]Profile
	connected   map[string]string
	usage       map[string]float64
	failConnect int
	failPolicy  int
	calls       map[string]int
	validate    *validator.Validate
}

// New returns a server with the default ad policy and the demo user
// registered under DemoToken.
func New() *Server {
	s := &Server{
		Logger:    zerolog.Nop(),
		policy:    domain.DefaultAdPolicy(),
		users:     map[string]Profile{},
		connected: map[string]string{},
		usage:     map[string]float64{},
		calls:     map[string]int{},
		validate:  validator.New(),
	}
	s.AddUser(DemoToken, Profile{
		ID:           "1001",
		Username:     "demo",
		Email:        "demo@sweetdata.app",
		BalanceMB:    500,
		Plan:         "Silver Tier",
		ExpiryDate:   "2025-10-15",
		ReferralCode: "SD-4821",
	})
	return s
}

func (s *Server) AddUser(token string, profile Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = profile
}

func (s *Server) SetPolicy(policy domain.AdPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
}

// FailConnect makes the next n connect requests answer 503.
func (s *Server) FailConnect(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnect = n
}

// FailPolicy makes the next n ad config requests answer 503.
func (s *Server) FailPolicy(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPolicy = n
}

// Calls reports how many requests the named route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Connected(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.connected[token]
	return ok
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix(PathPrefix).Subrouter()
	api.Use(s.logRequests)
	api.HandleFunc("/ads/config", s.handleAdConfig).Methods(http.MethodGet)
	api.HandleFunc("/user/profile", s.handleProfile).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/tunnel/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/tunnel/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/tunnel/status", s.handleStatus).Methods(http.MethodGet)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAdConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls["ads_config"]++
	if s.failPolicy > 0 {
		s.failPolicy--
		s.mu.Unlock()
		http.Error(w, "policy unavailable", http.StatusServiceUnavailable)
		return
	}
	p := s.policy
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, adConfig{
		Enabled:           p.Enabled,
		BannerID:          p.BannerID,
		InterstitialID:    p.InterstitialID,
		RewardedID:        p.RewardedID,
		DailyLoginAdGated: p.DailyLoginAdGated,
		ReferralAdGated:   p.ReferralAdGated,
		MaxDailyAds:       p.MaxDailyAds,
		AdRewardMB:        p.AdRewardUnits,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	s.mu.Lock()
	s.calls["user_profile"]++
	profile, ok := s.users[token]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	s.mu.Lock()
	s.calls["auth_logout"]++
	delete(s.connected, token)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var body connectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed connect request", http.StatusBadRequest)
		return
	}
	body.DeviceID = strings.TrimSpace(body.DeviceID)
	if err := s.validate.Struct(body); err != nil {
		http.Error(w, formatValidation(err), http.StatusBadRequest)
		return
	}
	token := bearerToken(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["tunnel_connect"]++
	if s.failConnect > 0 {
		s.failConnect--
		http.Error(w, "tunnel unavailable", http.StatusServiceUnavailable)
		return
	}
	s.connected[token] = body.DeviceID
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	s.mu.Lock()
	s.calls["tunnel_disconnect"]++
	delete(s.connected, token)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	s.mu.Lock()
	s.calls["tunnel_status"]++
	if _, ok := s.connected[token]; !ok {
		s.mu.Unlock()
		http.Error(w, "not connected", http.StatusConflict)
		return
	}
	s.usage[token] += 2.5
	used := s.usage[token]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, statusBody{
		CurrentSpeed: "12.5",
		Ping:         "24ms",
		TotalUsed:    fmt.Sprintf("%.1f MB", used),
	})
}

func formatValidation(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "invalid request"
	}

	field := fieldErrors[0]
	switch field.Tag() {
	case "required":
		return field.Field() + " is required"
	case "oneof":
		return field.Field() + " must be one of: " + field.Param()
	default:
		return field.Field() + " is invalid"
	}
}

func bearerToken(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
