package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int            `toml:"version"`
	DeviceID string         `toml:"device_id,omitempty"`
	Policy   *policySchema  `toml:"policy,omitempty"`
	Session  *sessionSchema `toml:"session,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type policySchema struct {
	Enabled           bool   `toml:"enabled"`
	BannerID          string `toml:"banner_id"`
	InterstitialID    string `toml:"interstitial_id,omitempty"`
	RewardedID        string `toml:"rewarded_id,omitempty"`
	DailyLoginAdGated bool   `toml:"daily_login_ad_gated"`
	ReferralAdGated   bool   `toml:"referral_ad_gated"`
	MaxDailyAds       int64  `toml:"max_daily_ads"`
	AdRewardUnits     int64  `toml:"ad_reward_units"`
	FetchedAt         string `toml:"fetched_at"`
}

// sessionSchema never carries the auth token; that lives in the token store.
type sessionSchema struct {
	UserID          string `toml:"user_id"`
	Username        string `toml:"username,omitempty"`
	Email           string `toml:"email,omitempty"`
	BalanceUnits    int64  `toml:"balance_units"`
	DailyAdsWatched int64  `toml:"daily_ads_watched"`
	ReferralCode    string `toml:"referral_code,omitempty"`
	Plan            string `toml:"plan,omitempty"`
	ExpiryDate      string `toml:"expiry_date,omitempty"`
	DailyBonusAt    string `toml:"daily_bonus_at,omitempty"`
	LastAdAt        string `toml:"last_ad_at,omitempty"`
	RefreshedAt     string `toml:"refreshed_at"`
}
