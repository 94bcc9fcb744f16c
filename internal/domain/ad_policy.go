package domain

import "fmt"

const (
	DefaultBannerID      = "ca-app-pub-3940256099942544/6300978111"
	DefaultMaxDailyAds   = 4
	DefaultAdRewardUnits = 5
)

// AdPolicy is an immutable snapshot of the remote ad configuration.
type AdPolicy struct {
	Enabled           bool
	BannerID          string
	InterstitialID    string
	RewardedID        string
	DailyLoginAdGated bool
	ReferralAdGated   bool
	MaxDailyAds       int64
	AdRewardUnits     int64
}

func DefaultAdPolicy() AdPolicy {
	return AdPolicy{
		Enabled:           true,
		BannerID:          DefaultBannerID,
		DailyLoginAdGated: true,
		ReferralAdGated:   true,
		MaxDailyAds:       DefaultMaxDailyAds,
		AdRewardUnits:     DefaultAdRewardUnits,
	}
}

func (p AdPolicy) Validate() error {
	if p.MaxDailyAds < 0 {
		return fmt.Errorf("max daily ads must not be negative, got %d", p.MaxDailyAds)
	}
	if p.AdRewardUnits < 0 {
		return fmt.Errorf("ad reward units must not be negative, got %d", p.AdRewardUnits)
	}
	return nil
}

// Gates reports whether the action must wait for an ad watch under this policy.
func (p AdPolicy) Gates(action RewardAction) bool {
	if !p.Enabled {
		return false
	}

	switch action {
	case RewardActionDailyBonus:
		return p.DailyLoginAdGated
	case RewardActionReferralReveal:
		return p.ReferralAdGated
	case RewardActionAdTask:
		return true
	default:
		return false
	}
}

func (p AdPolicy) RemainingAds(watched int64) int64 {
	remaining := p.MaxDailyAds - watched
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (p AdPolicy) CapReached(watched int64) bool {
	return watched >= p.MaxDailyAds
}
