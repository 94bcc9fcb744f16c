package domain

import (
	"strings"
	"time"
)

type UserID string

// Session is the authoritative user record. Values are replaced, never
// mutated in place, so every helper returns a copy.
type Session struct {
	UserID          UserID
	Username        string
	Email           string
	AuthToken       string
	BalanceUnits    int64
	DailyAdsWatched int64
	ReferralCode    string
	Plan            string
	ExpiryDate      string
	// DailyBonusClaimedAt and LastAdWatchedAt are tracked locally; the profile
	// endpoint never reports them.
	DailyBonusClaimedAt time.Time
	LastAdWatchedAt     time.Time
}

func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.AuthToken) != ""
}

func (s Session) WithBalance(delta int64) Session {
	next := s
	next.BalanceUnits += delta
	if next.BalanceUnits < 0 {
		next.BalanceUnits = 0
	}
	return next
}

func (s Session) WithAdWatched(reward int64, at time.Time) Session {
	next := s.WithBalance(reward)
	next.DailyAdsWatched++
	next.LastAdWatchedAt = at
	return next
}

func (s Session) WithToken(token string) Session {
	next := s
	next.AuthToken = strings.TrimSpace(token)
	return next
}

// Normalize clamps counters the server may report out of range.
func (s Session) Normalize() Session {
	next := s
	if next.BalanceUnits < 0 {
		next.BalanceUnits = 0
	}
	if next.DailyAdsWatched < 0 {
		next.DailyAdsWatched = 0
	}
	return next
}

func (s Session) ReferralCodeOrDefault() string {
	if code := strings.TrimSpace(s.ReferralCode); code != "" {
		return code
	}
	return DefaultReferralCode
}

func (s Session) WithDailyBonus(reward int64, at time.Time) Session {
	next := s.WithBalance(reward)
	next.DailyBonusClaimedAt = at
	return next
}

// DailyBonusClaimed reports whether the bonus was already claimed on the
// calendar day of now, in now's location.
func (s Session) DailyBonusClaimed(now time.Time) bool {
	return sameDay(s.DailyBonusClaimedAt, now)
}

// MergeLocal carries client-side fields from a previous snapshot of the same
// user into a freshly fetched record. Ads watched earlier on now's calendar
// day keep counting against the cap when the server reports fewer.
func (s Session) MergeLocal(previous Session, now time.Time) Session {
	next := s
	if previous.UserID != s.UserID {
		return next
	}
	if next.DailyBonusClaimedAt.IsZero() {
		next.DailyBonusClaimedAt = previous.DailyBonusClaimedAt
	}
	if sameDay(previous.LastAdWatchedAt, now) {
		if previous.DailyAdsWatched > next.DailyAdsWatched {
			next.DailyAdsWatched = previous.DailyAdsWatched
		}
		if next.LastAdWatchedAt.IsZero() {
			next.LastAdWatchedAt = previous.LastAdWatchedAt
		}
	}
	return next
}

func sameDay(at, now time.Time) bool {
	if at.IsZero() {
		return false
	}
	y1, m1, d1 := at.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
