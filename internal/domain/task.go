package domain

const (
	DailyBonusUnits     int64 = 10
	ReferralRewardUnits int64 = 20
	DefaultReferralCode       = "SD-UX-992"

	AdTaskID = "ad1"
)

type RewardAction string

const (
	RewardActionDailyBonus     RewardAction = "daily_bonus"
	RewardActionReferralReveal RewardAction = "referral_reveal"
	RewardActionAdTask         RewardAction = "ad_task"
)

// RewardTask is a read-only catalog entry.
type RewardTask struct {
	ID             string
	Title          string
	RewardUnits    int64
	Completed      bool
	RequiresAdGate bool
}

func RewardCatalog(policy AdPolicy) []RewardTask {
	return []RewardTask{
		{ID: AdTaskID, Title: "Watch Ad & Earn MB", RewardUnits: policy.AdRewardUnits, RequiresAdGate: true},
		{ID: "r1", Title: "Refer a Colleague", RewardUnits: ReferralRewardUnits},
		{ID: "t1", Title: "Social Follow: TikTok", RewardUnits: 15},
		{ID: "t2", Title: "Social Follow: Facebook", RewardUnits: 15, Completed: true},
		{ID: "t3", Title: "App Feedback", RewardUnits: 10},
	}
}
