package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	statusadapter "github.com/bnema/sweetdata-cli/internal/adapters/render/status"
	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/spf13/cobra"
)

type sessionView struct {
	UserID          string `json:"userId"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	BalanceUnits    int64  `json:"balanceMB"`
	DailyAdsWatched int64  `json:"dailyAdsWatched"`
	ReferralCode    string `json:"referralCode,omitempty"`
	Plan            string `json:"plan,omitempty"`
	ExpiryDate      string `json:"expiryDate,omitempty"`
	DailyBonus      bool   `json:"dailyBonusClaimed"`
}

type policyView struct {
	Enabled           bool   `json:"enabled"`
	BannerID          string `json:"bannerId,omitempty"`
	InterstitialID    string `json:"interstitialId,omitempty"`
	RewardedID        string `json:"rewardedId,omitempty"`
	DailyLoginAdGated bool   `json:"dailyLoginAdGated"`
	ReferralAdGated   bool   `json:"referralAdGated"`
	MaxDailyAds       int64  `json:"maxDailyAds"`
	AdRewardUnits     int64  `json:"adRewardMB"`
}

type statusView struct {
	Connection string       `json:"connection"`
	SignedIn   bool         `json:"signedIn"`
	Offline    bool         `json:"offline,omitempty"`
	Session    *sessionView `json:"session,omitempty"`
	Policy     policyView   `json:"policy"`
}

func newStatusCmd(loader *appLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session, balance and ad policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			dashboard, err := loadDashboard(cmd.Context(), app)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), newStatusView(dashboard))
			}

			rendered, err := app.renderDashboard(dashboard)
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func newPolicyCmd(loader *appLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Fetch and show the current ad policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			policy := app.sync.SyncAdPolicy(cmd.Context())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), newPolicyView(policy))
			}

			out := cmd.OutOrStdout()
			lines := []string{
				fmt.Sprintf("enabled: %t", policy.Enabled),
				fmt.Sprintf("daily login gated: %t", policy.DailyLoginAdGated),
				fmt.Sprintf("referral gated: %t", policy.ReferralAdGated),
				fmt.Sprintf("max daily ads: %d", policy.MaxDailyAds),
				fmt.Sprintf("ad reward: %d MB", policy.AdRewardUnits),
			}
			for _, line := range lines {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

// loadDashboard resumes the session and syncs the policy. A failed refresh
// still shows the cached session, flagged offline.
func loadDashboard(ctx context.Context, app *app) (statusadapter.Dashboard, error) {
	session, ok, err := app.sync.Resume(ctx)
	offline := errors.Is(err, domain.ErrTerminalSyncFailure)
	if err != nil && !offline {
		return statusadapter.Dashboard{}, fmt.Errorf("resume session: %w", err)
	}

	dashboard := statusadapter.Dashboard{
		Connection: domain.ConnectionDisconnected,
		Policy:     app.sync.SyncAdPolicy(ctx),
		Now:        app.now(),
		Stale:      offline,
	}
	if ok {
		dashboard.Session = &session
	}

	return dashboard, nil
}

func newStatusView(d statusadapter.Dashboard) statusView {
	view := statusView{
		Connection: d.Connection.Label(),
		SignedIn:   d.Session != nil,
		Offline:    d.Stale,
		Policy:     newPolicyView(d.Policy),
	}
	if d.Session != nil {
		s := d.Session
		view.Session = &sessionView{
			UserID:          string(s.UserID),
			Username:        s.Username,
			Email:           s.Email,
			BalanceUnits:    s.BalanceUnits,
			DailyAdsWatched: s.DailyAdsWatched,
			ReferralCode:    s.ReferralCode,
			Plan:            s.Plan,
			ExpiryDate:      s.ExpiryDate,
			DailyBonus:      s.DailyBonusClaimed(d.Now),
		}
	}
	return view
}

func newPolicyView(p domain.AdPolicy) policyView {
	return policyView{
		Enabled:           p.Enabled,
		BannerID:          p.BannerID,
		InterstitialID:    p.InterstitialID,
		RewardedID:        p.RewardedID,
		DailyLoginAdGated: p.DailyLoginAdGated,
		ReferralAdGated:   p.ReferralAdGated,
		MaxDailyAds:       p.MaxDailyAds,
		AdRewardUnits:     p.AdRewardUnits,
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
