package cmd

import (
	"context"
	"errors"
	"fmt"

	statusadapter "github.com/bnema/sweetdata-cli/internal/adapters/render/status"
	"github.com/bnema/sweetdata-cli/internal/application"
	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newTasksCmd(loader *appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List reward tasks and claim rewards",
	}

	cmd.AddCommand(
		newTasksListCmd(loader),
		newTasksDailyCmd(loader),
		newTasksReferralCmd(loader),
		newTasksWatchAdCmd(loader),
	)

	return cmd
}

func newTasksListCmd(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the reward task catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			dashboard, err := loadDashboard(cmd.Context(), app)
			if err != nil {
				return err
			}

			rendered, err := app.renderTasks(statusadapter.TasksView{
				Tasks:   app.rewards.Catalog(),
				Session: dashboard.Session,
				Policy:  dashboard.Policy,
				Now:     dashboard.Now,
			})
			if err != nil {
				return fmt.Errorf("render tasks: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}

func newTasksDailyCmd(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Claim the daily login bonus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadSignedIn(cmd, loader)
			if err != nil {
				return err
			}

			var session domain.Session
			err = runRewardAction(cmd, app, func(ctx context.Context) error {
				var claimErr error
				session, claimErr = app.rewards.ClaimDailyBonus(ctx)
				return claimErr
			})
			if err != nil {
				return fmt.Errorf("claim daily bonus: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Daily bonus claimed: +%d MB (balance %d MB)\n", domain.DailyBonusUnits, session.BalanceUnits)
			return err
		},
	}
}

func newTasksReferralCmd(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "referral",
		Short: "Reveal your referral code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadSignedIn(cmd, loader)
			if err != nil {
				return err
			}

			var code string
			err = runRewardAction(cmd, app, func(ctx context.Context) error {
				var revealErr error
				code, revealErr = app.rewards.RevealReferral(ctx)
				return revealErr
			})
			if err != nil {
				return fmt.Errorf("reveal referral code: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Referral code: %s\n", code)
			return err
		},
	}
}

func newTasksWatchAdCmd(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "watch-ad",
		Short: "Watch an ad and earn data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadSignedIn(cmd, loader)
			if err != nil {
				return err
			}

			var session domain.Session
			err = runRewardAction(cmd, app, func(ctx context.Context) error {
				var watchErr error
				session, watchErr = app.rewards.WatchAdTask(ctx)
				return watchErr
			})
			if errors.Is(err, domain.ErrGateViolation) {
				return fmt.Errorf("watch ad: daily limit of %d ads reached: %w", app.shared.Policy().MaxDailyAds, err)
			}
			if err != nil {
				return fmt.Errorf("watch ad: %w", err)
			}

			policy := app.shared.Policy()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Ad reward: +%d MB (balance %d MB, %d ads left today)\n",
				policy.AdRewardUnits, session.BalanceUnits, policy.RemainingAds(session.DailyAdsWatched))
			return err
		},
	}
}

// loadSignedIn wires the app and requires a session, cached or fresh.
func loadSignedIn(cmd *cobra.Command, loader *appLoader) (*app, error) {
	app, err := loader.load(cmd)
	if err != nil {
		return nil, err
	}

	_, ok, err := app.sync.Resume(cmd.Context())
	if err != nil && !errors.Is(err, domain.ErrTerminalSyncFailure) {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run sd login first", domain.ErrNotAuthenticated)
	}

	app.sync.SyncAdPolicy(cmd.Context())
	return app, nil
}

// runRewardAction runs action behind a spinner that follows the ad watch.
func runRewardAction(cmd *cobra.Command, app *app, action func(context.Context) error) error {
	progress, stop := app.rewards.SubscribeProgress()
	defer stop()

	labels := make(chan string, 1)
	go forwardProgress(progress, labels)

	return runSpinner(cmd.Context(), cmd.ErrOrStderr(), "Working...", labels, action)
}

func forwardProgress(progress <-chan application.AdProgress, labels chan<- string) {
	defer close(labels)
	for step := range progress {
		if !step.Active {
			continue
		}
		label := fmt.Sprintf("Watching ad... %d%%", step.Percent)
		select {
		case labels <- label:
		default:
		}
	}
}
