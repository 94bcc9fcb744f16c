package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(loader *appLoader) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an auth token and load the profile it belongs to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			session, err := app.sync.Login(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (balance %d MB)\n", displayName(session.Username, string(session.UserID)), session.BalanceUnits)
			return err
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Auth token issued by the SweetData backend")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newLogoutCmd(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored auth token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			if err := app.sync.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}

func displayName(username, fallback string) string {
	if username != "" {
		return username
	}
	return fallback
}
