package cmd

import (
	"sync"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	configPath string
	logLevel   string
}

// appLoader wires the application on first use so that flags parsed by cobra
// reach the composition root.
type appLoader struct {
	opts *rootOptions

	once sync.Once
	app  *app
	err  error
}

func (l *appLoader) load(cmd *cobra.Command) (*app, error) {
	l.once.Do(func() {
		l.app, l.err = wireApp(cmd.Context(), wireOptions{
			ConfigPath: l.opts.configPath,
			LogLevel:   l.opts.logLevel,
			LogOutput:  cmd.ErrOrStderr(),
		})
	})
	return l.app, l.err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	loader := &appLoader{opts: opts}

	rootCmd := &cobra.Command{
		Use:           "sd",
		Short:         "SweetData client (sd): session, tunnel and rewards from the terminal",
		Long:          "sd drives the SweetData VPN client core: it keeps the ad policy and your profile in sync, runs the connection state machine and applies ad-gated rewards.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.sweetdata/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(loader),
		newLogoutCmd(loader),
		newStatusCmd(loader),
		newPolicyCmd(loader),
		newConnectCmd(loader),
		newTasksCmd(loader),
		newDevServerCmd(opts),
	)

	return rootCmd
}
