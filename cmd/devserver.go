package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/sweetdata-cli/internal/adapters/devserver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const devServerShutdownTimeout = 5 * time.Second

func newDevServerCmd(opts *rootOptions) *cobra.Command {
	var (
		listen      string
		failPolicy  int
		failConnect int
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve the backend API from memory for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(firstNonEmpty(opts.logLevel, "info"), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			backend := devserver.New()
			backend.Logger = logger.With().Str("component", "devserver").Logger()
			backend.FailPolicy(failPolicy)
			backend.FailConnect(failConnect)

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := &http.Server{
				Handler:           backend.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Serving http://%s%s (demo token %q)\n", listener.Addr(), devserver.PathPrefix, devserver.DemoToken); err != nil {
				_ = listener.Close()
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), devServerShutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8080", "Address to listen on")
	cmd.Flags().IntVar(&failPolicy, "fail-policy", 0, "Answer the first n ad config requests with 503")
	cmd.Flags().IntVar(&failConnect, "fail-connect", 0, "Answer the first n connect requests with 503")

	return cmd
}
