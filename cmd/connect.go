package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/sweetdata-cli/internal/application"
	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 2 * time.Second

type connectOptions struct {
	Duration    time.Duration
	MetricsAddr string
}

func newConnectCmd(loader *appLoader) *cobra.Command {
	var opts connectOptions

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open the tunnel and report telemetry until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loader.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runConnect(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), app, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "for", 0, "Disconnect after this long (0 waits for Ctrl-C)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")

	return cmd
}

func runConnect(ctx context.Context, out, errOut io.Writer, app *app, opts connectOptions) error {
	if _, ok, err := app.sync.Resume(ctx); err != nil && !errors.Is(err, domain.ErrTerminalSyncFailure) {
		return fmt.Errorf("resume session: %w", err)
	} else if !ok {
		app.logger.Info().Msg("not signed in, connecting anonymously")
	}
	app.sync.SyncAdPolicy(ctx)

	controller := application.NewConnectionController(app.shared, app.connection)
	defer controller.Close()

	transitions, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	if _, err := controller.Toggle(); err != nil {
		return err
	}

	err := runSpinner(ctx, errOut, "Handshaking...", nil, func(ctx context.Context) error {
		return awaitHandshake(ctx, transitions)
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if _, err := fmt.Fprintf(out, "tunnel: %s\n", controller.State().Label()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if opts.MetricsAddr != "" {
		server := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           metricsMux(app),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return reportTelemetry(gctx, out, controller, transitions, opts.Duration, app.connection.Timings.PollInterval)
	})

	err = g.Wait()

	if controller.State() == domain.ConnectionConnected {
		if _, toggleErr := controller.Toggle(); toggleErr != nil {
			app.logger.Warn().Err(toggleErr).Msg("disconnect")
		}
	}
	controller.Close()

	if _, writeErr := fmt.Fprintf(out, "tunnel: %s\n", controller.State().Label()); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}

// awaitHandshake blocks until the handshake started by Toggle settles.
func awaitHandshake(ctx context.Context, transitions <-chan domain.ConnectionTransition) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-transitions:
			if !ok {
				return application.ErrControllerClosed
			}
			switch event.To {
			case domain.ConnectionConnected:
				return nil
			case domain.ConnectionFailed:
				return domain.ErrHandshakeFailed
			case domain.ConnectionDisconnected:
				return errors.New("tunnel reset during handshake")
			}
		}
	}
}

// reportTelemetry prints a telemetry line every interval until ctx ends, the
// duration elapses or the tunnel drops.
func reportTelemetry(ctx context.Context, out io.Writer, controller *application.ConnectionController, transitions <-chan domain.ConnectionTransition, duration, interval time.Duration) error {
	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case event, ok := <-transitions:
			if !ok || event.To != domain.ConnectionConnected {
				return errors.New("tunnel dropped")
			}
		case <-ticker.C:
			t := controller.Telemetry()
			if t.IsZero() {
				continue
			}
			if _, err := fmt.Fprintf(out, "speed: %.1f MB/s  ping: %dms  used: %.1f MB\n", t.ThroughputUnitsPerSec, t.PingMs, t.TotalUsedUnits); err != nil {
				return err
			}
		}
	}
}

func metricsMux(app *app) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", app.metrics.Handler()).Methods(http.MethodGet)
	return r
}
