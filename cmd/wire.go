package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/sweetdata-cli/internal/adapters/httpapi"
	"github.com/bnema/sweetdata-cli/internal/adapters/metrics"
	statusadapter "github.com/bnema/sweetdata-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/sweetdata-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/sweetdata-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/sweetdata-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/sweetdata-cli/internal/adapters/secrets/pass"
	"github.com/bnema/sweetdata-cli/internal/adapters/simulated"
	"github.com/bnema/sweetdata-cli/internal/application"
	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	configDirName = ".sweetdata"

	transportNetwork   = "network"
	transportSimulated = "simulated"

	secretsAuto = "auto"
	secretsFile = "file"
	secretsPass = "pass"
)

type app struct {
	config  *viper.Viper
	logger  zerolog.Logger
	metrics *metrics.Registry

	shared     *application.AppContext
	sync       *application.Synchronizer
	rewards    *application.RewardCoordinator
	connection application.ConnectionConfig

	renderDashboard func(statusadapter.Dashboard) (string, error)
	renderTasks     func(statusadapter.TasksView) (string, error)
	now             func() time.Time
}

type wireOptions struct {
	ConfigPath string
	LogLevel   string
	LogOutput  io.Writer
}

func wireApp(ctx context.Context, opts wireOptions) (*app, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(firstNonEmpty(opts.LogLevel, config.GetString("log.level")), opts.LogOutput)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()

	repo, err := tomlrepo.NewRepository(config)
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	cached, err := repo.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("path", repo.Path()).Msg("ignoring unreadable state cache")
		cached = ports.CachedState{}
	}

	deviceID := config.GetString("tunnel.device_id")
	if deviceID == "" {
		deviceID, err = repo.EnsureDeviceID(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("device id unavailable, using the shared default")
		}
	}

	tokens, err := newTokenStore(config)
	if err != nil {
		return nil, err
	}

	policy := domain.DefaultAdPolicy()
	if cached.Policy != nil {
		policy = *cached.Policy
	}
	shared := application.NewAppContext(policy, ports.SystemClock{})
	shared.Restore(application.Snapshot{
		Session:   cached.Session,
		SessionAt: cached.SessionAt,
		Policy:    policy,
		PolicyAt:  cached.PolicyAt,
	})

	backend, err := newBackend(config, shared, cached, registry, &logger)
	if err != nil {
		return nil, err
	}

	timings, err := connectionTimings(config)
	if err != nil {
		return nil, err
	}

	return &app{
		config:  config,
		logger:  logger,
		metrics: registry,
		shared:  shared,
		sync: application.NewSynchronizer(shared, application.SyncDeps{
			Policies: backend,
			Profiles: backend,
			Auth:     backend,
			Tokens:   tokens,
			State:    repo,
			Logger:   &logger,
		}),
		rewards: application.NewRewardCoordinator(shared, application.RewardConfig{
			Timings: &application.RewardTimings{
				ProgressStep:     config.GetInt("rewards.progress_step"),
				ProgressInterval: config.GetDuration("rewards.progress_interval"),
			},
			Metrics: registry,
			Logger:  &logger,
		}),
		connection: application.ConnectionConfig{
			Transport: backend,
			Request: ports.ConnectRequest{
				DeviceID: deviceID,
				Mode:     config.GetString("tunnel.mode"),
			},
			Timings: &timings,
			Metrics: registry,
			Logger:  &logger,
		},
		renderDashboard: statusadapter.Render,
		renderTasks:     statusadapter.RenderTasks,
		now:             time.Now,
	}, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig(path string) (*viper.Viper, error) {
	config := viper.New()
	config.SetEnvPrefix("SD")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	defaults := application.DefaultConnectionTimings()
	rewardDefaults := application.DefaultRewardTimings()
	config.SetDefault("api.base_url", httpapi.DefaultBaseURL)
	config.SetDefault("api.client_origin", "")
	config.SetDefault("api.request_timeout", 8*time.Second)
	config.SetDefault("api.retry_delay", 500*time.Millisecond)
	config.SetDefault("transport", transportNetwork)
	config.SetDefault("simulated.connect_latency", simulated.DefaultConnectLatency)
	config.SetDefault("tunnel.device_id", "")
	config.SetDefault("tunnel.mode", application.DefaultTunnelMode)
	config.SetDefault("tunnel.handshake_timeout", defaults.HandshakeTimeout)
	config.SetDefault("tunnel.handshake_retries", defaults.HandshakeRetries)
	config.SetDefault("tunnel.handshake_pause", defaults.HandshakePause)
	config.SetDefault("tunnel.settle_delay", defaults.SettleDelay)
	config.SetDefault("tunnel.failed_reset_delay", defaults.FailedResetDelay)
	config.SetDefault("tunnel.poll_interval", defaults.PollInterval)
	config.SetDefault("tunnel.disconnect_timeout", defaults.DisconnectTimeout)
	config.SetDefault("rewards.progress_step", rewardDefaults.ProgressStep)
	config.SetDefault("rewards.progress_interval", rewardDefaults.ProgressInterval)
	config.SetDefault("secrets.backend", secretsAuto)
	config.SetDefault("secrets.dir", "")
	config.SetDefault("state.path", "")
	config.SetDefault("log.level", "")

	if path != "" {
		config.SetConfigFile(path)
		if err := config.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return config, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	config.SetConfigName("config")
	config.SetConfigType("toml")
	config.AddConfigPath(filepath.Join(homeDir, configDirName))

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return config, nil
}

func newLogger(level string, output io.Writer) (zerolog.Logger, error) {
	if output == nil {
		output = os.Stderr
	}

	parsed := zerolog.WarnLevel
	if level = strings.TrimSpace(level); level != "" {
		var err error
		parsed, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
		}
	}

	writer := zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen, NoColor: true}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger(), nil
}

func newTokenStore(config *viper.Viper) (ports.TokenStore, error) {
	dir := config.GetString("secrets.dir")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(homeDir, configDirName, "secrets")
	}

	switch backend := config.GetString("secrets.backend"); backend {
	case secretsFile:
		return filestore.NewStore(dir), nil
	case secretsPass:
		return passstore.NewStore(passstore.DefaultEntry), nil
	case secretsAuto, "":
		store, err := chainstore.NewPassFirstWithFileFallback(passstore.DefaultEntry, dir)
		if err != nil {
			return nil, fmt.Errorf("wire token store chain: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q (want auto, file or pass)", backend)
	}
}

func newBackend(config *viper.Viper, shared *application.AppContext, cached ports.CachedState, registry *metrics.Registry, logger *zerolog.Logger) (ports.Backend, error) {
	switch transport := config.GetString("transport"); transport {
	case transportSimulated:
		backend := simulated.New(simulated.Options{
			ConnectLatency: config.GetDuration("simulated.connect_latency"),
			Profile:        cached.Session,
		})
		shared.OnCommit(func(snapshot application.Snapshot) {
			if snapshot.Session != nil {
				backend.Credit(*snapshot.Session)
			}
		})
		return backend, nil
	case transportNetwork, "":
		fetcher := &httpapi.Fetcher{
			HTTPClient:   &http.Client{},
			ClientOrigin: config.GetString("api.client_origin"),
			Metrics:      registry,
			Logger:       logger,
		}
		client := httpapi.NewClient(config.GetString("api.base_url"), fetcher)
		if timeout := config.GetDuration("api.request_timeout"); timeout > 0 {
			client.Policies.AdConfig.Timeout = timeout
			client.Policies.Profile.Timeout = timeout
		}
		if delay := config.GetDuration("api.retry_delay"); delay > 0 {
			client.Policies.AdConfig.Delay = delay
			client.Policies.Profile.Delay = delay
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", transport, transportNetwork, transportSimulated)
	}
}

func connectionTimings(config *viper.Viper) (application.ConnectionTimings, error) {
	timings := application.ConnectionTimings{
		HandshakeTimeout:  config.GetDuration("tunnel.handshake_timeout"),
		HandshakeRetries:  config.GetInt("tunnel.handshake_retries"),
		HandshakePause:    config.GetDuration("tunnel.handshake_pause"),
		SettleDelay:       config.GetDuration("tunnel.settle_delay"),
		FailedResetDelay:  config.GetDuration("tunnel.failed_reset_delay"),
		PollInterval:      config.GetDuration("tunnel.poll_interval"),
		DisconnectTimeout: config.GetDuration("tunnel.disconnect_timeout"),
	}
	if timings.HandshakeRetries < 0 {
		return timings, fmt.Errorf("tunnel.handshake_retries must not be negative, got %d", timings.HandshakeRetries)
	}
	if timings.HandshakeTimeout <= 0 || timings.PollInterval <= 0 {
		return timings, errors.New("tunnel.handshake_timeout and tunnel.poll_interval must be positive")
	}
	return timings, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
