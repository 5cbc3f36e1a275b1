// Command jackbot is the API process. It:
//   - Loads configuration and initializes structured logging.
//   - Holds the chat-event store and the bot status registry in memory.
//   - Forwards chat events to the control target over OSC/UDP.
//   - Correlates registered users with NFTs on the Rally ledger and refreshes
//     ownership on a cron schedule.
//   - Serves the HTTP API with /healthz, /readyz and /metrics.
//
// With --migrate=up|down|version it runs that schema action against DB_DSN
// and exits without serving.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/onnwee/jackbot/bridge"
	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/config"
	"github.com/onnwee/jackbot/db"
	"github.com/onnwee/jackbot/ownership"
	"github.com/onnwee/jackbot/rally"
	"github.com/onnwee/jackbot/server"
	"github.com/onnwee/jackbot/status"
	"github.com/onnwee/jackbot/telemetry"
	"github.com/onnwee/jackbot/twitchapi"
	"github.com/onnwee/jackbot/users"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	addr := pflag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	migrateAction := pflag.String("migrate", "", "run a schema action (up, down, version) against DB_DSN and exit")
	pflag.Parse()

	// Local dev convenience only; production relies on real env
	_ = godotenv.Load(*envFile)

	telemetry.ConfigureLogging(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	if *migrateAction != "" {
		if err := runMigrate(cfg, *migrateAction); err != nil {
			slog.Error("migrate failed", slog.String("action", *migrateAction), slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	telemetry.Init()

	// Optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	shutdown, err := telemetry.InitTracing("jackbot-api", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("jackbot exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg *config.Config) error {
	registry := status.NewRegistry(status.BotStatus{
		Channels:      cfg.TwitchChannels,
		Mode:          cfg.BotMode,
		ControlTarget: cfg.ControlTarget,
	})
	store := chat.NewStore()

	ctrl, err := bridge.New(registry, bridge.WithAddress(cfg.ControlAddress))
	if err != nil {
		return fmt.Errorf("control bridge: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			slog.Warn("failed to close control bridge", slog.Any("err", err))
		}
	}()

	repo, closeRepo, err := openUserRepository(cfg)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	defer closeRepo()

	if err := users.SeedAdmins(ctx, repo, cfg.TwitchAdmins); err != nil {
		slog.Warn("seeding admins failed", slog.Any("err", err), slog.String("component", "users"))
	}

	ledgerClient := rally.New(cfg.RallyAPIURL, cfg.RallyAPIToken, cfg.RallyTimeout)
	correlator := ownership.New(ledgerClient, repo, cfg.NFTTemplateIDs, ownership.WithTemplateTimeout(cfg.RallyTemplateTimeout))
	if len(cfg.NFTTemplateIDs) == 0 {
		slog.Warn("NFT_TEMPLATE_IDS empty; correlation only records wallets", slog.String("component", "ownership"))
	}

	stopRefresh, err := ownership.StartRefreshJob(ctx, cfg.OwnershipRefreshSchedule, correlator, repo)
	if err != nil {
		return fmt.Errorf("ownership refresh job: %w", err)
	}
	defer stopRefresh()

	deps := server.Deps{
		Config:     cfg,
		Registry:   registry,
		Store:      store,
		Bridge:     ctrl,
		Users:      repo,
		Correlator: correlator,
	}
	if cfg.HelixEnabled() {
		deps.Helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
	} else {
		slog.Info("twitch client credentials not set; user ids will not be resolved", slog.String("component", "user_auth"))
	}

	slog.Info("jackbot api starting",
		slog.Any("channels", cfg.TwitchChannels),
		slog.String("mode", cfg.BotMode),
		slog.String("control_target", cfg.ControlTarget),
		slog.String("user_store", cfg.UserStore))
	return server.Start(ctx, deps, cfg.HTTPAddr)
}

// openUserRepository builds the configured user store. The returned close
// function is always safe to call.
func openUserRepository(cfg *config.Config) (users.Repository, func(), error) {
	if cfg.UserStore != config.UserStorePostgres {
		repo, err := users.NewFileRepository(cfg.UserStorePath)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Info("using file user store", slog.String("path", cfg.UserStorePath), slog.String("component", "users"))
		return repo, func() {}, nil
	}

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		return nil, func() {}, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		closeDB()
		return nil, func() {}, fmt.Errorf("migrate: %w", err)
	}
	return users.NewPostgresRepository(database), closeDB, nil
}

func runMigrate(cfg *config.Config, action string) error {
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		return err
	}
	defer database.Close()
	return db.MigrateCommand(database, action, os.Stdout)
}
