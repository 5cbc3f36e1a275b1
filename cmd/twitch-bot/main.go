// Command twitch-bot connects to Twitch chat, forwards messages to the jackbot
// API and keeps its joined channels in line with the API's bot status.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/onnwee/jackbot/apiclient"
	"github.com/onnwee/jackbot/bot"
	"github.com/onnwee/jackbot/config"
	"github.com/onnwee/jackbot/telemetry"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	apiURL := pflag.String("api-url", "", "jackbot API base URL (overrides API_URL)")
	pflag.Parse()

	_ = godotenv.Load(*envFile)
	telemetry.ConfigureLogging(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot not configured", slog.Any("err", err))
		os.Exit(1)
	}
	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := apiclient.New(cfg.APIURL, cfg.ReconcileFetchTimeout)
	if err := api.Ping(ctx); err != nil {
		// The agent retries on every tick.
		slog.Warn("jackbot api not reachable yet", slog.String("url", cfg.APIURL), slog.Any("err", err))
	} else {
		slog.Info("using jackbot api", slog.String("url", cfg.APIURL))
	}

	b := bot.New(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, api)
	agent := bot.NewAgent(api, b.Client(),
		bot.WithInterval(cfg.ReconcileInterval),
		bot.WithFetchTimeout(cfg.ReconcileFetchTimeout),
		bot.WithPartRemoved(cfg.ReconcilePartRemoved),
		bot.WithJoined(cfg.TwitchChannels...),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.Run(ctx)
	}()

	if err := b.Run(ctx, cfg.TwitchChannels); err != nil {
		slog.Error("twitch chat connection failed", slog.Any("err", err))
		stop()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	slog.Info("shutting down")
}
