// Command voxnote is the main entry point for the voxnote assistant bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"voxnote/internal/analyze"
	"voxnote/internal/auth"
	"voxnote/internal/bot"
	"voxnote/internal/calendar"
	"voxnote/internal/config"
	"voxnote/internal/health"
	"voxnote/internal/observe"
	"voxnote/internal/transcribe"
)

// version is the reported service version. Overridable at build time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Hidden subcommand: the subprocess transcription strategy re-executes
	// this binary as a one-shot worker.
	if len(os.Args) > 1 && os.Args[1] == transcribe.WorkerCommand {
		os.Exit(transcribe.RunWorker(os.Args[2:], os.Stdout, os.Stderr))
	}
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env convenience for local development; ignored when absent.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxnote: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxnote starting",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"analysis_provider", cfg.Providers.Analysis.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxnote",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		otelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(otelCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Domain services ───────────────────────────────────────────────────────
	store := auth.NewStore(cfg.Auth.UsersFile, cfg.Telegram.AdminUserID)
	issuer := auth.NewIssuer(store, cfg.Telegram.AdminUserID, cfg.Auth.InviteTTL())

	chain, err := transcribe.DefaultChain(
		cfg.Providers.Transcription.APIKey,
		cfg.Providers.Transcription.BaseURL,
		cfg.Providers.Transcription.Model,
	)
	if err != nil {
		slog.Error("failed to build transcription chain", "err", err)
		return 1
	}
	pipeline := transcribe.NewPipeline(chain,
		transcribe.WithTimeout(cfg.Pipeline.AttemptTimeout()),
		transcribe.WithMetrics(metrics),
	)

	analyzer, err := analyze.New(
		cfg.Providers.Analysis.Name,
		cfg.Providers.Analysis.APIKey,
		cfg.Providers.Analysis.BaseURL,
		cfg.Providers.Analysis.Model,
	)
	if err != nil {
		slog.Error("failed to build analyzer", "err", err)
		return 1
	}

	linker := calendar.NewLinker(cfg.Calendar.EventDurationMinutes)

	// ── Telegram transport ────────────────────────────────────────────────────
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		slog.Error("failed to connect to Telegram", "err", err)
		return 1
	}
	slog.Info("telegram connected", "username", api.Self.UserName)

	assistant, err := bot.New(api, bot.Deps{
		Store:       store,
		Issuer:      issuer,
		Transcriber: pipeline,
		Analyzer:    analyzer,
		Linker:      linker,
		AdminID:     cfg.Telegram.AdminUserID,
		Username:    api.Self.UserName,
	},
		bot.WithMaxConcurrent(int64(cfg.Pipeline.MaxConcurrent)),
		bot.WithMetrics(metrics),
		bot.WithProviderName(cfg.Providers.Analysis.Name),
	)
	if err != nil {
		slog.Error("failed to initialise bot", "err", err)
		return 1
	}

	// ── HTTP server: health, readiness, metrics, optional webhook ─────────────
	h := health.New("voxnote", version,
		health.Checker{Name: "telegram", Check: func(context.Context) error {
			_, err := api.GetMe()
			return err
		}},
	)
	router := h.Router(observe.Middleware(metrics))

	webhookMode := cfg.Telegram.WebhookURL != ""
	if webhookMode {
		webhookPath, err := registerWebhook(api, cfg.Telegram.WebhookURL)
		if err != nil {
			slog.Error("failed to register webhook", "err", err)
			return 1
		}
		router.Method(http.MethodPost, webhookPath, assistant.WebhookHandler(ctx))
		slog.Info("webhook registered", "url", cfg.Telegram.WebhookURL)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			stop()
		}
	}()

	slog.Info("voxnote ready, press Ctrl+C to shut down")

	// ── Main loop ─────────────────────────────────────────────────────────────
	if webhookMode {
		<-ctx.Done()
	} else {
		if err := assistant.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("bot run error", "err", err)
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// registerWebhook points Telegram at webhookURL and returns the local path
// the updates will arrive on.
func registerWebhook(api *tgbotapi.BotAPI, webhookURL string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil || u.Path == "" {
		return "", fmt.Errorf("webhook URL %q must be absolute with a path", webhookURL)
	}
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return "", err
	}
	if _, err := api.Request(wh); err != nil {
		return "", err
	}
	return u.Path, nil
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
