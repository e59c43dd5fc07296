package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/slicks/internal/control"
	"github.com/vietddude/slicks/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "slicks",
	Short: "Adaptive chunked queries against a remote time-series store",
	Long: `slicks discovers sensor names and scans data availability windows in an
InfluxDB 3 table, splitting queries that the server cannot answer in one go.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// session is the per-command runtime: config, logging, app and a context
// cancelled on SIGINT/SIGTERM.
type session struct {
	cfg  *config.AppConfig
	app  *control.App
	ctx  context.Context
	stop context.CancelFunc
}

// newSession loads config, applies flag overrides and starts the app.
func newSession(overrides ...func(*config.AppConfig)) *session {
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	for _, o := range overrides {
		o(cfg)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	app, err := control.New(ctx, cfg)
	if err != nil {
		stop()
		slog.Error("Failed to initialize slicks", "error", err)
		os.Exit(1)
	}
	if err := app.Start(ctx); err != nil {
		stop()
		slog.Error("Failed to start slicks", "error", err)
		os.Exit(1)
	}

	return &session{cfg: cfg, app: app, ctx: ctx, stop: stop}
}

// close stops the app; it must run before any os.Exit.
func (s *session) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	s.stop()
}

// fail logs err, shuts the session down and exits 1.
func (s *session) fail(msg string, err error) {
	slog.Error(msg, "error", err)
	s.close()
	os.Exit(1)
}
