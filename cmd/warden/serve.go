package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lborres/warden"
	fiberadapter "github.com/lborres/warden/adapters/fiber"
	"github.com/lborres/warden/internal/config"
	"github.com/lborres/warden/internal/logging"
	"github.com/lborres/warden/pkg/crypto"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON API. Configuration is read from the environment
(JWT_SECRET, DATABASE_URL, PORT, ...); flags override it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Int("port", 0, "listen port (overrides PORT)")
	cmd.Flags().String("store", "", "storage backend: postgres or memory (overrides STORE)")
	cmd.Flags().String("log-format", "", "log format: json or text (overrides LOG_FORMAT)")

	return cmd
}

// loadServeConfig reads the environment, applies changed flags and validates
// the result.
func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func accessLogFormat() string {
	format := []string{
		"${time}|${requestid}",
		"${status}|${latency}",
		"${ip}",
		"${method}|${path}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

// newApp builds the fiber app with the server-wide middleware stack.
func newApp(cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{AppName: serviceName})

	corsConfig := cors.Config{AllowOrigins: cfg.CORSOrigins}
	if !slices.Contains(cfg.CORSOrigins, "*") {
		corsConfig.AllowCredentials = true
	}

	app.Use(recoverer.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(corsConfig))
	app.Use(logger.New(logger.Config{
		Format:     accessLogFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		TimeZone:   "Local",
	}))

	return app
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := logging.SetDefault(serviceName, version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer closeStorage()

	sessionCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open session cache").Wrap(err)
	}
	defer closeCache()

	app := newApp(cfg)

	m, err := newMetrics(cfg, sessionCache)
	if err != nil {
		return err
	}

	opts := []fiberadapter.Option{
		fiberadapter.WithLogger(log),
		fiberadapter.WithServiceName(serviceName),
	}
	if m != nil {
		opts = append(opts, fiberadapter.WithMetrics(m))
	}

	_, err = warden.New(warden.Config{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.JWTExpiration,
		Database:       storage,
		HTTP:           fiberadapter.New(app, opts...),
		CacheAdapter:   sessionCache,
		DisableCache:   sessionCache == nil,
		PasswordHasher: crypto.NewBcrypt(cfg.BcryptCost),
		Logger:         log,
	})
	if err != nil {
		return oops.Code("SERVER_INIT_FAILED").Wrap(err)
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + strconv.Itoa(cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	log.Info("warden started", "addr", addr, "store", cfg.Store, "metrics", cfg.MetricsEnabled, "session_cache", sessionCache != nil)

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_LISTEN_FAILED").With("addr", addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		return oops.Code("SERVER_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
