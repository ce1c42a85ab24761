package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"routerd/internal/config"
	"routerd/internal/httpapi"
	"routerd/internal/llm"
	"routerd/internal/manager"
	"routerd/internal/registry"
	"routerd/internal/tokens"
	"routerd/internal/tracing"
	"routerd/internal/transport"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr, corsOrigins string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP router",
		Example: "  routerd serve --config routerd.yaml --addr :9090",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(func(c *config.Config) {
				if addr != "" {
					c.Addr = addr
				}
				if origins := splitCSV(corsOrigins); len(origins) > 0 {
					c.CORS.Enabled = true
					c.CORS.AllowedOrigins = origins
				}
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envStr("ROUTERD_ADDR", ""), "HTTP listen address, e.g. :8080 (overrides config)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	return cmd
}

// serve wires the stack and blocks until ctx is cancelled. Shutdown lets
// in-flight requests finish within the grace period, then closes the scheduler.
func serve(ctx context.Context, cfg config.Config) error {
	log := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	shutdownTrace, err := tracing.Init(ctx, "routerd", tracing.Options{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Headers:     cfg.Tracing.Headers,
		SampleRatio: cfg.Tracing.SampleRatio,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		return errors.Wrap(err, "init tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTrace(flushCtx); err != nil {
			log.Warn().Err(err).Msg("trace flush")
		}
	}()

	deps, err := registry.Flatten(cfg.Endpoints)
	if err != nil {
		return err
	}
	est := tokens.New(tokens.Options{
		Encoding:       cfg.Tokens.Encoding,
		OverheadFactor: cfg.Tokens.OverheadFactor,
		Logger:         log,
	})

	mcfg := manager.ManagerConfig{
		Deployments:    deps,
		Transport:      transport.New(transport.Options{}),
		MaxRetries:     cfg.Scheduler.MaxRetries,
		Windows:        cfg.Scheduler.Windows(),
		TickInterval:   time.Duration(cfg.Scheduler.TickIntervalMs) * time.Millisecond,
		DefaultTimeout: time.Duration(cfg.Scheduler.DefaultTimeoutMs) * time.Millisecond,
		Logger:         log.With().Str("component", "manager").Logger(),
	}
	var pub *manager.RedisPublisher
	if rc := cfg.Events.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unreachable; events will be dropped until it recovers")
		}
		cancel()
		pub = manager.NewRedisPublisher(client, rc.Channel, log)
		mcfg.Publisher = pub
	}
	mgr := manager.NewWithConfig(mcfg)
	svc := llm.New(mgr, est, llm.Options{DefaultMaxTokens: cfg.Tokens.DefaultMaxTokens, Logger: log})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(httpLogLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(time.Duration(cfg.RequestTimeoutMs) * time.Millisecond)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Int("deployments", len(deps)).Strs("models", mgr.ListModels()).Msg("routerd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Scheduler.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	// Requests still waiting after the grace period are aborted.
	cancelBase()
	closeCtx, cancelClose := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelClose()
	if err := mgr.Close(closeCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler close")
	}
	if pub != nil {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("event publisher close")
		}
	}
	return nil
}

// httpLogLevel maps the process level onto the per-request log levels.
func httpLogLevel(level string) string {
	switch level {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled":
		return "off"
	}
	return "info"
}
