package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	amqpbroker "geyserRelay/internal/broker/amqp"
	"geyserRelay/internal/config"
	"geyserRelay/internal/fanout"
	"geyserRelay/internal/filter"
	"geyserRelay/internal/host"
	"geyserRelay/internal/relay"
	"geyserRelay/internal/storage"
	"geyserRelay/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Blockchain event fan-out and broker relay",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay pipeline",
		RunE:  runRelay,
	}

	runCmd.Flags().String("amqp-url", "", "broker URI (env RELAY_AMQP_URL overrides)")
	runCmd.Flags().StringSlice("program", nil, "allow-listed program addresses (comma-separated)")
	runCmd.Flags().Bool("publish-slot-status", false, "publish slot status events to the broker")
	runCmd.Flags().Bool("allow-accounts", true, "forward account update notifications")
	runCmd.Flags().Bool("allow-accounts-at-startup", false, "forward account updates replayed at startup")
	runCmd.Flags().Duration("reconnect-delay", 5*time.Second, "delay between broker reconnect attempts")
	runCmd.Flags().Duration("confirm-timeout", 0, "publish confirmation timeout, 0 waits indefinitely")
	runCmd.Flags().String("archive", "", "optional JSONL archive path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the event sink")
	runCmd.Flags().String("metrics-addr", "", "optional Prometheus listen address")
	runCmd.Flags().String("in", "-", "event stream JSONL path, - for stdin")
	runCmd.Flags().Int("batch-size", 64, "sink write batch size")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.AMQPURL == "" {
		return fmt.Errorf("amqp url is required")
	}
	if cfg.In == "" {
		return fmt.Errorf("input stream is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := fanout.NewDispatcher(logger)

	// The broker output always carries the broker delivery policy; the
	// address predicate only applies when an allow-list is configured.
	var match fanout.Predicate
	if len(cfg.Programs) > 0 {
		subFilter, err := filter.New(cfg.Programs)
		if err != nil {
			return err
		}
		match = subFilter.Matches
	}
	mqChannel := fanout.NewChannel()
	dispatcher.Register("broker", mqChannel, fanout.WithFilter(match))

	routerOpts := []relay.RouterOption{}
	if cfg.PublishSlotStatus {
		routerOpts = append(routerOpts, relay.WithSlotStatusTopic())
	}
	router := relay.NewTopicRouter(routerOpts...)

	metrics := relay.NewMetrics(prometheus.DefaultRegisterer)
	loop := relay.NewLoop(relay.LoopConfig{
		URL:            cfg.AMQPURL,
		ReconnectDelay: cfg.ReconnectDelay,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}, amqpbroker.Dialer{}, mqChannel, router, logger, relay.WithMetrics(metrics))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(context.Background()); err != nil {
			logger.Error("publisher loop exited", zap.Error(err))
		}
	}()

	if cfg.ArchivePath != "" {
		archiveChannel := fanout.NewChannel()
		dispatcher.Register("archive", archiveChannel)
		sink := storage.NewSink("archive", archiveChannel, storage.NewJsonlArchive(cfg.ArchivePath), cfg.BatchSize, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Run(context.Background()); err != nil {
				logger.Error("archive sink exited", zap.Error(err))
			}
		}()
	}

	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		pgChannel := fanout.NewChannel()
		dispatcher.Register("postgres", pgChannel)
		sink := storage.NewSink("postgres", pgChannel, store, cfg.BatchSize, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Run(context.Background()); err != nil {
				logger.Error("postgres sink exited", zap.Error(err))
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	relayHost := host.NewRelay(host.Config{
		AllowAccounts:          cfg.AllowAccounts,
		AllowAccountsAtStartup: cfg.AllowAccountsAtStartup,
	}, dispatcher, logger)

	logger.Info("relay start",
		zap.String("amqp_url", cfg.AMQPURL),
		zap.Int("programs", len(cfg.Programs)),
		zap.Bool("publish_slot_status", cfg.PublishSlotStatus),
		zap.Duration("reconnect_delay", cfg.ReconnectDelay),
		zap.String("archive", cfg.ArchivePath),
		zap.String("in", cfg.In),
	)

	feedErr := feedEvents(ctx, cfg.In, relayHost, logger)

	// Producer side done: drop the sending handles so every consumer
	// drains its queue and terminates.
	dispatcher.Close()
	wg.Wait()

	return feedErr
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
