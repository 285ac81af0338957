package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/albal/rmtrack/config"
	"github.com/albal/rmtrack/internal/api/trackhttp"
	"github.com/albal/rmtrack/internal/cache"
	"github.com/albal/rmtrack/internal/cache/rediscache"
	"github.com/albal/rmtrack/internal/notify"
	"github.com/albal/rmtrack/internal/notify/kafkanotify"
	"github.com/albal/rmtrack/internal/provider"
	"github.com/albal/rmtrack/internal/provider/carrierhttp"
	"github.com/albal/rmtrack/internal/provider/mockprovider"
	"github.com/albal/rmtrack/internal/services/tracker"
	"github.com/albal/rmtrack/internal/storage/pgstore"
)

type appOpts struct {
	httpAddr    string
	swaggerPath string

	onListen func(httpAddr string)
}

type appFactories struct {
	newStorage  func(cfg *config.Config) (tracker.Store, func(), error)
	newCache    func(cfg *config.Config) cache.BytesCache
	newNotifier func(cfg *config.Config) notify.Notifier
	newProvider func(cfg *config.Config) provider.Client
}

func defaultFactories() appFactories {
	return appFactories{
		newStorage: func(cfg *config.Config) (tracker.Store, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := openPostgresWithRetry(connString, 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			if cfg.Redis.Host == "" {
				return nil
			}
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newNotifier: func(cfg *config.Config) notify.Notifier {
			topic := cfg.Kafka.StatusChangedTopicName
			if cfg.Kafka.Host == "" || topic == "" {
				// Канала уведомлений нет — это не ошибка, просто no-op.
				return notify.Noop{}
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafkanotify.New(brokers, topic)
		},
		newProvider: func(cfg *config.Config) provider.Client {
			if cfg.RMTrack.ProviderMode == "http" && cfg.RMTrack.CarrierBaseURL != "" {
				return carrierhttp.New(cfg.RMTrack.CarrierBaseURL, cfg.RMTrack.CarrierAPIKey)
			}
			step := time.Duration(cfg.RMTrack.ProviderStepSeconds) * time.Second
			if step <= 0 {
				step = time.Minute
			}
			return mockprovider.New(step)
		},
	}
}

func runApp(ctx context.Context, cfg *config.Config, opts appOpts, f appFactories) error {
	interval := time.Duration(cfg.RMTrack.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	cacheTTL := time.Duration(cfg.RMTrack.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	store, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	svc := tracker.New(store, f.newProvider(cfg), f.newNotifier(cfg), f.newCache(cfg), cacheTTL)
	engine := tracker.NewEngine(svc, interval)

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	engineErr := make(chan error, 1)
	go func() { engineErr <- engine.Run(ctx) }()

	srv := &http.Server{Handler: trackhttp.New(engine, opts.swaggerPath).Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())

	httpErr := make(chan error, 1)
	go func() { httpErr <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		<-engineErr
		return ctx.Err()
	case err := <-engineErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func openPostgresWithRetry(connString string, wait time.Duration) (*pgstore.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %v", wait, lastErr)
}
