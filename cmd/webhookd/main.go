package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	provisioning "github.com/goliatone/go-provisioning"
	amqpadapter "github.com/goliatone/go-provisioning/adapters/amqp"
	gocommandadapter "github.com/goliatone/go-provisioning/adapters/gocommand"
	promadapter "github.com/goliatone/go-provisioning/adapters/prometheus"
	sentryadapter "github.com/goliatone/go-provisioning/adapters/sentry"
	"github.com/goliatone/go-provisioning/core"
	"github.com/goliatone/go-provisioning/providers/highlevel"
	"github.com/goliatone/go-provisioning/security"
	sqlstore "github.com/goliatone/go-provisioning/store/sql"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		log.Println("error: ", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg := loadSettings()

	opts := []core.Option{
		core.WithConfigProvider(core.NewCfgxConfigProvider(core.NewStaticConfigLoader(rawServiceConfig()))),
		core.WithTokenExchanger(highlevel.NewExchanger(highlevel.Config{BaseURL: cfg.HighLevelBaseURL})),
		core.WithMetricsRecorder(promadapter.NewRecorder(prometheus.DefaultRegisterer)),
	}
	var sinks []core.LifecycleSink

	if cfg.SentryDSN != "" {
		if err := sentrygo.Init(sentrygo.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnv,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("webhookd: sentry init: %w", err)
		}
		defer sentrygo.Flush(2 * time.Second)
		opts = append(opts, core.WithFailureReporter(sentryadapter.NewReporter(nil)))
	}

	var factory *sqlstore.RepositoryFactory
	if cfg.DBDriver != "" {
		client, err := openPersistence(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		secret, err := security.NewAppKeySecretProviderFromString(cfg.AppKey)
		if err != nil {
			return fmt.Errorf("webhookd: PROVISIONING_APP_KEY: %w", err)
		}
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.SessionCacheTTL
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return fmt.Errorf("webhookd: session cache: %w", err)
		}
		factory, err = sqlstore.NewRepositoryFactoryFromPersistence(client, secret, sqlstore.WithSessionCache(cacheService))
		if err != nil {
			return err
		}
		opts = append(opts, core.WithPersistenceClient(client), core.WithRepositoryFactory(factory))
		sinks = append(sinks, factory.InstallationStore())
	}

	if cfg.AMQPURL != "" {
		var amqpOpts []amqpadapter.Option
		if cfg.AMQPExchange != "" {
			amqpOpts = append(amqpOpts, amqpadapter.WithExchange(cfg.AMQPExchange))
		}
		publisher, err := amqpadapter.Dial(cfg.AMQPURL, amqpOpts...)
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		sinks = append(sinks, publisher)
	}
	if len(sinks) > 0 {
		opts = append(opts, core.WithLifecycleSinks(sinks...))
	}

	svc, err := provisioning.NewService(provisioning.DefaultConfig(), opts...)
	if err != nil {
		return err
	}
	logger := svc.Logger("webhookd")

	facade, err := provisioning.NewFacade(svc)
	if err != nil {
		return err
	}
	subs, err := facade.Register(gocommandadapter.NewRegistryAdapter(nil))
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(facade, cfg.SentryDSN != ""),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("webhookd listening", "addr", cfg.Addr, "persistent", factory != nil)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-shutdown:
		logger.Info("webhookd shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("webhookd: graceful shutdown: %w", err)
		}
	}
	return nil
}
