package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/authz/allowall"
	"catalog.icecat.io/internal/authz/opa"
	"catalog.icecat.io/internal/bootstrap"
	"catalog.icecat.io/internal/cache"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/catalogstore/history"
	"catalog.icecat.io/internal/catalogstore/postgres"
	"catalog.icecat.io/internal/catalogstore/postgres/migrations"
	"catalog.icecat.io/internal/config"
	"catalog.icecat.io/internal/health"
	"catalog.icecat.io/internal/hooks"
	"catalog.icecat.io/internal/hooks/cloudevents"
	"catalog.icecat.io/internal/iceberg"
	"catalog.icecat.io/internal/logging"
	"catalog.icecat.io/internal/observability/metrics"
	"catalog.icecat.io/internal/observability/tracing"
	"catalog.icecat.io/internal/secretstore"
	"catalog.icecat.io/internal/secretstore/infisical"
	secretstorepostgres "catalog.icecat.io/internal/secretstore/postgres"
	"catalog.icecat.io/internal/storageprofile"
	"catalog.icecat.io/internal/storageprofile/hdfs"
	"catalog.icecat.io/internal/storageprofile/s3"
	"catalog.icecat.io/internal/taskqueue"
	"catalog.icecat.io/internal/taskqueue/queues"
	"catalog.icecat.io/internal/transport/echoutil"
)

var log = logging.For("cmd/catalogd")

// runServer is catalogd's cobra entrypoint: load configuration, construct
// every backend service in dependency order, start their background
// loops, and block until a shutdown signal arrives. The shape follows
// config, services, background start, signal wait, ordered teardown,
// generalized to this service's full dependency graph.
func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx := context.Background()

	store, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("connecting to postgres: %v", err)
	}
	defer store.Close()

	if err := migrations.ApplyPending(ctx, store.Pool()); err != nil {
		log.Fatalf("applying migrations: %v", err)
	}

	historyStore, err := history.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("opening commit history store: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("parsing redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("pinging redis: %v", err)
		}
		defer redisClient.Close()
	}

	secretRepo := postgres.NewSecretRepo()
	secrets, closeSecrets, err := buildSecretStore(cfg.Secrets, store, secretRepo)
	if err != nil {
		log.Fatalf("constructing secret store: %v", err)
	}
	defer closeSecrets()

	servers := postgres.NewServerRepo()
	warehouses := postgres.NewWarehouseRepo()
	namespaces := postgres.NewNamespaceRepo()
	tabulars := postgres.NewTabularRepo()
	tasks := postgres.NewTaskRepo()
	taskLogs := postgres.NewTaskLogRepo()
	queueConfigs := postgres.NewQueueConfigRepo()
	statistics := postgres.NewStatisticsRepo()
	endpointStatistics := postgres.NewEndpointStatisticsRepo()
	metricReports := postgres.NewMetricReportRepo()

	if status, err := bootstrap.Status(ctx, store, servers); err != nil {
		log.Warnf("reading bootstrap status: %v", err)
	} else if status == nil {
		log.Info("server not yet bootstrapped; waiting for the management API bootstrap call")
	}

	vendors, err := buildVendors(ctx, cfg.Storage, secrets)
	if err != nil {
		log.Fatalf("constructing storage vendors: %v", err)
	}
	metadataIO, err := buildMetadataIO(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("constructing metadata io: %v", err)
	}

	var stcCache *cache.STCCache
	if redisClient != nil {
		stcCache = cache.New(redisClient)
	}

	var publisher *cloudevents.Publisher
	if cfg.Hooks.CloudEventsTarget != "" {
		publisher, err = cloudevents.NewPublisher(cfg.Hooks.CloudEventsTarget, cfg.Hooks.CloudEventsSource, cfg.Hooks.CloudEventsBufferSize)
		if err != nil {
			log.Fatalf("constructing cloudevents publisher: %v", err)
		}
		defer publisher.Close()
	}
	endpointHooks := hooks.NewEndpointHooks(nil, publisher)

	authorizer, err := buildAuthorizer(ctx, cfg.Authz)
	if err != nil {
		log.Fatalf("constructing authorizer: %v", err)
	}

	// engine and authorizer are the two handles an HTTP router mounts
	// catalog/management routes against; wiring that route tree itself is
	// out of scope here, so both are held open only for the process's
	// background services below to keep running against.
	engine := iceberg.New(iceberg.Config{
		Transactor: store,
		Warehouses: warehouses,
		Namespaces: namespaces,
		Tabulars:   tabulars,
		Tasks:      tasks,
		History:    historyStore,
		MetadataIO: metadataIO,
		Vendors:    vendors,
		STCCache:   stcCache,
		Hooks:      endpointHooks,
	})
	_, _ = engine, authorizer

	tracingProvider := tracing.Init(tracing.Config{
		ServiceName:    "catalogd",
		Enabled:        cfg.Tracing.Enabled,
		JaegerEndpoint: cfg.Tracing.JaegerURL,
		SamplingRatio:  cfg.Tracing.SamplerRatio,
	})
	defer tracingProvider.Shutdown(context.Background())

	otelSink, err := metrics.NewOTelSink()
	if err != nil {
		log.Warnf("constructing otel metrics sink, falling back to postgres only: %v", err)
	}
	statsTracker := metrics.NewTracker(statisticsSink{
		postgres: &metrics.PostgresSink{Transactor: store, Repo: endpointStatistics},
		otel:     otelSink,
	}, 10*time.Second, 4096)
	defer statsTracker.Stop()

	healthChecks := []health.Check{
		{Name: "postgres", Check: func(ctx context.Context) error { return store.Pool().Ping(ctx) }},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, health.Check{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	prober := health.NewProber(cfg.Health.CheckInterval, healthChecks...)
	defer prober.Stop()

	registry := taskqueue.NewRegistry()
	registry.Register(&queues.ExpirationHandler{Transactor: store, Tabulars: tabulars, Tasks: tasks})
	registry.Register(&queues.StatisticsHandler{Transactor: store, Statistics: statistics})
	registry.Register(&queues.MetricsIngestionHandler{Transactor: store, MetricReports: metricReports})
	registry.Register(&queues.TaskLogCleanupHandler{Transactor: store, TaskLogs: taskLogs, Tasks: tasks})
	registry.Register(&queues.PurgeHandler{Purgers: buildPurgers(ctx, cfg.Storage)})

	resolver := taskqueue.NewCatalogResolver(store, queueConfigs)
	pool := taskqueue.NewPool(store, tasks, taskLogs, registry, resolver)
	pool.Start()
	defer pool.Stop()

	e := echoutil.New(echoutil.Config{
		BodyLimit:      "10M",
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	}

	go func() {
		log.Infof("catalogd listening on %s", httpServer.Addr)
		if err := e.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
}

// statisticsSink fans one flush out to both the durable Postgres sink and
// the optional OTel sink, so an operator gets dashboards without losing
// the queryable endpoint_statistics table.
type statisticsSink struct {
	postgres *metrics.PostgresSink
	otel     *metrics.OTelSink
}

func (s statisticsSink) Flush(ctx context.Context, counts map[metrics.Stat]int64) error {
	if err := s.postgres.Flush(ctx, counts); err != nil {
		return err
	}
	if s.otel != nil {
		return s.otel.Flush(ctx, counts)
	}
	return nil
}

func buildSecretStore(cfg config.SecretsConfig, txr catalogstore.Transactor, repo catalogstore.SecretRepo) (secretstore.Store, func(), error) {
	switch cfg.Backend {
	case config.SecretBackendInfisical:
		store, err := infisical.New(infisical.Config{
			SiteURL:         cfg.InfisicalSiteURL,
			ClientID:        cfg.InfisicalClientID,
			ClientSecret:    cfg.InfisicalClientSecret,
			ProjectID:       cfg.InfisicalProjectID,
			Environment:     cfg.InfisicalEnvironment,
			SecretPath:      cfg.InfisicalSecretPath,
			RefreshInterval: cfg.InfisicalRefreshPeriod,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return store, store.Stop, nil
	default:
		store, err := secretstorepostgres.New(txr, repo, cfg.Pepper)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() {}, nil
	}
}

// buildVendors constructs the storage-profile credential vendors this
// deployment can serve. GCS and ADLS need live OAuth2/client-secret
// material this flat config surface doesn't model yet (see
// internal/config.StorageConfig's doc comment and DESIGN.md); only S3 and
// HDFS are wired here.
func buildVendors(ctx context.Context, cfg config.StorageConfig, secrets secretstore.Store) (map[storageprofile.Kind]storageprofile.Vendor, error) {
	vendors := map[storageprofile.Kind]storageprofile.Vendor{
		storageprofile.KindHDFS: hdfs.New(),
	}

	creds := s3.StaticCredentials{}
	if cfg.S3DefaultSecretID != "" {
		value, err := secrets.GetByID(ctx, cfg.S3DefaultSecretID)
		if err != nil {
			return nil, fmt.Errorf("cmd/catalogd: loading default s3 secret: %w", err)
		}
		parts := splitOnce(string(value), ':')
		creds = s3.StaticCredentials{AccessKeyID: parts[0], SecretAccessKey: parts[1]}
	}
	vendors[storageprofile.KindS3] = s3.New(creds)

	return vendors, nil
}

func buildMetadataIO(ctx context.Context, cfg config.StorageConfig) (map[storageprofile.Kind]iceberg.MetadataIO, error) {
	s3io, err := iceberg.NewS3MetadataIO(ctx, cfg.S3Endpoint, cfg.S3PathStyle)
	if err != nil {
		return nil, err
	}
	return map[storageprofile.Kind]iceberg.MetadataIO{
		storageprofile.KindS3:   s3io,
		storageprofile.KindHDFS: iceberg.NewLocalMetadataIO(),
	}, nil
}

func buildPurgers(ctx context.Context, cfg config.StorageConfig) map[string]queues.ObjectPurger {
	purgers := map[string]queues.ObjectPurger{
		"file": queues.LocalPurger{},
		"hdfs": queues.LocalPurger{},
	}
	if s3Purger, err := queues.NewS3Purger(ctx, cfg.S3Endpoint, cfg.S3PathStyle); err == nil {
		purgers["s3"] = s3Purger
	} else {
		log.Warnf("constructing s3 purger: %v", err)
	}
	return purgers
}

func buildAuthorizer(ctx context.Context, cfg config.AuthzConfig) (authz.Authorizer, error) {
	switch cfg.Backend {
	case config.AuthzBackendOPA:
		return opa.New(ctx, func(ctx context.Context, meta authz.Metadata) ([]opa.Assignment, error) {
			return nil, nil
		})
	default:
		return allowall.New(), nil
	}
}

func splitOnce(s string, sep byte) [2]string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return [2]string{s[:i], s[i+1:]}
		}
	}
	return [2]string{s, ""}
}
