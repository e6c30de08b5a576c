package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"caseflow/internal/bootstrap/config"
	"caseflow/internal/bootstrap/database"
	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/blob"
	cacheinfra "caseflow/internal/infrastructure/cache"
	"caseflow/internal/infrastructure/events"
	"caseflow/internal/infrastructure/lock"
	gormrepo "caseflow/internal/infrastructure/persistence/gormstore/repository"
	gormuow "caseflow/internal/infrastructure/persistence/gormstore/uow"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewCaseRepository,
			fx.As(new(ports.CaseRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormrepo.NewSubmissionRepository,
			fx.As(new(ports.SubmissionRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			gormuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideRedis),
	fx.Provide(provideCache),
	fx.Provide(provideBlobStore),
	fx.Provide(events.NewBroker),
	fx.Provide(providePublisher),
	fx.Provide(provideMonitorLock),
	fx.Provide(providePolicyWatcher),
	fx.Provide(providePolicySource),
	fx.Provide(provideCaseService),
	fx.Provide(provideDeadlineMonitor),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	cfg, err := config.Load(ctx, p.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := configureLogger(cfg.Log); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func configureLogger(cfg config.LogConfig) error {
	logger, err := logging.New(os.Stderr, cfg.Format, cfg.Level)
	if err != nil {
		return errs.Wrap(err, "configure logger")
	}
	logging.SetDefault(logger)
	return nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// provideRedis returns nil when neither the cache nor the monitor lock uses redis.
func provideRedis(lc fx.Lifecycle, cfg config.Config) redis.UniversalClient {
	if !strings.EqualFold(cfg.Cache.Driver, "redis") && !strings.EqualFold(cfg.Monitor.Lock, "redis") {
		return nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return errs.Wrapf(err, "ping redis %s", cfg.Redis.Addr)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func provideCache(cfg config.Config, db *gorm.DB, client redis.UniversalClient) ports.Cache {
	switch strings.ToLower(cfg.Cache.Driver) {
	case "redis":
		return cacheinfra.NewRedisCache(client, cfg.Cache.Prefix)
	case "sql":
		return cacheinfra.NewSQLCache(db)
	default:
		return nil
	}
}

func provideBlobStore(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.BlobStore, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(cfg.Blob.Provider) {
	case "minio":
		store, err := blob.NewMinioStore(logCtx, blob.MinioOptions{
			Endpoint:      cfg.Blob.Minio.Endpoint,
			AccessKey:     cfg.Blob.Minio.AccessKey,
			SecretKey:     cfg.Blob.Minio.SecretKey,
			Bucket:        cfg.Blob.Minio.Bucket,
			UseSSL:        cfg.Blob.Minio.UseSSL,
			PublicBaseURL: cfg.Blob.Minio.PublicBaseURL,
			CreateBucket:  cfg.Blob.Minio.CreateBucket,
		})
		if err != nil {
			return nil, errs.Wrap(err, "open minio blob store")
		}
		return store, nil
	case "gcs":
		store, err := blob.NewGCSStore(logCtx, blob.GCSOptions{
			Bucket:          cfg.Blob.GCS.Bucket,
			CredentialsJSON: cfg.Blob.GCS.CredentialsJSON,
			PublicBaseURL:   cfg.Blob.GCS.PublicBaseURL,
		})
		if err != nil {
			return nil, errs.Wrap(err, "open gcs blob store")
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
		return store, nil
	default:
		logging.Warn(logCtx, "no blob store configured, file uploads will be reported as failed")
		return nil, nil
	}
}

// providePublisher always feeds the in-process broker and adds the configured
// external transport next to it.
func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config, broker *events.Broker) (ports.Publisher, error) {
	switch strings.ToLower(cfg.Events.Driver) {
	case "nats":
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return nil, errs.Wrap(err, "connect nats")
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return pub.Close() }})
		return events.Multi{broker, pub}, nil
	case "pubsub":
		pub, err := events.NewPubSubPublisher(ctx, events.PubSubOptions{
			ProjectID:       cfg.Events.PubSubProject,
			Topic:           cfg.Events.PubSubTopic,
			CredentialsJSON: cfg.Events.CredentialsJSON,
		})
		if err != nil {
			return nil, errs.Wrap(err, "open pubsub publisher")
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return pub.Close() }})
		return events.Multi{broker, pub}, nil
	default:
		return broker, nil
	}
}

func provideMonitorLock(cfg config.Config, client redis.UniversalClient) ports.MonitorLock {
	if strings.EqualFold(cfg.Monitor.Lock, "redis") {
		return lock.NewRedisLock(client)
	}
	return lock.Local{}
}

// providePolicyWatcher returns nil when no policy file is configured.
func providePolicyWatcher(cfg config.Config) (*caseusecase.PolicyWatcher, error) {
	path := strings.TrimSpace(cfg.Workflow.PolicyFile)
	if path == "" {
		return nil, nil
	}
	watcher, err := caseusecase.NewPolicyWatcher(path)
	if err != nil {
		return nil, errs.Wrap(err, "load policy file")
	}
	return watcher, nil
}

func providePolicySource(watcher *caseusecase.PolicyWatcher) ports.PolicySource {
	if watcher == nil {
		return ports.StaticPolicy(casework.DefaultPolicy())
	}
	return watcher
}

type caseServiceParams struct {
	fx.In

	Repo      ports.CaseRepository
	Subs      ports.SubmissionRepository
	UoW       ports.UnitOfWork
	Cache     ports.Cache
	Blob      ports.BlobStore
	Publisher ports.Publisher
	Policy    ports.PolicySource
}

func provideCaseService(p caseServiceParams) *caseusecase.Service {
	return caseusecase.NewService(
		p.Repo,
		p.Subs,
		p.UoW,
		p.Cache,
		caseusecase.WithBlobStore(p.Blob),
		caseusecase.WithPublisher(p.Publisher),
		caseusecase.WithPolicy(p.Policy),
		caseusecase.WithObjectKey(blob.ObjectKey),
	)
}

func provideDeadlineMonitor(cfg config.Config, svc *caseusecase.Service, monitorLock ports.MonitorLock, watcher *caseusecase.PolicyWatcher) (*caseusecase.DeadlineMonitor, error) {
	schedule, err := caseusecase.ParseSchedule(cfg.Monitor.Schedule)
	if err != nil {
		return nil, errs.Wrap(err, "parse monitor schedule")
	}
	if watcher != nil && watcher.MonitorInterval() > 0 {
		schedule = caseusecase.EverySchedule(watcher.MonitorInterval())
	}
	return caseusecase.NewDeadlineMonitor(svc, caseusecase.MonitorConfig{
		Schedule:  schedule,
		BatchSize: cfg.Monitor.BatchSize,
		Lock:      monitorLock,
		LockTTL:   cfg.Monitor.LockTTL,
	}), nil
}
