package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Events   EventsConfig   `mapstructure:"events"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type WorkflowConfig struct {
	// PolicyFile is the TOML timing policy. Empty means built-in defaults.
	PolicyFile string `mapstructure:"policy_file"`
}

type MonitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	BatchSize int           `mapstructure:"batch_size"`
	Lock      string        `mapstructure:"lock"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type BlobConfig struct {
	Provider string      `mapstructure:"provider"`
	Minio    MinioConfig `mapstructure:"minio"`
	GCS      GCSConfig   `mapstructure:"gcs"`
}

type MinioConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	CreateBucket  bool   `mapstructure:"create_bucket"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

type CacheConfig struct {
	Driver string `mapstructure:"driver"`
	Prefix string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EventsConfig struct {
	Driver          string `mapstructure:"driver"`
	NATSURL         string `mapstructure:"nats_url"`
	Subject         string `mapstructure:"subject"`
	PubSubProject   string `mapstructure:"pubsub_project"`
	PubSubTopic     string `mapstructure:"pubsub_topic"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("blob_provider", cfg.Blob.Provider),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("events_driver", cfg.Events.Driver),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"database.driver", c.Database.Driver, []string{"sqlite", "sqlite3", "postgres", "mysql"}},
		{"blob.provider", c.Blob.Provider, []string{"none", "minio", "gcs"}},
		{"cache.driver", c.Cache.Driver, []string{"none", "sql", "redis"}},
		{"events.driver", c.Events.Driver, []string{"memory", "nats", "pubsub"}},
		{"monitor.lock", c.Monitor.Lock, []string{"none", "redis"}},
	}
	for _, check := range checks {
		if !oneOf(check.value, check.allowed) {
			return fmt.Errorf("%s must be one of %s, got %q", check.key, strings.Join(check.allowed, "|"), check.value)
		}
	}

	if needsRedis(c) && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr is required when cache.driver or monitor.lock is redis")
	}
	if strings.EqualFold(c.Blob.Provider, "minio") && (c.Blob.Minio.Endpoint == "" || c.Blob.Minio.Bucket == "") {
		return errors.New("blob.minio.endpoint and blob.minio.bucket are required")
	}
	if strings.EqualFold(c.Blob.Provider, "gcs") && c.Blob.GCS.Bucket == "" {
		return errors.New("blob.gcs.bucket is required")
	}
	if strings.EqualFold(c.Events.Driver, "nats") && c.Events.NATSURL == "" {
		return errors.New("events.nats_url is required")
	}
	if strings.EqualFold(c.Events.Driver, "pubsub") && (c.Events.PubSubProject == "" || c.Events.PubSubTopic == "") {
		return errors.New("events.pubsub_project and events.pubsub_topic are required")
	}
	return nil
}

func needsRedis(c Config) bool {
	return strings.EqualFold(c.Cache.Driver, "redis") || strings.EqualFold(c.Monitor.Lock, "redis")
}

func oneOf(value string, allowed []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "caseflow")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".caseflow/state/caseflow.sqlite")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("workflow.policy_file", "")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.schedule", "@every 60s")
	v.SetDefault("monitor.batch_size", 200)
	v.SetDefault("monitor.lock", "none")
	v.SetDefault("monitor.lock_ttl", "50s")
	v.SetDefault("blob.provider", "none")
	v.SetDefault("blob.minio.endpoint", "")
	v.SetDefault("blob.minio.access_key", "")
	v.SetDefault("blob.minio.secret_key", "")
	v.SetDefault("blob.minio.bucket", "")
	v.SetDefault("blob.minio.use_ssl", false)
	v.SetDefault("blob.minio.public_base_url", "")
	v.SetDefault("blob.minio.create_bucket", false)
	v.SetDefault("blob.gcs.bucket", "")
	v.SetDefault("blob.gcs.credentials_json", "")
	v.SetDefault("blob.gcs.public_base_url", "")
	v.SetDefault("cache.driver", "sql")
	v.SetDefault("cache.prefix", "caseflow:")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("events.driver", "memory")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", "caseflow.case.changed")
	v.SetDefault("events.pubsub_project", "")
	v.SetDefault("events.pubsub_topic", "")
	v.SetDefault("events.credentials_json", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
}
