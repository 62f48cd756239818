// Package config materializes the catalog's runtime configuration from
// flags, environment variables (ICECAT_ prefix), and an optional config
// file, following the precedence cobra+viper establish: flags > env >
// file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully materialized, typed configuration for one catalogd
// process. It is built once at startup by Load and passed by value to every
// component that needs it; nothing in this service re-reads viper after
// bootstrap.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Authz     AuthzConfig
	Secrets   SecretsConfig
	Storage   StorageConfig
	Hooks     HooksConfig
	TaskQueue TaskQueueConfig
	Health    HealthConfig
	Tracing   TracingConfig
	Bootstrap BootstrapConfig
}

// ServerConfig covers base_uri, prefix_template, and reserved_namespaces
// environment options plus the CORS/HTTP surface.
type ServerConfig struct {
	Port             int
	Host             string
	BaseURI          string
	PrefixTemplate   string
	ReservedNamespaces []string
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
	LogLevel         string
	LogFormat        string
	MetricsPort      int
}

// DatabaseConfig configures the pgxpool-backed catalog store.
type DatabaseConfig struct {
	URL             string
	MaxConnections  int32
	MinConnections  int32
	ConnMaxLifetime time.Duration
}

// CacheConfig configures the go-redis-backed STC cache and warehouse cache.
type CacheConfig struct {
	RedisURL  string
	StcTTL    time.Duration
	StcMaxTTL time.Duration
}

// AuthConfig selects and configures the authentication verifiers.
type AuthConfig struct {
	OIDCIssuer   string
	OIDCAudience string
	K8sEnabled   bool
	JWKSCacheTTL time.Duration
}

// AuthzBackend selects the authorization engine: a concrete Authorizer
// choice (OPA vs. AllowAll) selected at startup from configuration.
type AuthzBackend string

const (
	AuthzBackendAllowAll AuthzBackend = "allowall"
	AuthzBackendOPA      AuthzBackend = "opa"
)

// AuthzConfig selects the authorization backend and, for opa, an optional
// operator-authored policy file overriding the embedded default.
type AuthzConfig struct {
	Backend    AuthzBackend
	PolicyPath string
}

// StorageConfig configures the storage-profile credential vendors this
// process constructs at startup. Only S3 and HDFS are wired here: GCS
// (oauth2.TokenSource) and ADLS (a live client secret) need operator
// material this flat env-var surface doesn't model yet, so those vendor
// packages stay unconstructed in cmd/catalogd until a deployment needs
// them (see DESIGN.md).
type StorageConfig struct {
	S3Endpoint        string
	S3PathStyle       bool
	S3DefaultSecretID string
}

// HooksConfig configures the endpoint-hook fan-out and CloudEvents sink.
type HooksConfig struct {
	CloudEventsTarget     string
	CloudEventsSource     string
	CloudEventsBufferSize int
}

// SecretBackend enumerates the pluggable secret store backends: a
// Postgres-backed store or an external KV2-style vault.
type SecretBackend string

const (
	SecretBackendPostgres  SecretBackend = "postgres"
	SecretBackendInfisical SecretBackend = "kv2"
)

// SecretsConfig selects the secret-store backend and its connection info.
// Pepper is only meaningful for SecretBackendPostgres; the Infisical*
// fields only for SecretBackendInfisical.
type SecretsConfig struct {
	Backend                SecretBackend
	Pepper                 string
	InfisicalSiteURL       string
	InfisicalClientID      string
	InfisicalClientSecret  string
	InfisicalProjectID     string
	InfisicalEnvironment   string
	InfisicalSecretPath    string
	InfisicalRefreshPeriod time.Duration
}

// TaskQueueConfig sets the global fallback task-queue parameters; per-
// warehouse QueueConfig rows override these at pick time.
type TaskQueueConfig struct {
	PollInterval           time.Duration
	DefaultHeartbeatTimeout time.Duration
	Workers                map[string]int
}

// HealthConfig configures the periodic backend health prober.
type HealthConfig struct {
	CheckInterval time.Duration
}

// TracingConfig configures the OTel tracer/exporter.
type TracingConfig struct {
	Enabled      bool
	JaegerURL    string
	SamplerRatio float64
}

// BootstrapConfig carries the operator-supplied bootstrap parameters used
// by internal/bootstrap on first startup.
type BootstrapConfig struct {
	ServerID      string
	AcceptedTerms bool
	IsOperator    bool
}

const envPrefix = "ICECAT"

// Load materializes Config from an already-populated viper instance. Callers
// (cmd/catalogd) are responsible for binding flags and calling
// viper.AutomaticEnv with SetEnvPrefix(envPrefix) before calling Load.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	cfg := Config{
		Server: ServerConfig{
			Port:               v.GetInt("server.port"),
			Host:               v.GetString("server.host"),
			BaseURI:            v.GetString("server.base_uri"),
			PrefixTemplate:     v.GetString("server.prefix_template"),
			ReservedNamespaces: v.GetStringSlice("server.reserved_namespaces"),
			AllowedOrigins:     v.GetStringSlice("server.allowed_origins"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			ShutdownTimeout:    v.GetDuration("server.shutdown_timeout"),
			LogLevel:           v.GetString("server.log_level"),
			LogFormat:          v.GetString("server.log_format"),
			MetricsPort:        v.GetInt("server.metrics_port"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxConnections:  int32(v.GetInt("database.max_connections")),
			MinConnections:  int32(v.GetInt("database.min_connections")),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Cache: CacheConfig{
			RedisURL:  v.GetString("cache.redis_url"),
			StcTTL:    v.GetDuration("cache.stc_ttl"),
			StcMaxTTL: v.GetDuration("cache.stc_max_ttl"),
		},
		Auth: AuthConfig{
			OIDCIssuer:   v.GetString("auth.oidc_issuer"),
			OIDCAudience: v.GetString("auth.oidc_audience"),
			K8sEnabled:   v.GetBool("auth.k8s_enabled"),
			JWKSCacheTTL: v.GetDuration("auth.jwks_cache_ttl"),
		},
		Authz: AuthzConfig{
			Backend:    AuthzBackend(v.GetString("authz.backend")),
			PolicyPath: v.GetString("authz.policy_path"),
		},
		Storage: StorageConfig{
			S3Endpoint:        v.GetString("storage.s3_endpoint"),
			S3PathStyle:       v.GetBool("storage.s3_path_style"),
			S3DefaultSecretID: v.GetString("storage.s3_default_secret_id"),
		},
		Hooks: HooksConfig{
			CloudEventsTarget:     v.GetString("hooks.cloudevents_target"),
			CloudEventsSource:     v.GetString("hooks.cloudevents_source"),
			CloudEventsBufferSize: v.GetInt("hooks.cloudevents_buffer_size"),
		},
		Secrets: SecretsConfig{
			Backend:                SecretBackend(v.GetString("secrets.backend")),
			Pepper:                 v.GetString("secrets.pepper"),
			InfisicalSiteURL:       v.GetString("secrets.infisical_site_url"),
			InfisicalClientID:      v.GetString("secrets.infisical_client_id"),
			InfisicalClientSecret:  v.GetString("secrets.infisical_client_secret"),
			InfisicalProjectID:     v.GetString("secrets.infisical_project_id"),
			InfisicalEnvironment:   v.GetString("secrets.infisical_environment"),
			InfisicalSecretPath:    v.GetString("secrets.infisical_secret_path"),
			InfisicalRefreshPeriod: v.GetDuration("secrets.infisical_refresh_period"),
		},
		TaskQueue: TaskQueueConfig{
			PollInterval:            v.GetDuration("taskqueue.poll_interval"),
			DefaultHeartbeatTimeout: v.GetDuration("taskqueue.default_heartbeat_timeout"),
			Workers:                 toWorkerCounts(v.GetStringMapString("taskqueue.workers_raw")),
		},
		Health: HealthConfig{
			CheckInterval: v.GetDuration("health.check_interval"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			JaegerURL:    v.GetString("tracing.jaeger_url"),
			SamplerRatio: v.GetFloat64("tracing.sampler_ratio"),
		},
		Bootstrap: BootstrapConfig{
			ServerID:      v.GetString("bootstrap.server_id"),
			AcceptedTerms: v.GetBool("bootstrap.accepted_terms"),
			IsOperator:    v.GetBool("bootstrap.is_operator"),
		},
	}

	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("config: database.url (ICECAT_DATABASE_URL) is required")
	}
	if cfg.Secrets.Backend != SecretBackendPostgres && cfg.Secrets.Backend != SecretBackendInfisical {
		return fmt.Errorf("config: secrets.backend must be %q or %q, got %q",
			SecretBackendPostgres, SecretBackendInfisical, cfg.Secrets.Backend)
	}
	if cfg.Secrets.Backend == SecretBackendInfisical && cfg.Secrets.InfisicalSiteURL == "" {
		return fmt.Errorf("config: secrets.infisical_site_url is required when secrets.backend=kv2")
	}
	if cfg.Secrets.Backend == SecretBackendPostgres && cfg.Secrets.Pepper == "" {
		return fmt.Errorf("config: secrets.pepper is required when secrets.backend=postgres")
	}
	if cfg.Authz.Backend != AuthzBackendAllowAll && cfg.Authz.Backend != AuthzBackendOPA {
		return fmt.Errorf("config: authz.backend must be %q or %q, got %q",
			AuthzBackendAllowAll, AuthzBackendOPA, cfg.Authz.Backend)
	}
	return nil
}

// toWorkerCounts parses the "queue_name=count,..." form viper yields for a
// string-keyed map bound from a flat env var, e.g.
// ICECAT_TASKQUEUE_WORKERS_RAW="tabularexpiration=4,statistics=1".
func toWorkerCounts(raw map[string]string) map[string]int {
	counts := make(map[string]int, len(raw))
	for queue, value := range raw {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			counts[queue] = n
		}
	}
	return counts
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8181)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.prefix_template", "{warehouse_id}")
	v.SetDefault("server.reserved_namespaces", []string{"system"})
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.metrics_port", 9090)

	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("cache.stc_ttl", 15*time.Minute)
	v.SetDefault("cache.stc_max_ttl", time.Hour)

	v.SetDefault("auth.jwks_cache_ttl", 10*time.Minute)

	v.SetDefault("authz.backend", string(AuthzBackendAllowAll))

	v.SetDefault("secrets.backend", string(SecretBackendPostgres))
	v.SetDefault("secrets.infisical_secret_path", "/")
	v.SetDefault("secrets.infisical_refresh_period", 10*time.Minute)

	v.SetDefault("hooks.cloudevents_source", "icecat-catalog")
	v.SetDefault("hooks.cloudevents_buffer_size", 256)

	v.SetDefault("taskqueue.poll_interval", 5*time.Second)
	v.SetDefault("taskqueue.default_heartbeat_timeout", 60*time.Second)

	v.SetDefault("health.check_interval", 30*time.Second)

	v.SetDefault("tracing.sampler_ratio", 0.1)
}
