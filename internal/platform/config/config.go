// Package config loads process configuration from defaults, an optional
// YAML file and VERITAS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	lists "veritas/pkg/platform/strings"
)

// EnvPrefix is prepended to every environment override. Nested keys use
// underscores: server.addr is read from VERITAS_SERVER_ADDR.
const EnvPrefix = "VERITAS"

// ConfigFileEnv names the variable holding an optional YAML config path.
const ConfigFileEnv = "VERITAS_CONFIG"

// Config is the full process configuration.
type Config struct {
	Log      Log      `mapstructure:"log"`
	Server   Server   `mapstructure:"server"`
	Auth     Auth     `mapstructure:"auth"`
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Analysis Analysis `mapstructure:"analysis"`
	Dwell    Dwell    `mapstructure:"dwell"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Notify   Notify   `mapstructure:"notify"`
	Session  Session  `mapstructure:"session"`
	Admin    Admin    `mapstructure:"admin"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	Environment     string        `mapstructure:"environment"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// Auth configures token validation and the browser login redirect.
type Auth struct {
	SigningKey      string        `mapstructure:"signing_key"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	LoginURL        string        `mapstructure:"login_url"`
	CookieName      string        `mapstructure:"cookie_name"`
	AllowQueryToken bool          `mapstructure:"allow_query_token"`
	ServiceToken    string        `mapstructure:"service_token"`
}

type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type Redis struct {
	URL            string        `mapstructure:"url"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PreferencesTTL time.Duration `mapstructure:"preferences_ttl"`
}

// Kafka configures the scan-record change feed. Empty brokers disable it.
type Kafka struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
	Acks    string `mapstructure:"acks"`
}

// Analysis selects and configures the content analyzer.
type Analysis struct {
	// Mode is direct (call the LLM gateway in-process), remote (call a
	// deployed analyze-content endpoint) or demo (scripted catalog answers).
	Mode           string        `mapstructure:"mode"`
	EndpointURL    string        `mapstructure:"endpoint_url"`
	APIKey         string        `mapstructure:"api_key"`
	GatewayBaseURL string        `mapstructure:"gateway_base_url"`
	GatewayAPIKey  string        `mapstructure:"gateway_api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	DemoLatency    time.Duration `mapstructure:"demo_latency"`
}

type Dwell struct {
	Threshold time.Duration `mapstructure:"threshold"`
	Tick      time.Duration `mapstructure:"tick"`
}

type Catalog struct {
	Path string `mapstructure:"path"`
}

// Notify configures out-of-band alert delivery.
type Notify struct {
	URLs      []string      `mapstructure:"urls"`
	Buffer    int           `mapstructure:"buffer"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// Session bounds how long scanner boards live without a client.
type Session struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	HistorySize   int           `mapstructure:"history_size"`
}

type Admin struct {
	ListLimit    int           `mapstructure:"list_limit"`
	RoleCacheTTL time.Duration `mapstructure:"role_cache_ttl"`
}

// Analysis modes.
const (
	ModeDirect = "direct"
	ModeRemote = "remote"
	ModeDemo   = "demo"
)

const devSigningKey = "dev-secret-key-change-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("auth.signing_key", devSigningKey)
	v.SetDefault("auth.issuer", "veritas")
	v.SetDefault("auth.audience", "veritas-app")
	v.SetDefault("auth.token_ttl", 15*time.Minute)
	v.SetDefault("auth.login_url", "")
	v.SetDefault("auth.cookie_name", "veritas_session")
	v.SetDefault("auth.allow_query_token", true)
	v.SetDefault("auth.service_token", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.preferences_ttl", 30*24*time.Hour)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "veritas.scan-records")
	v.SetDefault("kafka.group_id", "")
	v.SetDefault("kafka.acks", "all")

	v.SetDefault("analysis.mode", ModeDemo)
	v.SetDefault("analysis.endpoint_url", "")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.gateway_base_url", "")
	v.SetDefault("analysis.gateway_api_key", "")
	v.SetDefault("analysis.model", "")
	v.SetDefault("analysis.timeout", 30*time.Second)
	v.SetDefault("analysis.max_concurrent", 4)
	v.SetDefault("analysis.demo_latency", 800*time.Millisecond)

	v.SetDefault("dwell.threshold", 3*time.Second)
	v.SetDefault("dwell.tick", 100*time.Millisecond)

	v.SetDefault("catalog.path", "")

	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.buffer", 64)
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.heartbeat", 30*time.Second)

	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.history_size", 50)

	v.SetDefault("admin.list_limit", 200)
	v.SetDefault("admin.role_cache_ttl", time.Minute)
}

// New returns a viper instance with defaults and environment binding. The
// CLI binds its flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file named by VERITAS_CONFIG (or by
// path when non-empty) and unmarshals the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if path == "" {
		_ = v.BindEnv("config_file", ConfigFileEnv)
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Server.AllowedOrigins = lists.SplitList(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = lists.SplitList(cfg.Server.TrustedProxies)
	cfg.Notify.URLs = lists.SplitList(cfg.Notify.URLs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Analysis.Mode {
	case ModeDemo:
	case ModeDirect:
		if c.Analysis.GatewayAPIKey == "" {
			errs = append(errs, errors.New("analysis.gateway_api_key is required in direct mode"))
		}
	case ModeRemote:
		if c.Analysis.EndpointURL == "" {
			errs = append(errs, errors.New("analysis.endpoint_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("analysis.mode %q must be direct, remote or demo", c.Analysis.Mode))
	}
	if c.Dwell.Threshold <= 0 || c.Dwell.Tick <= 0 {
		errs = append(errs, errors.New("dwell.threshold and dwell.tick must be positive"))
	}
	if c.Dwell.Tick > c.Dwell.Threshold {
		errs = append(errs, errors.New("dwell.tick must not exceed dwell.threshold"))
	}
	if c.IsProduction() && c.Auth.SigningKey == devSigningKey {
		errs = append(errs, errors.New("auth.signing_key must be set in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs in a production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
