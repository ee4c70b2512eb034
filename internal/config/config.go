// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App        AppConfig        `koanf:"app"`
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	JWT        JWTConfig        `koanf:"jwt"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	CORS       CORSConfig       `koanf:"cors"`
	Log        LogConfig        `koanf:"log"`
	Otel       OtelConfig       `koanf:"otel"`
	Trust      TrustConfig      `koanf:"trust"`
	Moderation ModerationConfig `koanf:"moderation"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// TrustConfig holds the vote-weight bases, the per-action trust point deltas
// and the anonymous-voting knobs. Defaults match platform policy; file and
// environment values override them at startup or on Reload.
type TrustConfig struct {
	Weights          WeightConfig `koanf:"weights"`
	Points           PointsConfig `koanf:"points"`
	AnonVoteEnabled  bool         `koanf:"anon_vote_enabled"`
	AnonVoteDailyCap int          `koanf:"anon_vote_daily_cap"`
	BlocklistSalt    string       `koanf:"blocklist_salt"`
}

type WeightConfig struct {
	Anonymous    float64 `koanf:"anonymous"`
	Verified     float64 `koanf:"verified"`
	Expert       float64 `koanf:"expert"`
	PhD          float64 `koanf:"phd"`
	Organization float64 `koanf:"organization"`
	Moderator    float64 `koanf:"moderator"`
}

type PointsConfig struct {
	FactApproved        int `koanf:"fact_approved"`
	FactWrong           int `koanf:"fact_wrong"`
	FactOutdated        int `koanf:"fact_outdated"`
	VetoSuccess         int `koanf:"veto_success"`
	VetoFail            int `koanf:"veto_fail"`
	VerificationCorrect int `koanf:"verification_correct"`
	VerificationWrong   int `koanf:"verification_wrong"`
	Upvoted             int `koanf:"upvoted"`
	Downvoted           int `koanf:"downvoted"`
}

// ModerationConfig covers veto resolution, account flagging, ban escalation
// and the moderator election policy.
type ModerationConfig struct {
	VetoResolveThreshold float64 `koanf:"veto_resolve_threshold"`
	FailedVetoThreshold  int     `koanf:"failed_veto_threshold"`
	Level1DurationDays   int     `koanf:"level1_duration_days"`
	Level2DurationDays   int     `koanf:"level2_duration_days"`
	BootstrapThreshold   int     `koanf:"bootstrap_threshold"`
	EarlyThreshold       int     `koanf:"early_threshold"`
	TopPercentage        float64 `koanf:"top_percentage"`
	MinTrustedForAuto    int     `koanf:"min_trusted_for_auto"`
	MaxModerators        int     `koanf:"max_moderators"`
	InactiveDays         int     `koanf:"inactive_days"`
}

var (
	cfg  *Config
	mu   sync.RWMutex
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		c, err := load(configPath)
		if err != nil {
			loadErr = err
			return
		}

		mu.Lock()
		cfg = c
		mu.Unlock()
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return Get(), nil
}

func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()

	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "PurFacted API",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "purfacted",
		"jwt.audience":             "purfacted-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "purfacted-api",

		"trust.weights.anonymous":    0.1,
		"trust.weights.verified":     2.0,
		"trust.weights.expert":       5.0,
		"trust.weights.phd":          8.0,
		"trust.weights.organization": 100.0,
		"trust.weights.moderator":    3.0,

		"trust.points.fact_approved":        10,
		"trust.points.fact_wrong":           -20,
		"trust.points.fact_outdated":        0,
		"trust.points.veto_success":         5,
		"trust.points.veto_fail":            -5,
		"trust.points.verification_correct": 3,
		"trust.points.verification_wrong":   -10,
		"trust.points.upvoted":              1,
		"trust.points.downvoted":            -1,

		"trust.anon_vote_enabled":   true,
		"trust.anon_vote_daily_cap": 20,

		"moderation.veto_resolve_threshold": 10.0,
		"moderation.failed_veto_threshold":  5,
		"moderation.level1_duration_days":   3,
		"moderation.level2_duration_days":   30,
		"moderation.bootstrap_threshold":    100,
		"moderation.early_threshold":        500,
		"moderation.top_percentage":         0.10,
		"moderation.min_trusted_for_auto":   100,
		"moderation.max_moderators":         50,
		"moderation.inactive_days":          30,
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"TRUST_BLOCKLIST_SALT":        "trust.blocklist_salt",
	"TRUST_ANON_VOTE_ENABLED":     "trust.anon_vote_enabled",
	"TRUST_ANON_VOTE_DAILY_CAP":   "trust.anon_vote_daily_cap",
	"MODERATION_MAX_MODERATORS":   "moderation.max_moderators",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Trust.BlocklistSalt == "" {
		return fmt.Errorf("TRUST_BLOCKLIST_SALT is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Moderation.TopPercentage <= 0 || c.Moderation.TopPercentage > 1 {
		return fmt.Errorf("moderation.top_percentage must be in (0, 1]")
	}

	if c.Moderation.MaxModerators < 1 {
		return fmt.Errorf("moderation.max_moderators must be positive")
	}

	if c.Moderation.VetoResolveThreshold <= 0 {
		return fmt.Errorf("moderation.veto_resolve_threshold must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
