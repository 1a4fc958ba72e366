package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Version     string `envconfig:"VERSION" default:"dev"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SupabaseURL       string        `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey   string        `envconfig:"SUPABASE_ANON_KEY" required:"true"`
	SupabaseJWTSecret string        `envconfig:"SUPABASE_JWT_SECRET" default:""`
	EmailDomain       string        `envconfig:"EMAIL_DOMAIN" default:"mkp.local"`
	IdentityTimeout   time.Duration `envconfig:"IDENTITY_TIMEOUT" default:"10s"`

	SessionIdleTTL      time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	SessionCookieName   string        `envconfig:"SESSION_COOKIE_NAME" default:"mkp_session"`
	SessionCookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`

	// TrustedProxies lists CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:""`

	RedisURL          string        `envconfig:"REDIS_URL" default:""`
	LoginRateCapacity int           `envconfig:"LOGIN_RATE_CAPACITY" default:"10"`
	LoginRateRefill   int           `envconfig:"LOGIN_RATE_REFILL" default:"1"`
	LoginRateInterval time.Duration `envconfig:"LOGIN_RATE_INTERVAL" default:"30s"`

	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
	OTLPProtocol   string `envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
