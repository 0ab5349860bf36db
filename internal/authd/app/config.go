package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is loaded from the environment, with an optional .env file for
// local development.
type Config struct {
	Issuer string `env:"AUTH_ISSUER" envDefault:"quizauth"`

	// SigningSecret is the HS256 key shared across instances. Minimum 32
	// bytes; the signer refuses shorter ones.
	SigningSecret string `env:"AUTH_SIGNING_SECRET,required"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"quizauth.db"`

	// RedisURL, when set, moves the token blacklist and the login attempt
	// counters to Redis so several instances share them. Empty keeps both
	// local to the process.
	RedisURL string `env:"AUTH_REDIS_URL"`

	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`
	IdleTimeout     time.Duration `env:"AUTH_IDLE_TIMEOUT" envDefault:"30m"`

	// StrictIPCheck invalidates a session when its origin IP changes.
	StrictIPCheck bool `env:"AUTH_STRICT_IP_CHECK" envDefault:"false"`

	// CookieSecure must stay true outside local development.
	CookieSecure bool `env:"AUTH_COOKIE_SECURE" envDefault:"true"`

	LoginAttemptLimit  int           `env:"AUTH_LOGIN_ATTEMPT_LIMIT" envDefault:"5"`
	LoginAttemptWindow time.Duration `env:"AUTH_LOGIN_ATTEMPT_WINDOW" envDefault:"15m"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"10m"`
}

func LoadConfig() (Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
