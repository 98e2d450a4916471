package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "fallback-secret", "password",
}

type Config struct {
	Port                      int     `env:"PORT" envDefault:"8080"`
	DatabaseURL               string  `env:"DATABASE_URL,required"`
	RedisURL                  string  `env:"REDIS_URL,required"`
	TokenSecret               string  `env:"TOKEN_SECRET,required"`
	JWTSecret                 string  `env:"JWT_SECRET,required"`
	JWTIssuer                 string  `env:"JWT_ISSUER" envDefault:"attendance-server"`
	OwnerTokenTTLHours        int     `env:"OWNER_TOKEN_TTL_HOURS" envDefault:"24"`
	TokenRotationSeconds      int     `env:"TOKEN_ROTATION_SECONDS" envDefault:"5"`
	TokenValiditySeconds      int     `env:"TOKEN_VALIDITY_SECONDS" envDefault:"10"`
	TokenFutureSkewSeconds    int     `env:"TOKEN_FUTURE_SKEW_SECONDS" envDefault:"5"`
	GPSToleranceMeters        float64 `env:"GPS_TOLERANCE_METERS" envDefault:"50"`
	TimestampToleranceSeconds int     `env:"TIMESTAMP_TOLERANCE_SECONDS" envDefault:"10"`
	AllowConcurrentSessions   bool    `env:"ALLOW_CONCURRENT_SESSIONS" envDefault:"false"`
	ClaimRateLimitPerMin      int     `env:"CLAIM_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LoginRateLimitPerMin      int     `env:"LOGIN_RATE_LIMIT_PER_MIN" envDefault:"5"`
	LogLevel                  string  `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) TokenRotation() time.Duration {
	return time.Duration(c.TokenRotationSeconds) * time.Second
}

func (c *Config) TokenValidity() time.Duration {
	return time.Duration(c.TokenValiditySeconds) * time.Second
}

func (c *Config) TokenFutureSkew() time.Duration {
	return time.Duration(c.TokenFutureSkewSeconds) * time.Second
}

func (c *Config) TimestampTolerance() time.Duration {
	return time.Duration(c.TimestampToleranceSeconds) * time.Second
}

func (c *Config) OwnerTokenTTL() time.Duration {
	return time.Duration(c.OwnerTokenTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.TokenRotationSeconds <= 0 {
		return fmt.Errorf("TOKEN_ROTATION_SECONDS must be positive")
	}
	// Tokens must outlive one rotation or a code can expire while still on screen.
	if c.TokenValiditySeconds < c.TokenRotationSeconds {
		return fmt.Errorf("TOKEN_VALIDITY_SECONDS (%d) must be >= TOKEN_ROTATION_SECONDS (%d)",
			c.TokenValiditySeconds, c.TokenRotationSeconds)
	}
	if c.GPSToleranceMeters <= 0 {
		return fmt.Errorf("GPS_TOLERANCE_METERS must be positive")
	}
	if c.TimestampToleranceSeconds <= 0 {
		return fmt.Errorf("TIMESTAMP_TOLERANCE_SECONDS must be positive")
	}

	if isProduction {
		if err := validateSecret("TOKEN_SECRET", c.TokenSecret); err != nil {
			return err
		}
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AllowConcurrentSessions {
			log.Warn().Msg("ALLOW_CONCURRENT_SESSIONS is enabled: owners may run several active sessions")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
