package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Upper bound for best-effort writes (rejection log, token cleanup, live feed)
// that outlive the request context.
const SideEffectTimeout = 3 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Login rate limit window
const LoginRateLimitWindow = time.Minute
