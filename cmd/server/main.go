package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/attendance-server-go/internal/config"
	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/handler"
	"github.com/openclaw/attendance-server-go/internal/jobs"
	"github.com/openclaw/attendance-server-go/internal/middleware"
	"github.com/openclaw/attendance-server-go/internal/redis"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/security"
	"github.com/openclaw/attendance-server-go/internal/service"
	"github.com/openclaw/attendance-server-go/internal/sse"
	"github.com/openclaw/attendance-server-go/internal/token"
	"github.com/openclaw/attendance-server-go/internal/validator"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	ownerRepo := repository.NewOwnerRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	tokenRepo := repository.NewTokenRepository(db.DB)
	scanRepo := repository.NewAcceptedScanRepository(db.DB)
	rejectionRepo := repository.NewRejectedScanRepository(db.DB)
	archiveRepo := repository.NewArchiveRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sideEffects := service.NewSideEffects()
	codec := token.NewCodec(cfg.TokenSecret, cfg.TokenValidity(), cfg.TokenFutureSkew())
	v := validator.NewValidator()
	jwtManager := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTSecret)

	authService := service.NewAuthService(ownerRepo, jwtManager, cfg.OwnerTokenTTL())
	sessionService := service.NewSessionService(
		db, ownerRepo, sessionRepo, tokenRepo, archiveRepo, broker, sideEffects,
		service.SessionServiceConfig{AllowConcurrent: cfg.AllowConcurrentSessions},
	)
	tokenService := service.NewTokenService(codec, sessionRepo, tokenRepo, sideEffects, cfg.TokenRotation())
	scanService := service.NewScanService(
		codec, v, sessionRepo, tokenRepo, scanRepo, rejectionRepo, broker, sideEffects,
		service.ScanServiceConfig{
			GPSTolerance:       cfg.GPSToleranceMeters,
			TimestampTolerance: cfg.TimestampTolerance(),
		},
	)
	adjustmentService := service.NewAdjustmentService(v, sessionRepo, scanRepo, archiveRepo, broker, sideEffects)
	reportService := service.NewReportService(sessionRepo, scanRepo, rejectionRepo, archiveRepo)

	// Claims stay open during a Redis outage; login attempts do not.
	rateLimiter := service.NewRateLimiter(redisClient.Client)
	claimLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter.FailOpen(), cfg.ClaimRateLimitPerMin, time.Minute, "claim",
	)
	loginLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.LoginRateLimitPerMin, config.LoginRateLimitWindow, "login",
	)

	ownerAuth := middleware.NewOwnerAuthMiddleware(authService)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(authService, v, loginLimit.Handler)
	scanHandler := handler.NewScanHandler(scanService)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)
	sessionHandler := handler.NewSessionHandler(
		sessionService, tokenService, adjustmentService, reportService, eventsHandler, v,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(timeoutExceptStreams(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"database": "ok", "redis": "ok"}
		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("health check: redis unreachable")
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		body := map[string]any{
			"status":    "ok",
			"checks":    checks,
			"timestamp": time.Now().UnixMilli(),
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.With(claimLimit.Handler).Post("/scans", scanHandler.Submit)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(ownerAuth.Handler)
			r.Mount("/", sessionHandler.Routes())
		})
	})

	cleanupJob := jobs.NewCleanupJob(tokenRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	sideEffects.Wait()

	log.Info().Msg("server stopped")
}

// timeoutExceptStreams bounds every request except the long-lived event streams.
func timeoutExceptStreams(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := chimiddleware.Timeout(timeout)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/events") {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
