package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/hackgods/voice-appointment-engine/internal/api"
	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/callrecord"
	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/internal/db"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/metrics"
	"github.com/hackgods/voice-appointment-engine/internal/notify"
	redisclient "github.com/hackgods/voice-appointment-engine/internal/redis"
	"github.com/hackgods/voice-appointment-engine/internal/scheduling"
	"github.com/hackgods/voice-appointment-engine/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, 5*time.Second)
		logger.Info().Msg("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker(5 * time.Second)
		logger.Warn().Msg("REDIS_ADDR not set, booking locks are local to this process")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cal, err := newCalendar(rootCtx, cfg, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.CalendarBackend).Msg("calendar provider error")
	}

	directory := identity.NewPgDirectory(pgPool)
	resolver := identity.NewResolver(identity.NewMemoryCache(), directory, logger)

	sinks := []callrecord.Sink{callrecord.NewDirectorySink(directory)}
	if cfg.CallLogCSV != "" {
		sinks = append(sinks, callrecord.NewCSVSink(cfg.CallLogCSV))
	}
	if cfg.DynamoCallTable != "" {
		client, err := callrecord.NewDynamoClient(rootCtx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("dynamodb client error")
		}
		sinks = append(sinks, callrecord.NewDynamoSink(client, cfg.DynamoCallTable))
	}

	calls := callrecord.NewManager(callrecord.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		MaxSessions: cfg.MaxSessions,
		SinkTimeout: cfg.SinkTimeout,
	}, sinks, m, logger)

	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if cfg.SendGridAPIKey != "" {
		sender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	}

	engine, err := scheduling.New(scheduling.Deps{
		Calendar: cal,
		Locker:   locker,
		Identity: resolver,
		Calls:    calls,
		Notifier: notify.NewEmailNotifier(sender, cfg.FacilityName, logger),
		Metrics:  m,
		Logger:   logger,
	},
		scheduling.WithScheduling(cfg.Scheduling),
		scheduling.WithLocation(cfg.Location),
		scheduling.WithFacility(cfg.FacilityName),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine setup error")
	}

	router := api.NewRouter(api.RouterConfig{
		Engine:  engine,
		Health:  api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}

	reports := calls.Shutdown(shutdownCtx)
	logSessionReports(logger, reports)
}

func newCalendar(ctx context.Context, cfg config.Config, pool db.Pool) (calendar.Provider, error) {
	switch cfg.CalendarBackend {
	case config.CalendarBackendGoogle:
		return calendar.NewGoogleProvider(ctx, cfg.GoogleCalendarID, cfg.Location,
			option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	case config.CalendarBackendMemory:
		return calendar.NewMemoryProvider(), nil
	default:
		return calendar.NewPgProvider(pool, cfg.Location), nil
	}
}

func logSessionReports(logger zerolog.Logger, reports []callrecord.Report) {
	failed := 0
	for _, r := range reports {
		if len(r.Failed()) > 0 {
			failed++
		}
	}
	logger.Info().Int("sessions", len(reports)).Int("with_failed_sinks", failed).Msg("open call sessions finalized")
}
