package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/cmd/mainconfig"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/api/router"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/audit"
	appconfig "github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/config"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/directory"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/http/handlers"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/monitoring"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/notify"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/observability/metrics"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/risk"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/transport"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

func main() {
	// Load .env in development; absence is not an error.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting crisis-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	// Event transport and session persistence. Without Redis the engine runs
	// single-process with in-memory fan-out.
	var (
		publisher     session.Publisher
		enginePub     escalation.Publisher
		snapshotStore session.SnapshotStore
	)
	if cfg.RedisAddr != "" {
		redisOptions := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOptions)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis not available", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		redisPublisher := transport.NewRedisPublisher(redisClient, logger)
		publisher = redisPublisher
		enginePub = redisPublisher
		snapshotStore = transport.NewRedisSnapshotStore(redisClient)
	} else {
		memPublisher := transport.NewMemoryPublisher()
		publisher = memPublisher
		enginePub = memPublisher
		logger.Warn("REDIS_ADDR not set, events stay in process")
	}

	// Durable audit trail. Without Postgres the trail lives in memory.
	var (
		auditSink  monitoring.AuditSink
		auditTrail handlers.AuditQuerier
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Error("database not available", "error", err)
			os.Exit(1)
		}
		store := audit.NewPostgresStore(db)
		auditSink = store
		auditTrail = store
	} else {
		store := audit.NewMemoryStore()
		auditSink = store
		auditTrail = store
		logger.Warn("DATABASE_URL not set, audit trail stays in memory")
	}

	auditor := monitoring.NewAuditor(logger, auditSink, monitoring.WithMetrics(engineMetrics))

	responders := directory.NewMemory(logger)
	seedResponders(responders)
	dispatcher := notify.NewSimpleDispatcher(logger)

	// The engine resolves profiles through the manager; the manager drives
	// the engine. The func adapter defers the manager lookup.
	var manager *session.Manager
	sessions := escalation.SessionSourceFunc(func(ctx context.Context, sessionID string) (escalation.Profile, error) {
		return manager.Profile(ctx, sessionID)
	})
	engine := escalation.NewEngine(logger, sessions, dispatcher, responders, auditor, enginePub,
		escalation.WithSLAOverrides(cfg.TierSLAOverrides))

	scorer := risk.NewScorer(logger)
	managerOpts := []session.ManagerOption{session.WithMetrics(engineMetrics)}
	if snapshotStore != nil {
		managerOpts = append(managerOpts, session.WithSnapshotStore(snapshotStore))
	}
	manager = session.NewManager(logger, scorer, engine, publisher, session.Settings{
		MaxConcurrentSessions:   cfg.MaxConcurrentSessions,
		MaxSessionDuration:      cfg.MaxSessionDuration,
		SessionIdleTimeout:      cfg.SessionIdleTimeout,
		EndedSessionGrace:       cfg.EndedSessionGrace,
		CleanupInterval:         cfg.CleanupInterval,
		AutoEscalationThreshold: cfg.AutoEscalationThreshold,
		EncryptionRequired:      cfg.EncryptionRequired,
		DefaultRegion:           cfg.DefaultRegion,
	}, managerOpts...)

	// Message intake queue. SQS for multi-instance deployments, in-memory
	// otherwise.
	var (
		intake *session.Intake
		worker *session.Worker
	)
	if cfg.UseMemoryQueue || cfg.MessageQueueURL == "" {
		queue := session.NewMemoryQueue(1024)
		intake = session.NewIntake(queue, logger)
		worker = session.NewWorker(manager, queue, logger, session.WithLaneCount(cfg.WorkerCount))
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := session.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessageQueueURL)
		intake = session.NewIntake(queue, logger)
		worker = session.NewWorker(manager, queue, logger, session.WithLaneCount(cfg.WorkerCount))
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker.Start(workerCtx)
	go manager.Run(workerCtx)

	sessionHandler := handlers.NewSessionHandler(manager, intake, logger)
	escalationHandler := handlers.NewEscalationHandler(engine, logger)
	monitoringHandler := handlers.NewMonitoringHandler(auditor, auditTrail, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		Sessions:       sessionHandler,
		Escalations:    escalationHandler,
		Monitoring:     monitoringHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopWorker()
	worker.Wait()
	logger.Info("server stopped")
}

// seedResponders registers a minimal on-call roster so escalations can assign
// someone before a real directory integration is configured. Entries carry no
// region restriction; sessions with unknown regions route to the fallback
// table and must still reach a responder.
func seedResponders(dir *directory.Memory) {
	dir.Register(directory.Entry{
		ID:      "volunteer-oncall",
		Name:    "On-call volunteer",
		Role:    "volunteer",
		MinTier: escalation.TierStandard,
		MaxTier: escalation.TierElevated,
	})
	dir.Register(directory.Entry{
		ID:      "counselor-oncall",
		Name:    "On-call counselor",
		Role:    "counselor",
		MinTier: escalation.TierHigh,
		MaxTier: escalation.TierHigh,
	})
	dir.Register(directory.Entry{
		ID:      "specialist-oncall",
		Name:    "On-call crisis specialist",
		Role:    "specialist",
		MinTier: escalation.TierCritical,
		MaxTier: escalation.TierEmergency,
	})
}
