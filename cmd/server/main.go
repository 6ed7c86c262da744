// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"brokerhub/internal/account/ledger"
	"brokerhub/internal/account/store"
	"brokerhub/internal/account/store/account"
	"brokerhub/internal/account/store/broker"
	"brokerhub/internal/account/store/owneruser"
	"brokerhub/internal/account/store/plan"
	"brokerhub/internal/account/store/subscription"
	cancellationhandler "brokerhub/internal/cancellation/handler"
	cancellationmetrics "brokerhub/internal/cancellation/metrics"
	cancellationservice "brokerhub/internal/cancellation/service"
	"brokerhub/internal/gateway"
	httpapi "brokerhub/internal/http"
	"brokerhub/internal/identity"
	"brokerhub/internal/platform/config"
	"brokerhub/internal/platform/httpserver"
	kafkaconsumer "brokerhub/internal/platform/kafka/consumer"
	kafkaproducer "brokerhub/internal/platform/kafka/producer"
	"brokerhub/internal/platform/logger"
	platformmetrics "brokerhub/internal/platform/metrics"
	"brokerhub/internal/platform/middleware"
	redisplatform "brokerhub/internal/platform/redis"
	ratelimitmetrics "brokerhub/internal/ratelimit/metrics"
	ratelimitmw "brokerhub/internal/ratelimit/middleware"
	"brokerhub/internal/ratelimit/store/bucket"
	recoverymetrics "brokerhub/internal/recovery/metrics"
	recoveryservice "brokerhub/internal/recovery/service"
	sessionhandler "brokerhub/internal/session/handler"
	sessionmetrics "brokerhub/internal/session/metrics"
	sessionservice "brokerhub/internal/session/service"
	sessionstore "brokerhub/internal/session/store"
	signuphandler "brokerhub/internal/signup/handler"
	signupmetrics "brokerhub/internal/signup/metrics"
	signupservice "brokerhub/internal/signup/service"
	auditconsumer "brokerhub/pkg/platform/audit/consumer"
	auditpublisher "brokerhub/pkg/platform/audit/publisher"
	auditmemory "brokerhub/pkg/platform/audit/store/memory"
	auditpostgres "brokerhub/pkg/platform/audit/store/postgres"
	auditworker "brokerhub/pkg/platform/audit/worker"
)

// Store unions: each concrete backend (postgres or memory) satisfies every
// consumer-side interface, so main only carries one variable per entity.

type accountStore interface {
	signupservice.AccountStore
	ledger.AccountStore
}

type ownerUserStore interface {
	signupservice.OwnerUserStore
	recoveryservice.OwnerUserStore
	cancellationservice.OwnerUserStore
	ledger.OwnerUserStore
}

type brokerStore interface {
	signupservice.BrokerStore
	recoveryservice.BrokerStore
	ledger.BrokerStore
}

type subscriptionStore interface {
	signupservice.SubscriptionStore
	cancellationservice.SubscriptionStore
	ledger.SubscriptionStore
}

type planStore interface {
	signupservice.PlanStore
	cancellationservice.PlanStore
	store.PlanStore
}

type stores struct {
	accounts      accountStore
	owners        ownerUserStore
	brokers       brokerStore
	subscriptions subscriptionStore
	plans         planStore
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, st, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("store setup failed", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var sessions sessionservice.SessionStore
	if redisClient != nil {
		sessions = sessionstore.NewRedis(redisClient.Client)
	} else {
		log.Warn("redis not configured, session state is process-local")
		sessions = sessionstore.NewInMemory()
	}

	pub, stopPipeline, err := buildAuditPipeline(ctx, cfg, db, log)
	if err != nil {
		log.Error("audit pipeline setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer stopPipeline()
	defer pub.Close()

	var notifier gateway.Notifier
	if cfg.Gateway.URL != "" {
		notifier = gateway.NewHTTPClient(cfg.Gateway)
	} else {
		log.Warn("gateway not configured, using mock notifier")
		notifier = &gateway.Mock{}
	}

	tombstones := ledger.New(st.accounts, st.owners, st.brokers, st.subscriptions, ledger.WithLogger(log))

	signupSvc := signupservice.New(st.accounts, st.owners, st.brokers, st.subscriptions, st.plans,
		signupservice.WithLogger(log),
		signupservice.WithAuditPublisher(pub),
		signupservice.WithMetrics(signupmetrics.New()),
		signupservice.WithTrialDays(cfg.TrialDays),
	)
	recoverySvc := recoveryservice.New(st.brokers, st.owners,
		recoveryservice.WithLogger(log),
		recoveryservice.WithAuditPublisher(pub),
		recoveryservice.WithMetrics(recoverymetrics.New()),
	)
	sessionSvc := sessionservice.New(sessions, recoverySvc,
		sessionservice.WithLogger(log),
		sessionservice.WithAuditPublisher(pub),
		sessionservice.WithMetrics(sessionmetrics.New()),
	)
	cancellationSvc := cancellationservice.New(st.owners, st.subscriptions, st.plans, notifier, tombstones,
		cancellationservice.WithLogger(log),
		cancellationservice.WithAuditPublisher(pub),
		cancellationservice.WithMetrics(cancellationmetrics.New()),
	)

	var verifier middleware.TokenVerifier
	if cfg.Identity.SigningKey != "" {
		verifier = identity.NewVerifier(cfg.Identity)
	} else {
		log.Warn("identity signing key not configured, cancellation routes are unauthenticated")
	}

	limiter := ratelimitmw.New(bucket.NewInMemoryBucketStore(),
		cfg.RateLimit.SignupLimit, cfg.RateLimit.SignupWindow, log,
		ratelimitmw.WithMetrics(ratelimitmetrics.New()),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Signup:        signuphandler.New(signupSvc, log),
		Cancellation:  cancellationhandler.New(cancellationSvc, log),
		Session:       sessionhandler.New(sessionSvc, log),
		Verifier:      verifier,
		SignupLimiter: limiter.Limit,
		Metrics:       platformmetrics.New(),
		Logger:        log,
		Health:        healthCheck(db, redisClient),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting brokerhub", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
}

func buildStores(ctx context.Context, cfg config.Config) (*sql.DB, *stores, error) {
	if cfg.Postgres.URL == "" {
		slog.Warn("postgres not configured, using in-memory stores")
		plans := plan.NewInMemory()
		if err := store.SeedPlans(ctx, plans); err != nil {
			return nil, nil, err
		}
		return nil, &stores{
			accounts:      account.NewInMemory(),
			owners:        owneruser.NewInMemory(),
			brokers:       broker.NewInMemory(),
			subscriptions: subscription.NewInMemory(),
			plans:         plans,
		}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, store.Schema); err != nil {
		db.Close()
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, auditpostgres.Schema); err != nil {
		db.Close()
		return nil, nil, err
	}

	plans := plan.NewPostgres(db)
	if err := store.SeedPlans(ctx, plans); err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, &stores{
		accounts:      account.NewPostgres(db),
		owners:        owneruser.NewPostgres(db),
		brokers:       broker.NewPostgres(db),
		subscriptions: subscription.NewPostgres(db),
		plans:         plans,
	}, nil
}

// buildAuditPipeline assembles the audit path: services emit through the
// publisher into a store; with postgres and Kafka configured that store is
// the transactional outbox, relayed to Kafka and materialized back into
// audit_events by the consumer.
func buildAuditPipeline(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (*auditpublisher.Publisher, func(), error) {
	noop := func() {}

	if db == nil {
		pub := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore(),
			auditpublisher.WithLogger(log),
			auditpublisher.WithMetrics(auditpublisher.NewMetrics()),
		)
		return pub, noop, nil
	}

	pgStore := auditpostgres.New(db)
	pub := auditpublisher.NewPublisher(pgStore,
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics()),
		auditpublisher.WithAsyncBuffer(1024),
	)

	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("kafka not configured, audit events stay in the outbox")
		return pub, noop, nil
	}

	if err := kafkaproducer.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3); err != nil {
		return nil, nil, err
	}
	producer, err := kafkaproducer.New(cfg.Kafka.Brokers)
	if err != nil {
		return nil, nil, err
	}

	handler := auditconsumer.NewHandler(pgStore, log)
	consumer, err := kafkaconsumer.New(cfg.Kafka.Brokers, "brokerhub-audit", cfg.Kafka.Topic, handler, log)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}

	relay := auditworker.NewWorker(pgStore, producer, cfg.Kafka.Topic, log)

	pipelineCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := relay.Run(pipelineCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("outbox relay stopped", "error", err.Error())
		}
	}()
	go func() {
		if err := consumer.Run(pipelineCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit consumer stopped", "error", err.Error())
		}
	}()

	stopPipeline := func() {
		cancel()
		consumer.Close()
		producer.Close()
	}
	return pub, stopPipeline, nil
}

func healthCheck(db *sql.DB, redisClient *redisplatform.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			return redisClient.Health(ctx)
		}
		return nil
	}
}
