package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/config"
	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/escalation"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/httpapi"
	"github.com/wardwatch/wardwatch/internal/metrics"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/internal/store/migrations"
	"github.com/wardwatch/wardwatch/pkg/email"
	"github.com/wardwatch/wardwatch/pkg/httpserver"
	"github.com/wardwatch/wardwatch/pkg/logger"
	"github.com/wardwatch/wardwatch/pkg/opensearch"
	"github.com/wardwatch/wardwatch/pkg/pg"
	"github.com/wardwatch/wardwatch/pkg/push"
	"github.com/wardwatch/wardwatch/pkg/redis"
	"github.com/wardwatch/wardwatch/pkg/sms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("wardwatch stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	tiers, err := cfg.Escalation.Tiers()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.App.Env, cfg.App.Name),
		logger.WithContextExtractors(httpapi.RequestIDExtractor, logger.TickIDExtractor),
	)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, cfg.Postgres, migrations.FS, log); err != nil {
		return err
	}
	db := pg.OpenDB(pool)
	defer db.Close()

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	checks := []httpserver.Check{
		{Name: "postgres", Fn: pg.Healthcheck(pool)},
		{Name: "redis", Fn: redis.Healthcheck(rdb)},
	}

	// Live subscribers read from local; everything else fans out to brokers.
	local := eventbus.NewMemoryBus(64)
	defer local.Close()
	bus := eventbus.NewMulti(log).
		Add("memory", local).
		Add("redis", eventbus.NewRedisBus(rdb, eventbus.WithRedisLogger(log)))

	if cfg.MQTT.Enabled() {
		client, err := eventbus.ConnectMQTT(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		bus.Add("mqtt", eventbus.NewMQTTBus(client, cfg.MQTT))
	}
	if cfg.Kafka.Enabled() {
		w, err := eventbus.NewKafkaWriter(cfg.Kafka)
		if err != nil {
			return err
		}
		kb := eventbus.NewKafkaBus(w)
		defer func() {
			if err := kb.Close(); err != nil {
				log.Warn("close kafka writer", logger.Error(err))
			}
		}()
		bus.Add("kafka", kb)
	}

	auditStorage, check, err := openAudit(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	if check != nil {
		checks = append(checks, *check)
	}
	auditLog := audit.NewLogger(auditStorage)
	if err := auditLog.Resume(ctx); err != nil {
		return fmt.Errorf("resume audit chain: %w", err)
	}

	m := metrics.New()
	st := store.NewPostgresStore(db)

	dopts, err := channels(cfg, bus)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(st, append(dopts,
		dispatch.WithLogger(log),
		dispatch.WithAuditor(auditLog),
		dispatch.WithMetrics(m),
		dispatch.WithBatchWindow(cfg.Dispatch.BatchWindow),
		dispatch.WithQueueInterval(cfg.Dispatch.QueueInterval),
		dispatch.WithMaxAttempts(cfg.Dispatch.MaxAttempts),
		dispatch.WithMaxConcurrency(cfg.Dispatch.MaxConcurrency),
		dispatch.WithQueueBatchSize(cfg.Dispatch.QueueBatchSize),
		dispatch.WithQueueLockTimeout(cfg.Dispatch.QueueLockTimeout),
	)...)

	engine, err := escalation.New(st, dispatcher,
		escalation.WithLogger(log),
		escalation.WithTiers(tiers),
		escalation.WithTickInterval(cfg.Escalation.TickInterval),
		escalation.WithMaxConcurrency(cfg.Escalation.MaxConcurrency),
		escalation.WithBatchSize(cfg.Escalation.BatchSize),
		escalation.WithLease(redis.NewLease(rdb, cfg.Escalation.LeaseKey), 0),
		escalation.WithPublisher(bus),
		escalation.WithAuditor(auditLog),
		escalation.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(st, engine, dispatcher,
		httpapi.WithLogger(log),
		httpapi.WithAuthorizer(httpapi.BearerToken(cfg.App.AdminToken)),
		httpapi.WithAuditReader(audit.NewReader(auditStorage, auditLog.Hasher())),
		httpapi.WithEvents(local),
		httpapi.WithMetrics(m),
		httpapi.WithReadinessChecks(checks...),
	)
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(dispatcher.Run(gctx))
	g.Go(engine.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, api.Router()) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openAudit writes to Postgres and mirrors into OpenSearch when configured.
func openAudit(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (audit.Storage, *httpserver.Check, error) {
	primary := audit.NewPostgresStorage(db)
	if !cfg.OpenSearch.Enabled() {
		return primary, nil, nil
	}

	client, err := opensearch.New(ctx, cfg.OpenSearch)
	if err != nil {
		return nil, nil, err
	}
	mirror := audit.NewOpenSearchStorage(client, cfg.OpenSearch.AuditIndex)
	if err := mirror.EnsureIndex(ctx); err != nil {
		return nil, nil, err
	}
	check := &httpserver.Check{Name: "opensearch", Fn: opensearch.Healthcheck(client)}
	return audit.NewMultiStorage(log, primary, mirror), check, nil
}

func channels(cfg config.Config, bus eventbus.Publisher) ([]dispatch.Option, error) {
	opts := []dispatch.Option{dispatch.WithInApp(dispatch.NewInAppAdapter(bus))}

	var sender email.Sender
	if cfg.App.IsDevelopment() && cfg.Email.PostmarkServerToken == "" {
		sender = email.NewDevSender(cfg.Email.DevOutputDir)
	} else {
		ps, err := email.NewPostmarkSender(cfg.Email)
		if err != nil {
			return nil, err
		}
		sender = ps
	}
	opts = append(opts, dispatch.WithEmail(dispatch.NewEmailAdapter(sender)))

	if cfg.SMS.Enabled() {
		c, err := sms.NewClient(cfg.SMS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithSMS(dispatch.NewSMSAdapter(c)))
	}
	if cfg.Push.Enabled() {
		c, err := push.NewClient(cfg.Push)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithPush(dispatch.NewPushAdapter(c)))
	}
	return opts, nil
}
