// Package scheduler собирает сервис планировщика: задания cron, публикацию событий,
// перенос дат платежа и административный HTTP-интерфейс.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-alerts/internal/config"
	"github.com/magabrotheeeer/subscription-alerts/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/joblock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/migrations"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
	"github.com/magabrotheeeer/subscription-alerts/internal/services/notice"
	"github.com/magabrotheeeer/subscription-alerts/internal/services/resolver"
	"github.com/magabrotheeeer/subscription-alerts/internal/services/rollover"
	schedulerservice "github.com/magabrotheeeer/subscription-alerts/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-alerts/internal/storage/cache"
	"github.com/magabrotheeeer/subscription-alerts/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App представляет приложение планировщика.
type App struct {
	cron   *cron.Cron
	server *http.Server
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, 0, rabbitmq.GetAlertQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	clk := clock.Real{Location: loc}
	m := metrics.New(prometheus.DefaultRegisterer)

	schedulerService := schedulerservice.NewSchedulerService(resolver.New(db, logger), ch, clk, m, logger)
	rolloverService := rollover.NewRolloverService(db, m, logger)
	noticeService := notice.NewNoticeService(db, m, logger)

	guard := joblock.New(cacheRedis.Db, cfg.JobTimeout, logger)

	c := cron.New(cron.WithLocation(loc))
	if err = registerJobs(c, cfg.Scheduler, clk, guard, schedulerService, rolloverService, noticeService, logger); err != nil {
		closeResources(ch, conn, logger)
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	checks := map[string]health.Checker{
		"postgres": func(ctx context.Context) error { return db.DB.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst), clk,
		schedulerService, rolloverService, checks)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.JobTimeout + cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		cron:   c,
		server: srv,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
		logger: logger,
	}, nil
}

// registerJobs добавляет задания в cron в порядке срабатывания по умолчанию:
// этапы D_7..D_DAY, уведомления о платежах, перенос дат. Уведомления должны
// отработать до переноса, иначе просроченная вчера подписка уже получит новую дату.
// Каждое задание выполняется под блокировкой guard, чтобы реплики не дублировали запуск.
func registerJobs(c *cron.Cron, cfg config.Scheduler, clk clock.Clock, guard *joblock.Guard, alerts *schedulerservice.Service,
	roll *rollover.Service, notices *notice.Service, logger *slog.Logger) error {
	specs := map[models.Milestone]string{
		models.MilestoneD7:   cfg.CronD7,
		models.MilestoneD3:   cfg.CronD3,
		models.MilestoneD1:   cfg.CronD1,
		models.MilestoneDDay: cfg.CronDDay,
	}
	for _, ms := range models.Milestones {
		name := "alerts_" + ms.DisplayName()
		_, err := c.AddFunc(specs[ms], schedulerservice.Job(logger, name, cfg.JobTimeout, guard.Wrap(name, func(ctx context.Context) error {
			_, err := alerts.RunMilestone(ctx, ms)
			return err
		})))
		if err != nil {
			return fmt.Errorf("failed to add %s job: %w", name, err)
		}
	}

	if _, err := c.AddFunc(cfg.CronNotices, schedulerservice.Job(logger, "payment_notices", cfg.JobTimeout, guard.Wrap("payment_notices", func(ctx context.Context) error {
		_, err := notices.CreatePaymentNotices(ctx, clock.Today(clk))
		return err
	}))); err != nil {
		return fmt.Errorf("failed to add payment notices job: %w", err)
	}

	if _, err := c.AddFunc(cfg.CronRollover, schedulerservice.Job(logger, "rollover", cfg.JobTimeout, guard.Wrap("rollover", func(ctx context.Context) error {
		_, err := roll.AdvanceOverdue(ctx, clock.Today(clk))
		return err
	}))); err != nil {
		return fmt.Errorf("failed to add rollover job: %w", err)
	}
	return nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает задания и HTTP-сервер и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.cron.Start()
	a.logger.Info("scheduler started", slog.Int("jobs", len(a.cron.Entries())))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	a.logger.Info("shutting down scheduler service")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}

	select {
	case <-a.cron.Stop().Done():
	case <-timeoutCtx.Done():
		a.logger.Warn("running jobs did not finish before shutdown timeout")
	}

	closeResources(a.ch, a.conn, a.logger)
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return runErr
}
