// Package sender собирает сервис отправки: потребитель очереди, защиту от дублей и SMTP.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-alerts/internal/config"
	"github.com/magabrotheeeer/subscription-alerts/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-alerts/internal/services/dedup"
	senderservice "github.com/magabrotheeeer/subscription-alerts/internal/services/sender"
	"github.com/magabrotheeeer/subscription-alerts/internal/storage/cache"
	"github.com/magabrotheeeer/subscription-alerts/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// ErrConsumerStopped канал доставок закрылся до отмены ctx: соединение с брокером
// потеряно, и процесс должен завершиться с ошибкой, чтобы его перезапустили.
var ErrConsumerStopped = errors.New("alert consumer stopped: delivery channel closed")

// App представляет приложение отправителя.
type App struct {
	conn           *amqp.Connection
	ch             *amqp.Channel
	db             *repository.Storage
	cache          *cache.Cache
	senderService  *senderservice.SenderService
	server         *http.Server
	workers        int
	handlerTimeout time.Duration
	logger         *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
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
	ch, err := rabbitmq.SetupChannel(conn, cfg.Workers, rabbitmq.GetAlertQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	gate := dedup.NewGate(db, cacheRedis, cfg.SentTTL, cfg.ClaimTTL, m, logger)
	mailer := smtp.NewMailer(smtp.NewTransport(cfg.SMTP, logger), cfg.SMTPSendTimeout, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	senderService := senderservice.NewSenderService(db, gate, mailer, limiter, clock.Real{}, m, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer)
	router.Get("/health", health.New(logger, map[string]health.Checker{
		"postgres": func(ctx context.Context) error { return db.DB.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
	}).ServeHTTP)
	router.Handle("/metrics", promhttp.Handler())

	return &App{
		conn:          conn,
		ch:            ch,
		db:            db,
		cache:         cacheRedis,
		senderService: senderService,
		server: &http.Server{
			Addr:         cfg.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutHTTP,
			WriteTimeout: cfg.TimeoutHTTP,
			IdleTimeout:  cfg.IdleTimeout,
		},
		workers:        cfg.Workers,
		handlerTimeout: cfg.HandlerTimeout,
		logger:         logger,
	}, nil
}

// handle ограничивает время обработки одного сообщения.
func (a *App) handle(ctx context.Context, body []byte) error {
	if a.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.handlerTimeout)
		defer cancel()
	}
	return a.senderService.HandleAlert(ctx, body)
}

// Run читает очередь напоминаний до отмены ctx и дожидается начатых обработок.
// Если брокер закрыл канал доставок раньше, Run возвращает ErrConsumerStopped.
func (a *App) Run(ctx context.Context) error {
	done, err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.AlertQueue, a.workers, a.handle, a.logger)
	if err != nil {
		a.logger.Error("failed to start alert consumer", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("alert consumer started", slog.String("queue", rabbitmq.AlertQueue), slog.Int("workers", a.workers))

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	stopErr := waitConsumer(ctx, done)
	if stopErr != nil {
		a.logger.Error("alert consumer stopped unexpectedly", sl.Err(stopErr))
	} else {
		a.logger.Info("sender service shutting down gracefully")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}
	a.close()
	return stopErr
}

// waitConsumer ждёт завершения потребителя. Остановка без отмены ctx возвращает ErrConsumerStopped.
func waitConsumer(ctx context.Context, done <-chan struct{}) error {
	<-done
	if ctx.Err() == nil {
		return ErrConsumerStopped
	}
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
