package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

// ErrPermanent помечает ошибки, после которых повторная доставка бессмысленна:
// сообщение уходит в dead-letter очередь сразу.
var ErrPermanent = errors.New("permanent failure")

// Permanent оборачивает err как неисправимую ошибку обработки.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler обрабатывает тело сообщения. nil означает успешную обработку.
type Handler func(ctx context.Context, body []byte) error

// Consumer часть amqp.Channel, нужная для чтения очереди.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerMessage запускает чтение очереди с ручным подтверждением.
// Одновременно обрабатывается не больше workers сообщений. Подтверждение отправляется
// только после успешного handler; временная ошибка возвращает сообщение в очередь один раз,
// повторная или постоянная отправляет его в dead-letter.
// После отмены ctx новые сообщения не берутся, а начатые обработки доводятся до конца
// без отмены. Возвращённый канал закрывается, когда все они завершились.
func ConsumerMessage(ctx context.Context, ch Consumer, queueName string, workers int, handler Handler, log *slog.Logger) (<-chan struct{}, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if workers < 1 {
		workers = 1
	}

	done := make(chan struct{})
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	go func() {
		defer close(done)
		defer wg.Wait()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Warn("delivery channel closed", slog.String("queue", queueName))
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					settle(context.WithoutCancel(ctx), d, handler, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}

func settle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	err := handleSafely(ctx, d.Body, handler)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrPermanent) && !d.Redelivered
	log.Warn("message handling failed",
		sl.Err(err),
		slog.String("message_id", d.MessageId),
		slog.Bool("redelivered", d.Redelivered),
		slog.Bool("requeue", requeue),
	)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error("failed to nack message", sl.Err(nackErr))
	}
}

func handleSafely(ctx context.Context, body []byte, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler(ctx, body)
}
