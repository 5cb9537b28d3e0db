// Package rabbitmq реализует канал событий поверх RabbitMQ: подключение,
// объявление топологии, публикацию и потребление с ручным подтверждением.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, повторяя попытки retries раз с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	if retries < 1 {
		retries = 1
	}
	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал с prefetch и объявляет обменники, очереди и привязки.
// Каждая очередь получает dead-letter обменник, если он задан в конфигурации.
func SetupChannel(conn *amqp.Connection, prefetch int, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
		}
	}

	for _, q := range queues {
		if err := declareQueue(ch, q); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return ch, nil
}

func declareQueue(ch *amqp.Channel, q QueueConfig) error {
	err := ch.ExchangeDeclare(
		q.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", q.Exchange, err)
	}

	var args amqp.Table
	if q.DeadLetterExchange != "" {
		args = amqp.Table{
			"x-dead-letter-exchange":    q.DeadLetterExchange,
			"x-dead-letter-routing-key": q.RoutingKey,
		}
	}

	_, err = ch.QueueDeclare(
		q.QueueName,
		true,
		false,
		false,
		false,
		args,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", q.QueueName, err)
	}

	err = ch.QueueBind(
		q.QueueName,
		q.RoutingKey,
		q.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue %s with routing key %s: %w", q.QueueName, q.RoutingKey, err)
	}
	return nil
}
