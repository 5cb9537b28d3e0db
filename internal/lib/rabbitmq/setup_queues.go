package rabbitmq

const (
	// AlertExchange обменник событий напоминаний.
	AlertExchange = "notifications"
	// AlertRoutingKey ключ маршрутизации запланированных напоминаний.
	AlertRoutingKey = "alert.scheduled"
	// AlertQueue очередь, которую читает сервис отправки.
	AlertQueue = "subscription.alert.scheduled"
	// AlertDeadLetterExchange обменник для сообщений, которые не удалось обработать.
	AlertDeadLetterExchange = "notifications.dlx"
	// AlertDeadLetterQueue очередь для ручной переотправки.
	AlertDeadLetterQueue = "subscription.alert.scheduled.dlq"
)

// QueueConfig описание очереди и её привязки.
type QueueConfig struct {
	Exchange           string
	QueueName          string
	RoutingKey         string
	DeadLetterExchange string
}

// GetAlertQueues возвращает топологию канала напоминаний.
// Очередь мёртвых писем объявляется первой, чтобы её обменник существовал к моменту
// объявления основной очереди.
func GetAlertQueues() []QueueConfig {
	return []QueueConfig{
		{Exchange: AlertDeadLetterExchange, QueueName: AlertDeadLetterQueue, RoutingKey: AlertRoutingKey},
		{
			Exchange:           AlertExchange,
			QueueName:          AlertQueue,
			RoutingKey:         AlertRoutingKey,
			DeadLetterExchange: AlertDeadLetterExchange,
		},
	}
}
