// Package metrics собирает счётчики Prometheus пайплайна напоминаний.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// Уровни дедупликации для метки tier.
const (
	TierCache   = "cache"
	TierDurable = "durable"
	TierClaim   = "claim"
)

// Metrics счётчики планировщика и отправителя. Нулевое значение nil безопасно:
// все методы на nil ничего не делают.
type Metrics struct {
	published     *prometheus.CounterVec
	publishFailed prometheus.Counter
	sent          *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	sendFailed    prometheus.Counter
	rolledOver    prometheus.Counter
	notices       *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_published_total",
			Help: "Alert events published to the queue.",
		}, []string{"milestone"}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alerts_publish_failed_total",
			Help: "Alert events dropped because publishing failed.",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Alert emails sent.",
		}, []string{"milestone"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_duplicate_total",
			Help: "Alert events skipped as already sent or in flight.",
		}, []string{"tier"}),
		sendFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alerts_send_failed_total",
			Help: "Alert emails that failed to send.",
		}),
		rolledOver: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscriptions_rolled_over_total",
			Help: "Subscriptions whose next payment date was advanced.",
		}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_notices_created_total",
			Help: "In-app payment notices created.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.published, m.publishFailed, m.sent, m.duplicates, m.sendFailed, m.rolledOver, m.notices)
	return m
}

func (m *Metrics) Published(ms models.Milestone) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(ms)).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailed.Inc()
}

func (m *Metrics) Sent(ms models.Milestone) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(string(ms)).Inc()
}

func (m *Metrics) Duplicate(tier string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(tier).Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailed.Inc()
}

func (m *Metrics) RolledOver(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rolledOver.Add(float64(n))
}

func (m *Metrics) NoticeCreated(t models.NotificationType) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(string(t)).Inc()
}
