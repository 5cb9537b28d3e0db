package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Published(models.MilestoneD7)
	m.Published(models.MilestoneD7)
	m.Sent(models.MilestoneD1)
	m.Duplicate(TierDurable)
	m.RolledOver(3)
	m.RolledOver(0)
	m.NoticeCreated(models.NotificationPaymentToday)
	m.PublishFailed()
	m.SendFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("D_7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sent.WithLabelValues("D_1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates.WithLabelValues(TierDurable)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rolledOver))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notices.WithLabelValues("PAYMENT_TODAY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendFailed))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Published(models.MilestoneD3)
		m.Sent(models.MilestoneD3)
		m.Duplicate(TierCache)
		m.RolledOver(1)
		m.NoticeCreated(models.NotificationPaymentDue)
		m.PublishFailed()
		m.SendFailed()
	})
}
