package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDue() DueAlert {
	return DueAlert{
		Subscription: Subscription{
			ID:              42,
			UserID:          7,
			Name:            "Netflix",
			BillingCycle:    BillingCycleMonthly,
			NextPaymentDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		Owner: User{ID: 7, Email: "user@example.com"},
	}
}

func TestNewAlertEvent(t *testing.T) {
	e := NewAlertEvent(testDue(), MilestoneD7, time.Date(2025, 1, 8, 13, 45, 0, 0, time.UTC))

	assert.Equal(t, int64(42), e.SubscriptionID)
	assert.Equal(t, "user@example.com", e.UserEmail)
	assert.Equal(t, "Netflix", e.ServiceName)
	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), e.AlertDate)
	assert.Equal(t, "42:D_7:2025-01-08", e.Key())
	assert.Equal(t, "alert:42:D_7:2025-01-08", e.CacheKey())
}

func TestAlertEvent_JSON(t *testing.T) {
	e := NewAlertEvent(testDue(), MilestoneD1, time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC))

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subscriptionId": 42,
		"userEmail": "user@example.com",
		"serviceName": "Netflix",
		"alertType": "D_1",
		"alertDate": "2025-01-14"
	}`, string(data))

	var decoded AlertEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.Key(), decoded.Key())
	assert.True(t, e.AlertDate.Equal(decoded.AlertDate))
}

func TestAlertEvent_UnmarshalRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"missing id", `{"userEmail":"a@b.c","alertType":"D_1","alertDate":"2025-01-14"}`},
		{"empty email", `{"subscriptionId":1,"alertType":"D_1","alertDate":"2025-01-14"}`},
		{"unknown milestone", `{"subscriptionId":1,"userEmail":"a@b.c","alertType":"D_2","alertDate":"2025-01-14"}`},
		{"bad date", `{"subscriptionId":1,"userEmail":"a@b.c","alertType":"D_1","alertDate":"14.01.2025"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e AlertEvent
			assert.Error(t, json.Unmarshal([]byte(tt.payload), &e))
		})
	}
}

func TestNewAlertRecord(t *testing.T) {
	e := NewAlertEvent(testDue(), MilestoneDDay, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	sentAt := time.Date(2025, 1, 15, 0, 20, 0, 0, time.UTC)

	r := NewAlertRecord(e, sentAt)
	assert.Equal(t, AlertRecord{
		SubscriptionID: 42,
		AlertDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		AlertType:      MilestoneDDay,
		IsSent:         true,
		SentAt:         sentAt,
	}, r)
}
