package sl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.Panics(t, func() {
		_ = Err(nil)
	})
}

func TestEvent_WritesEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf)

	log.Error("failed to send alert", Event(models.AlertEvent{
		SubscriptionID: 42,
		UserEmail:      "user@example.com",
		ServiceName:    "Netflix",
		AlertType:      models.MilestoneD3,
		AlertDate:      time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
	}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	event, ok := entry["event"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 42, event["subscription_id"])
	assert.Equal(t, "D_3", event["milestone"])
	assert.Equal(t, "2025-03-04", event["alert_date"])
}

func TestNew_LevelByEnv(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, newLogger("local", &buf).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newLogger("prod", &buf).Enabled(context.Background(), slog.LevelDebug))
}
