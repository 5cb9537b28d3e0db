package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout формат календарной даты в событиях и ключах кэша.
const DateLayout = "2006-01-02"

// AlertEvent событие напоминания, которое кладётся в очередь.
// Идентичность события определяется только тройкой (SubscriptionID, AlertType, AlertDate).
type AlertEvent struct {
	SubscriptionID int64
	UserEmail      string
	ServiceName    string
	AlertType      Milestone
	AlertDate      time.Time
}

type alertEventJSON struct {
	SubscriptionID int64     `json:"subscriptionId"`
	UserEmail      string    `json:"userEmail"`
	ServiceName    string    `json:"serviceName"`
	AlertType      Milestone `json:"alertType"`
	AlertDate      string    `json:"alertDate"`
}

// NewAlertEvent собирает событие для пары подписка-владелец.
func NewAlertEvent(due DueAlert, m Milestone, alertDate time.Time) AlertEvent {
	return AlertEvent{
		SubscriptionID: due.Subscription.ID,
		UserEmail:      due.Owner.Email,
		ServiceName:    due.Subscription.Name,
		AlertType:      m,
		AlertDate:      DateOf(alertDate),
	}
}

// Key естественный ключ события.
func (e AlertEvent) Key() string {
	return fmt.Sprintf("%d:%s:%s", e.SubscriptionID, e.AlertType, e.AlertDate.Format(DateLayout))
}

// CacheKey ключ быстрого уровня дедупликации.
func (e AlertEvent) CacheKey() string {
	return "alert:" + e.Key()
}

// MarshalJSON пишет дату в формате YYYY-MM-DD.
func (e AlertEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(alertEventJSON{
		SubscriptionID: e.SubscriptionID,
		UserEmail:      e.UserEmail,
		ServiceName:    e.ServiceName,
		AlertType:      e.AlertType,
		AlertDate:      e.AlertDate.Format(DateLayout),
	})
}

// UnmarshalJSON разбирает событие из очереди и проверяет обязательные поля.
func (e *AlertEvent) UnmarshalJSON(data []byte) error {
	var raw alertEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.SubscriptionID <= 0 {
		return fmt.Errorf("invalid subscription id %d", raw.SubscriptionID)
	}
	if raw.UserEmail == "" {
		return fmt.Errorf("empty user email")
	}
	date, err := time.Parse(DateLayout, raw.AlertDate)
	if err != nil {
		return fmt.Errorf("invalid alert date: %w", err)
	}
	*e = AlertEvent{
		SubscriptionID: raw.SubscriptionID,
		UserEmail:      raw.UserEmail,
		ServiceName:    raw.ServiceName,
		AlertType:      raw.AlertType,
		AlertDate:      date,
	}
	return nil
}

// AlertRecord долговременная отметка об отправленном напоминании.
type AlertRecord struct {
	SubscriptionID int64
	AlertDate      time.Time
	AlertType      Milestone
	IsSent         bool
	SentAt         time.Time
}

// NewAlertRecord строит запись для успешно отправленного события.
func NewAlertRecord(e AlertEvent, sentAt time.Time) AlertRecord {
	return AlertRecord{
		SubscriptionID: e.SubscriptionID,
		AlertDate:      DateOf(e.AlertDate),
		AlertType:      e.AlertType,
		IsSent:         true,
		SentAt:         sentAt,
	}
}
