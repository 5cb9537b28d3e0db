package models

import (
	"fmt"
	"time"
)

// NotificationType тип уведомления в приложении.
type NotificationType string

const (
	NotificationPaymentDue     NotificationType = "PAYMENT_DUE"
	NotificationPaymentToday   NotificationType = "PAYMENT_TODAY"
	NotificationPaymentOverdue NotificationType = "PAYMENT_OVERDUE"
)

// NotificationPriority приоритет уведомления.
type NotificationPriority string

const (
	PriorityHigh   NotificationPriority = "HIGH"
	PriorityMedium NotificationPriority = "MEDIUM"
)

// Notification уведомление в ленте пользователя.
type Notification struct {
	ID             int64
	UserID         int64
	SubscriptionID int64
	Message        string
	Type           NotificationType
	Priority       NotificationPriority
	DaysUntil      int
	IsRead         bool
	CreatedAt      time.Time
}

// ClassifyPayment определяет, нужно ли уведомление для платежа с датой due:
// за три дня, в день платежа и на следующий день после него.
func ClassifyPayment(today, due time.Time) (NotificationType, NotificationPriority, int, bool) {
	switch days := DaysBetween(today, due); days {
	case 3:
		return NotificationPaymentDue, PriorityMedium, days, true
	case 0:
		return NotificationPaymentToday, PriorityHigh, days, true
	case -1:
		return NotificationPaymentOverdue, PriorityHigh, 1, true
	default:
		return "", "", 0, false
	}
}

// NewPaymentNotification собирает уведомление о платеже по подписке.
func NewPaymentNotification(sub Subscription, t NotificationType, p NotificationPriority, days int) Notification {
	var msg string
	switch t {
	case NotificationPaymentDue:
		msg = fmt.Sprintf("%s subscription will be charged in %d days.", sub.Name, days)
	case NotificationPaymentToday:
		msg = fmt.Sprintf("%s subscription will be charged today.", sub.Name)
	case NotificationPaymentOverdue:
		msg = fmt.Sprintf("%s subscription payment date has passed.", sub.Name)
	default:
		msg = fmt.Sprintf("%s subscription notice", sub.Name)
	}
	return Notification{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Message:        msg,
		Type:           t,
		Priority:       p,
		DaysUntil:      days,
	}
}
