package models

// NotificationPreference настройки email-напоминаний пользователя.
// Глобальный флаг отключает все этапы сразу.
type NotificationPreference struct {
	EmailAlertEnabled bool
	EmailAlert7Days   bool
	EmailAlert3Days   bool
	EmailAlert1Day    bool
	EmailAlertDDay    bool
}

// Allows сообщает, хочет ли пользователь получать напоминание для этапа m.
func (p NotificationPreference) Allows(m Milestone) bool {
	if !p.EmailAlertEnabled {
		return false
	}
	switch m {
	case MilestoneD7:
		return p.EmailAlert7Days
	case MilestoneD3:
		return p.EmailAlert3Days
	case MilestoneD1:
		return p.EmailAlert1Day
	case MilestoneDDay:
		return p.EmailAlertDDay
	default:
		return false
	}
}

// User владелец подписки в объёме, нужном для рассылки.
type User struct {
	ID          int64
	Email       string
	Name        string
	Preferences NotificationPreference
}

// DueAlert пара подписка-владелец, попавшая в выборку этапа.
type DueAlert struct {
	Subscription Subscription
	Owner        User
}
