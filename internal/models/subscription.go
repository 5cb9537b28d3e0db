// Package models содержит доменные структуры пайплайна напоминаний о платежах:
// подписку, владельца с настройками уведомлений, этапы напоминаний и события,
// которые передаются через очередь.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownBillingCycle возвращается для цикла оплаты, который не умеет обрабатывать движок переноса дат.
var ErrUnknownBillingCycle = errors.New("unknown billing cycle")

// BillingCycle период списания по подписке.
type BillingCycle string

const (
	BillingCycleWeekly  BillingCycle = "WEEKLY"
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
	// BillingCycleCustom пока считается как MONTHLY: отдельный интервал не хранится.
	BillingCycleCustom BillingCycle = "CUSTOM"
)

// ParseBillingCycle проверяет строковое значение цикла из хранилища.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch c := BillingCycle(s); c {
	case BillingCycleWeekly, BillingCycleMonthly, BillingCycleYearly, BillingCycleCustom:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBillingCycle, s)
	}
}

// Subscription представляет подписку пользователя на внешний сервис.
// NextPaymentDate всегда хранится как календарная дата (полночь UTC).
type Subscription struct {
	ID              int64        // Идентификатор подписки
	UserID          int64        // Владелец подписки
	Name            string       // Отображаемое название сервиса
	Cost            int64        // Стоимость в минимальных единицах валюты
	BillingCycle    BillingCycle // Период списания
	StartDate       time.Time    // Дата начала подписки
	NextPaymentDate time.Time    // Дата следующего платежа
	IsPaused        bool         // Подписка приостановлена
	DeletedAt       *time.Time   // Дата мягкого удаления
}

// DateOf отбрасывает время суток и возвращает календарную дату в UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween возвращает количество календарных дней от from до to.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
