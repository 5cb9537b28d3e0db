// Package billing считает даты следующего платежа по циклу оплаты подписки.
package billing

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// NextPaymentDate возвращает дату платежа через один цикл после current.
// Месяцы и годы прибавляются с прижатием к концу месяца: 31 января + месяц = 28 (29) февраля.
func NextPaymentDate(cycle models.BillingCycle, current time.Time) (time.Time, error) {
	const op = "billing.NextPaymentDate"
	current = models.DateOf(current)

	switch cycle {
	case models.BillingCycleWeekly:
		return current.AddDate(0, 0, 7), nil
	case models.BillingCycleMonthly, models.BillingCycleCustom:
		return AddMonths(current, 1), nil
	case models.BillingCycleYearly:
		return AddMonths(current, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%s: %w: %q", op, models.ErrUnknownBillingCycle, cycle)
	}
}

// AddMonths прибавляет n календарных месяцев, не перескакивая в следующий месяц.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
