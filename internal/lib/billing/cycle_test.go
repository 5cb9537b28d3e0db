package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextPaymentDate_TableTests(t *testing.T) {
	tests := []struct {
		name    string
		cycle   models.BillingCycle
		current time.Time
		want    time.Time
	}{
		{
			name:    "weekly adds seven days",
			cycle:   models.BillingCycleWeekly,
			current: date(2025, 1, 1),
			want:    date(2025, 1, 8),
		},
		{
			name:    "weekly crosses year",
			cycle:   models.BillingCycleWeekly,
			current: date(2024, 12, 29),
			want:    date(2025, 1, 5),
		},
		{
			name:    "monthly plain",
			cycle:   models.BillingCycleMonthly,
			current: date(2025, 3, 15),
			want:    date(2025, 4, 15),
		},
		{
			name:    "monthly clamps january 31 to february 28",
			cycle:   models.BillingCycleMonthly,
			current: date(2025, 1, 31),
			want:    date(2025, 2, 28),
		},
		{
			name:    "monthly clamps to february 29 in leap year",
			cycle:   models.BillingCycleMonthly,
			current: date(2024, 1, 31),
			want:    date(2024, 2, 29),
		},
		{
			name:    "monthly december to january",
			cycle:   models.BillingCycleMonthly,
			current: date(2024, 12, 10),
			want:    date(2025, 1, 10),
		},
		{
			name:    "yearly plain",
			cycle:   models.BillingCycleYearly,
			current: date(2025, 6, 1),
			want:    date(2026, 6, 1),
		},
		{
			name:    "yearly from leap day",
			cycle:   models.BillingCycleYearly,
			current: date(2024, 2, 29),
			want:    date(2025, 2, 28),
		},
		{
			name:    "custom behaves as monthly",
			cycle:   models.BillingCycleCustom,
			current: date(2025, 1, 31),
			want:    date(2025, 2, 28),
		},
		{
			name:    "time of day is dropped",
			cycle:   models.BillingCycleWeekly,
			current: time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC),
			want:    date(2025, 1, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextPaymentDate(tt.cycle, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextPaymentDate_UnknownCycle(t *testing.T) {
	_, err := NextPaymentDate(models.BillingCycle("DAILY"), date(2025, 1, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownBillingCycle)
}

func TestAddMonths_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{name: "march 31 plus one month", from: date(2025, 3, 31), n: 1, want: date(2025, 4, 30)},
		{name: "august 31 plus six months", from: date(2025, 8, 31), n: 6, want: date(2026, 2, 28)},
		{name: "zero months", from: date(2025, 5, 17), n: 0, want: date(2025, 5, 17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.from, tt.n))
		})
	}
}
