package tracking

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		days int
		want Tier
	}{
		{-30, TierOverdue},
		{-1, TierOverdue},
		{0, TierOverdue},
		{1, TierWarning1},
		{2, TierWarning3},
		{3, TierWarning3},
		{4, TierWarning5},
		{5, TierWarning5},
		{6, TierSafe},
		{365, TierSafe},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.days), "days=%d", tc.days)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Due Today", Label(Classify(0), 0))
	assert.Equal(t, "2 days overdue", Label(Classify(-2), -2))
	assert.Equal(t, "1 days overdue", Label(Classify(-1), -1))
	assert.Equal(t, "Due Tomorrow", Label(Classify(1), 1))
	assert.Equal(t, "3 days left", Label(Classify(3), 3))
	assert.Equal(t, "12 days left", Label(Classify(12), 12))
}

func TestNeedsReminder(t *testing.T) {
	for _, tier := range Tiers() {
		assert.Equal(t, tier != TierSafe, tier.NeedsReminder(), string(tier))
	}
	assert.False(t, Tier("unknown").NeedsReminder())
}

func TestDaysToDueIgnoresTimeOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Accra")
	require.NoError(t, err)

	today := time.Date(2025, 6, 10, 23, 59, 0, 0, loc)
	due := time.Date(2025, 6, 11, 0, 1, 0, 0, loc)
	assert.Equal(t, 1, DaysToDue(due, today, loc))

	assert.Equal(t, 0, DaysToDue(today, time.Date(2025, 6, 10, 0, 0, 0, 0, loc), loc))
	assert.Equal(t, -2, DaysToDue(time.Date(2025, 6, 8, 12, 0, 0, 0, loc), today, loc))
}

func TestDaysToDueAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	// Clocks go forward on 2025-03-30; the day is only 23 hours long.
	today := time.Date(2025, 3, 29, 12, 0, 0, 0, loc)
	due := time.Date(2025, 3, 31, 0, 30, 0, 0, loc)
	assert.Equal(t, 2, DaysToDue(due, today, loc))
}

func TestTierDependsOnlyOnDifference(t *testing.T) {
	loc := time.UTC
	base := []time.Time{
		time.Date(2024, 2, 27, 9, 0, 0, 0, loc),
		time.Date(2025, 12, 30, 18, 0, 0, 0, loc),
		time.Date(1999, 7, 1, 0, 0, 0, 0, loc),
	}
	for diff := -4; diff <= 8; diff++ {
		var tiers []Tier
		for _, today := range base {
			due := today.AddDate(0, 0, diff)
			tiers = append(tiers, Classify(DaysToDue(due, today, loc)))
		}
		for _, tier := range tiers {
			assert.Equal(t, tiers[0], tier, "diff=%d", diff)
		}
	}
}

func TestSameDay(t *testing.T) {
	loc := time.FixedZone("GMT+2", 2*60*60)
	a := time.Date(2025, 1, 1, 22, 30, 0, 0, time.UTC) // 00:30 on Jan 2 in loc
	b := time.Date(2025, 1, 2, 8, 0, 0, 0, loc)
	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(a, b, time.UTC))
}

func TestAmountPaidAndBalance(t *testing.T) {
	total := decimal.RequireFromString("450.00")
	paid := AmountPaid([]decimal.Decimal{
		decimal.RequireFromString("200.00"),
		decimal.RequireFromString("100.00"),
	})
	assert.True(t, paid.Equal(decimal.RequireFromString("300")))
	assert.True(t, Balance(total, paid).Equal(decimal.RequireFromString("150")))
	assert.False(t, Settled(total, paid))
	assert.True(t, Settled(total, total))
	assert.True(t, AmountPaid(nil).IsZero())
}

func TestAmountPaidHasNoBinaryDrift(t *testing.T) {
	var amounts []decimal.Decimal
	for i := 0; i < 10; i++ {
		amounts = append(amounts, decimal.RequireFromString("0.10"))
	}
	assert.True(t, AmountPaid(amounts).Equal(decimal.NewFromInt(1)))
}

func TestDateInKeepsCalendarDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	stored := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	got := DateIn(stored, ny)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, ny), got)
	assert.Equal(t, 0, DaysToDue(got, time.Date(2025, 3, 10, 23, 30, 0, 0, ny), ny))
}
