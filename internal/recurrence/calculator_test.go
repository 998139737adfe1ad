package recurrence

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func TestNextDueMonthlyScenario(t *testing.T) {
	got := NextDue(day(t, "2024-01-01"), domain.FrequencyMonthly, 1, day(t, "2024-06-10"))
	assert.Equal(t, "2024-07-01", FormatDate(got))
}

func TestNextDueFutureStartUnchanged(t *testing.T) {
	start := day(t, "2030-03-15")
	for _, unit := range []domain.FrequencyUnit{
		domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyYearly, "fortnightly",
	} {
		got := NextDue(start, unit, 3, day(t, "2024-06-10"))
		assert.Equal(t, start, got, "unit %s", unit)
	}
}

func TestNextDueReferenceOnOccurrence(t *testing.T) {
	got := NextDue(day(t, "2024-01-01"), domain.FrequencyWeekly, 1, day(t, "2024-01-15"))
	assert.Equal(t, "2024-01-15", FormatDate(got))

	got = NextDue(day(t, "2024-06-10"), domain.FrequencyMonthly, 1, day(t, "2024-06-10"))
	assert.Equal(t, "2024-06-10", FormatDate(got))
}

func TestNextDueUnits(t *testing.T) {
	cases := []struct {
		name  string
		start string
		unit  domain.FrequencyUnit
		value int
		ref   string
		want  string
	}{
		{"daily", "2024-01-01", domain.FrequencyDaily, 3, "2024-01-05", "2024-01-07"},
		{"weekly", "2024-01-01", domain.FrequencyWeekly, 2, "2024-01-16", "2024-01-29"},
		{"quarterly", "2024-01-15", domain.FrequencyQuarterly, 1, "2024-05-01", "2024-07-15"},
		{"two quarters", "2024-01-15", domain.FrequencyQuarterly, 2, "2024-02-01", "2024-07-15"},
		{"yearly", "2020-02-29", domain.FrequencyYearly, 1, "2023-01-01", "2023-03-01"},
		{"unknown falls back to monthly", "2024-01-01", "fortnightly", 1, "2024-06-10", "2024-07-01"},
		{"empty unit falls back to monthly", "2024-01-20", "", 2, "2024-02-01", "2024-03-20"},
		{"zero value treated as one", "2024-01-01", domain.FrequencyDaily, 0, "2024-01-05", "2024-01-05"},
		{"daily from centuries back", "1700-01-01", domain.FrequencyDaily, 1, "2024-06-10", "2024-06-10"},
		{"weekly from centuries back", "1700-01-01", domain.FrequencyWeekly, 1, "2024-06-10", "2024-06-14"},
		{"two-digit year typo", "0024-01-01", domain.FrequencyWeekly, 2, "2024-06-10", "2024-06-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDue(day(t, tc.start), tc.unit, tc.value, day(t, tc.ref))
			assert.Equal(t, tc.want, FormatDate(got))
		})
	}
}

func TestNextDueEndOfMonthRollover(t *testing.T) {
	// Jan 31 + 1 month normalises to Mar 2 in 2024, Jan 31 + 2 months is Mar 31.
	got := NextDue(day(t, "2024-01-31"), domain.FrequencyMonthly, 1, day(t, "2024-02-15"))
	assert.Equal(t, "2024-03-02", FormatDate(got))

	got = NextDue(day(t, "2024-01-31"), domain.FrequencyMonthly, 1, day(t, "2024-03-01"))
	assert.Equal(t, "2024-03-02", FormatDate(got))

	got = NextDue(day(t, "2024-01-31"), domain.FrequencyMonthly, 1, day(t, "2024-03-03"))
	assert.Equal(t, "2024-03-31", FormatDate(got))
}

func TestNextDueIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	ref := time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)
	got := NextDue(start, domain.FrequencyMonthly, 1, ref)
	assert.Equal(t, "2024-07-01", FormatDate(got))
}

func TestNextDueMonthlyTightBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := day(t, "2015-01-01")
	for i := 0; i < 2000; i++ {
		start := base.AddDate(0, 0, rng.Intn(3000))
		if start.Day() > 28 {
			// subtracting a month is not the inverse of adding one past day 28
			start = start.AddDate(0, 0, 28-start.Day())
		}
		ref := start.AddDate(0, 0, rng.Intn(1500))
		got := NextDue(start, domain.FrequencyMonthly, 1, ref)

		require.False(t, got.Before(ref), "start=%s ref=%s got=%s", FormatDate(start), FormatDate(ref), FormatDate(got))
		require.True(t, got.AddDate(0, -1, 0).Before(ref), "start=%s ref=%s got=%s", FormatDate(start), FormatDate(ref), FormatDate(got))
	}
}

func TestNextDueOnSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := day(t, "2018-01-01")
	units := []domain.FrequencyUnit{domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly, domain.FrequencyQuarterly, domain.FrequencyYearly}
	for i := 0; i < 500; i++ {
		start := base.AddDate(0, 0, rng.Intn(1000))
		ref := start.AddDate(0, 0, rng.Intn(2000))
		unit := units[rng.Intn(len(units))]
		value := 1 + rng.Intn(4)
		got := NextDue(start, unit, value, ref)

		require.False(t, got.Before(ref))
		found := false
		for k := 0; k < 5000 && !found; k++ {
			var occ time.Time
			switch unit {
			case domain.FrequencyDaily:
				occ = start.AddDate(0, 0, k*value)
			case domain.FrequencyWeekly:
				occ = start.AddDate(0, 0, 7*k*value)
			case domain.FrequencyQuarterly:
				occ = start.AddDate(0, 3*k*value, 0)
			case domain.FrequencyYearly:
				occ = start.AddDate(k*value, 0, 0)
			default:
				occ = start.AddDate(0, k*value, 0)
			}
			if occ.Equal(got) {
				found = true
			}
			if !occ.Before(ref) {
				require.True(t, occ.Equal(got), "earlier occurrence %s missed, got %s", FormatDate(occ), FormatDate(got))
				break
			}
		}
		require.True(t, found, "result %s not on sequence", FormatDate(got))
	}
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-16", FormatDate(Today(now, loc)))
	assert.Equal(t, "2024-06-15", FormatDate(Today(now, nil)))
	assert.Equal(t, "2024-07-01", FormatDate(AddDays(Today(now, loc), 15)))
}
