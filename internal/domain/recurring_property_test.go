package domain

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// drawDate generates an arbitrary calendar date between 2000 and 2100.
func drawDate(t *rapid.T) time.Time {
	y := rapid.IntRange(2000, 2100).Draw(t, "year")
	m := time.Month(rapid.IntRange(1, 12).Draw(t, "month"))
	lastDay := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
	d := rapid.IntRange(1, lastDay).Draw(t, "day")
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProperty_WeeklyAlwaysAddsSevenDays(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDate(t)
		got := AdvanceDate(d, FrequencyWeekly)
		if want := d.AddDate(0, 0, 7); !got.Equal(want) {
			t.Fatalf("AdvanceDate(%s, weekly) = %s, want %s", d, got, want)
		}
	})
}

func TestProperty_AdvanceDateStrictlyIncreases(t *testing.T) {
	freqs := []Frequency{
		FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyBiannually, FrequencyAnnually,
	}
	rapid.Check(t, func(t *rapid.T) {
		d := drawDate(t)
		freq := rapid.SampledFrom(freqs).Draw(t, "freq")
		got := AdvanceDate(d, freq)
		if !got.After(d) {
			t.Fatalf("AdvanceDate(%s, %s) = %s is not after the input", d, freq, got)
		}
	})
}

// Month-based frequencies must land in the expected target month and keep
// the day of month, clamping only when the target month is shorter.
func TestProperty_MonthAdvanceClampsDayOfMonth(t *testing.T) {
	months := map[Frequency]int{
		FrequencyMonthly:    1,
		FrequencyQuarterly:  3,
		FrequencyBiannually: 6,
		FrequencyAnnually:   12,
	}
	keys := []Frequency{FrequencyMonthly, FrequencyQuarterly, FrequencyBiannually, FrequencyAnnually}

	rapid.Check(t, func(t *rapid.T) {
		d := drawDate(t)
		freq := rapid.SampledFrom(keys).Draw(t, "freq")
		got := AdvanceDate(d, freq)

		wantFirst := time.Date(d.Year(), d.Month()+time.Month(months[freq]), 1, 0, 0, 0, 0, time.UTC)
		if got.Year() != wantFirst.Year() || got.Month() != wantFirst.Month() {
			t.Fatalf("AdvanceDate(%s, %s) = %s landed in the wrong month", d, freq, got)
		}

		lastDay := wantFirst.AddDate(0, 1, -1).Day()
		wantDay := d.Day()
		if wantDay > lastDay {
			wantDay = lastDay
		}
		if got.Day() != wantDay {
			t.Fatalf("AdvanceDate(%s, %s) = %s, want day %d", d, freq, got, wantDay)
		}
	})
}

// Repeated monthly advances from an end-of-month date must never walk
// forward past the end of the month (the Jan 31 -> Feb 28 -> Mar 28 chain
// is acceptable; Jan 31 -> Mar 2 is a double-billing bug).
func TestProperty_MonthlyAdvanceNeverSkipsAMonth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDate(t)
		steps := rapid.IntRange(1, 24).Draw(t, "steps")

		prev := d
		for i := 0; i < steps; i++ {
			next := AdvanceDate(prev, FrequencyMonthly)
			monthsApart := int(next.Month()-prev.Month()) + 12*(next.Year()-prev.Year())
			if monthsApart < 0 {
				monthsApart += 12
			}
			if monthsApart != 1 {
				t.Fatalf("step %d: %s -> %s spans %d months", i, prev, next, monthsApart)
			}
			prev = next
		}
	})
}
