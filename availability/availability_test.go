package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	weekly, err := NewWeekly(map[string][]string{
		"monday":   {"09:00", "10:00"},
		"saturday": {"9:00", "10:30", "11:00"},
		"sunday":   {"10:00"},
	})
	require.NoError(t, err)
	return NewResolver(weekly, Sunday)
}

func TestWeekdayOfIsLocaleIndependent(t *testing.T) {
	// 2026-10-19 is a Monday
	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo)
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Sunday, WeekdayOf(monday.AddDate(0, 0, -1)))
	assert.Equal(t, "Segunda", Monday.Label())
	assert.Equal(t, "Sábado", Saturday.Label())
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
	}{
		{"Monday", Monday},
		{" tue ", Tuesday},
		{"THU", Thursday},
		{"sat", Saturday},
		{"sunday", Sunday},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekday(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWeekday("Segunda")
	require.Error(t, err)
}

func TestNewWeeklyValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string][]string
	}{
		{"unknown day", map[string][]string{"funday": {"09:00"}}},
		{"bad time", map[string][]string{"monday": {"25:00"}}},
		{"bad minutes", map[string][]string{"monday": {"09:7"}}},
		{"not increasing", map[string][]string{"monday": {"10:00", "09:00"}}},
		{"duplicate slot", map[string][]string{"monday": {"10:00", "10:00"}}},
		{"day twice", map[string][]string{"monday": {"10:00"}, "mon": {"11:00"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWeekly(tt.raw)
			require.Error(t, err)
		})
	}
}

func TestNewWeeklyNormalizes(t *testing.T) {
	w, err := NewWeekly(map[string][]string{"sat": {"9:00", "10:30"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:30"}, w[Saturday])
}

func TestResolveWeekday(t *testing.T) {
	r := testResolver(t)

	day, open := r.ResolveWeekday(time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo))
	assert.Equal(t, Monday, day)
	assert.True(t, open)

	// configured but globally closed
	day, open = r.ResolveWeekday(time.Date(2026, 10, 18, 0, 0, 0, 0, saoPaulo))
	assert.Equal(t, Sunday, day)
	assert.False(t, open)

	// not configured
	day, open = r.ResolveWeekday(time.Date(2026, 10, 20, 0, 0, 0, 0, saoPaulo))
	assert.Equal(t, Tuesday, day)
	assert.False(t, open)
}

func TestAvailableTimes(t *testing.T) {
	r := testResolver(t)

	assert.Equal(t, []string{"09:00", "10:00"}, r.AvailableTimes(Monday, true))
	assert.Empty(t, r.AvailableTimes(Monday, false))
	assert.Empty(t, r.AvailableTimes(Sunday, true))
	assert.NotNil(t, r.AvailableTimes(Wednesday, true))
	assert.Empty(t, r.AvailableTimes(Wednesday, true))

	// callers cannot mutate the table
	times := r.AvailableTimes(Monday, true)
	times[0] = "00:00"
	assert.Equal(t, []string{"09:00", "10:00"}, r.AvailableTimes(Monday, true))
}

func TestTimesForEveryClosedWeekdayIsEmpty(t *testing.T) {
	r := testResolver(t)
	start := time.Date(2026, 10, 18, 0, 0, 0, 0, saoPaulo)
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		day, open := r.ResolveWeekday(date)
		if !open {
			assert.Empty(t, r.TimesFor(date), "day %s", day)
		} else {
			assert.NotEmpty(t, r.TimesFor(date), "day %s", day)
		}
	}
}

func TestContains(t *testing.T) {
	r := testResolver(t)
	assert.True(t, r.Contains(Monday, "10:00"))
	assert.False(t, r.Contains(Monday, "10:30"))
	assert.False(t, r.Contains(Sunday, "10:00"))
	assert.False(t, r.Contains(Friday, "10:00"))
}

func TestOpenDays(t *testing.T) {
	assert.Equal(t, []Weekday{Monday, Saturday}, testResolver(t).OpenDays())
}

func TestSelectableKeepsToday(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 59, 0, 0, saoPaulo)
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo)

	assert.True(t, Selectable(today, now))
	assert.True(t, Selectable(today.AddDate(0, 0, 1), now))
	assert.False(t, Selectable(today.AddDate(0, 0, -1), now))
}

func TestUpcomingDays(t *testing.T) {
	r := testResolver(t)
	now := time.Date(2026, 10, 17, 15, 30, 0, 0, saoPaulo) // Saturday afternoon

	days := r.UpcomingDays(now, 3)
	require.Len(t, days, 3)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, saoPaulo), days[0].Date)
	assert.Equal(t, Saturday, days[0].Weekday)
	assert.True(t, days[0].Open)
	assert.Equal(t, Sunday, days[1].Weekday)
	assert.False(t, days[1].Open)
	assert.Equal(t, Monday, days[2].Weekday)
	assert.True(t, days[2].Open)
}

func TestComposeDecomposeRoundTrip(t *testing.T) {
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, saoPaulo)
	for _, clock := range []string{"00:00", "09:00", "10:30", "21:00", "23:59"} {
		ts, err := Compose(date, clock, saoPaulo)
		require.NoError(t, err)

		gotDate, gotClock := Decompose(ts.UTC(), saoPaulo)
		assert.Equal(t, date, gotDate)
		assert.Equal(t, clock, gotClock)
	}
}

func TestComposeUsesCalendarDayAsWritten(t *testing.T) {
	// midnight UTC is still the previous evening in São Paulo; the calendar
	// day written on the date must win.
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	ts, err := Compose(date, "10:00", saoPaulo)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T13:00:00Z", ts.UTC().Format(time.RFC3339))
}

func TestComposeRejectsBadClock(t *testing.T) {
	_, err := Compose(time.Now(), "xx:yy", saoPaulo)
	require.Error(t, err)
}
