package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday is a locale-independent day identifier. It is always derived from
// time.Weekday, never from a formatted date string.
type Weekday string

const (
	Sunday    Weekday = "sunday"
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

// indexed by time.Weekday
var weekDays = [7]struct {
	ID    Weekday
	Label string
}{
	{Sunday, "Domingo"},
	{Monday, "Segunda"},
	{Tuesday, "Terça"},
	{Wednesday, "Quarta"},
	{Thursday, "Quinta"},
	{Friday, "Sexta"},
	{Saturday, "Sábado"},
}

// WeekdayOf returns the identifier for the calendar day of t.
func WeekdayOf(t time.Time) Weekday {
	return weekDays[t.Weekday()].ID
}

// ParseWeekday accepts the identifiers above (case-insensitive) and their
// three-letter forms ("mon").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range weekDays {
		if s == string(d.ID) || (len(s) == 3 && strings.HasPrefix(string(d.ID), s)) {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// Label is the display name used by the chat UI.
func (d Weekday) Label() string {
	for _, wd := range weekDays {
		if wd.ID == d {
			return wd.Label
		}
	}
	return string(d)
}

// Weekly maps each open weekday to its ordered HH:MM slots.
type Weekly map[Weekday][]string

// NewWeekly validates a raw weekday -> slots table (as found in config).
// Times are normalized to HH:MM and every list must be strictly increasing.
func NewWeekly(raw map[string][]string) (Weekly, error) {
	w := make(Weekly, len(raw))
	for key, times := range raw {
		day, err := ParseWeekday(key)
		if err != nil {
			return nil, err
		}
		if _, dup := w[day]; dup {
			return nil, fmt.Errorf("weekday %s configured twice", day)
		}
		slots := make([]string, 0, len(times))
		prev := -1
		for _, t := range times {
			minutes, err := ParseClock(t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", day, err)
			}
			if minutes <= prev {
				return nil, fmt.Errorf("%s: %s is not after the previous slot", day, t)
			}
			prev = minutes
			slots = append(slots, FormatClock(minutes))
		}
		w[day] = slots
	}
	return w, nil
}

// ParseClock parses "HH:MM" (single digit hour allowed) into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Resolver answers which days are open and which slots they offer.
type Resolver struct {
	weekly Weekly
	closed map[Weekday]bool
}

// NewResolver builds a resolver. Days listed in closed are never bookable,
// even when the weekly table has slots for them.
func NewResolver(weekly Weekly, closed ...Weekday) *Resolver {
	r := &Resolver{weekly: weekly, closed: make(map[Weekday]bool, len(closed))}
	for _, d := range closed {
		r.closed[d] = true
	}
	return r
}

// ResolveWeekday returns the weekday of date and whether it is open.
func (r *Resolver) ResolveWeekday(date time.Time) (Weekday, bool) {
	day := WeekdayOf(date)
	if r.closed[day] {
		return day, false
	}
	return day, len(r.weekly[day]) > 0
}

// AvailableTimes returns a copy of the slots for day. Closed or unconfigured
// days yield an empty slice.
func (r *Resolver) AvailableTimes(day Weekday, open bool) []string {
	if !open || r.closed[day] {
		return []string{}
	}
	times := r.weekly[day]
	out := make([]string, len(times))
	copy(out, times)
	return out
}

// TimesFor resolves date and returns its slots.
func (r *Resolver) TimesFor(date time.Time) []string {
	return r.AvailableTimes(r.ResolveWeekday(date))
}

// Contains reports whether clock is one of the slots offered on day.
func (r *Resolver) Contains(day Weekday, clock string) bool {
	if r.closed[day] {
		return false
	}
	times := r.weekly[day]
	i := sort.SearchStrings(times, clock)
	return i < len(times) && times[i] == clock
}

// OpenDays lists open weekdays in calendar order starting on Sunday.
func (r *Resolver) OpenDays() []Weekday {
	var days []Weekday
	for _, d := range weekDays {
		if !r.closed[d.ID] && len(r.weekly[d.ID]) > 0 {
			days = append(days, d.ID)
		}
	}
	return days
}

// Selectable reports whether date is today or later. Only the calendar day
// is compared, so today stays selectable for the whole day.
func Selectable(date, now time.Time) bool {
	return !DateOnly(date, now.Location()).Before(DateOnly(now, now.Location()))
}

// DateOnly truncates t to midnight of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Day is one entry of the date picker.
type Day struct {
	Date    time.Time
	Weekday Weekday
	Open    bool
}

// UpcomingDays returns n consecutive calendar days starting today.
func (r *Resolver) UpcomingDays(now time.Time, n int) []Day {
	today := DateOnly(now, now.Location())
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		date := today.AddDate(0, 0, i)
		wd, open := r.ResolveWeekday(date)
		days = append(days, Day{Date: date, Weekday: wd, Open: open})
	}
	return days
}

// CalendarDate keeps the year, month and day of t as written and places them
// at midnight in loc, without converting between zones.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Compose joins the calendar day of date and an HH:MM slot into an instant in loc.
func Compose(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// Decompose is the inverse of Compose.
func Decompose(ts time.Time, loc *time.Location) (time.Time, string) {
	local := ts.In(loc)
	return DateOnly(local, loc), local.Format("15:04")
}
