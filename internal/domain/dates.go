package domain

import "time"

// DateRange is an inclusive [From, To] window of calendar days in UTC.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey is the canonical map key for a calendar day.
func DayKey(t time.Time) string { return Day(t).Format("2006-01-02") }

func NewDateRange(from, to time.Time) DateRange {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		from, to = to, from
	}
	return DateRange{From: from, To: to}
}

func (r DateRange) Days() []time.Time {
	var out []time.Time
	for d := Day(r.From); !d.After(Day(r.To)); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.From)) && !d.After(Day(r.To))
}
