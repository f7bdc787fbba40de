package core

import (
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsDay reports whether t has no time component.
func IsDay(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ParseDay parses a "YYYY-MM-DD" calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, CleanString(s), time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing day %q", s)
	}
	return t, nil
}

// Period is an inclusive range of calendar days. A zero bound is open.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewPeriod(from, to time.Time) Period {
	p := Period{}
	if !from.IsZero() {
		p.From = Day(from)
	}
	if !to.IsZero() {
		p.To = Day(to)
	}
	return p
}

// LastDays returns the period of the n days ending on (and including) today.
func LastDays(today time.Time, n int) Period {
	if n < 1 {
		n = 1
	}
	to := Day(today)
	return Period{From: to.AddDate(0, 0, -(n - 1)), To: to}
}

func (p Period) Contains(day time.Time) bool {
	day = Day(day)
	if !p.From.IsZero() && day.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && day.After(p.To) {
		return false
	}
	return true
}

// DayCount is the number of calendar days of a closed period, 0 when open or empty.
func (p Period) DayCount() int {
	if p.From.IsZero() || p.To.IsZero() || p.To.Before(p.From) {
		return 0
	}
	return int((p.To.Unix()-p.From.Unix())/(24*60*60)) + 1
}

// Days lists every calendar day of a closed period, oldest first.
func (p Period) Days() []time.Time {
	if p.From.IsZero() || p.To.IsZero() || p.To.Before(p.From) {
		return nil
	}
	var days []time.Time
	for d := p.From; !d.After(p.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
