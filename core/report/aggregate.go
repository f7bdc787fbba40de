package report

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

// Compliance classifies an attendance rate.
type Compliance string

const (
	ComplianceGood     Compliance = "good"
	ComplianceWarning  Compliance = "warning"
	ComplianceCritical Compliance = "critical"
	ComplianceNoData   Compliance = "no_data"

	goodRate    = 80
	warningRate = 70
)

// Trend labels the direction of a rate series.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// AggregateRate is the share of present days among the days with any recorded status.
// Rate is null when no day was recorded.
type AggregateRate struct {
	PresentDays int      `json:"present_days"`
	TotalDays   int      `json:"total_days"`
	Rate        null.Int `json:"rate"`
}

func (ar AggregateRate) HasData() bool { return ar.Rate.Valid }

// Add pools other into ar.
func (ar AggregateRate) Add(other AggregateRate) AggregateRate {
	present := ar.PresentDays + other.PresentDays
	total := ar.TotalDays + other.TotalDays
	return AggregateRate{PresentDays: present, TotalDays: total, Rate: Rate(present, total)}
}

// Rate returns present/total as a percentage rounded half up, null when total is 0.
func Rate(present, total int) null.Int {
	if total <= 0 {
		return null.Int{}
	}
	return null.IntFrom((200*present + total) / (2 * total))
}

// Aggregate computes the rate of the records within period (inclusive bounds).
// Days without a record count neither as present nor as recorded.
func Aggregate(records []attendance.Record, period core.Period) AggregateRate {
	var ar AggregateRate
	for _, rec := range records {
		if !period.Contains(rec.Date) {
			continue
		}
		ar.TotalDays++
		if rec.Status == attendance.StatusPresent {
			ar.PresentDays++
		}
	}
	ar.Rate = Rate(ar.PresentDays, ar.TotalDays)
	return ar
}

// ComplianceOf classifies rate: good from 80, warning from 70, critical below.
func ComplianceOf(rate null.Int) Compliance {
	switch {
	case !rate.Valid:
		return ComplianceNoData
	case rate.Int >= goodRate:
		return ComplianceGood
	case rate.Int >= warningRate:
		return ComplianceWarning
	default:
		return ComplianceCritical
	}
}

// TrendClassifier labels a rate series by comparing its last point to its first.
type TrendClassifier struct {
	Threshold float64
}

func NewTrendClassifier(conf *core.Config) TrendClassifier {
	return TrendClassifier{Threshold: conf.Attendance.TrendThreshold}
}

// Classify labels series, ordered oldest to newest. Fewer than 2 points is stable.
func (tc TrendClassifier) Classify(series []float64) Trend {
	if len(series) < 2 {
		return TrendStable
	}
	delta := series[len(series)-1] - series[0]
	switch {
	case delta > tc.Threshold:
		return TrendImproving
	case delta < -tc.Threshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// ClassifyRates labels a series of rates, skipping the points without data.
func (tc TrendClassifier) ClassifyRates(rates []null.Int) Trend {
	series := make([]float64, 0, len(rates))
	for _, rate := range rates {
		if rate.Valid {
			series = append(series, float64(rate.Int))
		}
	}
	return tc.Classify(series)
}

// PeriodRate is the rate of a sub period.
type PeriodRate struct {
	Period core.Period `json:"period"`
	AggregateRate
}

// Weekly splits period into consecutive 7 day periods, the last one possibly shorter,
// and aggregates records over each.
func Weekly(records []attendance.Record, period core.Period) []PeriodRate {
	if period.From.IsZero() || period.To.IsZero() || period.To.Before(period.From) {
		return nil
	}
	var weeks []PeriodRate
	for from := period.From; !from.After(period.To); from = from.AddDate(0, 0, 7) {
		to := from.AddDate(0, 0, 6)
		if to.After(period.To) {
			to = period.To
		}
		week := core.Period{From: from, To: to}
		weeks = append(weeks, PeriodRate{Period: week, AggregateRate: Aggregate(records, week)})
	}
	return weeks
}

func rates(prs []PeriodRate) []null.Int {
	rs := make([]null.Int, 0, len(prs))
	for _, pr := range prs {
		rs = append(rs, pr.Rate)
	}
	return rs
}

// DailyStats tallies the records of one day.
type DailyStats struct {
	Date time.Time `json:"date"`
	attendance.Counts
	Rate null.Int `json:"rate"`
}

// Daily tallies records per day of period, oldest first. Days without records have a null rate.
func Daily(records []attendance.Record, period core.Period) []DailyStats {
	byDay := make(map[time.Time]*attendance.Counts)
	for _, rec := range records {
		day := core.Day(rec.Date)
		if !period.Contains(day) {
			continue
		}
		counts, ok := byDay[day]
		if !ok {
			counts = new(attendance.Counts)
			byDay[day] = counts
		}
		counts.Add(rec.Status)
	}

	days := period.Days()
	stats := make([]DailyStats, 0, len(days))
	for _, day := range days {
		ds := DailyStats{Date: day}
		if counts, ok := byDay[day]; ok {
			ds.Counts = *counts
			ds.Rate = Rate(counts.Present, counts.Total)
		}
		stats = append(stats, ds)
	}
	return stats
}
