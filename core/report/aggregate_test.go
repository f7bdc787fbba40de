package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

var day1 = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func rec(studentID string, day time.Time, status attendance.Status) attendance.Record {
	return attendance.Record{StudentID: studentID, Date: day, ClassID: "c1", Status: status, Method: attendance.MethodManual}
}

func TestAggregate(t *testing.T) {
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)
	day5 := day1.AddDate(0, 0, 4)

	tests := []struct {
		name    string
		records []attendance.Record
		period  core.Period
		want    AggregateRate
	}{
		{
			name:   "no records",
			period: core.NewPeriod(day1, day5),
			want:   AggregateRate{},
		},
		{
			name: "unmarked days are excluded",
			// day 2 and 4 have no record
			records: []attendance.Record{rec("s1", day1, attendance.StatusPresent), rec("s1", day3, attendance.StatusAbsent), rec("s1", day5, attendance.StatusPresent)},
			period:  core.NewPeriod(day1, day5),
			want:    AggregateRate{PresentDays: 2, TotalDays: 3, Rate: null.IntFrom(67)},
		},
		{
			name:    "late and excused are recorded days but not present",
			records: []attendance.Record{rec("s1", day1, attendance.StatusLate), rec("s1", day2, attendance.StatusExcused), rec("s1", day3, attendance.StatusPresent)},
			period:  core.NewPeriod(day1, day3),
			want:    AggregateRate{PresentDays: 1, TotalDays: 3, Rate: null.IntFrom(33)},
		},
		{
			name:    "inclusive bounds",
			records: []attendance.Record{rec("s1", day1, attendance.StatusPresent), rec("s1", day2, attendance.StatusAbsent), rec("s1", day3, attendance.StatusPresent)},
			period:  core.NewPeriod(day1, day2),
			want:    AggregateRate{PresentDays: 1, TotalDays: 2, Rate: null.IntFrom(50)},
		},
		{
			name:    "outside period",
			records: []attendance.Record{rec("s1", day5, attendance.StatusPresent)},
			period:  core.NewPeriod(day1, day3),
			want:    AggregateRate{},
		},
		{
			name:    "open period",
			records: []attendance.Record{rec("s1", day1, attendance.StatusPresent), rec("s2", day5, attendance.StatusPresent)},
			want:    AggregateRate{PresentDays: 2, TotalDays: 2, Rate: null.IntFrom(100)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.records, tt.period))
		})
	}
}

func TestAggregate_noData(t *testing.T) {
	ar := Aggregate(nil, core.NewPeriod(day1, day1.AddDate(0, 0, 30)))
	assert.False(t, ar.HasData())
	assert.Equal(t, ComplianceNoData, ComplianceOf(ar.Rate))

	data, err := json.Marshal(ar)
	if assert.NoError(t, err) {
		assert.JSONEq(t, `{"present_days": 0, "total_days": 0, "rate": null}`, string(data))
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		present, total int
		want           null.Int
	}{
		{present: 2, total: 3, want: null.IntFrom(67)},
		{present: 1, total: 3, want: null.IntFrom(33)},
		{present: 1, total: 8, want: null.IntFrom(13)}, // 12.5
		{present: 1, total: 200, want: null.IntFrom(1)}, // 0.5
		{present: 0, total: 5, want: null.IntFrom(0)},
		{present: 5, total: 5, want: null.IntFrom(100)},
		{present: 0, total: 0, want: null.Int{}},
	}
	for _, tt := range tests {
		if got := Rate(tt.present, tt.total); got != tt.want {
			t.Errorf("Rate(%d, %d) = %v; want %v", tt.present, tt.total, got, tt.want)
		}
	}
}

func TestAggregateRate_Add(t *testing.T) {
	a := AggregateRate{PresentDays: 1, TotalDays: 1, Rate: null.IntFrom(100)}
	b := AggregateRate{PresentDays: 0, TotalDays: 3, Rate: null.IntFrom(0)}
	assert.Equal(t, AggregateRate{PresentDays: 1, TotalDays: 4, Rate: null.IntFrom(25)}, a.Add(b))
	assert.Equal(t, AggregateRate{}, AggregateRate{}.Add(AggregateRate{}))
}

func TestComplianceOf(t *testing.T) {
	tests := []struct {
		rate null.Int
		want Compliance
	}{
		{rate: null.IntFrom(100), want: ComplianceGood},
		{rate: null.IntFrom(80), want: ComplianceGood},
		{rate: null.IntFrom(79), want: ComplianceWarning},
		{rate: null.IntFrom(70), want: ComplianceWarning},
		{rate: null.IntFrom(69), want: ComplianceCritical},
		{rate: null.IntFrom(0), want: ComplianceCritical},
		{rate: null.Int{}, want: ComplianceNoData},
	}
	for _, tt := range tests {
		if got := ComplianceOf(tt.rate); got != tt.want {
			t.Errorf("ComplianceOf(%v) = %v; want %v", tt.rate, got, tt.want)
		}
	}
}

func TestTrendClassifier_Classify(t *testing.T) {
	tc := TrendClassifier{Threshold: 1}

	tests := []struct {
		name   string
		series []float64
		want   Trend
	}{
		{name: "empty", want: TrendStable},
		{name: "single point", series: []float64{80}, want: TrendStable},
		{name: "improving", series: []float64{80, 85}, want: TrendImproving},
		{name: "declining", series: []float64{85, 80}, want: TrendDeclining},
		{name: "flat", series: []float64{82, 82}, want: TrendStable},
		{name: "within threshold up", series: []float64{82, 83}, want: TrendStable},
		{name: "within threshold down", series: []float64{83, 82}, want: TrendStable},
		{name: "only ends count", series: []float64{70, 95, 40, 72}, want: TrendImproving},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tc.Classify(tt.series); got != tt.want {
				t.Errorf("Classify(%v) = %v; want %v", tt.series, got, tt.want)
			}
		})
	}
}

func TestTrendClassifier_ClassifyRates(t *testing.T) {
	tc := NewTrendClassifier(&core.Config{Attendance: core.AttendanceConfig{TrendThreshold: 5}})
	rates := []null.Int{{}, null.IntFrom(70), {}, null.IntFrom(74)}
	assert.Equal(t, TrendStable, tc.ClassifyRates(rates))

	rates = append(rates, null.IntFrom(76))
	assert.Equal(t, TrendImproving, tc.ClassifyRates(rates))
}

func TestWeekly(t *testing.T) {
	records := []attendance.Record{
		rec("s1", day1, attendance.StatusPresent),
		rec("s1", day1.AddDate(0, 0, 8), attendance.StatusAbsent),
		rec("s1", day1.AddDate(0, 0, 9), attendance.StatusPresent),
	}
	weeks := Weekly(records, core.NewPeriod(day1, day1.AddDate(0, 0, 15)))
	if assert.Len(t, weeks, 3) {
		assert.Equal(t, null.IntFrom(100), weeks[0].Rate)
		assert.Equal(t, null.IntFrom(50), weeks[1].Rate)
		assert.False(t, weeks[2].Rate.Valid)
		assert.Equal(t, day1.AddDate(0, 0, 14), weeks[2].Period.From)
		assert.Equal(t, day1.AddDate(0, 0, 15), weeks[2].Period.To)
	}
	assert.Nil(t, Weekly(records, core.Period{}))
}

func TestDaily(t *testing.T) {
	records := []attendance.Record{
		rec("s1", day1, attendance.StatusPresent),
		rec("s2", day1, attendance.StatusLate),
		rec("s3", day1, attendance.StatusAbsent),
	}
	stats := Daily(records, core.NewPeriod(day1, day1.AddDate(0, 0, 1)))
	if assert.Len(t, stats, 2) {
		assert.Equal(t, attendance.Counts{Present: 1, Absent: 1, Late: 1, Total: 3}, stats[0].Counts)
		assert.Equal(t, null.IntFrom(33), stats[0].Rate)
		assert.Equal(t, 0, stats[1].Total)
		assert.False(t, stats[1].Rate.Valid)
	}
}
