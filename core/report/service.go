package report

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
)

// DefaultPeriodDays is the length of a report period when no bound is given.
const DefaultPeriodDays = 30

type (
	StudentReport struct {
		Student    school.Student    `json:"student"`
		Period     core.Period       `json:"period"`
		Days       attendance.Counts `json:"days"`
		Rate       AggregateRate     `json:"attendance"`
		Compliance Compliance        `json:"compliance"`
		Trend      Trend             `json:"trend"`
		Weekly     []PeriodRate      `json:"weekly"`
	}

	StudentRate struct {
		StudentID   string        `json:"student_id"`
		StudentCode string        `json:"student_code"`
		FullName    string        `json:"full_name"`
		Rate        AggregateRate `json:"attendance"`
		Compliance  Compliance    `json:"compliance"`
	}

	ClassReport struct {
		Class      school.Class  `json:"class"`
		Period     core.Period   `json:"period"`
		Rate       AggregateRate `json:"attendance"`
		Compliance Compliance    `json:"compliance"`
		Trend      Trend         `json:"trend"`
		Weekly     []PeriodRate  `json:"weekly"`
		Students   []StudentRate `json:"students"`
	}

	ClassDailyReport struct {
		Class  school.Class `json:"class"`
		Period core.Period  `json:"period"`
		Days   []DailyStats `json:"days"`
	}

	ClassRate struct {
		ClassID    string        `json:"class_id"`
		Name       string        `json:"name"`
		Rate       AggregateRate `json:"attendance"`
		Compliance Compliance    `json:"compliance"`
	}

	SchoolReport struct {
		School     school.School `json:"school"`
		Period     core.Period   `json:"period"`
		Rate       AggregateRate `json:"attendance"`
		Compliance Compliance    `json:"compliance"`
		Trend      Trend         `json:"trend"`
		Weekly     []PeriodRate  `json:"weekly"`
		Classes    []ClassRate   `json:"classes"`
	}

	SchoolRate struct {
		SchoolID   string        `json:"school_id"`
		Name       string        `json:"name"`
		Rate       AggregateRate `json:"attendance"`
		Compliance Compliance    `json:"compliance"`
	}

	DistrictReport struct {
		District   string        `json:"district"`
		Period     core.Period   `json:"period"`
		Rate       AggregateRate `json:"attendance"`
		Compliance Compliance    `json:"compliance"`
		Trend      Trend         `json:"trend"`
		Weekly     []PeriodRate  `json:"weekly"`
		Schools    []SchoolRate  `json:"schools"`
	}
)

type (
	Service interface {
		// Period closes p: a missing end is today, a missing start is DefaultPeriodDays before the end.
		Period(p core.Period) core.Period
		Student(ctx context.Context, studentID string, period core.Period) (StudentReport, error)
		Class(ctx context.Context, classID string, period core.Period) (ClassReport, error)
		ClassDaily(ctx context.Context, classID string, period core.Period) (ClassDailyReport, error)
		School(ctx context.Context, schoolID string, period core.Period) (SchoolReport, error)
		District(ctx context.Context, district string, period core.Period) (DistrictReport, error)
	}

	service struct {
		schoolSvc school.Service
		attSvc    attendance.Service
		trend     TrendClassifier
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(schoolSvc school.Service, attSvc attendance.Service, conf *core.Config) Service {
	return &service{
		schoolSvc: schoolSvc,
		attSvc:    attSvc,
		trend:     NewTrendClassifier(conf),
		nowFunc:   time.Now,
	}
}

func (svc *service) Period(p core.Period) core.Period {
	p = core.NewPeriod(p.From, p.To)
	if p.To.IsZero() {
		p.To = core.Day(svc.nowFunc().UTC())
	}
	if p.From.IsZero() {
		p.From = p.To.AddDate(0, 0, -(DefaultPeriodDays - 1))
	}
	return p
}

func (svc *service) records(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	records, err := svc.attSvc.QueryRecords(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return records, nil
}

func (svc *service) Student(ctx context.Context, studentID string, period core.Period) (StudentReport, error) {
	std, err := svc.schoolSvc.GetStudent(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}
	period = svc.Period(period)
	records, err := svc.records(ctx, attendance.RecordFilter{StudentIDs: []string{std.ID}, Period: period})
	if err != nil {
		return StudentReport{}, err
	}

	rep := StudentReport{
		Student: std,
		Period:  period,
		Rate:    Aggregate(records, period),
		Weekly:  Weekly(records, period),
	}
	for _, rec := range records {
		rep.Days.Add(rec.Status)
	}
	rep.Compliance = ComplianceOf(rep.Rate.Rate)
	rep.Trend = svc.trend.ClassifyRates(rates(rep.Weekly))
	return rep, nil
}

func (svc *service) Class(ctx context.Context, classID string, period core.Period) (ClassReport, error) {
	cls, err := svc.schoolSvc.GetClass(ctx, classID)
	if err != nil {
		return ClassReport{}, err
	}
	period = svc.Period(period)
	records, err := svc.records(ctx, attendance.RecordFilter{ClassIDs: []string{cls.ID}, Period: period})
	if err != nil {
		return ClassReport{}, err
	}
	roster, err := svc.schoolSvc.FetchActiveRoster(ctx, cls.ID)
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "fetching roster")
	}

	byStudent := make(map[string][]attendance.Record)
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}

	rep := ClassReport{
		Class:    cls,
		Period:   period,
		Rate:     Aggregate(records, period),
		Weekly:   Weekly(records, period),
		Students: make([]StudentRate, 0, len(roster)),
	}
	rep.Compliance = ComplianceOf(rep.Rate.Rate)
	rep.Trend = svc.trend.ClassifyRates(rates(rep.Weekly))
	for _, std := range roster {
		ar := Aggregate(byStudent[std.ID], period)
		rep.Students = append(rep.Students, StudentRate{
			StudentID:   std.ID,
			StudentCode: std.Code,
			FullName:    std.FullName,
			Rate:        ar,
			Compliance:  ComplianceOf(ar.Rate),
		})
	}
	return rep, nil
}

func (svc *service) ClassDaily(ctx context.Context, classID string, period core.Period) (ClassDailyReport, error) {
	cls, err := svc.schoolSvc.GetClass(ctx, classID)
	if err != nil {
		return ClassDailyReport{}, err
	}
	period = svc.Period(period)
	records, err := svc.records(ctx, attendance.RecordFilter{ClassIDs: []string{cls.ID}, Period: period})
	if err != nil {
		return ClassDailyReport{}, err
	}
	return ClassDailyReport{Class: cls, Period: period, Days: Daily(records, period)}, nil
}

func (svc *service) School(ctx context.Context, schoolID string, period core.Period) (SchoolReport, error) {
	sch, err := svc.schoolSvc.GetSchool(ctx, schoolID)
	if err != nil {
		return SchoolReport{}, err
	}
	classes, err := svc.schoolSvc.QueryClasses(ctx, school.ClassFilter{SchoolID: sch.ID})
	if err != nil {
		return SchoolReport{}, errors.Wrap(err, "querying classes")
	}
	period = svc.Period(period)
	records, err := svc.records(ctx, attendance.RecordFilter{SchoolIDs: []string{sch.ID}, Period: period})
	if err != nil {
		return SchoolReport{}, err
	}

	byClass := make(map[string][]attendance.Record)
	for _, rec := range records {
		byClass[rec.ClassID] = append(byClass[rec.ClassID], rec)
	}

	rep := SchoolReport{
		School:  sch,
		Period:  period,
		Rate:    Aggregate(records, period),
		Weekly:  Weekly(records, period),
		Classes: make([]ClassRate, 0, len(classes)),
	}
	rep.Compliance = ComplianceOf(rep.Rate.Rate)
	rep.Trend = svc.trend.ClassifyRates(rates(rep.Weekly))
	for _, cls := range classes {
		ar := Aggregate(byClass[cls.ID], period)
		rep.Classes = append(rep.Classes, ClassRate{ClassID: cls.ID, Name: cls.Name, Rate: ar, Compliance: ComplianceOf(ar.Rate)})
	}
	return rep, nil
}

// District pools the records of every school of district; its rate is not the mean of the school rates.
func (svc *service) District(ctx context.Context, district string, period core.Period) (DistrictReport, error) {
	district = core.CleanString(district)
	schools, err := svc.schoolSvc.QuerySchools(ctx, school.SchoolFilter{District: district})
	if err != nil {
		return DistrictReport{}, errors.Wrap(err, "querying schools")
	}
	period = svc.Period(period)
	// a district without schools has no data
	var records []attendance.Record
	if len(schools) > 0 {
		if records, err = svc.records(ctx, attendance.RecordFilter{District: district, Period: period}); err != nil {
			return DistrictReport{}, err
		}
	}

	rep := DistrictReport{
		District: district,
		Period:   period,
		Rate:     Aggregate(records, period),
		Weekly:   Weekly(records, period),
		Schools:  SchoolRates(schools, records, period),
	}
	rep.Compliance = ComplianceOf(rep.Rate.Rate)
	rep.Trend = svc.trend.ClassifyRates(rates(rep.Weekly))
	return rep, nil
}

// SchoolRates aggregates records per school, in the order of schools.
// Records must carry their SchoolID.
func SchoolRates(schools []school.School, records []attendance.Record, period core.Period) []SchoolRate {
	bySchool := make(map[string][]attendance.Record)
	for _, rec := range records {
		bySchool[rec.SchoolID] = append(bySchool[rec.SchoolID], rec)
	}
	srs := make([]SchoolRate, 0, len(schools))
	for _, sch := range schools {
		ar := Aggregate(bySchool[sch.ID], period)
		srs = append(srs, SchoolRate{SchoolID: sch.ID, Name: sch.Name, Rate: ar, Compliance: ComplianceOf(ar.Rate)})
	}
	return srs
}
