package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

const (
	defaultTrendDays = 30
	// schools at or above this rate count as compliant in the overall compliance rate
	compliantRate = 75
)

type (
	SessionRate struct {
		attendance.Session
		Rate null.Int `json:"rate"`
	}

	Teacher struct {
		Teacher        user.User      `json:"teacher"`
		Date           time.Time      `json:"date"`
		Classes        []school.Class `json:"classes"`
		RecentSessions []SessionRate  `json:"recent_sessions"`
	}

	AdminStats struct {
		Teachers int `json:"teachers"`
		school.Stats
	}

	TeacherClasses struct {
		user.User
		ClassCount int `json:"class_count"`
	}

	Admin struct {
		School   school.School    `json:"school"`
		Stats    AdminStats       `json:"stats"`
		Teachers []TeacherClasses `json:"teachers"`
	}

	SchoolStats struct {
		SchoolID   string               `json:"school_id"`
		Name       string               `json:"name"`
		District   string               `json:"district"`
		Students   int                  `json:"students"`
		Teachers   int                  `json:"teachers"`
		Classes    int                  `json:"classes"`
		Rate       report.AggregateRate `json:"attendance"`
		Compliance report.Compliance    `json:"compliance"`
	}

	DistrictSummary struct {
		District   string               `json:"district"`
		Schools    int                  `json:"schools"`
		Students   int                  `json:"students"`
		Rate       report.AggregateRate `json:"attendance"`
		Compliance report.Compliance    `json:"compliance"`
	}

	OverallStats struct {
		Schools    int                  `json:"schools"`
		Students   int                  `json:"students"`
		Teachers   int                  `json:"teachers"`
		Rate       report.AggregateRate `json:"attendance"`
		Compliance report.Compliance    `json:"compliance"`
		// ComplianceRate is the share of schools with data whose rate is at least 75, null without data.
		ComplianceRate null.Int `json:"compliance_rate"`
	}

	Government struct {
		Period    core.Period         `json:"period"`
		Overall   OverallStats        `json:"overall"`
		Districts []DistrictSummary   `json:"districts"`
		Schools   []SchoolStats       `json:"schools"`
		Trend     []report.DailyStats `json:"trend"`
	}

	GovernmentQuery struct {
		District string `query:"district" validate:"omitempty,notblank"`
		Days     int    `query:"days" validate:"omitempty,oneof=7 30 90"`
	}
)

func (gq *GovernmentQuery) Validate(validate *validator.Validate) error {
	gq.District = core.CleanString(gq.District)
	if gq.Days == 0 {
		gq.Days = defaultTrendDays
	}
	return validate.Struct(gq)
}

type (
	Service interface {
		Teacher(ctx context.Context, usr user.User) (Teacher, error)
		Admin(ctx context.Context, usr user.User) (Admin, error)
		Government(ctx context.Context, query GovernmentQuery) (Government, error)
	}

	service struct {
		usrSvc    user.Service
		schoolSvc school.Service
		attSvc    attendance.Service
		conf      *core.Config
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(usrSvc user.Service, schoolSvc school.Service, attSvc attendance.Service, conf *core.Config) Service {
	return &service{
		usrSvc:    usrSvc,
		schoolSvc: schoolSvc,
		attSvc:    attSvc,
		conf:      conf,
		nowFunc:   time.Now,
	}
}

func (svc *service) Teacher(ctx context.Context, usr user.User) (Teacher, error) {
	classes, err := svc.schoolSvc.QueryClasses(ctx, school.ClassFilter{TeacherID: usr.ID})
	if err != nil {
		return Teacher{}, errors.Wrap(err, "querying classes")
	}
	sessions, err := svc.attSvc.QuerySessions(ctx, attendance.SessionFilter{
		StartedBy: usr.ID,
		Limit:     svc.conf.Attendance.RecentSessions,
	})
	if err != nil {
		return Teacher{}, errors.Wrap(err, "querying sessions")
	}

	dash := Teacher{
		Teacher:        usr,
		Date:           core.Day(svc.nowFunc().UTC()),
		Classes:        classes,
		RecentSessions: make([]SessionRate, 0, len(sessions)),
	}
	for _, sess := range sessions {
		dash.RecentSessions = append(dash.RecentSessions, SessionRate{
			Session: sess,
			Rate:    report.Rate(sess.PresentCount, sess.TotalStudents),
		})
	}
	return dash, nil
}

func (svc *service) Admin(ctx context.Context, usr user.User) (Admin, error) {
	if usr.SchoolID == "" {
		return Admin{}, school.ErrNotFound
	}
	sch, err := svc.schoolSvc.GetSchool(ctx, usr.SchoolID)
	if err != nil {
		return Admin{}, err
	}
	stats, err := svc.schoolSvc.Stats(ctx, sch.ID)
	if err != nil {
		return Admin{}, errors.Wrap(err, "computing school stats")
	}
	teachers, err := svc.usrSvc.Query(ctx, &user.QueryFilter{Role: user.RoleTeacher, SchoolID: sch.ID}, nil)
	if err != nil {
		return Admin{}, errors.Wrap(err, "querying teachers")
	}
	classes, err := svc.schoolSvc.QueryClasses(ctx, school.ClassFilter{SchoolID: sch.ID})
	if err != nil {
		return Admin{}, errors.Wrap(err, "querying classes")
	}

	classCounts := make(map[string]int)
	for _, cls := range classes {
		if cls.TeacherID != "" {
			classCounts[cls.TeacherID]++
		}
	}
	dash := Admin{
		School:   sch,
		Stats:    AdminStats{Teachers: len(teachers), Stats: stats},
		Teachers: make([]TeacherClasses, 0, len(teachers)),
	}
	for _, tch := range teachers {
		dash.Teachers = append(dash.Teachers, TeacherClasses{User: tch, ClassCount: classCounts[tch.ID]})
	}
	return dash, nil
}

// Government summarises every school (of query.District when set) over the last query.Days days.
// District and overall rates pool the records of their schools.
func (svc *service) Government(ctx context.Context, query GovernmentQuery) (Government, error) {
	days := query.Days
	if days <= 0 {
		days = defaultTrendDays
	}
	period := core.LastDays(svc.nowFunc().UTC(), days)

	schools, err := svc.schoolSvc.QuerySchools(ctx, school.SchoolFilter{District: query.District})
	if err != nil {
		return Government{}, errors.Wrap(err, "querying schools")
	}
	records, err := svc.attSvc.QueryRecords(ctx, attendance.RecordFilter{District: query.District, Period: period})
	if err != nil {
		return Government{}, errors.Wrap(err, "querying records")
	}

	dash := Government{
		Period:  period,
		Schools: make([]SchoolStats, 0, len(schools)),
		Trend:   report.Daily(records, period),
	}
	rates := report.SchoolRates(schools, records, period)
	districts := make(map[string]*DistrictSummary)
	compliant, withData := 0, 0
	for i, sch := range schools {
		stats, err := svc.schoolSvc.Stats(ctx, sch.ID)
		if err != nil {
			return Government{}, errors.Wrapf(err, "computing stats of school %s", sch.ID)
		}
		teachers, err := svc.usrSvc.Count(ctx, &user.QueryFilter{Role: user.RoleTeacher, SchoolID: sch.ID})
		if err != nil {
			return Government{}, errors.Wrapf(err, "counting teachers of school %s", sch.ID)
		}

		ss := SchoolStats{
			SchoolID:   sch.ID,
			Name:       sch.Name,
			District:   sch.District,
			Students:   stats.ActiveStudents,
			Teachers:   teachers,
			Classes:    stats.Classes,
			Rate:       rates[i].Rate,
			Compliance: rates[i].Compliance,
		}
		dash.Schools = append(dash.Schools, ss)

		dist, ok := districts[sch.District]
		if !ok {
			dist = &DistrictSummary{District: sch.District}
			districts[sch.District] = dist
		}
		dist.Schools++
		dist.Students += ss.Students
		dist.Rate = dist.Rate.Add(ss.Rate)

		dash.Overall.Schools++
		dash.Overall.Students += ss.Students
		dash.Overall.Teachers += ss.Teachers
		dash.Overall.Rate = dash.Overall.Rate.Add(ss.Rate)
		if ss.Rate.HasData() {
			withData++
			if ss.Rate.Rate.Int >= compliantRate {
				compliant++
			}
		}
	}
	dash.Overall.Compliance = report.ComplianceOf(dash.Overall.Rate.Rate)
	dash.Overall.ComplianceRate = report.Rate(compliant, withData)

	dash.Districts = make([]DistrictSummary, 0, len(districts))
	for _, dist := range districts {
		dist.Compliance = report.ComplianceOf(dist.Rate.Rate)
		dash.Districts = append(dash.Districts, *dist)
	}
	sort.Slice(dash.Districts, func(i, j int) bool { return dash.Districts[i].District < dash.Districts[j].District })
	return dash, nil
}
