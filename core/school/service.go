package school

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound           = errors.New("not found")
	ErrStudentCodeExists  = errors.New("a student with this code already exists in this school")
	ErrStudentDeactivated = errors.New("student already deactivated")
)

type (
	// Repository is the school, class & student storage. Every method runs on exec when provided.
	Repository interface {
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, filter SchoolFilter, exec ...core.DBExecutor) ([]School, error)
		UpdateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)

		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		// QueryClasses returns classes ordered by name, with teacher name and active student count.
		QueryClasses(ctx context.Context, filter ClassFilter, exec ...core.DBExecutor) ([]Class, error)

		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// QueryStudents returns students ordered by name.
		QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		CheckStudentCodeUniqueness(ctx context.Context, schoolID, code string, exec ...core.DBExecutor) error
		// FetchActiveRoster returns the active students of a class ordered by name.
		FetchActiveRoster(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Student, error)
	}

	Service interface {
		CreateSchool(ctx context.Context, ns NewSchool) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		QuerySchools(ctx context.Context, filter SchoolFilter) ([]School, error)
		UpdateSchool(ctx context.Context, id string, us UpdateSchool) (School, error)
		Stats(ctx context.Context, schoolID string) (Stats, error)

		CreateClass(ctx context.Context, schoolID string, nc NewClass) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)

		CreateStudent(ctx context.Context, schoolID string, ns NewStudent) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		DeactivateStudent(ctx context.Context, id string) (Student, error)
		CheckStudentCodeUniqueness(ctx context.Context, schoolID, code string) error
		FetchActiveRoster(ctx context.Context, classID string) ([]Student, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	return svc.repo.CreateSchool(ctx, School{
		Name:          ns.Name,
		Address:       ns.Address,
		District:      ns.District,
		State:         ns.State,
		PrincipalName: ns.PrincipalName,
		ContactPhone:  ns.ContactPhone,
		ContactEmail:  ns.ContactEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *service) QuerySchools(ctx context.Context, filter SchoolFilter) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter)
}

func (svc *service) UpdateSchool(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	sch.Name = us.Name
	sch.Address = us.Address
	sch.District = us.District
	sch.State = us.State
	sch.PrincipalName = us.PrincipalName
	sch.ContactPhone = us.ContactPhone
	sch.ContactEmail = us.ContactEmail
	sch.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *service) Stats(ctx context.Context, schoolID string) (Stats, error) {
	classes, err := svc.repo.QueryClasses(ctx, ClassFilter{SchoolID: schoolID})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying classes")
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{SchoolID: schoolID})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying students")
	}

	stats := Stats{Classes: len(classes), Students: len(students)}
	for _, std := range students {
		if std.IsActive {
			stats.ActiveStudents++
		}
	}
	return stats, nil
}

func (svc *service) CreateClass(ctx context.Context, schoolID string, nc NewClass) (Class, error) {
	return svc.repo.CreateClass(ctx, Class{
		SchoolID:     schoolID,
		Name:         nc.Name,
		Grade:        nc.Grade,
		Section:      nc.Section,
		AcademicYear: nc.AcademicYear,
		TeacherID:    nc.TeacherID,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *service) CreateStudent(ctx context.Context, schoolID string, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		Code:        ns.Code,
		FullName:    ns.FullName,
		ClassID:     ns.ClassID,
		SchoolID:    schoolID,
		Gender:      ns.Gender,
		ParentName:  ns.ParentName,
		ParentPhone: ns.ParentPhone,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ns.DateOfBirth != "" {
		dob, err := core.ParseDay(ns.DateOfBirth)
		if err != nil {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "date_of_birth", Error: "invalid date"})
		}
		std.DateOfBirth = null.TimeFrom(dob)
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// DeactivateStudent removes a student from every roster from now on; their records stay valid.
func (svc *service) DeactivateStudent(ctx context.Context, id string) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !std.IsActive {
		return Student{}, core.NewValidationError(ErrStudentDeactivated)
	}
	std.IsActive = false
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) CheckStudentCodeUniqueness(ctx context.Context, schoolID, code string) error {
	if err := svc.repo.CheckStudentCodeUniqueness(ctx, schoolID, code); err != nil {
		if errors.Cause(err) == ErrStudentCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "student_code", Error: err.Error()})
		}
		return errors.Wrap(err, "checking student code uniqueness")
	}
	return nil
}

func (svc *service) FetchActiveRoster(ctx context.Context, classID string) ([]Student, error) {
	return svc.repo.FetchActiveRoster(ctx, classID)
}
