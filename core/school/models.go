package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

type School struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	District      string    `json:"district"`
	State         string    `json:"state"`
	PrincipalName string    `json:"principal_name"`
	ContactPhone  string    `json:"contact_phone"`
	ContactEmail  string    `json:"contact_email"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type Class struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	Name         string    `json:"name"`
	Grade        string    `json:"grade"`
	Section      string    `json:"section"`
	AcademicYear string    `json:"academic_year"`
	TeacherID    string    `json:"teacher_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC

	// read-only, joined on query
	TeacherName  string `json:"teacher_name,omitempty"`
	StudentCount int    `json:"student_count"` // active students
}

// Student is identified by ID; Code is the enrolment number shown to users, unique per school.
type Student struct {
	ID          string    `json:"id"`
	Code        string    `json:"student_code"`
	FullName    string    `json:"full_name"`
	ClassID     string    `json:"class_id"`
	SchoolID    string    `json:"school_id"`
	DateOfBirth null.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	ParentName  string    `json:"parent_name"`
	ParentPhone string    `json:"parent_phone"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Stats is the headcount of a school.
type Stats struct {
	Classes        int `json:"classes"`
	Students       int `json:"students"`
	ActiveStudents int `json:"active_students"`
}

type SchoolFilter struct {
	IDs      []string
	District string
}

type ClassFilter struct {
	IDs       []string
	SchoolID  string
	TeacherID string
}

type StudentFilter struct {
	SchoolID string `query:"-"`
	ClassID  string `query:"class_id"`
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (f *StudentFilter) Clean() {
	f.ClassID = core.CleanString(f.ClassID)
	f.Search = core.CleanString(f.Search)
}

// NewSchool contains information needed to register a School.
type NewSchool struct {
	Name          string `json:"name" yaml:"name" validate:"required,notblank"`
	Address       string `json:"address" yaml:"address"`
	District      string `json:"district" yaml:"district" validate:"required,notblank"`
	State         string `json:"state" yaml:"state"`
	PrincipalName string `json:"principal_name" yaml:"principal_name"`
	ContactPhone  string `json:"contact_phone" yaml:"contact_phone"`
	ContactEmail  string `json:"contact_email" yaml:"contact_email" validate:"omitempty,email"`
}

func (ns *NewSchool) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	ns.District = core.CleanString(ns.District)
	ns.State = core.CleanString(ns.State)
	ns.PrincipalName = core.CleanString(ns.PrincipalName)
	ns.ContactPhone = core.CleanString(ns.ContactPhone)
	ns.ContactEmail = core.CleanString(ns.ContactEmail, true /* lower */)
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

// UpdateSchool replaces the editable profile of a School.
type UpdateSchool NewSchool

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	ns := (*NewSchool)(us)
	ns.clean()
	return validate.Struct(ns)
}

// NewClass contains information needed to create a Class.
type NewClass struct {
	Name         string `json:"name" yaml:"name" validate:"required,notblank"`
	Grade        string `json:"grade" yaml:"grade"`
	Section      string `json:"section" yaml:"section"`
	AcademicYear string `json:"academic_year" yaml:"academic_year"`
	TeacherID    string `json:"teacher_id" yaml:"teacher_id" validate:"omitempty,uuid"`
}

// Validate checks the class fields and that the assigned teacher teaches at schoolID.
func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service, schoolID string) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Grade = core.CleanString(nc.Grade)
	nc.Section = core.CleanString(nc.Section)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.TeacherID = core.CleanString(nc.TeacherID)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.TeacherID == "" {
		return nil
	}
	teacher, err := usrSvc.GetByID(ctx, nc.TeacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "teacher not found"})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() || teacher.SchoolID != schoolID {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "not a teacher of this school"})
	}
	return nil
}

// NewStudent contains information needed to enrol a Student.
type NewStudent struct {
	Code        string `json:"student_code" yaml:"student_code" validate:"required,notblank"`
	FullName    string `json:"full_name" yaml:"full_name" validate:"required,notblank"`
	ClassID     string `json:"class_id" yaml:"class_id" validate:"required,uuid"`
	DateOfBirth string `json:"date_of_birth" yaml:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender" yaml:"gender" validate:"omitempty,oneof=male female other"`
	ParentName  string `json:"parent_name" yaml:"parent_name"`
	ParentPhone string `json:"parent_phone" yaml:"parent_phone"`
}

// Validate checks the student fields, that the class belongs to schoolID and that the code is free.
func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service, schoolID string) error {
	ns.Code = core.CleanString(ns.Code)
	ns.FullName = core.CleanString(ns.FullName)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.DateOfBirth = core.CleanString(ns.DateOfBirth)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.ParentName = core.CleanString(ns.ParentName)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)

	if err := validate.Struct(ns); err != nil {
		return err
	}

	cls, err := svc.GetClass(ctx, ns.ClassID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
		}
		return errors.Wrap(err, "finding class")
	}
	if cls.SchoolID != schoolID {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
	}
	return svc.CheckStudentCodeUniqueness(ctx, schoolID, ns.Code)
}
