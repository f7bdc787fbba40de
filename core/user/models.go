package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/mahudhurio/core"
)

// Roles
const (
	RoleTeacher    = "teacher"
	RoleAdmin      = "admin"      // school administrator
	RoleGovernment = "government" // regulator: read-only, every school
)

var (
	AllRoles = []string{RoleTeacher, RoleAdmin, RoleGovernment}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "School Admin", Value: RoleAdmin},
		{Name: "Government", Value: RoleGovernment},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Dashboard is the landing view of a role.
type Dashboard string

const (
	DashboardTeacher    Dashboard = "teacher"
	DashboardAdmin      Dashboard = "admin"
	DashboardGovernment Dashboard = "government"
)

// DashboardFor maps a role to its dashboard. Unknown roles land on the teacher dashboard.
func DashboardFor(role string) Dashboard {
	switch role {
	case RoleAdmin:
		return DashboardAdmin
	case RoleGovernment:
		return DashboardGovernment
	default:
		return DashboardTeacher
	}
}

func (d Dashboard) Path() string {
	return "/dashboard/" + string(d)
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Role         string    `json:"role"`
	SchoolID     string    `json:"school_id,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool    { return u.Role == RoleTeacher }
func (u *User) IsGovernment() bool { return u.Role == RoleGovernment }

// CanAccessSchool reports whether u may read data of the given school.
func (u *User) CanAccessSchool(schoolID string) bool {
	return u.IsGovernment() || (schoolID != "" && u.SchoolID == schoolID)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,allroles"`
	SchoolID        string `json:"school_id" validate:"omitempty,uuid"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.SchoolID = core.CleanString(nu.SchoolID)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// InviteTeacher contains information needed by a school admin to invite a teacher.
type InviteTeacher struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

func (it *InviteTeacher) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	it.Name = core.CleanString(it.Name)
	it.Email = core.CleanString(it.Email, true /* lower */)

	if err := validate.Struct(it); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, "", it.Email)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	SchoolID string `query:"school_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.SchoolID = core.CleanString(qf.SchoolID)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
