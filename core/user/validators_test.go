package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
	appfs "github.com/trezcool/mahudhurio/fs"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func Test_checkPasswordPolicy(t *testing.T) {
	LoadCommonPasswords(appfs.FS, nopLogger{})

	tests := []struct {
		name    string
		pwd     string
		usrName string
		uname   string
		email   string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1@", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234@", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no upper", pwd: "abcd1234@", wantTag: pwdComplexityTag},
		{name: "no special", pwd: "Abcd12345", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Mwalimu_01", uname: "mwalimu_01", wantTag: pwdAttrSimTag},
		{name: "similar to name", pwd: "AishaJuma1!", usrName: "Aisha Juma", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Ch@ki7Mboga", usrName: "Aisha Juma", uname: "aisha", email: "aisha@school.tz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPasswordPolicy(tt.pwd, tt.usrName, tt.uname, tt.email); got != tt.wantTag {
				t.Errorf("checkPasswordPolicy() = %q; want %q", got, tt.wantTag)
			}
		})
	}
}

func TestNewUser_struct_validation(t *testing.T) {
	LoadCommonPasswords(appfs.FS, nopLogger{})
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	tests := []struct {
		name       string
		nu         NewUser
		wantFields map[string]string
	}{
		{
			name: "missing username and email",
			nu:   NewUser{Name: "Aisha", Password: "Ch@ki7Mboga", PasswordConfirm: "Ch@ki7Mboga", Role: RoleTeacher},
			wantFields: map[string]string{
				"username": usernameOrEmailText,
				"email":    usernameOrEmailText,
			},
		},
		{
			name:       "invalid role",
			nu:         NewUser{Name: "Aisha", Email: "a@s.tz", Password: "Ch@ki7Mboga", PasswordConfirm: "Ch@ki7Mboga", Role: "student"},
			wantFields: map[string]string{"role": allRolesText},
		},
		{
			name:       "weak password",
			nu:         NewUser{Name: "Aisha", Email: "a@s.tz", Password: "abcdefgh", PasswordConfirm: "abcdefgh", Role: RoleAdmin},
			wantFields: map[string]string{"password": pwdComplexityText},
		},
		{
			name: "valid",
			nu:   NewUser{Name: "Aisha", Email: "a@s.tz", Password: "Ch@ki7Mboga", PasswordConfirm: "Ch@ki7Mboga", Role: RoleGovernment},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantFields == nil {
				if err != nil {
					t.Errorf("validate.Struct() unexpected error = %v", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("validate.Struct() error = %v; want validator.ValidationErrors", err)
			}
			got := core.TranslateValidationErrors(vErrs, translator)
			for fld, msg := range tt.wantFields {
				if got[fld] != msg {
					t.Errorf("field %q = %q; want %q", fld, got[fld], msg)
				}
			}
		})
	}
}

func TestDashboardFor(t *testing.T) {
	tests := []struct {
		role string
		want Dashboard
	}{
		{role: RoleAdmin, want: DashboardAdmin},
		{role: RoleGovernment, want: DashboardGovernment},
		{role: RoleTeacher, want: DashboardTeacher},
		{role: "", want: DashboardTeacher},
		{role: "janitor", want: DashboardTeacher},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := DashboardFor(tt.role); got != tt.want {
				t.Errorf("DashboardFor(%q) = %v; want %v", tt.role, got, tt.want)
			}
		})
	}
}
