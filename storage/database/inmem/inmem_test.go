package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

var day = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db       *DB
	usrRepo  user.Repository
	schRepo  school.Repository
	attRepo  attendance.Repository
	school   school.School
	class    school.Class
	students []school.Student
}

func newFixture(t *testing.T) fixture {
	ctx := context.Background()
	db := Open()
	f := fixture{
		db:      db,
		usrRepo: NewUserRepository(db),
		schRepo: NewSchoolRepository(db),
		attRepo: NewAttendanceRepository(db),
	}

	var err error
	f.school, err = f.schRepo.CreateSchool(ctx, school.School{Name: "Uhuru Primary", District: "Kinondoni"})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	tch, err := f.usrRepo.CreateUser(ctx, user.User{Name: "Jane Teacher", Email: "jane@example.com", Role: user.RoleTeacher, SchoolID: f.school.ID, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	f.class, err = f.schRepo.CreateClass(ctx, school.Class{SchoolID: f.school.ID, Name: "Std 4A", TeacherID: tch.ID})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	for i, name := range []string{"zawadi Mrema", "Émile Kato", "amina Yusuf", "Baraka Otieno"} {
		std, err := f.schRepo.CreateStudent(ctx, school.Student{
			Code:     string(rune('A' + i)),
			FullName: name,
			ClassID:  f.class.ID,
			SchoolID: f.school.ID,
			IsActive: name != "Baraka Otieno",
		})
		if err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
		f.students = append(f.students, std)
	}
	return f
}

func TestSchoolRepository_FetchActiveRoster(t *testing.T) {
	f := newFixture(t)

	roster, err := f.schRepo.FetchActiveRoster(context.Background(), f.class.ID)
	if err != nil {
		t.Fatalf("FetchActiveRoster() failed: %v", err)
	}
	var names []string
	for _, std := range roster {
		names = append(names, std.FullName)
	}
	assert.Equal(t, []string{"amina Yusuf", "Émile Kato", "zawadi Mrema"}, names)

	_, err = f.schRepo.FetchActiveRoster(context.Background(), "unknown")
	assert.Equal(t, school.ErrNotFound, err)
}

func TestSchoolRepository_QueryClasses(t *testing.T) {
	f := newFixture(t)

	classes, err := f.schRepo.QueryClasses(context.Background(), school.ClassFilter{SchoolID: f.school.ID})
	if assert.NoError(t, err) && assert.Len(t, classes, 1) {
		assert.Equal(t, "Jane Teacher", classes[0].TeacherName)
		assert.Equal(t, 3, classes[0].StudentCount)
	}
}

func TestSchoolRepository_CreateStudent_duplicateCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.schRepo.CreateStudent(context.Background(), school.Student{Code: "A", FullName: "Other", SchoolID: f.school.ID})
	assert.Equal(t, school.ErrStudentCodeExists, err)

	// codes are unique per school
	_, err = f.schRepo.CreateStudent(context.Background(), school.Student{Code: "A", FullName: "Other", SchoolID: "another school"})
	assert.NoError(t, err)
}

func TestAttendanceRepository_UpsertRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	std := f.students[0]

	err := f.attRepo.UpsertRecords(ctx, []attendance.Record{
		{StudentID: std.ID, Date: day, ClassID: f.class.ID, Status: attendance.StatusPresent, CreatedAt: first, UpdatedAt: first},
	})
	assert.NoError(t, err)
	err = f.attRepo.UpsertRecords(ctx, []attendance.Record{
		{StudentID: std.ID, Date: day, ClassID: f.class.ID, Status: attendance.StatusAbsent, Notes: null.StringFrom("sick"), CreatedAt: second, UpdatedAt: second},
	})
	assert.NoError(t, err)

	records, err := f.attRepo.QueryRecords(ctx, attendance.RecordFilter{District: "Kinondoni"})
	if assert.NoError(t, err) && assert.Len(t, records, 1) {
		assert.Equal(t, attendance.StatusAbsent, records[0].Status)
		assert.Equal(t, null.StringFrom("sick"), records[0].Notes)
		assert.Equal(t, first, records[0].CreatedAt)
		assert.Equal(t, second, records[0].UpdatedAt)
		assert.Equal(t, f.school.ID, records[0].SchoolID)
	}

	records, err = f.attRepo.QueryRecords(ctx, attendance.RecordFilter{District: "Ilala"})
	assert.NoError(t, err)
	assert.Empty(t, records)

	records, err = f.attRepo.QueryRecords(ctx, attendance.RecordFilter{Period: core.NewPeriod(day.AddDate(0, 0, 1), time.Time{})})
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestAttendanceRepository_QuerySessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"01A", "01B", "01C"} {
		_, err := f.attRepo.InsertSession(ctx, attendance.Session{
			ID:        id,
			ClassID:   f.class.ID,
			Date:      day,
			StartedBy: "t1",
			StartedAt: start.Add(time.Duration(i) * time.Minute),
		})
		assert.NoError(t, err)
	}

	sessions, err := f.attRepo.QuerySessions(ctx, attendance.SessionFilter{StartedBy: "t1", Limit: 2})
	if assert.NoError(t, err) && assert.Len(t, sessions, 2) {
		assert.Equal(t, "01C", sessions[0].ID)
		assert.Equal(t, "01B", sessions[1].ID)
		assert.Equal(t, "Std 4A", sessions[0].ClassName)
	}
}

func TestUserRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.usrRepo.CheckUsernameUniqueness(ctx, "", "jane@example.com", nil)
	assert.Equal(t, user.ErrEmailExists, err)

	usr, err := f.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "jane@example.com"})
	if assert.NoError(t, err) {
		assert.NoError(t, f.usrRepo.CheckUsernameUniqueness(ctx, "", "jane@example.com", []user.User{usr}))
	}

	n, err := f.usrRepo.CountUsers(ctx, &user.QueryFilter{Role: user.RoleTeacher, SchoolID: f.school.ID})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.usrRepo.GetUser(ctx, user.GetFilter{ID: "unknown"})
	assert.Equal(t, user.ErrNotFound, err)
}
