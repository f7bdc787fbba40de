package sqlxrepos

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

const (
	schoolID  = "0b0f3f4e-3d7a-4c62-9a57-bb3f4c6a0001"
	classID   = "0b0f3f4e-3d7a-4c62-9a57-bb3f4c6a0002"
	teacherID = "0b0f3f4e-3d7a-4c62-9a57-bb3f4c6a0003"
	student1  = "0b0f3f4e-3d7a-4c62-9a57-bb3f4c6a0011"
	student2  = "0b0f3f4e-3d7a-4c62-9a57-bb3f4c6a0012"
)

var day = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type staticRoster []school.Student

func (r staticRoster) FetchActiveRoster(context.Context, string) ([]school.Student, error) {
	return r, nil
}

func TestUserRepository_GetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(q("SELECT id, name, username, email, is_active, role, school_id, password_hash, created_at, updated_at, last_login FROM users WHERE (username = $1 OR email = $2) LIMIT 1")).
		WithArgs("jdoe@example.com", "jdoe@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(teacherID, "John Doe", nil, "jdoe@example.com", true, user.RoleTeacher, schoolID, []byte("hash"), now, now, nil))

	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "jdoe@example.com"})
	if assert.NoError(t, err) {
		assert.Equal(t, user.User{
			ID:           teacherID,
			Name:         "John Doe",
			Email:        "jdoe@example.com",
			IsActive:     true,
			Role:         user.RoleTeacher,
			SchoolID:     schoolID,
			PasswordHash: []byte("hash"),
			CreatedAt:    now,
			UpdatedAt:    now,
		}, usr)
	}

	mock.ExpectQuery(q("FROM users WHERE id = $1")).
		WithArgs(teacherID).
		WillReturnRows(sqlmock.NewRows(userColumns))
	_, err = repo.GetUser(ctx, user.GetFilter{ID: teacherID})
	assert.Equal(t, user.ErrNotFound, err)

	// malformed IDs never reach the database
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "42"})
	assert.Equal(t, user.ErrNotFound, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CheckUsernameUniqueness(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", "", nil))

	mock.ExpectQuery(q("SELECT id, username, email FROM users WHERE (username = $1 OR email = $2) AND id NOT IN ($3)")).
		WithArgs("jdoe", "jdoe@example.com", teacherID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(schoolID, "other", "jdoe@example.com"))
	err := repo.CheckUsernameUniqueness(ctx, "jdoe", "jdoe@example.com", []user.User{{ID: teacherID}})
	assert.Equal(t, user.ErrEmailExists, err)

	mock.ExpectQuery(q("SELECT id, username, email FROM users WHERE (username = $1)")).
		WithArgs("jdoe").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(schoolID, "jdoe", nil))
	err = repo.CheckUsernameUniqueness(ctx, "jdoe", "", nil)
	assert.Equal(t, user.ErrUsernameExists, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CountUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM users WHERE role = $1 AND school_id = $2")).
		WithArgs(user.RoleTeacher, schoolID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountUsers(context.Background(), &user.QueryFilter{Role: user.RoleTeacher, SchoolID: schoolID})
	if assert.NoError(t, err) {
		assert.Equal(t, 3, n)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateUser_duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(q("INSERT INTO users")).WillReturnError(&pq.Error{Code: uniqueViolation})
	_, err := repo.CreateUser(context.Background(), user.User{Name: "John", Email: "jdoe@example.com", Role: user.RoleTeacher})
	assert.Equal(t, user.ErrUserExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepository_FetchActiveRoster(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSchoolRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(q("FROM students WHERE class_id = $1 AND is_active = $2 ORDER BY full_name ASC")).
		WithArgs(classID, true).
		WillReturnRows(sqlmock.NewRows(studentColumns).
			AddRow(student1, "S-001", "Amina Yusuf", classID, schoolID, nil, "female", "", "", true, now, now).
			AddRow(student2, "S-002", "Baraka Otieno", classID, schoolID, day, "male", "", "", true, now, now))

	roster, err := repo.FetchActiveRoster(context.Background(), classID)
	if assert.NoError(t, err) && assert.Len(t, roster, 2) {
		assert.Equal(t, student1, roster[0].ID)
		assert.False(t, roster[0].DateOfBirth.Valid)
		assert.Equal(t, null.TimeFrom(day), roster[1].DateOfBirth)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepository_CheckStudentCodeUniqueness(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(q("SELECT EXISTS ( SELECT 1 FROM students WHERE school_id = $1 AND student_code = $2 )")).
		WithArgs(schoolID, "S-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.CheckStudentCodeUniqueness(context.Background(), schoolID, "S-001")
	assert.Equal(t, school.ErrStudentCodeExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepository_UpdateSchool_notFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSchoolRepository(db)

	mock.ExpectExec(q("UPDATE schools SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateSchool(context.Background(), school.School{ID: schoolID, Name: "Uhuru"})
	assert.Equal(t, school.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_InsertSession(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	sess := attendance.Session{
		ID:            "01HQZ3T0000000000000000000",
		ClassID:       classID,
		Date:          day,
		StartedBy:     teacherID,
		TotalStudents: 30,
		PresentCount:  20,
		AbsentCount:   4,
		MarkedCount:   27,
		StartedAt:     now,
		CompletedAt:   now,
	}

	mock.ExpectExec(q("INSERT INTO attendance_sessions (id,class_id,date,started_by,total_students,present_count,absent_count,marked_count,started_at,completed_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)")).
		WithArgs(sess.ID, classID, day, teacherID, 30, 20, 4, 27, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	got, err := repo.InsertSession(context.Background(), sess)
	if assert.NoError(t, err) {
		assert.Equal(t, sess, got)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_QueryRecords(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	cols := append(append([]string{}, recordColumns...), "school_id")

	mock.ExpectQuery(q("FROM attendance_records r JOIN classes c ON c.id = r.class_id JOIN schools s ON s.id = c.school_id WHERE s.district = $1 AND r.date >= $2 AND r.date <= $3 ORDER BY r.date ASC, r.student_id ASC")).
		WithArgs("Kinondoni", day, day.AddDate(0, 0, 6)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(student1, day, classID, "late", teacherID, "bus", attendance.MethodManual, now, now, schoolID))

	records, err := repo.QueryRecords(context.Background(), attendance.RecordFilter{
		District: "Kinondoni",
		Period:   core.NewPeriod(day, day.AddDate(0, 0, 6)),
	})
	if assert.NoError(t, err) && assert.Len(t, records, 1) {
		assert.Equal(t, attendance.StatusLate, records[0].Status)
		assert.Equal(t, null.StringFrom("bus"), records[0].Notes)
		assert.Equal(t, schoolID, records[0].SchoolID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpsertRecords(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepository(db)

	assert.NoError(t, repo.UpsertRecords(context.Background(), nil))

	mock.ExpectExec(q("INSERT INTO attendance_records (student_id,date,class_id,status,marked_by,notes,method,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,$11,$12,$13,$14,$15,$16,$17,$18) ON CONFLICT (student_id, date) DO UPDATE SET")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	err := repo.UpsertRecords(context.Background(), []attendance.Record{
		{StudentID: student1, Date: day, ClassID: classID, Status: attendance.StatusPresent, MarkedBy: teacherID, Method: attendance.MethodManual},
		{StudentID: student2, Date: day, ClassID: classID, Status: attendance.StatusAbsent, MarkedBy: teacherID, Notes: null.StringFrom("sick"), Method: attendance.MethodManual},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommit_transactional(t *testing.T) {
	roster := staticRoster{{ID: student1}, {ID: student2}}
	req := attendance.CommitRequest{
		ClassID:     classID,
		Date:        day,
		CommittedBy: teacherID,
		Marks: map[string]attendance.Mark{
			student1: {StudentID: student1, Status: attendance.StatusPresent},
			student2: {StudentID: student2, Status: attendance.StatusAbsent, Notes: "sick"},
		},
	}

	t.Run("committed", func(t *testing.T) {
		db, mock := newMock(t)
		svc := attendance.NewService(db, NewAttendanceRepository(db), roster, core.NewTestConfig(), nopLogger{})

		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO attendance_sessions")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO attendance_records")).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		summary, err := svc.Commit(context.Background(), req)
		if assert.NoError(t, err) {
			assert.Equal(t, 2, summary.TotalStudents)
			assert.Equal(t, 1, summary.PresentCount)
			assert.Equal(t, 1, summary.AbsentCount)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolled back", func(t *testing.T) {
		db, mock := newMock(t)
		svc := attendance.NewService(db, NewAttendanceRepository(db), roster, core.NewTestConfig(), nopLogger{})

		mock.ExpectBegin()
		mock.ExpectExec(q("INSERT INTO attendance_sessions")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q("INSERT INTO attendance_records")).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := svc.Commit(context.Background(), req)
		assert.True(t, errors.Is(err, attendance.ErrCommitFailure))

		var partial *attendance.PartialCommitError
		assert.False(t, errors.As(err, &partial), "a rolled back commit is not partial")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
