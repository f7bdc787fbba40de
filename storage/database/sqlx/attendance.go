package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	sessionColumns = []string{
		"id", "class_id", "date", "started_by", "total_students", "present_count", "absent_count",
		"marked_count", "started_at", "completed_at",
	}
	recordColumns = []string{
		"student_id", "date", "class_id", "status", "marked_by", "notes", "method", "created_at", "updated_at",
	}
)

type sessionRow struct {
	ID            string    `db:"id"`
	ClassID       string    `db:"class_id"`
	Date          time.Time `db:"date"`
	StartedBy     string    `db:"started_by"`
	TotalStudents int       `db:"total_students"`
	PresentCount  int       `db:"present_count"`
	AbsentCount   int       `db:"absent_count"`
	MarkedCount   int       `db:"marked_count"`
	StartedAt     time.Time `db:"started_at"`
	CompletedAt   time.Time `db:"completed_at"`
	ClassName     string    `db:"class_name"`
}

func (row sessionRow) session() attendance.Session {
	return attendance.Session{
		ID:            row.ID,
		ClassID:       row.ClassID,
		Date:          core.Day(row.Date),
		StartedBy:     row.StartedBy,
		TotalStudents: row.TotalStudents,
		PresentCount:  row.PresentCount,
		AbsentCount:   row.AbsentCount,
		MarkedCount:   row.MarkedCount,
		StartedAt:     row.StartedAt.UTC(),
		CompletedAt:   row.CompletedAt.UTC(),
		ClassName:     row.ClassName,
	}
}

type recordRow struct {
	StudentID string      `db:"student_id"`
	Date      time.Time   `db:"date"`
	ClassID   string      `db:"class_id"`
	Status    string      `db:"status"`
	MarkedBy  string      `db:"marked_by"`
	Notes     null.String `db:"notes"`
	Method    string      `db:"method"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
	SchoolID  string      `db:"school_id"`
}

func (row recordRow) record() attendance.Record {
	return attendance.Record{
		StudentID: row.StudentID,
		Date:      core.Day(row.Date),
		ClassID:   row.ClassID,
		Status:    attendance.Status(row.Status),
		MarkedBy:  row.MarkedBy,
		Notes:     row.Notes,
		Method:    row.Method,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		SchoolID:  row.SchoolID,
	}
}

type attendanceRepository struct {
	repository
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{repository{exec: exec}}
}

func (repo attendanceRepository) InsertSession(ctx context.Context, sess attendance.Session, exec ...core.DBExecutor) (attendance.Session, error) {
	query := psql.Insert("attendance_sessions").Columns(sessionColumns...).Values(
		sess.ID, sess.ClassID, core.Day(sess.Date), sess.StartedBy, sess.TotalStudents, sess.PresentCount,
		sess.AbsentCount, sess.MarkedCount, sess.StartedAt.UTC(), sess.CompletedAt.UTC(),
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

// UpsertRecords writes every record in one statement; the last write of a (student_id, date) wins
// but keeps the original created_at.
func (repo attendanceRepository) UpsertRecords(ctx context.Context, records []attendance.Record, exec ...core.DBExecutor) error {
	if len(records) == 0 {
		return nil
	}
	query := psql.Insert("attendance_records").Columns(recordColumns...)
	for _, rec := range records {
		query = query.Values(
			rec.StudentID, core.Day(rec.Date), rec.ClassID, string(rec.Status), rec.MarkedBy, rec.Notes,
			rec.Method, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
		)
	}
	query = query.Suffix(
		"ON CONFLICT (student_id, date) DO UPDATE SET " +
			"class_id = EXCLUDED.class_id, status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, " +
			"notes = EXCLUDED.notes, method = EXCLUDED.method, updated_at = EXCLUDED.updated_at",
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return errors.Wrap(err, "upserting records")
	}
	return nil
}

func periodWhere(query sq.SelectBuilder, col string, period core.Period) sq.SelectBuilder {
	if !period.From.IsZero() {
		query = query.Where(sq.GtOrEq{col: period.From})
	}
	if !period.To.IsZero() {
		query = query.Where(sq.LtOrEq{col: period.To})
	}
	return query
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter, exec ...core.DBExecutor) ([]attendance.Record, error) {
	query := psql.Select(
		"r.student_id", "r.date", "r.class_id", "r.status", "r.marked_by", "r.notes", "r.method",
		"r.created_at", "r.updated_at", "c.school_id",
	).
		From("attendance_records r").
		Join("classes c ON c.id = r.class_id").
		OrderBy("r.date ASC", "r.student_id ASC")
	if filter.StudentIDs != nil {
		query = query.Where(sq.Eq{"r.student_id": validIDs(filter.StudentIDs)})
	}
	if filter.ClassIDs != nil {
		query = query.Where(sq.Eq{"r.class_id": validIDs(filter.ClassIDs)})
	}
	if filter.SchoolIDs != nil {
		query = query.Where(sq.Eq{"c.school_id": validIDs(filter.SchoolIDs)})
	}
	if filter.District != "" {
		query = query.
			Join("schools s ON s.id = c.school_id").
			Where(sq.Eq{"s.district": filter.District})
	}
	query = periodWhere(query, "r.date", filter.Period)

	var rows []recordRow
	if err := repo.selectAll(ctx, repo.getExec(exec), query, &rows); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo attendanceRepository) QuerySessions(ctx context.Context, filter attendance.SessionFilter, exec ...core.DBExecutor) ([]attendance.Session, error) {
	query := psql.Select(
		"a.id", "a.class_id", "a.date", "a.started_by", "a.total_students", "a.present_count", "a.absent_count",
		"a.marked_count", "a.started_at", "a.completed_at", "c.name AS class_name",
	).
		From("attendance_sessions a").
		Join("classes c ON c.id = a.class_id").
		OrderBy("a.started_at DESC", "a.id DESC")
	if filter.ClassIDs != nil {
		query = query.Where(sq.Eq{"a.class_id": validIDs(filter.ClassIDs)})
	}
	if filter.StartedBy != "" {
		if !validID(filter.StartedBy) {
			return []attendance.Session{}, nil
		}
		query = query.Where(sq.Eq{"a.started_by": filter.StartedBy})
	}
	query = periodWhere(query, "a.date", filter.Period)
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	var rows []sessionRow
	if err := repo.selectAll(ctx, repo.getExec(exec), query, &rows); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]attendance.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.session())
	}
	return sessions, nil
}
