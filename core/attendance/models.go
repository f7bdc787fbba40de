package attendance

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

// Status is the attendance status of a student on a day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"

	// MethodManual is the only capture method: a teacher marking a class.
	MethodManual = "manual"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Mark is a draft attendance mark, held in a Buffer until committed.
type Mark struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
	Notes     string `json:"notes"`
}

// Counts tallies marks or records by status.
type Counts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Total   int `json:"total"`
}

func (c *Counts) Add(status Status) {
	switch status {
	case StatusPresent:
		c.Present++
	case StatusAbsent:
		c.Absent++
	case StatusLate:
		c.Late++
	case StatusExcused:
		c.Excused++
	default:
		return
	}
	c.Total++
}

// Session is one attendance-taking event of a class. Sessions are never updated:
// every commit inserts a new one, even for a class and day already taken.
type Session struct {
	ID            string    `json:"id"` // ULID
	ClassID       string    `json:"class_id"`
	Date          time.Time `json:"date"`
	StartedBy     string    `json:"started_by"`
	TotalStudents int       `json:"total_students"`
	PresentCount  int       `json:"present_count"`
	AbsentCount   int       `json:"absent_count"`
	MarkedCount   int       `json:"marked_count"` // marks of any status
	StartedAt     time.Time `json:"started_at"`   // UTC
	CompletedAt   time.Time `json:"completed_at"` // UTC

	// read-only, joined on query
	ClassName string `json:"class_name,omitempty"`
}

// Record is the attendance of a student on a day, unique per (StudentID, Date).
type Record struct {
	StudentID string      `json:"student_id"`
	Date      time.Time   `json:"date"`
	ClassID   string      `json:"class_id"`
	Status    Status      `json:"status"`
	MarkedBy  string      `json:"marked_by"`
	Notes     null.String `json:"notes"`
	Method    string      `json:"method"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC

	// read-only, joined on query
	SchoolID string `json:"school_id,omitempty"`
}

// RecordFilter selects records; set fields are ANDed, list fields match any value.
// School and district scopes are resolved through the record's class.
type RecordFilter struct {
	StudentIDs []string
	ClassIDs   []string
	SchoolIDs  []string
	District   string
	Period     core.Period
}

// SessionFilter selects sessions, most recent first.
type SessionFilter struct {
	ClassIDs  []string
	StartedBy string
	Period    core.Period
	Limit     int
}

// CommitRequest is a draft ready to be persisted.
type CommitRequest struct {
	ClassID     string
	Date        time.Time // calendar day
	CommittedBy string
	StartedAt   time.Time
	Marks       map[string]Mark
}

// SessionSummary is the outcome of a commit, for display.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	ClassID       string    `json:"class_id"`
	Date          time.Time `json:"date"`
	TotalStudents int       `json:"total_students"`
	PresentCount  int       `json:"present_count"`
	AbsentCount   int       `json:"absent_count"`
	LateCount     int       `json:"late_count"`
	ExcusedCount  int       `json:"excused_count"`
	Unmarked      int       `json:"unmarked"`
}

// MarkInput sets the mark of one student. Notes are kept as is when omitted.
type MarkInput struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    Status  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

func (mi *MarkInput) clean() {
	mi.StudentID = core.CleanString(mi.StudentID)
	mi.Status = Status(core.CleanString(string(mi.Status), true /* lower */))
	if mi.Notes != nil {
		notes := core.CleanString(*mi.Notes)
		mi.Notes = &notes
	}
}

func (mi *MarkInput) Validate(validate *validator.Validate) error {
	mi.clean()
	return validate.Struct(mi)
}

// NewSession is a whole draft submitted at once.
type NewSession struct {
	Date  string      `json:"date" validate:"required,datetime=2006-01-02"`
	Marks []MarkInput `json:"marks" validate:"dive"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Date = core.CleanString(ns.Date)
	for i := range ns.Marks {
		ns.Marks[i].clean()
	}
	return validate.Struct(ns)
}

// Buffer fills a Buffer with the submitted marks.
func (ns NewSession) Buffer() *Buffer {
	buf := NewBuffer()
	for _, mi := range ns.Marks {
		if mi.Notes != nil {
			buf.SetMark(mi.StudentID, mi.Status, *mi.Notes)
		} else {
			buf.SetMark(mi.StudentID, mi.Status)
		}
	}
	return buf
}

// DraftRequest identifies the commit day of a draft; today when empty.
type DraftRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (dr *DraftRequest) Validate(validate *validator.Validate) error {
	dr.Date = core.CleanString(dr.Date)
	return validate.Struct(dr)
}

// Day returns the requested day, or today's.
func (dr DraftRequest) Day() (time.Time, error) {
	if dr.Date == "" {
		return core.Day(time.Now().UTC()), nil
	}
	return core.ParseDay(dr.Date)
}

// Reconciliation lists the inconsistencies left by interrupted commits of a class.
type Reconciliation struct {
	ClassID string                `json:"class_id"`
	Period  core.Period           `json:"period"`
	Issues  []ReconciliationIssue `json:"issues"`
}

func (r Reconciliation) Consistent() bool { return len(r.Issues) == 0 }

const (
	IssueOrphanedSession = "orphaned_session"
	IssueOrphanedRecords = "orphaned_records"
)

type ReconciliationIssue struct {
	Date       time.Time `json:"date"`
	Kind       string    `json:"kind"`
	SessionIDs []string  `json:"session_ids,omitempty"`
	StudentIDs []string  `json:"student_ids,omitempty"`
}

// RosterProvider supplies the authoritative list of active students of a class.
type RosterProvider interface {
	FetchActiveRoster(ctx context.Context, classID string) ([]school.Student, error)
}
