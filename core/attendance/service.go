package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

type (
	// Repository is the attendance storage. Every method runs on exec when provided.
	Repository interface {
		// InsertSession always inserts a new row; it is not idempotent.
		InsertSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		// UpsertRecords inserts records, replacing any existing one with the same (StudentID, Date).
		UpsertRecords(ctx context.Context, records []Record, exec ...core.DBExecutor) error
		// QueryRecords returns records ordered by date then student.
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]Record, error)
		// QuerySessions returns sessions, most recently started first.
		QuerySessions(ctx context.Context, filter SessionFilter, exec ...core.DBExecutor) ([]Session, error)
	}

	Service interface {
		Commit(ctx context.Context, req CommitRequest) (SessionSummary, error)
		Reconcile(ctx context.Context, classID string, period core.Period) (Reconciliation, error)
		QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error)
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	service struct {
		db      core.DB // nil when the store has no transactions
		repo    Repository
		roster  RosterProvider
		conf    *core.Config
		logger  core.Logger
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns the attendance Service. Commits are transactional when db is not nil.
func NewService(db core.DB, repo Repository, roster RosterProvider, conf *core.Config, logger core.Logger) Service {
	return &service{
		db:      db,
		repo:    repo,
		roster:  roster,
		conf:    conf,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (svc *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.conf.Attendance.CommitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.conf.Attendance.CommitTimeout)
}

// Commit persists a draft as one new Session plus one Record per mark.
// The roster is fetched fresh: it sets TotalStudents and any mark for a student
// not on it rejects the whole commit. Unmarked roster students get no record.
// Once the writes are sent they are not cancelled with ctx.
func (svc *service) Commit(ctx context.Context, req CommitRequest) (SessionSummary, error) {
	if req.Date.IsZero() || !core.IsDay(req.Date) {
		return SessionSummary{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: ErrInvalidDate.Error()})
	}
	req.Date = core.Day(req.Date)
	for id, mark := range req.Marks {
		if !mark.Status.Valid() {
			return SessionSummary{}, core.NewValidationError(nil, core.FieldError{
				Field: "marks",
				Error: fmt.Sprintf("invalid status %q for student %s", mark.Status, id),
			})
		}
	}

	fctx, cancel := svc.withTimeout(ctx)
	roster, err := svc.roster.FetchActiveRoster(fctx, req.ClassID)
	cancel()
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return SessionSummary{}, err
		}
		return SessionSummary{}, fetchFailure(err, "fetching roster")
	}

	onRoster := make(map[string]bool, len(roster))
	for _, std := range roster {
		onRoster[std.ID] = true
	}
	var counts Counts
	for id, mark := range req.Marks {
		if !onRoster[id] {
			return SessionSummary{}, core.NewValidationError(ErrNotOnRoster, core.FieldError{
				Field: "marks",
				Error: fmt.Sprintf("%s: %s", ErrNotOnRoster, id),
			})
		}
		counts.Add(mark.Status)
	}

	now := svc.nowFunc().UTC().Truncate(time.Microsecond)
	startedAt := req.StartedAt.UTC()
	if req.StartedAt.IsZero() {
		startedAt = now
	}
	sess := Session{
		ID:            ulid.Make().String(),
		ClassID:       req.ClassID,
		Date:          req.Date,
		StartedBy:     req.CommittedBy,
		TotalStudents: len(roster),
		PresentCount:  counts.Present,
		AbsentCount:   counts.Absent,
		MarkedCount:   counts.Total,
		StartedAt:     startedAt,
		CompletedAt:   now,
	}
	records := make([]Record, 0, len(req.Marks))
	for id, mark := range req.Marks {
		records = append(records, Record{
			StudentID: id,
			Date:      req.Date,
			ClassID:   req.ClassID,
			Status:    mark.Status,
			MarkedBy:  req.CommittedBy,
			Notes:     null.NewString(mark.Notes, mark.Notes != ""),
			Method:    MethodManual,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })

	pctx, cancel := svc.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err = svc.persist(pctx, sess, records); err != nil {
		return SessionSummary{}, err
	}

	return SessionSummary{
		SessionID:     sess.ID,
		ClassID:       sess.ClassID,
		Date:          sess.Date,
		TotalStudents: sess.TotalStudents,
		PresentCount:  counts.Present,
		AbsentCount:   counts.Absent,
		LateCount:     counts.Late,
		ExcusedCount:  counts.Excused,
		Unmarked:      len(roster) - counts.Total,
	}, nil
}

func (svc *service) persist(ctx context.Context, sess Session, records []Record) error {
	if svc.db != nil {
		err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
			if _, err := svc.repo.InsertSession(ctx, sess, tx); err != nil {
				return errors.Wrap(err, "inserting session")
			}
			if err := svc.repo.UpsertRecords(ctx, records, tx); err != nil {
				return errors.Wrap(err, "upserting records")
			}
			return nil
		})
		if err != nil {
			return commitFailure(err, "committing session")
		}
		return nil
	}

	// no transaction: two sequential writes
	if _, err := svc.repo.InsertSession(ctx, sess); err != nil {
		return commitFailure(err, "inserting session")
	}
	if err := svc.repo.UpsertRecords(ctx, records); err != nil {
		partial := &PartialCommitError{SessionID: sess.ID, ClassID: sess.ClassID, Date: sess.Date, Err: err}
		svc.logger.Error(partial.Error(), partial, map[string]interface{}{
			"session_id": sess.ID,
			"class_id":   sess.ClassID,
			"date":       sess.Date.Format(core.DateLayout),
			"records":    len(records),
		})
		return core.NewUnavailableError(ErrCommitFailure, partial)
	}
	return nil
}

// Reconcile lists, per day of period, the sessions of a class saved without records
// and the records of the class saved without a session. On a day with records, only
// the latest session is checked.
func (svc *service) Reconcile(ctx context.Context, classID string, period core.Period) (Reconciliation, error) {
	fctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	sessions, err := svc.repo.QuerySessions(fctx, SessionFilter{ClassIDs: []string{classID}, Period: period})
	if err != nil {
		return Reconciliation{}, fetchFailure(err, "querying sessions")
	}
	records, err := svc.repo.QueryRecords(fctx, RecordFilter{ClassIDs: []string{classID}, Period: period})
	if err != nil {
		return Reconciliation{}, fetchFailure(err, "querying records")
	}

	sessionsByDay := make(map[time.Time][]Session)
	for _, sess := range sessions {
		day := core.Day(sess.Date)
		sessionsByDay[day] = append(sessionsByDay[day], sess)
	}
	recordsByDay := make(map[time.Time][]Record)
	for _, rec := range records {
		day := core.Day(rec.Date)
		recordsByDay[day] = append(recordsByDay[day], rec)
	}

	rec := Reconciliation{ClassID: classID, Period: period, Issues: []ReconciliationIssue{}}
	for day, daySessions := range sessionsByDay {
		var ids []string
		if dayRecords := recordsByDay[day]; len(dayRecords) > 0 {
			// earlier sessions were overwritten by the latest one: only it can be checked
			if latest := latestSession(daySessions); latest.MarkedCount > 0 && !wroteRecords(latest, dayRecords) {
				ids = append(ids, latest.ID)
			}
		} else {
			for _, sess := range daySessions {
				// an empty commit legitimately has no record
				if sess.MarkedCount > 0 {
					ids = append(ids, sess.ID)
				}
			}
		}
		if len(ids) > 0 {
			sort.Strings(ids)
			rec.Issues = append(rec.Issues, ReconciliationIssue{Date: day, Kind: IssueOrphanedSession, SessionIDs: ids})
		}
	}
	for day, dayRecords := range recordsByDay {
		if len(sessionsByDay[day]) > 0 {
			continue
		}
		ids := make([]string, 0, len(dayRecords))
		for _, r := range dayRecords {
			ids = append(ids, r.StudentID)
		}
		sort.Strings(ids)
		rec.Issues = append(rec.Issues, ReconciliationIssue{Date: day, Kind: IssueOrphanedRecords, StudentIDs: ids})
	}
	sort.Slice(rec.Issues, func(i, j int) bool {
		if rec.Issues[i].Date.Equal(rec.Issues[j].Date) {
			return rec.Issues[i].Kind < rec.Issues[j].Kind
		}
		return rec.Issues[i].Date.Before(rec.Issues[j].Date)
	})
	return rec, nil
}

func latestSession(sessions []Session) Session {
	latest := sessions[0]
	for _, sess := range sessions[1:] {
		if sess.CompletedAt.After(latest.CompletedAt) ||
			(sess.CompletedAt.Equal(latest.CompletedAt) && sess.ID > latest.ID) {
			latest = sess
		}
	}
	return latest
}

// wroteRecords reports whether a record of the day was last written by sess.
func wroteRecords(sess Session, records []Record) bool {
	for _, r := range records {
		if !r.UpdatedAt.Before(sess.CompletedAt) {
			return true
		}
	}
	return false
}

func (svc *service) QuerySessions(ctx context.Context, filter SessionFilter) ([]Session, error) {
	fctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	sessions, err := svc.repo.QuerySessions(fctx, filter)
	if err != nil {
		return nil, fetchFailure(err, "querying sessions")
	}
	return sessions, nil
}

func (svc *service) QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	fctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	records, err := svc.repo.QueryRecords(fctx, filter)
	if err != nil {
		return nil, fetchFailure(err, "querying records")
	}
	return records, nil
}
