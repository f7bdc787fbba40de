package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

// DraftKey identifies the draft of a teacher for a class.
type DraftKey struct {
	TeacherID string
	ClassID   string
}

// Draft is a snapshot of a server-held Buffer.
type Draft struct {
	ClassID   string          `json:"class_id"`
	Marks     map[string]Mark `json:"marks"`
	Counts    Counts          `json:"counts"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type draft struct {
	buf       *Buffer
	version   int
	startedAt time.Time
	updatedAt time.Time
}

func (d *draft) snapshot(classID string) Draft {
	return Draft{
		ClassID:   classID,
		Marks:     d.buf.Marks(),
		Counts:    d.buf.Counts(),
		StartedAt: d.startedAt,
		UpdatedAt: d.updatedAt,
	}
}

// Drafts keeps one Buffer per (teacher, class) between requests.
// Drafts untouched for longer than the configured TTL are dropped.
type Drafts struct {
	mu      sync.Mutex
	drafts  map[DraftKey]*draft
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewDrafts(conf *core.Config) *Drafts {
	return &Drafts{
		drafts:  make(map[DraftKey]*draft),
		ttl:     conf.Attendance.DraftTTL,
		nowFunc: time.Now,
	}
}

// prune must be called with mu held.
func (ds *Drafts) prune(now time.Time) {
	if ds.ttl <= 0 {
		return
	}
	for key, d := range ds.drafts {
		if now.Sub(d.updatedAt) > ds.ttl {
			delete(ds.drafts, key)
		}
	}
}

// update runs fn on the draft of key, creating it if needed.
func (ds *Drafts) update(key DraftKey, fn func(buf *Buffer)) Draft {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := ds.nowFunc().UTC()
	ds.prune(now)
	d, ok := ds.drafts[key]
	if !ok {
		d = &draft{buf: NewBuffer(), startedAt: now}
		ds.drafts[key] = d
	}
	fn(d.buf)
	d.version++
	d.updatedAt = now
	return d.snapshot(key.ClassID)
}

// Get returns the draft of key; an empty one when none is held.
func (ds *Drafts) Get(key DraftKey) Draft {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.prune(ds.nowFunc().UTC())
	if d, ok := ds.drafts[key]; ok {
		return d.snapshot(key.ClassID)
	}
	return Draft{ClassID: key.ClassID, Marks: map[string]Mark{}}
}

func (ds *Drafts) SetMark(key DraftKey, studentID string, status Status, notes ...string) Draft {
	return ds.update(key, func(buf *Buffer) { buf.SetMark(studentID, status, notes...) })
}

func (ds *Drafts) SetNotes(key DraftKey, studentID, notes string) Draft {
	return ds.update(key, func(buf *Buffer) { buf.SetNotes(studentID, notes) })
}

func (ds *Drafts) SetAllPresent(key DraftKey, roster []school.Student) Draft {
	return ds.update(key, func(buf *Buffer) { buf.SetAllPresent(roster) })
}

// FillPresent replaces the draft of key with a present mark for every student of the fresh class roster.
// The draft is left untouched when the roster cannot be fetched.
func (ds *Drafts) FillPresent(ctx context.Context, key DraftKey, roster RosterProvider) (Draft, error) {
	students, err := roster.FetchActiveRoster(ctx, key.ClassID)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return Draft{}, err
		}
		return Draft{}, fetchFailure(err, "fetching roster")
	}
	return ds.SetAllPresent(key, students), nil
}

// Discard abandons the draft of key.
func (ds *Drafts) Discard(key DraftKey) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.drafts, key)
}

// Commit commits the draft of key for day. The draft is kept when the commit fails,
// and when it was edited while the commit was in flight.
func (ds *Drafts) Commit(ctx context.Context, key DraftKey, day time.Time, svc Service) (SessionSummary, error) {
	ds.mu.Lock()
	ds.prune(ds.nowFunc().UTC())
	d, ok := ds.drafts[key]
	if !ok || d.buf.Len() == 0 {
		ds.mu.Unlock()
		return SessionSummary{}, core.NewValidationError(nil, core.FieldError{Field: "marks", Error: "no attendance marked"})
	}
	version := d.version
	req := CommitRequest{
		ClassID:     key.ClassID,
		Date:        day,
		CommittedBy: key.TeacherID,
		StartedAt:   d.startedAt,
		Marks:       d.buf.Marks(),
	}
	ds.mu.Unlock()

	summary, err := svc.Commit(ctx, req)
	if err != nil {
		return SessionSummary{}, err
	}

	ds.mu.Lock()
	if cur, ok := ds.drafts[key]; ok && cur == d && cur.version == version {
		delete(ds.drafts, key)
	}
	ds.mu.Unlock()
	return summary, nil
}
