package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
)

func newTestDrafts(ttl time.Duration, now *time.Time) *Drafts {
	conf := core.NewTestConfig()
	conf.Attendance.DraftTTL = ttl
	ds := NewDrafts(conf)
	ds.nowFunc = func() time.Time { return *now }
	return ds
}

func TestDrafts_edit(t *testing.T) {
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	ds := newTestDrafts(time.Hour, &now)
	key := DraftKey{TeacherID: teacher, ClassID: classID}
	other := DraftKey{TeacherID: "t2", ClassID: classID}

	ds.SetMark(key, "S1", StatusAbsent, "sick")
	ds.SetNotes(key, "S2", "bus")
	d := ds.SetMark(key, "S1", StatusExcused)

	assert.Equal(t, map[string]Mark{
		"S1": {StudentID: "S1", Status: StatusExcused, Notes: "sick"},
		"S2": {StudentID: "S2", Status: StatusPresent, Notes: "bus"},
	}, d.Marks)
	assert.Equal(t, Counts{Present: 1, Excused: 1, Total: 2}, d.Counts)
	assert.Empty(t, ds.Get(other).Marks, "drafts are per teacher")

	d = ds.SetAllPresent(key, []school.Student{{ID: "S1"}, {ID: "S3"}})
	assert.Equal(t, map[string]Mark{
		"S1": {StudentID: "S1", Status: StatusPresent},
		"S3": {StudentID: "S3", Status: StatusPresent},
	}, d.Marks)

	ds.Discard(key)
	assert.Empty(t, ds.Get(key).Marks)
}

func TestDrafts_FillPresent(t *testing.T) {
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	ds := newTestDrafts(time.Hour, &now)
	key := DraftKey{TeacherID: teacher, ClassID: classID}
	ds.SetMark(key, "S1", StatusAbsent, "sick")
	held := map[string]Mark{"S1": {StudentID: "S1", Status: StatusAbsent, Notes: "sick"}}

	tests := []struct {
		name    string
		roster  *fakeRoster
		wantErr func(err error) bool
	}{
		{
			name:    "class not found",
			roster:  &fakeRoster{err: school.ErrNotFound},
			wantErr: func(err error) bool { return err == school.ErrNotFound },
		},
		{
			name:    "store down",
			roster:  &fakeRoster{err: errors.New("connection refused")},
			wantErr: func(err error) bool { return errors.Is(err, ErrFetchFailure) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ds.FillPresent(context.Background(), key, tt.roster)
			if !tt.wantErr(err) {
				t.Errorf("FillPresent() unexpected error = %v", err)
			}
			assert.Equal(t, held, ds.Get(key).Marks, "draft kept")
		})
	}

	d, err := ds.FillPresent(context.Background(), key, &fakeRoster{students: []school.Student{{ID: "S1"}, {ID: "S2"}}})
	assert.NoError(t, err)
	assert.Equal(t, map[string]Mark{
		"S1": {StudentID: "S1", Status: StatusPresent},
		"S2": {StudentID: "S2", Status: StatusPresent},
	}, d.Marks)
}

func TestDrafts_ttl(t *testing.T) {
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	ds := newTestDrafts(time.Hour, &now)
	key := DraftKey{TeacherID: teacher, ClassID: classID}

	ds.SetMark(key, "S1", StatusPresent)
	now = now.Add(59 * time.Minute)
	assert.Len(t, ds.Get(key).Marks, 1)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, ds.Get(key).Marks)
}

func TestDrafts_Commit(t *testing.T) {
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	key := DraftKey{TeacherID: teacher, ClassID: classID}
	roster := &fakeRoster{students: []school.Student{{ID: "S1"}, {ID: "S2"}}}

	t.Run("nothing marked", func(t *testing.T) {
		ds := newTestDrafts(time.Hour, &now)
		svc := newTestService(newMemRepo(), roster)
		_, err := ds.Commit(ctx, key, day, svc)
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("failed commit keeps the draft", func(t *testing.T) {
		ds := newTestDrafts(time.Hour, &now)
		repo := &memRepo{records: map[recordKey]Record{}, sessionErr: errors.New("down")}
		svc := newTestService(repo, roster)
		ds.SetMark(key, "S1", StatusAbsent, "sick")

		_, err := ds.Commit(ctx, key, day, svc)
		assert.True(t, errors.Is(err, ErrCommitFailure))
		assert.Equal(t, map[string]Mark{"S1": {StudentID: "S1", Status: StatusAbsent, Notes: "sick"}}, ds.Get(key).Marks)

		// retry once the store is back
		repo.sessionErr = nil
		summary, err := ds.Commit(ctx, key, day, svc)
		if assert.NoError(t, err) {
			assert.Equal(t, 1, summary.AbsentCount)
			assert.Equal(t, 2, summary.TotalStudents)
			assert.Equal(t, now, repo.sessions[0].StartedAt)
		}
		assert.Empty(t, ds.Get(key).Marks, "committed draft must be cleared")
	})
}
