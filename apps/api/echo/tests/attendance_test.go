package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

type markInput struct {
	StudentID string  `json:"student_id"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes,omitempty"`
}

type newSession struct {
	Date  string      `json:"date"`
	Marks []markInput `json:"marks"`
}

func strPtr(s string) *string { return &s }

func Test_attendanceApi_commit(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateSchool(t, f.schRepo, "Other School", "Ilala")
	otherAdmin := testutil.CreateUser(t, f.usrRepo, "Other Admin", "admin02", "admin02@test.tz", "", user.RoleAdmin, other.ID, true)
	colleague := testutil.CreateUser(t, f.usrRepo, "Colleague", "teacher02", "teacher02@test.tz", "", user.RoleTeacher, f.school.ID, true)

	path := fmt.Sprintf("/api/classes/%s/attendance", f.class.ID)
	amina, baraka := f.students[0], f.students[1]
	valid := marchallObj(t, newSession{
		Date: "2024-03-04",
		Marks: []markInput{
			{StudentID: amina.ID, Status: "present"},
			{StudentID: baraka.ID, Status: "ABSENT", Notes: strPtr("sick")},
		},
	})

	tests := []httpTest{
		{name: "Auth required", body: valid, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Government cannot mark", token: f.getToken(t, f.government), body: valid, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Other teacher cannot mark", token: f.getToken(t, colleague), body: valid, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Other school's class not found", token: f.getToken(t, otherAdmin), body: valid, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name: "unknown class", path: "/api/classes/lol/attendance", token: f.getToken(t, f.teacher), body: valid,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "invalid date", token: f.getToken(t, f.teacher), wantCode: http.StatusBadRequest,
			body: marchallObj(t, newSession{Date: "04/03/2024", Marks: []markInput{{StudentID: amina.ID, Status: "present"}}}),
		},
		{
			name: "invalid status", token: f.getToken(t, f.teacher), wantCode: http.StatusBadRequest,
			body: marchallObj(t, newSession{Date: "2024-03-04", Marks: []markInput{{StudentID: amina.ID, Status: "sleeping"}}}),
		},
		{
			name: "student not on roster", token: f.getToken(t, f.teacher), wantCode: http.StatusBadRequest,
			body:     marchallObj(t, newSession{Date: "2024-03-04", Marks: []markInput{{StudentID: "lol", Status: "present"}}}),
			wantData: marchallObj(t, map[string]string{"marks": attendance.ErrNotOnRoster.Error() + ": lol"}),
		},
		{
			name: "class teacher", token: f.getToken(t, f.teacher), body: valid, wantCode: http.StatusCreated,
			extra: attendance.SessionSummary{TotalStudents: 3, PresentCount: 1, AbsentCount: 1, Unmarked: 1},
		},
		{
			name: "school admin", token: f.getToken(t, f.admin), body: valid, wantCode: http.StatusCreated,
			extra: attendance.SessionSummary{TotalStudents: 3, PresentCount: 1, AbsentCount: 1, Unmarked: 1},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		if tt.path == "" {
			tt.path = path
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(tt.method, tt.path, tt.token, tt.body)
			want, ok := tt.extra.(attendance.SessionSummary)
			if !ok {
				checkCodeAndData(t, tt, rec)
				return
			}

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var got attendance.SessionSummary
			unmarchall(t, rec, &got)
			assert.NotEmpty(t, got.SessionID)
			assert.Equal(t, f.class.ID, got.ClassID)
			assert.Equal(t, "2024-03-04", got.Date.Format("2006-01-02"))
			assert.Equal(t, want.TotalStudents, got.TotalStudents)
			assert.Equal(t, want.PresentCount, got.PresentCount)
			assert.Equal(t, want.AbsentCount, got.AbsentCount)
			assert.Equal(t, want.Unmarked, got.Unmarked)
		})
	}

	// every commit is a new session; records are replaced
	rec := f.serve(http.MethodGet, fmt.Sprintf("/api/classes/%s/sessions?from=2024-03-01&to=2024-03-31", f.class.ID), f.getToken(t, f.admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sessions []attendance.Session
	unmarchall(t, rec, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, f.admin.ID, sessions[0].StartedBy)
	assert.Equal(t, f.teacher.ID, sessions[1].StartedBy)
	assert.Equal(t, f.class.Name, sessions[0].ClassName)

	records, err := f.attRepo.QueryRecords(context.Background(), attendance.RecordFilter{ClassIDs: []string{f.class.ID}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, f.admin.ID, r.MarkedBy)
		if r.StudentID == baraka.ID {
			assert.Equal(t, attendance.StatusAbsent, r.Status)
			assert.Equal(t, "sick", r.Notes.String)
		}
	}
}

func Test_attendanceApi_querySessions(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateSchool(t, f.schRepo, "Other School", "Ilala")
	otherAdmin := testutil.CreateUser(t, f.usrRepo, "Other Admin", "admin02", "admin02@test.tz", "", user.RoleAdmin, other.ID, true)

	path := fmt.Sprintf("/api/classes/%s/sessions", f.class.ID)
	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Other school", path: path, token: f.getToken(t, otherAdmin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "no session", path: path, token: f.getToken(t, f.teacher), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "government can read", path: path, token: f.getToken(t, f.government), wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "invalid period", path: path + "?from=2024-03-10&to=2024-03-01", token: f.getToken(t, f.teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"to": "must not be before from"}),
		},
		{
			name: "invalid date", path: path + "?from=lol", token: f.getToken(t, f.teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"from": "must be a date formatted as 2006-01-02"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_draft(t *testing.T) {
	f := newFixture(t)
	token := f.getToken(t, f.teacher)
	base := fmt.Sprintf("/api/classes/%s/attendance/draft", f.class.ID)
	amina := f.students[0]

	getDraft := func(t *testing.T, path, method string, body ...[]byte) attendance.Draft {
		rec := f.serve(method, path, token, body...)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var draft attendance.Draft
		unmarchall(t, rec, &draft)
		return draft
	}

	t.Run("empty draft", func(t *testing.T) {
		draft := getDraft(t, base, http.MethodGet)
		assert.Equal(t, f.class.ID, draft.ClassID)
		assert.Empty(t, draft.Marks)
	})

	t.Run("government refused", func(t *testing.T) {
		rec := f.serve(http.MethodGet, base, f.getToken(t, f.government))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	markPath := base + "/marks/" + amina.ID
	t.Run("invalid mark", func(t *testing.T) {
		rec := f.serve(http.MethodPut, markPath, token, marchallObj(t, map[string]string{"status": "lol"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = f.serve(http.MethodPut, markPath, token, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("set mark", func(t *testing.T) {
		draft := getDraft(t, markPath, http.MethodPut, marchallObj(t, map[string]string{"status": "late"}))
		assert.Equal(t, attendance.Mark{StudentID: amina.ID, Status: attendance.StatusLate}, draft.Marks[amina.ID])
		assert.Equal(t, attendance.Counts{Late: 1, Total: 1}, draft.Counts)
	})

	t.Run("notes keep the status", func(t *testing.T) {
		draft := getDraft(t, markPath, http.MethodPut, marchallObj(t, map[string]string{"notes": " bus broke down "}))
		assert.Equal(t, attendance.Mark{StudentID: amina.ID, Status: attendance.StatusLate, Notes: "bus broke down"}, draft.Marks[amina.ID])
	})

	t.Run("all present", func(t *testing.T) {
		draft := getDraft(t, base+"/all-present", http.MethodPost)
		assert.Len(t, draft.Marks, len(f.students))
		assert.Equal(t, attendance.Counts{Present: 3, Total: 3}, draft.Counts)
	})

	t.Run("drafts are per teacher", func(t *testing.T) {
		rec := f.serve(http.MethodGet, base, f.getToken(t, f.admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var draft attendance.Draft
		unmarchall(t, rec, &draft)
		assert.Empty(t, draft.Marks)
	})

	t.Run("invalid commit date", func(t *testing.T) {
		rec := f.serve(http.MethodPost, base+"/commit", token, marchallObj(t, attendance.DraftRequest{Date: "lol"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("commit", func(t *testing.T) {
		rec := f.serve(http.MethodPost, base+"/commit", token, marchallObj(t, attendance.DraftRequest{Date: "2024-03-05"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var summary attendance.SessionSummary
		unmarchall(t, rec, &summary)
		assert.Equal(t, 3, summary.PresentCount)
		assert.Equal(t, 0, summary.Unmarked)

		// the draft is cleared
		draft := getDraft(t, base, http.MethodGet)
		assert.Empty(t, draft.Marks)
	})

	t.Run("nothing to commit", func(t *testing.T) {
		rec := f.serve(http.MethodPost, base+"/commit", token, []byte(`{}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"marks": "no attendance marked"})}, rec)
	})

	t.Run("discard", func(t *testing.T) {
		getDraft(t, markPath, http.MethodPut, marchallObj(t, map[string]string{"status": "absent"}))
		rec := f.serve(http.MethodDelete, base, token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, getDraft(t, base, http.MethodGet).Marks)
	})
}

func Test_attendanceApi_reconcile(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/api/classes/%s/attendance/reconcile?from=2024-03-01&to=2024-03-31", f.class.ID)

	// a session saved without its records
	day := time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC().Add(-time.Hour)
	orphan, err := f.attRepo.InsertSession(context.Background(), attendance.Session{
		ID:            "01HQZ3T0000000000000000000",
		ClassID:       f.class.ID,
		Date:          day,
		StartedBy:     f.teacher.ID,
		TotalStudents: 3,
		PresentCount:  2,
		AbsentCount:   1,
		MarkedCount:   3,
		StartedAt:     now,
		CompletedAt:   now,
	})
	require.NoError(t, err)

	rec := f.serve(http.MethodGet, path, f.getToken(t, f.teacher))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

	rec = f.serve(http.MethodGet, path, f.getToken(t, f.admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got attendance.Reconciliation
	unmarchall(t, rec, &got)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, attendance.IssueOrphanedSession, got.Issues[0].Kind)
	assert.Equal(t, []string{orphan.ID}, got.Issues[0].SessionIDs)
	assert.True(t, got.Issues[0].Date.Equal(day))

	// committing the day again settles it
	rec = f.serve(http.MethodPost, fmt.Sprintf("/api/classes/%s/attendance", f.class.ID), f.getToken(t, f.teacher), marchallObj(t, newSession{
		Date:  "2024-03-06",
		Marks: []markInput{{StudentID: f.students[0].ID, Status: "present"}},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.serve(http.MethodGet, path, f.getToken(t, f.admin))
	require.Equal(t, http.StatusOK, rec.Code)
	unmarchall(t, rec, &got)
	assert.True(t, got.Consistent())
}
