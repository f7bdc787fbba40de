package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/dashboard"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

// commitToday marks the first student present and the second absent.
func (f fixture) commitToday(t *testing.T) {
	rec := f.serve(http.MethodPost, fmt.Sprintf("/api/classes/%s/attendance", f.class.ID), f.getToken(t, f.teacher), marchallObj(t, newSession{
		Date: time.Now().UTC().Format(core.DateLayout),
		Marks: []markInput{
			{StudentID: f.students[0].ID, Status: "present"},
			{StudentID: f.students[1].ID, Status: "absent"},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func Test_dashboardApi_dispatch(t *testing.T) {
	f := newFixture(t)
	orphanAdmin := testutil.CreateUser(t, f.usrRepo, "Lost Admin", "admin03", "admin03@test.tz", "", user.RoleAdmin, "", true)

	tests := []struct {
		name     string
		usr      user.User
		wantCode int
		wantKeys []string
	}{
		{name: "teacher", usr: f.teacher, wantCode: http.StatusOK, wantKeys: []string{"teacher", "classes", "recent_sessions"}},
		{name: "admin", usr: f.admin, wantCode: http.StatusOK, wantKeys: []string{"school", "stats", "teachers"}},
		{name: "government", usr: f.government, wantCode: http.StatusOK, wantKeys: []string{"overall", "districts", "schools", "trend"}},
		{name: "admin without school", usr: orphanAdmin, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(http.MethodGet, "/api/dashboard", f.getToken(t, tt.usr))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var data map[string]interface{}
			unmarchall(t, rec, &data)
			for _, key := range tt.wantKeys {
				assert.Contains(t, data, key)
			}
		})
	}

	rec := f.serve(http.MethodGet, "/api/dashboard", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
}

func Test_dashboardApi_roles(t *testing.T) {
	f := newFixture(t)

	tests := []httpTest{
		{name: "admin on teacher dashboard", path: "/api/dashboard/teacher", token: f.getToken(t, f.admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "teacher on admin dashboard", path: "/api/dashboard/admin", token: f.getToken(t, f.teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin on government dashboard", path: "/api/dashboard/government", token: f.getToken(t, f.admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "invalid trend window", path: "/api/dashboard/government?days=15", token: f.getToken(t, f.government),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"days": "days must be one of [7 30 90]"}),
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

func Test_dashboardApi_teacher(t *testing.T) {
	f := newFixture(t)
	f.commitToday(t)

	rec := f.serve(http.MethodGet, "/api/dashboard/teacher", f.getToken(t, f.teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash dashboard.Teacher
	unmarchall(t, rec, &dash)

	assert.Equal(t, f.teacher.ID, dash.Teacher.ID)
	require.Len(t, dash.Classes, 1)
	assert.Equal(t, f.class.ID, dash.Classes[0].ID)
	require.Len(t, dash.RecentSessions, 1)
	sess := dash.RecentSessions[0]
	assert.Equal(t, 3, sess.TotalStudents)
	assert.Equal(t, 1, sess.PresentCount)
	assert.Equal(t, int64(33), int64(sess.Rate.Int))
	assert.Equal(t, f.class.Name, sess.ClassName)
}

func Test_dashboardApi_admin(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.usrRepo, "Colleague", "teacher02", "teacher02@test.tz", "", user.RoleTeacher, f.school.ID, true)
	testutil.CreateStudent(t, f.schRepo, f.class, "D001", "Dalila Ngowi", false)

	rec := f.serve(http.MethodGet, "/api/dashboard/admin", f.getToken(t, f.admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash dashboard.Admin
	unmarchall(t, rec, &dash)

	assert.Equal(t, f.school.ID, dash.School.ID)
	assert.Equal(t, 2, dash.Stats.Teachers)
	assert.Equal(t, 1, dash.Stats.Classes)
	assert.Equal(t, 4, dash.Stats.Students)
	assert.Equal(t, 3, dash.Stats.ActiveStudents)
	require.Len(t, dash.Teachers, 2)
	counts := map[string]int{}
	for _, tch := range dash.Teachers {
		counts[tch.Name] = tch.ClassCount
	}
	assert.Equal(t, map[string]int{"Colleague": 0, "Tumaini Teacher": 1}, counts)
}

func Test_dashboardApi_government(t *testing.T) {
	f := newFixture(t)
	testutil.CreateSchool(t, f.schRepo, "Amani Secondary", "Ilala")
	f.commitToday(t)

	get := func(t *testing.T, path string) dashboard.Government {
		rec := f.serve(http.MethodGet, path, f.getToken(t, f.government))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var dash dashboard.Government
		unmarchall(t, rec, &dash)
		return dash
	}

	t.Run("every district", func(t *testing.T) {
		dash := get(t, "/api/dashboard/government?days=7")
		assert.Len(t, dash.Trend, 7)
		assert.Equal(t, 2, dash.Overall.Schools)
		assert.Equal(t, 3, dash.Overall.Students)
		assert.Equal(t, 1, dash.Overall.Teachers)
		assert.Equal(t, 2, dash.Overall.Rate.TotalDays)
		assert.Equal(t, 1, dash.Overall.Rate.PresentDays)
		assert.EqualValues(t, 50, dash.Overall.Rate.Rate.Int)
		assert.Equal(t, report.ComplianceCritical, dash.Overall.Compliance)
		// only the school with data counts, and it is below 75
		assert.True(t, dash.Overall.ComplianceRate.Valid)
		assert.EqualValues(t, 0, dash.Overall.ComplianceRate.Int)

		require.Len(t, dash.Districts, 2)
		assert.Equal(t, "Ilala", dash.Districts[0].District)
		assert.Equal(t, report.ComplianceNoData, dash.Districts[0].Compliance)
		assert.False(t, dash.Districts[0].Rate.Rate.Valid)
		assert.Equal(t, "Kinondoni", dash.Districts[1].District)
		assert.Equal(t, report.ComplianceCritical, dash.Districts[1].Compliance)
	})

	t.Run("one district", func(t *testing.T) {
		dash := get(t, "/api/dashboard/government?district=Ilala")
		assert.Len(t, dash.Trend, 30)
		require.Len(t, dash.Schools, 1)
		assert.Equal(t, "Amani Secondary", dash.Schools[0].Name)
		assert.Equal(t, report.ComplianceNoData, dash.Overall.Compliance)
		assert.False(t, dash.Overall.ComplianceRate.Valid)
	})
}
