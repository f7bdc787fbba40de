package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/dashboard"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
	appfs "github.com/trezcool/mahudhurio/fs"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	testutil "github.com/trezcool/mahudhurio/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}

	loadOnce sync.Once
)

// env is a server over a fresh in-memory store.
type env struct {
	conf    *core.Config
	app     *echoapi.Server
	usrRepo user.Repository
	schRepo school.Repository
	attRepo attendance.Repository
}

func setup(t *testing.T) env {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf)

	loadOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, logger)
		user.LoadCommonPasswords(appfs.FS, logger)
	})

	db := inmemdb.Open()
	e := env{
		conf:    conf,
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		attRepo: inmemdb.NewAttendanceRepository(db),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewServiceMock(e.usrRepo, mailSvc, conf, logger)
	schoolSvc := school.NewService(e.schRepo)
	attSvc := attendance.NewService(nil, e.attRepo, schoolSvc, conf, logger)

	e.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		SchoolSvc:      schoolSvc,
		AttendanceSvc:  attSvc,
		ReportSvc:      report.NewService(schoolSvc, attSvc, conf),
		DashboardSvc:   dashboard.NewService(usrSvc, schoolSvc, attSvc, conf),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = e.app.Close() })
	return e
}

// fixture is a school with an admin, a teacher and a class of three active students.
type fixture struct {
	env
	school     school.School
	admin      user.User
	teacher    user.User
	government user.User
	class      school.Class
	students   []school.Student
}

func newFixture(t *testing.T) fixture {
	e := setup(t)
	f := fixture{env: e}

	f.school = testutil.CreateSchool(t, e.schRepo, "Uhuru Primary", "Kinondoni")
	f.admin = testutil.CreateUser(t, e.usrRepo, "Ada Admin", "admin01", "admin@test.tz", "Adm1n@pass", user.RoleAdmin, f.school.ID, true)
	f.teacher = testutil.CreateUser(t, e.usrRepo, "Tumaini Teacher", "teacher01", "teacher@test.tz", "T3acher@pass", user.RoleTeacher, f.school.ID, true)
	f.government = testutil.CreateUser(t, e.usrRepo, "Gina Gov", "gov001", "gov@test.tz", "", user.RoleGovernment, "", true)
	f.class = testutil.CreateClass(t, e.schRepo, f.school.ID, "Std 4A", f.teacher.ID)
	for i, name := range []string{"Amina Yusuf", "Baraka Otieno", "Chausiku Mrema"} {
		f.students = append(f.students, testutil.CreateStudent(t, e.schRepo, f.class, string(rune('A'+i))+"001", name, true))
	}
	return f
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (e env) serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e env) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, e.conf), e.conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
