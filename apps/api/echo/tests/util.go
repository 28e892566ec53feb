package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/Gokulakrishnan610/chicken-dinner/apps/api/echo"
	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/dashboard"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
	appfs "github.com/Gokulakrishnan610/chicken-dinner/fs"
	emailsvc "github.com/Gokulakrishnan610/chicken-dinner/services/email"
	"github.com/Gokulakrishnan610/chicken-dinner/services/metrics"
	inmemdb "github.com/Gokulakrishnan610/chicken-dinner/storage/database/inmem"
	"github.com/Gokulakrishnan610/chicken-dinner/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf    *core.Config
	db      *inmemdb.DB
	mailSvc *emailsvc.ConsoleService
	metrics *metrics.Metrics
}

func setup(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	logger := nopLogger{}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}

	// set up DB & services
	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, tmpls, logger)
	mtr := metrics.New()

	profileSvc := profile.NewService(db, validate)
	usrSvc := user.NewService(db, profileSvc, mailSvc, validate, conf, logger)
	notifSvc := notification.NewService(db, validate)
	submissionSvc := submission.NewService(db, notifSvc, mtr, validate, logger)

	// set up server
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Metrics:         mtr,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		ProfileSvc:      profileSvc,
		SubmissionSvc:   submissionSvc,
		AchievementSvc:  achievement.NewService(db, validate),
		CertificateSvc:  certificate.NewService(db, notifSvc, validate, logger),
		VolunteeringSvc: volunteering.NewService(db, validate),
		NotificationSvc: notifSvc,
		ReportSvc:       report.NewService(db, mailSvc, validate, logger),
		DashboardSvc:    dashboard.NewService(usrSvc, submissionSvc, profileSvc, notifSvc),
	})

	return &testApp{Server: server, conf: conf, db: db, mailSvc: mailSvc, metrics: mtr}
}

// createUser saves an active user with password "LolC@t123".
func (app *testApp) createUser(t *testing.T, uname string, role user.Role) user.User {
	return testutil.CreateUser(t, app.db, uname, uname, uname+"@test.cd", "LolC@t123", role, true)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves the request and decodes a JSON response into `out` (if any).
func (app *testApp) do(t *testing.T, method, path, token string, body []byte, out interface{}) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
		}
	}
	return rec
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

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
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if !ok1 || !ok2 {
		return false, nil
	}
	return assert.ElementsMatch(t, l1, l2), nil
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
