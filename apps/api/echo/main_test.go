package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/NaveenRoman/AI-TUTor/apps/api/echo"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	cachesvc "github.com/NaveenRoman/AI-TUTor/services/cache"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	reportsvc "github.com/NaveenRoman/AI-TUTor/services/report"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

const testPassword = "Tut0r-Str0ng!pass"

type testApp struct {
	*echoapi.Server
	conf  *core.Config
	repos *database.Repositories
	deps  echoapi.ServerDeps
}

func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(logger)

	repos := database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	activitySvc := activity.NewService(repos.Activity)
	userSvc := user.NewServiceMock(repos.User, mailSvc, conf, logger)
	kb := book.NewKnowledgeBase()
	bookSvc := book.NewService(repos.Book, kb, userSvc, activitySvc, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	quizSvc := quiz.NewService(repos.Quiz, bookSvc, userSvc, skillSvc, activitySvc, mailSvc, quiz.NewGenerator(rand.NewSource(1)), logger)
	bookSvc.OnChapterComplete(quizSvc.ChapterCompleted)
	bank, err := interview.DefaultQuestionBank()
	if err != nil {
		t.Fatalf("loading question bank: %v", err)
	}
	interviewSvc := interview.NewService(repos.Interview, bank, skillSvc, activitySvc, logger)
	instSvc := institution.NewService(repos.Institution, userSvc, mailSvc, conf, logger)
	companySvc := company.NewService(repos.Company, userSvc, skillSvc, interviewSvc)
	tutorSvc := tutor.NewService(cachesvc.NewMemoryDocumentStore(time.Hour), kb, nil, activitySvc, logger)
	analyticsSvc := analytics.NewService(repos.Analytics, instSvc, skillSvc, quizSvc, userSvc, activitySvc, mailSvc, reportsvc.NewRenderer(), logger)

	deps := echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        userSvc,
		BookSvc:        bookSvc,
		QuizSvc:        quizSvc,
		SkillSvc:       skillSvc,
		InterviewSvc:   interviewSvc,
		ActivitySvc:    activitySvc,
		TutorSvc:       tutorSvc,
		InstitutionSvc: instSvc,
		CompanySvc:     companySvc,
		AnalyticsSvc:   analyticsSvc,
	}
	return &testApp{
		Server: echoapi.NewServer(deps),
		conf:   conf,
		repos:  repos,
		deps:   deps,
	}
}

func (app *testApp) createUser(t *testing.T, roles ...string) user.User {
	uname := testutil.Unique("user")
	return testutil.CreateUser(t, app.repos.User, "User "+uname, uname, uname+"@test.in", testPassword, roles, true)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func (app *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

var bg = context.Background()

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
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshall(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equalf(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	checkCode(t, tt, rec)
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}
