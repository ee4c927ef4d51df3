package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/randomize"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

var seed = randomize.NewSeed()

// NewConfig returns the config used by tests: no external services, fixed secrets.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:                  true,
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "AI Tutor",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Redis:    core.RedisConfig{Disabled: true, DocumentTTL: time.Hour},
		Billing: core.BillingConfig{
			Currency:     "INR",
			ProAmount:    49900,
			MonthlyPrice: 499,
			PeriodDays:   30,
		},
		Worker: core.WorkerConfig{LockTTL: time.Minute, Concurrency: 4},
	}
}

type testLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*testLogger)(nil)

// NewLogger returns a core.Logger writing to the test log.
func NewLogger(t testing.TB) core.Logger {
	return &testLogger{zl: zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)).Sugar()}
}

func (l *testLogger) Debug(msg string, args ...interface{}) { l.zl.Debugw(msg, "args", args) }
func (l *testLogger) Info(msg string, args ...interface{})  { l.zl.Infow(msg, "args", args) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.zl.Warnw(msg, "args", args) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.zl.Errorw(msg, "args", args) }
func (l *testLogger) Fatal(msg string, args ...interface{}) { l.zl.Errorw("FATAL: "+msg, "args", args) }

// NewValidator returns a validator and its translator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	institution.InitValidators(validate, translator)
	return validate, translator
}

// Unique returns s suffixed with a number that is unique within the test binary.
func Unique(s string) string {
	return fmt.Sprintf("%s%d", s, seed.NextInt())
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student with a unique username.
func CreateStudent(t *testing.T, repo user.Repository, pwd ...string) user.User {
	uname := Unique("student")
	var p string
	if len(pwd) > 0 {
		p = pwd[0]
	}
	return CreateUser(t, repo, "Student "+uname, uname, uname+"@test.in", p, []string{user.RoleStudent}, true)
}
