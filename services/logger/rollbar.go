package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

// RollbarLogger reports every entry to Rollbar and prints it locally through zap.
type RollbarLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger named `name` (API, DB, WORKER, ADMIN).
// Rollbar stays disabled until Enable(true) is called.
func NewRollbarLogger(name string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(false)

	return &RollbarLogger{zl: newZap(conf).Named(name).Sugar()}
}

func newZap(conf *core.Config) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if conf.TestMode {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return zl
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes the buffered zap entries and waits for the pending Rollbar items.
func (l *RollbarLogger) Sync() {
	_ = l.zl.Sync()
	rollbar.Wait()
}

// prepare splits args into the Rollbar interface arguments and the zap key/value pairs.
// expected args: error | map[string]interface{} | user.User | key, value pairs
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var usrSet bool
	rbArgs := []interface{}{msg}
	var kvs []interface{}
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case user.User:
			if !usrSet {
				rollbar.SetPerson(arg.ID, arg.Username, arg.Email)
				usrSet = true
			}
			kvs = append(kvs, "user_id", arg.ID)
		case error:
			rbArgs = append(rbArgs, arg)
			kvs = append(kvs, zap.Error(arg))
		case map[string]interface{}:
			rbArgs = append(rbArgs, arg)
			for k, v := range arg {
				kvs = append(kvs, k, v)
			}
		case string:
			if i+1 < len(args) {
				kvs = append(kvs, arg, args[i+1])
				i++
			} else {
				kvs = append(kvs, "detail", arg)
			}
		default:
			kvs = append(kvs, "detail", arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, kvs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debugw(msg, kvs...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Infow(msg, kvs...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warnw(msg, kvs...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Errorw(msg, kvs...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zl.Fatalw(msg, kvs...)
}
