package core

import (
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

var (
	statusMu    sync.RWMutex
	errStatuses = make(map[error]int)
)

// RegisterErrorStatus maps a domain sentinel error to the HTTP status it should be reported with.
func RegisterErrorStatus(status int, errs ...error) {
	statusMu.Lock()
	defer statusMu.Unlock()
	for _, err := range errs {
		errStatuses[err] = status
	}
}

// ErrorStatus returns the HTTP status registered for the cause of err.
func ErrorStatus(err error) (int, bool) {
	statusMu.RLock()
	defer statusMu.RUnlock()
	status, ok := errStatuses[errors.Cause(err)]
	return status, ok
}

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUpgradeRequired  = errors.New("upgrade required")
)

func init() {
	RegisterErrorStatus(http.StatusForbidden, ErrPermissionDenied)
	RegisterErrorStatus(http.StatusPaymentRequired, ErrUpgradeRequired)
}
