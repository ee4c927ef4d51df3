package apps

import "fmt"

// ArgumentError reports an invalid command-line argument.
type ArgumentError struct {
	Arg string
	msg string
}

func NewArgumentError(arg, msg string) *ArgumentError {
	return &ArgumentError{Arg: arg, msg: msg}
}

func (err *ArgumentError) Error() string {
	if err.Arg == "" {
		return err.msg
	}
	return fmt.Sprintf("-%s: %s", err.Arg, err.msg)
}
