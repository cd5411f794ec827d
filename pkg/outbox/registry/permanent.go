package registry

import "errors"

// PermanentError marks a row that will fail the same way on every attempt:
// an unknown type, a malformed envelope or a topic with no publisher.
type PermanentError struct {
	Err error
}

func Permanent(err error) PermanentError {
	return PermanentError{Err: err}
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent outbox failure"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying err can never succeed.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}
