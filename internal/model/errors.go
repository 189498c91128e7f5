package model

import "errors"

// ErrNoSession is returned by operations that require an authenticated
// household session when no token is held. It is raised locally, before any
// network call.
var ErrNoSession = errors.New("not logged in")

// ValidationError reports a local, pre-request validation failure. It never
// reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
