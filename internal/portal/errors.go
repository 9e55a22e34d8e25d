package portal

import (
	"errors"
	"fmt"
)

// GenericLoginFailure is returned when the Portal rejects a login without
// rendering a message of its own.
const GenericLoginFailure = "Falha no login. Verifique as credenciais e o captcha."

var (
	// ErrRedirectLoop is wrapped by AuthRejectedError when the hop cap is hit.
	ErrRedirectLoop = errors.New("portal: redirect limit exceeded")
	// ErrMissingLink is returned when a detail request has no case link.
	ErrMissingLink = errors.New("portal: case link is required")
)

// TransportError is a network, TLS or timeout failure talking to the Portal.
type TransportError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("portal %s %s: timeout: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("portal %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EncodingError means a charset could not be determined or applied.
type EncodingError struct {
	Charset string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("portal: charset %q: %v", e.Charset, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// AuthRejectedError means the Portal still shows the login form. Message is
// the Portal's own text when it rendered one.
type AuthRejectedError struct {
	Message string
	Cause   error
}

func (e *AuthRejectedError) Error() string { return e.Message }

func (e *AuthRejectedError) Unwrap() error { return e.Cause }

// IsAuthRejected reports whether err is an authentication rejection,
// including redirect loops.
func IsAuthRejected(err error) bool {
	var rejected *AuthRejectedError
	return errors.As(err, &rejected)
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr) && terr.Timeout
}
