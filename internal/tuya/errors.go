package tuya

import (
	"errors"
	"fmt"
)

// Error codes reported by the device transports. The numbering follows the
// convention of the common Tuya client libraries so logs stay recognisable.
const (
	ErrCodeJSON       = 900
	ErrCodeConnect    = 901
	ErrCodeTimeout    = 902
	ErrCodePayload    = 904
	ErrCodeCloudKey   = 909
	ErrCodeCloudResp  = 910
	ErrCodeCloudToken = 911
	ErrCodeCloud      = 913
	ErrCodeKeyOrVer   = 914
)

var (
	// ErrUnexpectedResponse is returned when a reply parses but lacks the
	// expected fields (missing dps key, wrong status code, empty result list).
	ErrUnexpectedResponse = errors.New("tuya: unexpected response structure")

	// ErrNoCredentials is returned by NewClient when neither a local key nor
	// cloud API credentials were supplied.
	ErrNoCredentials = errors.New("tuya: no local key or cloud credentials")
)

// Error is a transport-level failure reported by the device or the cloud.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tuya error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("tuya error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an *Error, optionally wrapping a cause.
func newError(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// unexpected wraps ErrUnexpectedResponse with detail.
func unexpected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedResponse, fmt.Sprintf(format, args...))
}
