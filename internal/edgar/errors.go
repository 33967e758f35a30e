package edgar

import (
	"errors"
	"fmt"

	"formdwatch/internal/models"
	"formdwatch/internal/normalizer"
)

// Failure kinds. Every error returned by Client matches at most one of these
// (ErrTimeout errors also match ErrTransport).
var (
	ErrTransport         = errors.New("edgar request failed")
	ErrTimeout           = errors.New("edgar request timed out")
	ErrHTTPStatus        = errors.New("edgar returned non-2xx status")
	ErrMalformedResponse = errors.New("edgar response is malformed")
)

// Kind labels used in logs, metrics and the JSON API.
const (
	KindOK           = "ok"
	KindInvalidRange = "invalid_range"
	KindTransport    = "transport"
	KindTimeout      = "timeout"
	KindHTTPStatus   = "http_status"
	KindMalformed    = "malformed_response"
	KindDataContract = "data_contract"
	KindUnknown      = "unknown"
)

// TransportError wraps network, DNS and deadline failures.
type TransportError struct {
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: %v", ErrTimeout, e.Err)
	}

	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

// Is matches ErrTransport, and ErrTimeout when the deadline elapsed.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport || (e.Timeout && target == ErrTimeout)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-2xx upstream response.
type HTTPStatusError struct {
	Body       string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d", ErrHTTPStatus, e.StatusCode)
	}

	return fmt.Sprintf("%s: %d: %s", ErrHTTPStatus, e.StatusCode, e.Body)
}

// Is matches ErrHTTPStatus.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// MalformedResponseError reports a body that is not JSON or lacks hits.hits.
type MalformedResponseError struct {
	Err    error
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.Reason)
}

// Is matches ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies an error returned by Client (or nil) into a Kind label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, models.ErrInvalidDateRange), errors.Is(err, models.ErrMissingDate):
		return KindInvalidRange
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrHTTPStatus):
		return KindHTTPStatus
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, normalizer.ErrDataContract):
		return KindDataContract
	default:
		return KindUnknown
	}
}
