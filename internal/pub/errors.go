package pub

import (
	"errors"
	"fmt"
)

var (
	// ErrPublishFailed matches every PublishError.
	ErrPublishFailed = errors.New("failed to publish messages")
	// ErrUnexpectedStatus is the cause of a FailureStatus PublishError.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrInvalidAttributes is returned when a message's attributes value is not a map.
	ErrInvalidAttributes = errors.New("message attributes must be a string map")
	// ErrInvalidUTF8 is returned when a message key or string value is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("message contains invalid UTF-8")
)

// FailureKind tags why a publish call failed.
type FailureKind int

const (
	// FailureNetwork covers request construction, connection and timeout errors.
	FailureNetwork FailureKind = iota + 1
	// FailureStatus means the broker answered with a non-2xx status.
	FailureStatus
	// FailureResponse means a 2xx response body could not be read or parsed.
	FailureResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureStatus:
		return "status"
	case FailureResponse:
		return "response"
	default:
		return "unknown"
	}
}

// PublishError is returned when a batch could not be delivered to the broker.
// The whole batch is considered failed.
type PublishError struct {
	Kind FailureKind
	// StatusCode is set for FailureStatus and FailureResponse.
	StatusCode int
	Err        error
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s, status %d): %v", ErrPublishFailed, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrPublishFailed, e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublishFailed
}

// FailureKindOf returns the kind of the PublishError in err's chain, or 0.
func FailureKindOf(err error) FailureKind {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
