package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPost matches any *MalformedPostError.
	ErrMalformedPost = errors.New("malformed post")
	// ErrFeedUnavailable matches any *FeedUnavailableError.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrUnknownProvider is returned when no provider handles a Type.
	ErrUnknownProvider = errors.New("unknown provider")
)

// MalformedPostError reports a raw post whose required fields are missing
// or unparseable.
type MalformedPostError struct {
	Provider Type
	Ref      string // link or id of the offending record, when known
	Field    string
	Err      error
}

func (e *MalformedPostError) Error() string {
	msg := fmt.Sprintf("%s: %s post", ErrMalformedPost, e.Provider)
	if e.Ref != "" {
		msg += " " + e.Ref
	}
	msg += ": " + e.Field
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedPostError) Unwrap() error { return e.Err }

func (e *MalformedPostError) Is(target error) bool { return target == ErrMalformedPost }

// FeedUnavailableError reports a subscription whose posts could not be
// retrieved: network failure, non-success status, or an unreadable body.
type FeedUnavailableError struct {
	Subscription Subscription
	Status       int // HTTP status, 0 when no response was received
	Err          error
}

func (e *FeedUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrFeedUnavailable, e.Subscription.Label())
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

func (e *FeedUnavailableError) Is(target error) bool { return target == ErrFeedUnavailable }
