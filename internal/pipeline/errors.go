package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidReference        = errors.New("invalid reference")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrInvalidUpstreamMetadata = errors.New("invalid upstream metadata")
	ErrDecorationFailed        = errors.New("decoration failed")
	ErrStorageFailed           = errors.New("storage failed")
	// ErrAlreadyExists is not a failure: the reference was ingested before.
	// Use errors.As with *AlreadyExistsError to get the existing item.
	ErrAlreadyExists = errors.New("already exists")
	ErrItemNotFound  = errors.New("item not found")
)

// AlreadyExistsError carries the identity of the item that already owns a
// source id.
type AlreadyExistsError struct {
	ID       uuid.UUID
	SourceID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: source %s is item %s", ErrAlreadyExists, e.SourceID, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// wrap tags err with marker and the stage it failed in, so callers can
// classify with errors.Is while logs keep the detail.
func wrap(marker error, stage, message string, err error) error {
	detail := stage
	if message = strings.TrimSpace(message); message != "" {
		detail += ": " + message
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ClientError reports whether err was caused by the submitted reference or
// the video it points at rather than by this service.
func ClientError(err error) bool {
	return errors.Is(err, ErrInvalidReference) || errors.Is(err, ErrInvalidUpstreamMetadata)
}
