package list

import (
	"errors"
	"fmt"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// OpError is a classified failure of a Coordinator operation.
//
// The structured fields exist so a driving workflow can resume from the
// correct lazy-creation phase: a PARTIAL_COMMIT error still carries the
// topic id that was durably created.
type OpError struct {
	// Code identifies the error category.
	Code OpErrorCode

	// Message is a human-readable description.
	Message string

	// Kind is the affected list kind.
	Kind Kind

	// TopicID is the affected (possibly just-created) topic, when known.
	TopicID ledger.TopicID

	// Err is the underlying collaborator error, when any.
	Err error
}

// OpErrorCode categorizes Coordinator failures.
type OpErrorCode string

const (
	// ErrCodePrecondition indicates the operation required an existing topic
	// (or another precondition) that was not met. Not retried automatically.
	ErrCodePrecondition OpErrorCode = "PRECONDITION_FAILED"

	// ErrCodeItemNotFound indicates an update targeted an id absent from the list.
	ErrCodeItemNotFound OpErrorCode = "ITEM_NOT_FOUND"

	// ErrCodeTopicCreate indicates lazy topic creation itself failed; nothing
	// was committed and the whole add can be retried from the beginning.
	ErrCodeTopicCreate OpErrorCode = "TOPIC_CREATE_FAILED"

	// ErrCodePartialCommit indicates at least one lazy-creation phase landed
	// durably while a later phase failed. The AddResult accompanying the
	// error says which phases are done.
	ErrCodePartialCommit OpErrorCode = "PARTIAL_COMMIT"

	// ErrCodeSubmit indicates a plain message submission failed with nothing
	// partially committed.
	ErrCodeSubmit OpErrorCode = "SUBMIT_FAILED"

	// ErrCodeRead indicates loading a topic's latest message failed.
	ErrCodeRead OpErrorCode = "READ_FAILED"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	if !e.TopicID.Empty() {
		return fmt.Sprintf("%s: %s (kind=%s, topic=%s)", e.Code, e.Message, e.Kind, e.TopicID)
	}
	return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
}

// Unwrap exposes the underlying collaborator error.
func (e *OpError) Unwrap() error { return e.Err }

// CodeOf extracts the OpErrorCode from err, or "" if err is not an OpError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) OpErrorCode {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsPartialCommit reports whether err is a PARTIAL_COMMIT failure.
func IsPartialCommit(err error) bool { return CodeOf(err) == ErrCodePartialCommit }

// IsPrecondition reports whether err is a PRECONDITION_FAILED failure.
func IsPrecondition(err error) bool { return CodeOf(err) == ErrCodePrecondition }
