package ledger

import (
	"context"
	"errors"
	"strings"
)

// TopicID identifies an append-only topic on the ledger.
// The zero value ("") means "no topic", e.g. a list resource that has not
// been lazily created yet.
type TopicID string

// Empty reports whether the id is the zero value.
func (id TopicID) Empty() bool { return id == "" }

// SubmitResult describes a successfully consensed message submission.
type SubmitResult struct {
	// TransactionID is the ledger-assigned (or client-assigned) transaction id.
	TransactionID string

	// SequenceNumber is the message's position within its topic, starting at 1.
	SequenceNumber int64
}

// Message is a single consensed topic message.
type Message struct {
	TopicID        TopicID
	SequenceNumber int64
	Payload        []byte
	Memo           string
}

// Client is the append-only log collaborator.
//
// All methods are blocking, out-of-process calls; callers pass a context and
// must expect any call to fail, time out, or be rejected by the user while
// earlier calls remain committed.
type Client interface {
	// SubmitMessage appends payload to the given topic.
	SubmitMessage(ctx context.Context, topicID TopicID, payload []byte, memo string) (SubmitResult, error)

	// CreateTopic creates a new topic and returns its id. The memo labels the
	// topic itself; txMemo labels the creating transaction. restrictWriters
	// requests a submit-key so only the owning account can write.
	CreateTopic(ctx context.Context, memo, txMemo string, restrictWriters bool) (TopicID, error)

	// ReadLatestMessage returns the most recent message of a topic, or
	// (nil, nil) if the topic exists but holds no messages yet.
	ReadLatestMessage(ctx context.Context, topicID TopicID) (*Message, error)

	// ReadFirstMessage returns the first message of a topic, or (nil, nil)
	// if the topic holds no messages yet.
	ReadFirstMessage(ctx context.Context, topicID TopicID) (*Message, error)
}

// AssetRef references an uploaded binary in the content-addressed store.
type AssetRef string

// BinaryStore is the large-binary collaborator (avatar images, post media).
type BinaryStore interface {
	// Upload stores the binary and returns a reference suitable for embedding
	// in item records and announce messages.
	Upload(ctx context.Context, name string, data []byte) (AssetRef, error)
}

// Signer is the authorization context required before any submission.
// A session without a signer must never reach the ledger.
type Signer interface {
	// AccountID returns the signing account, e.g. "0.0.4851".
	AccountID() string
}

// ErrTopicNotFound is returned by reads against an unknown topic id.
var ErrTopicNotFound = errors.New("topic not found")

// ErrUserRejected is the canonical "authorization declined" error.
// Client implementations should wrap it so IsUserRejected works through
// errors.Is; implementations bridging foreign SDKs may instead surface the
// rejection text matched below.
var ErrUserRejected = errors.New("user rejected transaction")

// IsUserRejected reports whether err represents the user declining to
// authorize a submission. Matches both wrapped ErrUserRejected and the
// rejection phrasing used by wallet bridges.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}
