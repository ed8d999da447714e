// Package ledgertest provides an in-memory, scriptable ledger.Client and
// ledger.BinaryStore for tests. Faults are scripted per operation as FIFO
// queues, so a test can express "the second submit fails with a rejection"
// without reaching into implementation details.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// SubmitCall records one SubmitMessage invocation for assertions.
type SubmitCall struct {
	TopicID ledger.TopicID
	Payload []byte
	Memo    string
}

// Fake is an in-memory ledger. Topic ids are allocated sequentially in the
// "0.0.N" shape the real ledger uses. Safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	topics    map[ledger.TopicID][]ledger.Message
	memos     map[ledger.TopicID]string
	assets    map[ledger.AssetRef][]byte
	nextTopic int64
	nextTxn   int64

	submitFaults []error
	createFaults []error
	readFaults   []error
	uploadFaults []error

	// Call records, in order.
	SubmitCalls []SubmitCall
	CreateCalls []string // topic memos
	ReadCalls   int
}

// New creates an empty fake ledger. Topic numbering starts at 0.0.1000.
func New() *Fake {
	return &Fake{
		topics:    make(map[ledger.TopicID][]ledger.Message),
		memos:     make(map[ledger.TopicID]string),
		assets:    make(map[ledger.AssetRef][]byte),
		nextTopic: 1000,
	}
}

// FailNextSubmit scripts errors for upcoming SubmitMessage calls, consumed
// FIFO. A nil entry means "this call succeeds".
func (f *Fake) FailNextSubmit(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitFaults = append(f.submitFaults, errs...)
}

// FailNextCreate scripts errors for upcoming CreateTopic calls.
func (f *Fake) FailNextCreate(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFaults = append(f.createFaults, errs...)
}

// FailNextRead scripts errors for upcoming ReadLatestMessage/ReadFirstMessage calls.
func (f *Fake) FailNextRead(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFaults = append(f.readFaults, errs...)
}

// FailNextUpload scripts errors for upcoming Upload calls.
func (f *Fake) FailNextUpload(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadFaults = append(f.uploadFaults, errs...)
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

// SubmitMessage implements ledger.Client.
func (f *Fake) SubmitMessage(ctx context.Context, topicID ledger.TopicID, payload []byte, memo string) (ledger.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return ledger.SubmitResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.SubmitCalls = append(f.SubmitCalls, SubmitCall{TopicID: topicID, Payload: append([]byte(nil), payload...), Memo: memo})

	if err := pop(&f.submitFaults); err != nil {
		return ledger.SubmitResult{}, err
	}
	if _, ok := f.topics[topicID]; !ok {
		return ledger.SubmitResult{}, fmt.Errorf("submit to %s: %w", topicID, ledger.ErrTopicNotFound)
	}

	f.nextTxn++
	seq := int64(len(f.topics[topicID]) + 1)
	f.topics[topicID] = append(f.topics[topicID], ledger.Message{
		TopicID:        topicID,
		SequenceNumber: seq,
		Payload:        append([]byte(nil), payload...),
		Memo:           memo,
	})
	return ledger.SubmitResult{
		TransactionID:  fmt.Sprintf("txn-%d", f.nextTxn),
		SequenceNumber: seq,
	}, nil
}

// CreateTopic implements ledger.Client.
func (f *Fake) CreateTopic(ctx context.Context, memo, txMemo string, restrictWriters bool) (ledger.TopicID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls = append(f.CreateCalls, memo)

	if err := pop(&f.createFaults); err != nil {
		return "", err
	}

	f.nextTopic++
	id := ledger.TopicID(fmt.Sprintf("0.0.%d", f.nextTopic))
	f.topics[id] = nil
	f.memos[id] = memo
	return id, nil
}

// ReadLatestMessage implements ledger.Client.
func (f *Fake) ReadLatestMessage(ctx context.Context, topicID ledger.TopicID) (*ledger.Message, error) {
	return f.read(ctx, topicID, true)
}

// ReadFirstMessage implements ledger.Client.
func (f *Fake) ReadFirstMessage(ctx context.Context, topicID ledger.TopicID) (*ledger.Message, error) {
	return f.read(ctx, topicID, false)
}

func (f *Fake) read(ctx context.Context, topicID ledger.TopicID, latest bool) (*ledger.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReadCalls++
	if err := pop(&f.readFaults); err != nil {
		return nil, err
	}

	msgs, ok := f.topics[topicID]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", topicID, ledger.ErrTopicNotFound)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	var m ledger.Message
	if latest {
		m = msgs[len(msgs)-1]
	} else {
		m = msgs[0]
	}
	return &m, nil
}

// Upload implements ledger.BinaryStore.
func (f *Fake) Upload(ctx context.Context, name string, data []byte) (ledger.AssetRef, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := pop(&f.uploadFaults); err != nil {
		return "", err
	}

	ref := ledger.AssetRef(fmt.Sprintf("asset-%d-%s", len(f.assets)+1, name))
	f.assets[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Seed creates a topic with the given messages already consensed.
// Used to set up "profile already has a list" scenarios.
func (f *Fake) Seed(memo string, payloads ...[]byte) ledger.TopicID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextTopic++
	id := ledger.TopicID(fmt.Sprintf("0.0.%d", f.nextTopic))
	f.memos[id] = memo
	for i, p := range payloads {
		f.topics[id] = append(f.topics[id], ledger.Message{
			TopicID:        id,
			SequenceNumber: int64(i + 1),
			Payload:        append([]byte(nil), p...),
			Memo:           memo,
		})
	}
	if len(payloads) == 0 {
		f.topics[id] = nil
	}
	return id
}

// Messages returns a copy of a topic's message list.
func (f *Fake) Messages(topicID ledger.TopicID) []ledger.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Message(nil), f.topics[topicID]...)
}

// TopicCount returns the number of topics ever created or seeded.
func (f *Fake) TopicCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}

// StaticSigner is a test signer with a fixed account id.
type StaticSigner string

// AccountID implements ledger.Signer.
func (s StaticSigner) AccountID() string { return string(s) }
