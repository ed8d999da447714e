package list

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// Phase is one observable sub-phase of the lazy-creation path. A driving
// workflow uses the phase hook to render "creating list…", "seeding list…",
// "linking profile…" and to retry exactly the failed phase.
type Phase int

const (
	// PhaseCreateTopic is the topic-creation submission.
	PhaseCreateTopic Phase = iota + 1
	// PhaseSeedTopic is the initial array write into the new topic.
	PhaseSeedTopic
	// PhaseLinkProfile is the back-reference update on the owning profile.
	PhaseLinkProfile
)

// String returns the phase's display name.
func (p Phase) String() string {
	switch p {
	case PhaseCreateTopic:
		return "creating list topic"
	case PhaseSeedTopic:
		return "seeding list topic"
	case PhaseLinkProfile:
		return "linking profile"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PhaseHook observes lazy-creation phases as they begin.
type PhaseHook func(Phase)

// BackRefUpdater persists a newly created list topic's id into the owning
// profile record. Injected; the Coordinator never touches the profile shape
// directly. A false return without error means the collaborator refused the
// update (treated the same as an error, but without a cause to wrap).
type BackRefUpdater func(ctx context.Context, topicID ledger.TopicID, kind Kind) (bool, error)

// AddResult reports the outcome of AddItem and WriteArray with enough
// structure to resume a partially-committed lazy creation.
type AddResult struct {
	// OK is true when every required phase landed.
	OK bool

	// TopicID is the list topic written to, including a topic that was
	// created even though a later phase failed.
	TopicID ledger.TopicID

	// CreatedTopic is true when this call went down the lazy-creation path
	// (the topic did not exist when the session started the add).
	CreatedTopic bool

	// Linked is true when the profile back-reference is in place, or no
	// updater was configured so there was nothing to link.
	Linked bool
}

// Snapshot is the Coordinator's read-only projection for rendering.
type Snapshot struct {
	Items   []Item
	Loading bool
	Err     error
	TopicID ledger.TopicID
}

// Coordinator owns read/refresh/add/remove/update semantics for one list
// topic, including lazy creation and back-reference repair.
//
// The topic is modeled as "latest message = current full snapshot": every
// write replaces the whole array. That avoids unbounded replay cost and
// log-level conflict resolution at the price of last-write-wins between
// sessions, which is accepted because the owning account is the only
// expected writer.
//
// Concurrency: at most one mutating operation may be in flight per
// Coordinator at a time (the workflow engine serializes them). Snapshot
// reads are safe at any time.
type Coordinator struct {
	client  ledger.Client
	cache   *Cache
	kind    Kind
	log     *slog.Logger
	linkRef BackRefUpdater
	onPhase PhaseHook

	// propagation bounds the wait between topic creation and the seed write,
	// giving mirrors a moment to notice the new topic. It is a heuristic:
	// downstream readers may still be stale after it elapses, and nothing
	// here depends on it for correctness.
	propagation time.Duration
	wait        func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	topicID ledger.TopicID
	// pending is a topic created by a failed earlier add: it exists on the
	// ledger but is unseeded. Retries reuse it instead of creating another.
	pending   ledger.TopicID
	needsLink bool
	items     []Item
	loaded    bool
	loading   bool
	lastErr   error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithBackRefUpdater injects the profile back-reference updater.
func WithBackRefUpdater(fn BackRefUpdater) CoordinatorOption {
	return func(c *Coordinator) { c.linkRef = fn }
}

// WithPhaseHook observes lazy-creation phases.
func WithPhaseHook(fn PhaseHook) CoordinatorOption {
	return func(c *Coordinator) { c.onPhase = fn }
}

// WithPropagationWait tunes the post-creation settle delay. Zero disables it;
// tests always pass zero.
func WithPropagationWait(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.propagation = d }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// DefaultPropagationWait is the default post-creation settle delay.
const DefaultPropagationWait = 2 * time.Second

// NewCoordinator creates a Coordinator for one (profile, kind) list.
// topicID may be empty, meaning the list topic does not exist yet and will
// be lazily created by the first successful AddItem or WriteArray.
func NewCoordinator(client ledger.Client, cache *Cache, kind Kind, topicID ledger.TopicID, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		client:      client,
		cache:       cache,
		kind:        kind,
		topicID:     topicID,
		log:         slog.Default(),
		propagation: DefaultPropagationWait,
		wait: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the list kind this Coordinator manages.
func (c *Coordinator) Kind() Kind { return c.kind }

// State returns the read-only projection.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Items:   append([]Item(nil), c.items...),
		Loading: c.loading,
		Err:     c.lastErr,
		TopicID: c.topicID,
	}
}

// HasTopic reports whether the list topic already exists.
func (c *Coordinator) HasTopic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.topicID.Empty()
}

// Load binds the Coordinator to topicID and loads the current item array.
// An empty topicID is not an error: the list simply does not exist yet and
// reads as empty.
func (c *Coordinator) Load(ctx context.Context, topicID ledger.TopicID) error {
	c.mu.Lock()
	c.topicID = topicID
	c.loading = true
	c.lastErr = nil
	c.mu.Unlock()

	items, err := c.fetch(ctx, topicID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.lastErr = err
		return err
	}
	c.items = items
	c.loaded = true
	return nil
}

// Refresh invalidates the cache entry for the current topic and reloads.
// Errors surface via State().Err as well as the return value.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	topicID := c.topicID
	c.mu.Unlock()

	c.cache.Invalidate(topicID, c.kind)
	return c.Load(ctx, topicID)
}

// fetch returns the current item array for topicID: empty id reads as [],
// then cache, then the topic's single latest message.
func (c *Coordinator) fetch(ctx context.Context, topicID ledger.TopicID) ([]Item, error) {
	if topicID.Empty() {
		return nil, nil
	}
	if items, ok := c.cache.Get(topicID, c.kind); ok {
		return items, nil
	}

	msg, err := c.client.ReadLatestMessage(ctx, topicID)
	if err != nil {
		return nil, &OpError{Code: ErrCodeRead, Message: "read latest list message", Kind: c.kind, TopicID: topicID, Err: err}
	}
	if msg == nil {
		// Topic exists but holds nothing yet; an empty list, not an error.
		return nil, nil
	}

	items, isArray, err := DecodeItems(c.kind, msg.Payload)
	if err != nil {
		return nil, &OpError{Code: ErrCodeRead, Message: "decode list message", Kind: c.kind, TopicID: topicID, Err: err}
	}
	if !isArray {
		c.log.Warn("list topic payload is not an array, treating as empty",
			"topic", topicID, "kind", c.kind.String(), "seq", msg.SequenceNumber)
		return nil, nil
	}

	c.cache.Put(topicID, c.kind, items)
	return items, nil
}

// ensureLoaded loads items once for a bound topic so mutations operate on
// the current array.
func (c *Coordinator) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	topicID, loaded := c.topicID, c.loaded
	c.mu.Unlock()
	if loaded || topicID.Empty() {
		return nil
	}
	return c.Load(ctx, topicID)
}

// EnsureTopic lazily creates the list topic, returning its id and whether
// this call created it. Idempotent: an existing or pending topic is returned
// as-is, so a retry after a failed seed write never creates a second topic.
func (c *Coordinator) EnsureTopic(ctx context.Context) (ledger.TopicID, bool, error) {
	c.mu.Lock()
	if !c.topicID.Empty() {
		id := c.topicID
		c.mu.Unlock()
		return id, false, nil
	}
	if !c.pending.Empty() {
		id := c.pending
		c.mu.Unlock()
		return id, false, nil
	}
	c.mu.Unlock()

	c.phase(PhaseCreateTopic)
	memo := c.kind.TopicMemo()
	id, err := c.client.CreateTopic(ctx, memo, "Waypost: create "+c.kind.String()+" list", true)
	if err != nil {
		return "", false, &OpError{Code: ErrCodeTopicCreate, Message: "create list topic", Kind: c.kind, Err: err}
	}

	c.mu.Lock()
	c.pending = id
	c.needsLink = c.linkRef != nil
	c.mu.Unlock()

	c.log.Info("created list topic", "topic", id, "kind", c.kind.String())

	// Give mirrors a moment before the seed write. Best effort only.
	if err := c.wait(ctx, c.propagation); err != nil {
		return id, true, err
	}
	return id, true, nil
}

// AddItem appends item to the list.
//
// Adding an item whose id is already present reports success without issuing
// a write. When the topic does not exist it is lazily created; each phase of
// that path is separately durable, and the returned AddResult says exactly
// how far the flow got so a retry resumes at the failed phase.
func (c *Coordinator) AddItem(ctx context.Context, item Item) (AddResult, error) {
	item = item.Normalize()
	if item.ID.Empty() {
		return AddResult{}, &OpError{Code: ErrCodePrecondition, Message: "item has no id", Kind: c.kind}
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return AddResult{}, err
	}

	c.mu.Lock()
	topicID := c.topicID
	items := append([]Item(nil), c.items...)
	c.mu.Unlock()

	if indexOf(items, item.ID) >= 0 {
		// Idempotent no-op, except that a dangling back-reference from an
		// earlier partial commit still gets repaired.
		if err := c.LinkProfile(ctx); err != nil {
			return AddResult{TopicID: topicID, CreatedTopic: true}, err
		}
		return AddResult{OK: true, TopicID: topicID, Linked: true}, nil
	}

	if !topicID.Empty() {
		next := append(items, item)
		if err := c.submitArray(ctx, topicID, next); err != nil {
			return AddResult{TopicID: topicID}, err
		}
		c.setItems(topicID, next)
		return AddResult{OK: true, TopicID: topicID, Linked: true}, nil
	}

	return c.createAndSeed(ctx, []Item{item})
}

// WriteArray overwrites the full list. Migration uses it to move all items
// at once; it follows the same lazy-creation rule as AddItem but skips
// duplicate detection.
func (c *Coordinator) WriteArray(ctx context.Context, items []Item) (AddResult, error) {
	next := make([]Item, len(items))
	for i := range items {
		next[i] = items[i].Normalize()
	}

	c.mu.Lock()
	topicID := c.topicID
	c.mu.Unlock()

	if !topicID.Empty() {
		if err := c.submitArray(ctx, topicID, next); err != nil {
			return AddResult{TopicID: topicID}, err
		}
		c.setItems(topicID, next)
		return AddResult{OK: true, TopicID: topicID, Linked: true}, nil
	}

	return c.createAndSeed(ctx, next)
}

// createAndSeed runs the lazy-creation path: create (or reuse a pending)
// topic, seed it with the initial array, then link the profile.
func (c *Coordinator) createAndSeed(ctx context.Context, items []Item) (AddResult, error) {
	id, _, err := c.EnsureTopic(ctx)
	if err != nil {
		return AddResult{TopicID: id, CreatedTopic: !id.Empty()}, err
	}

	c.phase(PhaseSeedTopic)
	payload, err := EncodeItems(c.kind, items)
	if err != nil {
		return AddResult{TopicID: id, CreatedTopic: true}, err
	}
	if _, err := c.client.SubmitMessage(ctx, id, payload, c.kind.TopicMemo()); err != nil {
		// The topic is durably created but unseeded. The caller retries the
		// seed write only; EnsureTopic will hand back the pending id.
		return AddResult{TopicID: id, CreatedTopic: true}, &OpError{
			Code: ErrCodePartialCommit, Message: "seed new list topic", Kind: c.kind, TopicID: id, Err: err,
		}
	}

	c.mu.Lock()
	c.topicID = id
	c.pending = ""
	c.items = append([]Item(nil), items...)
	c.loaded = true
	c.mu.Unlock()
	c.cache.Put(id, c.kind, items)

	if err := c.LinkProfile(ctx); err != nil {
		return AddResult{TopicID: id, CreatedTopic: true}, err
	}
	return AddResult{OK: true, TopicID: id, CreatedTopic: true, Linked: true}, nil
}

// LinkProfile persists the list topic's id into the owning profile record
// via the injected updater. Idempotent: once linked (or when no updater is
// configured) it returns nil without calling the collaborator. Retryable
// independently of topic creation and seeding.
func (c *Coordinator) LinkProfile(ctx context.Context) error {
	c.mu.Lock()
	id := c.topicID
	if id.Empty() {
		id = c.pending
	}
	needed := c.needsLink && c.linkRef != nil
	c.mu.Unlock()

	if !needed {
		return nil
	}
	if id.Empty() {
		return &OpError{Code: ErrCodePrecondition, Message: "no topic to link", Kind: c.kind}
	}

	c.phase(PhaseLinkProfile)
	ok, err := c.linkRef(ctx, id, c.kind)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("back-reference updater declined")
		}
		return &OpError{Code: ErrCodePartialCommit, Message: "update profile back-reference", Kind: c.kind, TopicID: id, Err: err}
	}

	c.mu.Lock()
	c.needsLink = false
	c.mu.Unlock()
	c.log.Info("linked list topic into profile", "topic", id, "kind", c.kind.String())
	return nil
}

// RemoveItem deletes the item with the given id. Removing an absent id is
// success without a write. Requires an existing topic.
func (c *Coordinator) RemoveItem(ctx context.Context, id ledger.TopicID) error {
	c.mu.Lock()
	topicID := c.topicID
	c.mu.Unlock()
	if topicID.Empty() {
		return &OpError{Code: ErrCodePrecondition, Message: "cannot remove from a list with no topic", Kind: c.kind}
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	items := append([]Item(nil), c.items...)
	c.mu.Unlock()

	idx := indexOf(items, id)
	if idx < 0 {
		return nil
	}
	next := append(append([]Item(nil), items[:idx]...), items[idx+1:]...)
	if err := c.submitArray(ctx, topicID, next); err != nil {
		return err
	}
	c.setItems(topicID, next)
	return nil
}

// UpdateItem applies a patch to the item with the given id. Requires an
// existing topic and an existing item.
func (c *Coordinator) UpdateItem(ctx context.Context, id ledger.TopicID, patch Patch) error {
	c.mu.Lock()
	topicID := c.topicID
	c.mu.Unlock()
	if topicID.Empty() {
		return &OpError{Code: ErrCodePrecondition, Message: "cannot update a list with no topic", Kind: c.kind}
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	items := append([]Item(nil), c.items...)
	c.mu.Unlock()

	idx := indexOf(items, id)
	if idx < 0 {
		return &OpError{Code: ErrCodeItemNotFound, Message: fmt.Sprintf("no item %s in list", id), Kind: c.kind, TopicID: topicID}
	}
	next := append([]Item(nil), items...)
	next[idx] = patch.apply(next[idx])
	if err := c.submitArray(ctx, topicID, next); err != nil {
		return err
	}
	c.setItems(topicID, next)
	return nil
}

// submitArray writes the full array as one message to an existing topic.
func (c *Coordinator) submitArray(ctx context.Context, topicID ledger.TopicID, items []Item) error {
	payload, err := EncodeItems(c.kind, items)
	if err != nil {
		return err
	}
	if _, err := c.client.SubmitMessage(ctx, topicID, payload, c.kind.TopicMemo()); err != nil {
		return &OpError{Code: ErrCodeSubmit, Message: "submit list message", Kind: c.kind, TopicID: topicID, Err: err}
	}
	return nil
}

// setItems records a successful write locally and write-through-updates the
// cache so the writer's own view is fresh immediately.
func (c *Coordinator) setItems(topicID ledger.TopicID, items []Item) {
	c.mu.Lock()
	c.items = append([]Item(nil), items...)
	c.loaded = true
	c.lastErr = nil
	c.mu.Unlock()
	c.cache.Put(topicID, c.kind, items)
}

func (c *Coordinator) phase(p Phase) {
	if c.onPhase != nil {
		c.onPhase(p)
	}
}
