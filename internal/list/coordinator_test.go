package list

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/ledger/ledgertest"
)

func newTestCoordinator(t *testing.T, fake *ledgertest.Fake, topicID ledger.TopicID, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	opts = append([]CoordinatorOption{WithPropagationWait(0)}, opts...)
	return NewCoordinator(fake, NewCache(time.Minute), KindChannels, topicID, opts...)
}

func seedChannels(t *testing.T, fake *ledgertest.Fake, items ...Item) ledger.TopicID {
	t.Helper()
	payload, err := EncodeItems(KindChannels, items)
	require.NoError(t, err)
	return fake.Seed(KindChannels.TopicMemo(), payload)
}

func TestLoad_EmptyTopicID(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "")

	require.NoError(t, c.Load(context.Background(), ""))
	st := c.State()
	assert.Empty(t, st.Items)
	assert.NoError(t, st.Err)
	assert.Equal(t, 0, fake.ReadCalls, "empty id never reaches the ledger")
}

func TestLoad_TopicWithNoMessages(t *testing.T) {
	fake := ledgertest.New()
	id := fake.Seed(KindChannels.TopicMemo())
	c := newTestCoordinator(t, fake, id)

	require.NoError(t, c.Load(context.Background(), id))
	assert.Empty(t, c.State().Items)
}

func TestLoad_NonArrayPayloadReadsAsEmpty(t *testing.T) {
	fake := ledgertest.New()
	id := fake.Seed(KindChannels.TopicMemo(), []byte(`{"Name":"stray object"}`))
	c := newTestCoordinator(t, fake, id)

	require.NoError(t, c.Load(context.Background(), id))
	assert.Empty(t, c.State().Items)
}

func TestLoad_ReadErrorSurfacesViaState(t *testing.T) {
	fake := ledgertest.New()
	id := fake.Seed(KindChannels.TopicMemo())
	fake.FailNextRead(errors.New("mirror unavailable"))
	c := newTestCoordinator(t, fake, id)

	err := c.Load(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRead, CodeOf(err))
	assert.Error(t, c.State().Err)
}

func TestLoad_CacheHitSkipsLedger(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)

	require.NoError(t, c.Load(context.Background(), id))
	require.Equal(t, 1, fake.ReadCalls)

	c2 := NewCoordinator(fake, c.cache, KindChannels, id, WithPropagationWait(0))
	require.NoError(t, c2.Load(context.Background(), id))
	assert.Equal(t, 1, fake.ReadCalls, "second load within TTL served from cache")
}

func TestRefresh_InvalidatesAndReloads(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)

	require.NoError(t, c.Load(context.Background(), id))
	require.Equal(t, 1, fake.ReadCalls)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, fake.ReadCalls, "refresh bypasses the cache")
}

func TestAddItem_DuplicateIsIdempotentNoOp(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	res, err := c.AddItem(context.Background(), Item{Name: "News Again", ID: "0.0.101"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, fake.SubmitCalls, "no write issued for an existing id")
	assert.Len(t, c.State().Items, 1)
}

func TestAddItem_AppendsToExistingTopic(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	res, err := c.AddItem(context.Background(), Item{Name: "Sports", ID: "0.0.102"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.CreatedTopic)

	st := c.State()
	require.Len(t, st.Items, 2)
	assert.Equal(t, ledger.TopicID("0.0.101"), st.Items[0].ID, "existing items keep their order")
	assert.Equal(t, ledger.TopicID("0.0.102"), st.Items[1].ID)

	// Write-through: the cache serves the new array without a ledger read.
	cached, ok := c.cache.Get(id, KindChannels)
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestAddItem_LazyCreatePath(t *testing.T) {
	fake := ledgertest.New()
	var linked []ledger.TopicID
	var phases []Phase
	c := newTestCoordinator(t, fake, "",
		WithBackRefUpdater(func(ctx context.Context, id ledger.TopicID, kind Kind) (bool, error) {
			linked = append(linked, id)
			return true, nil
		}),
		WithPhaseHook(func(p Phase) { phases = append(phases, p) }),
	)

	res, err := c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.CreatedTopic)
	assert.True(t, res.Linked)
	assert.False(t, res.TopicID.Empty())

	assert.Equal(t, []Phase{PhaseCreateTopic, PhaseSeedTopic, PhaseLinkProfile}, phases)
	require.Len(t, linked, 1)
	assert.Equal(t, res.TopicID, linked[0])

	st := c.State()
	assert.Equal(t, res.TopicID, st.TopicID)
	require.Len(t, st.Items, 1)

	msgs := fake.Messages(res.TopicID)
	require.Len(t, msgs, 1, "single seed write carries the whole array")
}

func TestAddItem_CreateFailureCommitsNothing(t *testing.T) {
	fake := ledgertest.New()
	fake.FailNextCreate(errors.New("network down"))
	c := newTestCoordinator(t, fake, "")

	res, err := c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeTopicCreate, CodeOf(err))
	assert.False(t, res.OK)
	assert.False(t, res.CreatedTopic)
	assert.False(t, c.HasTopic())
}

func TestAddItem_SeedFailureIsResumableWithoutSecondCreate(t *testing.T) {
	fake := ledgertest.New()
	fake.FailNextSubmit(errors.New("consensus timeout"))
	c := newTestCoordinator(t, fake, "")

	res, err := c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.Error(t, err)
	assert.Equal(t, ErrCodePartialCommit, CodeOf(err))
	assert.True(t, res.CreatedTopic)
	assert.False(t, res.OK)
	createdID := res.TopicID
	require.False(t, createdID.Empty())
	require.Len(t, fake.CreateCalls, 1)

	// Retry: the pending topic is reused; only the seed write reruns.
	res, err = c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, createdID, res.TopicID)
	assert.Len(t, fake.CreateCalls, 1, "createLog must not run again")
}

func TestAddItem_BackRefFailureLeavesDataCommitted(t *testing.T) {
	fake := ledgertest.New()
	calls := 0
	c := newTestCoordinator(t, fake, "",
		WithBackRefUpdater(func(ctx context.Context, id ledger.TopicID, kind Kind) (bool, error) {
			calls++
			if calls == 1 {
				return false, nil
			}
			return true, nil
		}),
	)

	res, err := c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.Error(t, err)
	assert.Equal(t, ErrCodePartialCommit, CodeOf(err))
	assert.True(t, res.CreatedTopic)
	assert.False(t, res.Linked)

	// Item and topic are durable despite the failed link.
	st := c.State()
	assert.False(t, st.TopicID.Empty())
	require.Len(t, st.Items, 1)
	submitsSoFar := len(fake.SubmitCalls)

	// Retry performs only the back-reference update.
	res, err = c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.Linked)
	assert.Equal(t, 2, calls)
	assert.Len(t, fake.SubmitCalls, submitsSoFar, "no list write on the link-only retry")
	assert.Len(t, fake.CreateCalls, 1)
}

func TestAddItem_UpdaterErrorPropagates(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "",
		WithBackRefUpdater(func(ctx context.Context, id ledger.TopicID, kind Kind) (bool, error) {
			return false, errors.New("profile topic rejected update")
		}),
	)

	_, err := c.AddItem(context.Background(), Item{Name: "News", ID: "0.0.101"})
	require.Error(t, err)
	assert.Equal(t, ErrCodePartialCommit, CodeOf(err))
}

func TestRemoveItem_AbsentIDIsSuccessWithoutWrite(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	require.NoError(t, c.RemoveItem(context.Background(), "0.0.999"))
	assert.Empty(t, fake.SubmitCalls)
	assert.Len(t, c.State().Items, 1)
}

func TestRemoveItem_RemovesAndWrites(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake,
		Item{Name: "News", ID: "0.0.101"},
		Item{Name: "Sports", ID: "0.0.102"},
	)
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	require.NoError(t, c.RemoveItem(context.Background(), "0.0.101"))
	st := c.State()
	require.Len(t, st.Items, 1)
	assert.Equal(t, ledger.TopicID("0.0.102"), st.Items[0].ID)
	assert.Len(t, fake.SubmitCalls, 1)
}

func TestRemoveItem_NoTopicIsPreconditionFailure(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "")

	err := c.RemoveItem(context.Background(), "0.0.101")
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestUpdateItem_PatchesAndWrites(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101", Description: "old"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	desc := "fresh"
	require.NoError(t, c.UpdateItem(context.Background(), "0.0.101", Patch{Description: &desc}))
	st := c.State()
	assert.Equal(t, "fresh", st.Items[0].Description)
	assert.Equal(t, "News", st.Items[0].Name, "unpatched fields survive")
}

func TestUpdateItem_AbsentIDFails(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	err := c.UpdateItem(context.Background(), "0.0.999", Patch{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeItemNotFound, CodeOf(err))
	assert.Empty(t, fake.SubmitCalls)
}

func TestUpdateItem_NoTopicIsPreconditionFailure(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "")

	err := c.UpdateItem(context.Background(), "0.0.101", Patch{})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestWriteArray_LazyCreatesWithoutDuplicateDetection(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "")

	items := []Item{
		{Name: "News", ID: "0.0.101"},
		{Name: "News Copy", ID: "0.0.101"}, // duplicate id allowed here
	}
	res, err := c.WriteArray(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.CreatedTopic)
	assert.Len(t, c.State().Items, 2)
}

func TestWriteArray_OverwritesExistingTopic(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	res, err := c.WriteArray(context.Background(), []Item{{Name: "Only", ID: "0.0.500"}})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.CreatedTopic)
	require.Len(t, c.State().Items, 1)
	assert.Equal(t, ledger.TopicID("0.0.500"), c.State().Items[0].ID)
}

func TestWriteArray_DoesNotMutateCallerSlice(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake)
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	items := []Item{{Name: "Café", ID: "0.0.101"}} // NFD form
	_, err := c.WriteArray(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, "Café", items[0].Name, "caller's slice is left as passed")
	require.Len(t, c.State().Items, 1)
	assert.Equal(t, "Café", c.State().Items[0].Name, "written item is NFC-normalized")
}

func TestAddItem_SubmitFailureOnExistingTopic(t *testing.T) {
	fake := ledgertest.New()
	id := seedChannels(t, fake, Item{Name: "News", ID: "0.0.101"})
	c := newTestCoordinator(t, fake, id)
	require.NoError(t, c.Load(context.Background(), id))

	fake.FailNextSubmit(errors.New("consensus timeout"))
	res, err := c.AddItem(context.Background(), Item{Name: "Sports", ID: "0.0.102"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeSubmit, CodeOf(err))
	assert.False(t, res.OK)
	assert.Len(t, c.State().Items, 1, "local state unchanged on failed submit")
}

func TestAddItem_EmptyIDRejected(t *testing.T) {
	fake := ledgertest.New()
	c := newTestCoordinator(t, fake, "")

	_, err := c.AddItem(context.Background(), Item{Name: "nameless"})
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestHasTopic(t *testing.T) {
	fake := ledgertest.New()
	assert.False(t, newTestCoordinator(t, fake, "").HasTopic())
	assert.True(t, newTestCoordinator(t, fake, "0.0.5").HasTopic())
}
