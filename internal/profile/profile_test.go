package profile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/ledger/ledgertest"
	"github.com/waypost-app/pubflow/internal/list"
)

func TestRecord_ListTopicAccessors(t *testing.T) {
	var rec Record
	for i, kind := range list.Kinds {
		id := ledger.TopicID(string(rune('a' + i)))
		rec.SetListTopic(kind, id)
		assert.Equal(t, id, rec.ListTopic(kind))
	}
}

func TestStore_LoadEmptyTopic(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)

	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TypeProfile, rec.Type)
	assert.True(t, rec.Channels.Empty())
}

func TestStore_SaveThenLoad(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)

	rec := Record{DisplayName: "alice", Channels: "0.0.50"}
	require.NoError(t, s.Save(context.Background(), rec))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.DisplayName)
	assert.Equal(t, ledger.TopicID("0.0.50"), got.Channels)
	assert.Equal(t, TypeProfile, got.Type)
}

func TestUpdater_WritesBackReference(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)

	ok, err := s.Updater()(context.Background(), "0.0.77", list.KindChannels)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.TopicID("0.0.77"), rec.Channels)
}

func TestUpdater_AlreadyPointingSkipsWrite(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)
	require.NoError(t, s.Save(context.Background(), Record{Groups: "0.0.88"}))
	writes := len(fake.SubmitCalls)

	ok, err := s.Updater()(context.Background(), "0.0.88", list.KindGroups)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, fake.SubmitCalls, writes, "no rewrite when the field already points there")
}

func TestUpdater_PreservesOtherFields(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)
	require.NoError(t, s.Save(context.Background(), Record{DisplayName: "alice", Channels: "0.0.50"}))

	ok, err := s.Updater()(context.Background(), "0.0.60", list.KindGroups)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.DisplayName)
	assert.Equal(t, ledger.TopicID("0.0.50"), rec.Channels)
	assert.Equal(t, ledger.TopicID("0.0.60"), rec.Groups)
}

func TestMigrate_MovesListsAndLinksDestination(t *testing.T) {
	fake := ledgertest.New()
	cache := list.NewCache(time.Minute)

	channels, err := list.EncodeItems(list.KindChannels, []list.Item{
		{Name: "News", ID: "0.0.101"},
		{Name: "Sports", ID: "0.0.102"},
	})
	require.NoError(t, err)
	groups, err := list.EncodeItems(list.KindGroups, []list.Item{
		{Name: "Chess", ID: "0.0.201"},
	})
	require.NoError(t, err)

	src := Record{
		Channels: fake.Seed(list.KindChannels.TopicMemo(), channels),
		Groups:   fake.Seed(list.KindGroups.TopicMemo(), groups),
	}

	dstTopic := fake.Seed("Waypost Profile")
	dst := NewStore(fake, dstTopic, nil)

	require.NoError(t, Migrate(context.Background(), fake, cache, src, dst, nil))

	rec, err := dst.Load(context.Background())
	require.NoError(t, err)
	require.False(t, rec.Channels.Empty())
	require.False(t, rec.Groups.Empty())
	assert.NotEqual(t, src.Channels, rec.Channels, "lists moved to fresh topics")
	assert.True(t, rec.FollowingChannels.Empty(), "absent source lists stay absent")

	// The moved channel list carries both items in order.
	msgs := fake.Messages(rec.Channels)
	require.Len(t, msgs, 1)
	items, isArray, err := list.DecodeItems(list.KindChannels, msgs[0].Payload)
	require.NoError(t, err)
	require.True(t, isArray)
	require.Len(t, items, 2)
	assert.Equal(t, ledger.TopicID("0.0.101"), items[0].ID)

	assert.Equal(t, 0, cache.Len(), "migration clears the shared cache")
}

func TestMigrate_EmptySourceIsNoOp(t *testing.T) {
	fake := ledgertest.New()
	cache := list.NewCache(time.Minute)
	dst := NewStore(fake, fake.Seed("Waypost Profile"), nil)

	require.NoError(t, Migrate(context.Background(), fake, cache, Record{}, dst, nil))
	rec, err := dst.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.Channels.Empty())
}

func TestStore_ProfilePayloadShape(t *testing.T) {
	fake := ledgertest.New()
	topic := fake.Seed("Waypost Profile")
	s := NewStore(fake, topic, nil)
	require.NoError(t, s.Save(context.Background(), Record{DisplayName: "alice"}))

	msgs := fake.Messages(topic)
	require.Len(t, msgs, 1)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &raw))
	assert.Equal(t, TypeProfile, raw["Type"], "profile messages carry the Type discriminator")
}
