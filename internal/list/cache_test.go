package list

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache(time.Minute)
	items := []Item{{Name: "News", ID: "0.0.101"}}
	c.Put("0.0.1", KindChannels, items)

	got, ok := c.Get("0.0.1", KindChannels)
	require.True(t, ok)
	assert.Equal(t, items, got)
}

func TestCache_KindIsPartOfTheKey(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("0.0.1", KindChannels, []Item{{Name: "a", ID: "0.0.2"}})

	_, ok := c.Get("0.0.1", KindGroups)
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(30 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("0.0.1", KindChannels, []Item{{Name: "a", ID: "0.0.2"}})

	now = now.Add(29 * time.Second)
	_, ok := c.Get("0.0.1", KindChannels)
	assert.True(t, ok, "within TTL the entry is served")

	now = now.Add(2 * time.Second)
	_, ok = c.Get("0.0.1", KindChannels)
	assert.False(t, ok, "past TTL the entry is dropped")
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("0.0.1", KindChannels, []Item{{Name: "a", ID: "0.0.2"}})
	c.Invalidate("0.0.1", KindChannels)

	_, ok := c.Get("0.0.1", KindChannels)
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("0.0.1", KindChannels, nil)
	c.Put("0.0.2", KindGroups, nil)
	require.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("0.0.1", KindChannels, []Item{{Name: "a", ID: "0.0.2"}})

	got, ok := c.Get("0.0.1", KindChannels)
	require.True(t, ok)
	got[0].Name = "mutated"

	again, ok := c.Get("0.0.1", KindChannels)
	require.True(t, ok)
	assert.Equal(t, "a", again[0].Name)
}
