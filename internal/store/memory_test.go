package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v"), 0))

	value, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	exists, err := s.Exists("k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v"), 10*time.Millisecond))

	_, err := s.Get("k")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_PubSub(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer s.Close()

	sub, err := s.Subscribe("events")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, s.Publish("events", []byte("hello")))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "events", msg.Channel)
		assert.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestMemoryStore_PublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer s.Close()

	assert.NoError(t, s.Publish("nobody", []byte("x")))
}

func TestMemorySubscription_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	defer s.Close()

	sub, err := s.Subscribe("events")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// After close the channel no longer receives publishes.
	require.NoError(t, s.Publish("events", []byte("late")))
	_, open := <-sub.Channel()
	assert.False(t, open)
}
