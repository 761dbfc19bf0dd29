package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *Session {
	now := time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)
	s := NewSession(ScriptServiceFirst, now)
	s.Phase = PhaseCollectingEmail
	s.Contact.Name = "Jane Doe"
	s.Contact.ServiceType = "website"
	s.Transcript.Append(Message{Text: "I need a website", Origin: OriginUser}, now)
	s.Transcript.Append(Message{Text: "link", Origin: OriginBot, IsLink: true, LinkURL: "https://tally.so/r/x"}, now)
	return s
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Phase, got.Phase)
	assert.Equal(t, s.Contact, got.Contact)
	assert.Equal(t, s.Transcript.Len(), got.Transcript.Len())

	got.Phase = PhaseComplete
	again, _ := store.Get(ctx, s.ID)
	assert.Equal(t, PhaseCollectingEmail, again.Phase, "stored snapshot is not shared")
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_Missing(t *testing.T) {
	_, err := NewMemoryStore(0).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Error(t, NewMemoryStore(0).Save(context.Background(), &Session{}))
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, 10*time.Minute)
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, store.Save(ctx, s))

	assert.True(t, mr.Exists("chat_session:"+s.ID))
	assert.Equal(t, 10*time.Minute, mr.TTL("chat_session:"+s.ID))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "Jane Doe", got.Contact.Name)
	require.Len(t, got.Transcript.Messages, 2)
	assert.True(t, got.Transcript.Messages[1].IsLink)

	mr.FastForward(11 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_DecodeError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("chat_session:bad", "not json"))
	_, err := NewRedisStore(client, 0).Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
