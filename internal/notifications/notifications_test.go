package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fourwcycle/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishModeration(context.Background(), ModerationEvent{Type: EventSubmissionCreated}))
	assert.NoError(t, n.StartModerationSubscriber(context.Background(), func(string) {
		t.Fatal("unexpected message")
	}))
}

func TestNotifier_PublishAndSubscribe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 4)
	require.NoError(t, n.StartModerationSubscriber(ctx, func(payload string) {
		payloads <- payload
	}))

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, n.PublishModeration(context.Background(), ModerationEvent{
		Type:         EventSubmissionUpdated,
		SubmissionID: 12,
		Status:       models.SubmissionStatusApproved,
		At:           at,
	}))

	select {
	case payload := <-payloads:
		var ev ModerationEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		assert.Equal(t, EventSubmissionUpdated, ev.Type)
		assert.Equal(t, uint(12), ev.SubmissionID)
		assert.Equal(t, models.SubmissionStatusApproved, ev.Status)
		assert.True(t, ev.At.Equal(at))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("event not delivered")
	}
}

func TestAdminHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewAdminHub()

	a, err := hub.Register("admin", nil)
	require.NoError(t, err)
	b, err := hub.Register("admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.BroadcastAll(`{"type":"submission.created"}`)
	assert.Equal(t, `{"type":"submission.created"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"submission.created"}`, string(<-b.Send))

	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())
	_, open := <-a.Send
	assert.False(t, open)

	// Unregistering twice is harmless.
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())
}

func TestAdminHub_PerAdminLimit(t *testing.T) {
	hub := NewAdminHub()
	for i := 0; i < maxConnsPerAdmin; i++ {
		_, err := hub.Register("admin", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("admin", nil)
	assert.Error(t, err)

	_, err = hub.Register("other", nil)
	assert.NoError(t, err)
}

func TestAdminHub_TrySendDropsWhenFull(t *testing.T) {
	hub := NewAdminHub()
	c, err := hub.Register("admin", nil)
	require.NoError(t, err)

	for i := 0; i < cap(c.Send)+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, cap(c.Send))
}

func TestAdminHub_ShutdownRejectsRegistration(t *testing.T) {
	hub := NewAdminHub()
	client, err := hub.Register("admin", nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())

	// The write pump observes the closed channel and sends the close frame.
	_, open := <-client.Send
	assert.False(t, open)
	assert.NotPanics(t, func() { client.TrySend([]byte("late")) })
	hub.UnregisterClient(client)

	_, err = hub.Register("admin", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.NoError(t, hub.Shutdown(context.Background()))
}

func TestAdminHub_StartWiring(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	hub := NewAdminHub()
	client, err := hub.Register("admin", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishModeration(context.Background(), ModerationEvent{
		Type:         EventSubmissionDeleted,
		SubmissionID: 3,
		At:           time.Now().UTC(),
	}))

	assert.Eventually(t, func() bool {
		return len(client.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
}
