package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/adityaraj-09/faff-assign/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFanout(t *testing.T, mr *miniredis.Miniredis) (*RedisFanout, *Hub) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := NewHub(logger.Discard())
	f := NewRedisFanout(rdb, "test:rooms", hub, logger.Discard())
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(func() {
		_ = f.Close(context.Background())
		_ = rdb.Close()
	})
	return f, hub
}

func TestRedisFanout_DeliversAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	pubA, hubA := newFanout(t, mr)
	_, hubB := newFanout(t, mr)

	local := attachedClient(t, hubA, 1)
	remote := attachedClient(t, hubB, 2)
	hubA.Join(local, TaskRoom(1))
	hubB.Join(remote, TaskRoom(1))

	require.NoError(t, pubA.Broadcast(context.Background(), TaskRoom(1), EventNewMessage, map[string]string{"content": "hi"}))

	for _, c := range []*Client{local, remote} {
		ev := recv(t, c)
		assert.Equal(t, EventNewMessage, ev.Type)
		raw, ok := ev.Data.(json.RawMessage)
		require.True(t, ok)
		assert.JSONEq(t, `{"content":"hi"}`, string(raw))
	}
}

func TestRedisFanout_Except(t *testing.T) {
	mr := miniredis.RunT(t)
	pub, hub := newFanout(t, mr)

	a := attachedClient(t, hub, 1)
	b := attachedClient(t, hub, 2)
	hub.Join(a, TaskRoom(4))
	hub.Join(b, TaskRoom(4))

	require.NoError(t, pub.BroadcastExcept(context.Background(), TaskRoom(4), EventUserTyping, UserTyping{UserID: 1}, a.ID))
	assert.Equal(t, EventUserTyping, recv(t, b).Type)
	assertNothing(t, a)
}
