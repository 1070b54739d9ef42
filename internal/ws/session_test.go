package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type sentMessage struct {
	actor auth.Identity
	req   SendMessageRequest
}

// fakeBackend mensimulasikan create + broadcast.
type fakeBackend struct {
	out   Broadcaster
	tasks map[uint]bool

	mu   sync.Mutex
	sent []sentMessage
}

func (b *fakeBackend) CheckTask(_ context.Context, taskID uint) error {
	if !b.tasks[taskID] {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, actor auth.Identity, req SendMessageRequest) error {
	if err := b.CheckTask(ctx, req.TaskID); err != nil {
		return err
	}
	b.mu.Lock()
	b.sent = append(b.sent, sentMessage{actor: actor, req: req})
	b.mu.Unlock()
	return b.out.Broadcast(ctx, TaskRoom(req.TaskID), EventNewMessage, map[string]interface{}{
		"taskId":   req.TaskID,
		"senderId": actor.UserID,
		"content":  req.Content,
	})
}

type frame struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func newSessionServer(t *testing.T, cfg SessionConfig) (*httptest.Server, *Hub, *fakeBackend) {
	t.Helper()
	hub := NewHub(logger.Discard())
	backend := &fakeBackend{out: hub, tasks: map[uint]bool{1: true, 2: true}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := strconv.Atoi(r.URL.Query().Get("uid"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		actor := auth.Identity{UserID: uint(uid), Role: "operator"}
		client := hub.Register(conn, actor.UserID, "user"+strconv.Itoa(uid))
		NewSession(hub, hub, backend, client, actor, cfg, logger.Discard()).Run(r.Context())
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub, backend
}

func dial(t *testing.T, srv *httptest.Server, uid int) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?uid=" + strconv.Itoa(uid)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]interface{}{"type": typ, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func join(t *testing.T, conn *websocket.Conn, taskID uint) {
	t.Helper()
	send(t, conn, EventJoinTask, map[string]uint{"taskId": taskID})
	f := read(t, conn)
	require.Equal(t, EventJoinedTask, f.Type)
	require.EqualValues(t, taskID, f.Data["taskId"])
}

func TestSession_SendMessageBroadcastsToRoom(t *testing.T) {
	srv, _, backend := newSessionServer(t, SessionConfig{})
	u1 := dial(t, srv, 1)
	u2 := dial(t, srv, 2)

	join(t, u1, 1)
	join(t, u2, 1)

	send(t, u2, EventSendMessage, map[string]interface{}{"taskId": 1, "content": "hello"})

	for _, conn := range []*websocket.Conn{u1, u2} {
		f := read(t, conn)
		assert.Equal(t, EventNewMessage, f.Type)
		assert.Equal(t, "hello", f.Data["content"])
		assert.EqualValues(t, 2, f.Data["senderId"])
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.sent, 1)
	assert.EqualValues(t, 2, backend.sent[0].actor.UserID)
}

func TestSession_JoinAThenBOnlyInB(t *testing.T) {
	srv, hub, _ := newSessionServer(t, SessionConfig{})
	conn := dial(t, srv, 3)

	join(t, conn, 1)
	join(t, conn, 2)

	assert.Equal(t, 0, hub.MemberCount(TaskRoom(1)))
	assert.Equal(t, 1, hub.MemberCount(TaskRoom(2)))
}

func TestSession_ErrorsGoOnlyToSenderAndKeepConnection(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{})
	bad := dial(t, srv, 1)
	peer := dial(t, srv, 2)
	join(t, bad, 1)
	join(t, peer, 1)

	send(t, bad, EventSendMessage, map[string]interface{}{"taskId": 99, "content": "x"})
	f := read(t, bad)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, string(apperr.KindNotFound), f.Data["kind"])

	send(t, bad, "shout", map[string]interface{}{})
	f = read(t, bad)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, string(apperr.KindValidationFailed), f.Data["kind"])

	// koneksi masih hidup dan peer tidak menerima error
	send(t, bad, EventSendMessage, map[string]interface{}{"taskId": 1, "content": "ok"})
	assert.Equal(t, EventNewMessage, read(t, bad).Type)
	assert.Equal(t, EventNewMessage, read(t, peer).Type)
}

func TestSession_TypingExcludesSender(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{})
	a := dial(t, srv, 1)
	b := dial(t, srv, 2)
	join(t, a, 1)
	join(t, b, 1)

	send(t, a, EventTyping, map[string]interface{}{"taskId": 1, "isTyping": true})
	f := read(t, b)
	assert.Equal(t, EventUserTyping, f.Type)
	assert.EqualValues(t, 1, f.Data["userId"])
	assert.Equal(t, "user1", f.Data["userName"])
	assert.Equal(t, true, f.Data["isTyping"])

	// frame berikutnya untuk a adalah ack join, bukan user_typing
	join(t, a, 1)
}

func TestSession_TypingRequiresJoinedRoom(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{})
	a := dial(t, srv, 1)

	send(t, a, EventTyping, map[string]interface{}{"taskId": 1, "isTyping": true})
	f := read(t, a)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, "join a task first", f.Data["message"])
}

func TestSession_TaskUpdatedAndUploadProgress(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{})
	a := dial(t, srv, 1)
	b := dial(t, srv, 2)
	join(t, a, 2)
	join(t, b, 2)

	send(t, a, EventTaskUpdated, 2)
	f := read(t, b)
	assert.Equal(t, EventRefreshTask, f.Type)
	assert.EqualValues(t, 2, f.Data["taskId"])

	send(t, a, EventUploadProgress, map[string]interface{}{"taskId": 2, "progress": 40, "filename": "log.txt"})
	for _, conn := range []*websocket.Conn{a, b} {
		f = read(t, conn)
		assert.Equal(t, EventFileUploadProgress, f.Type)
		assert.EqualValues(t, 40, f.Data["progress"])
		assert.Equal(t, "log.txt", f.Data["filename"])
		assert.Equal(t, "user1", f.Data["userName"])
	}
}

func TestSession_TaskUpdatedOnlyForJoinedRoom(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{})
	a := dial(t, srv, 1)
	b := dial(t, srv, 2)
	join(t, b, 2)

	send(t, a, EventTaskUpdated, 2)
	f := read(t, a)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, "join a task first", f.Data["message"])

	join(t, a, 1)
	send(t, a, EventTaskUpdated, 2)
	f = read(t, a)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, "not joined to this task", f.Data["message"])

	// b tidak menerima refresh_task; frame pertamanya adalah typing dari room yang sah
	join(t, a, 2)
	send(t, a, EventTyping, map[string]interface{}{"taskId": 2, "isTyping": true})
	f = read(t, b)
	assert.Equal(t, EventUserTyping, f.Type)
}

func TestSession_RateLimit(t *testing.T) {
	srv, _, _ := newSessionServer(t, SessionConfig{EventRate: 0.001, EventBurst: 1})
	a := dial(t, srv, 1)

	join(t, a, 1)
	send(t, a, EventJoinTask, 1)
	f := read(t, a)
	assert.Equal(t, EventError, f.Type)
	assert.Equal(t, "rate limit exceeded", f.Data["message"])
}
