package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	readLimit        = 64 << 10
	operationTimeout = 15 * time.Second
)

// Backend adalah operasi domain yang dibutuhkan session.
type Backend interface {
	CheckTask(ctx context.Context, taskID uint) error
	SendMessage(ctx context.Context, actor auth.Identity, req SendMessageRequest) error
}

type SessionConfig struct {
	EventRate  float64
	EventBurst int
}

// Session memproses event dari satu koneksi secara berurutan.
type Session struct {
	hub     *Hub
	out     Broadcaster
	backend Backend
	client  *Client
	actor   auth.Identity
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSession(hub *Hub, out Broadcaster, backend Backend, client *Client, actor auth.Identity, cfg SessionConfig, logger *slog.Logger) *Session {
	limit := rate.Inf
	if cfg.EventRate > 0 {
		limit = rate.Limit(cfg.EventRate)
	}
	burst := cfg.EventBurst
	if burst <= 0 {
		burst = 1
	}
	return &Session{
		hub:     hub,
		out:     out,
		backend: backend,
		client:  client,
		actor:   actor,
		limiter: rate.NewLimiter(limit, burst),
		logger: logger.With(
			slog.String("client_id", client.ID),
			slog.Uint64("user_id", uint64(actor.UserID)),
		),
	}
}

func (s *Session) Client() *Client { return s.client }

// Run membaca frame sampai koneksi putus, lalu melepas semua membership.
func (s *Session) Run(ctx context.Context) {
	defer s.hub.Unregister(s.client)

	s.client.conn.SetReadLimit(readLimit)
	for {
		typ, b, err := s.client.conn.Read(ctx)
		if err != nil {
			if st := websocket.CloseStatus(err); st != websocket.StatusNormalClosure && st != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debug("ws read ended", slog.String("error", err.Error()))
			}
			return
		}
		if typ != websocket.MessageText {
			s.fail(apperr.Validation("binary frames are not supported"))
			continue
		}
		var in inboundFrame
		if err := json.Unmarshal(b, &in); err != nil || in.Type == "" {
			s.fail(apperr.Validation("malformed frame"))
			continue
		}
		s.Handle(ctx, in.Type, in.Data)
	}
}

// Handle menjalankan satu event. Error hanya dikirim ke koneksi ini, tidak pernah menutup koneksi.
func (s *Session) Handle(ctx context.Context, eventType string, data json.RawMessage) {
	if !s.limiter.Allow() {
		s.fail(apperr.Validation("rate limit exceeded"))
		return
	}

	var err error
	switch eventType {
	case EventJoinTask:
		err = s.joinTask(ctx, data)
	case EventSendMessage:
		err = s.sendMessage(ctx, data)
	case EventTyping:
		err = s.typing(ctx, data)
	case EventTaskUpdated:
		err = s.taskUpdated(ctx, data)
	case EventUploadProgress:
		err = s.uploadProgress(ctx, data)
	default:
		err = apperr.Validation("unknown event " + eventType)
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *Session) fail(err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		s.logger.Error("ws event failed", slog.String("error", err.Error()))
	}
	s.client.enqueue(Event{Type: EventError, Data: ErrorPayload{Kind: string(kind), Message: apperr.Message(err)}})
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return apperr.Validation("missing event data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("malformed event data")
	}
	return nil
}

func (s *Session) joinTask(ctx context.Context, data json.RawMessage) error {
	var ref TaskRef
	if err := decode(data, &ref); err != nil {
		return err
	}
	if ref.TaskID == 0 {
		return apperr.Validation("taskId is required")
	}
	if err := s.backend.CheckTask(ctx, ref.TaskID); err != nil {
		return err
	}
	s.hub.Join(s.client, TaskRoom(ref.TaskID))
	s.client.enqueue(Event{Type: EventJoinedTask, Data: TaskNotice{TaskID: ref.TaskID}})
	return nil
}

func (s *Session) sendMessage(ctx context.Context, data json.RawMessage) error {
	var req SendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.TaskID == 0 {
		return apperr.Validation("taskId is required")
	}
	// create yang sudah diterima tidak dibatalkan walau client putus.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), operationTimeout)
	defer cancel()
	return s.backend.SendMessage(opCtx, s.actor, req)
}

// currentRoom memastikan event side-channel hanya dikirim ke room yang sedang diikuti.
func (s *Session) currentRoom(taskID uint) (string, error) {
	room := s.hub.CurrentTask(s.client)
	if room == "" {
		return "", apperr.Validation("join a task first")
	}
	if taskID != 0 && TaskRoom(taskID) != room {
		return "", apperr.Validation("not joined to this task")
	}
	return room, nil
}

func (s *Session) typing(ctx context.Context, data json.RawMessage) error {
	var req TypingRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	room, err := s.currentRoom(req.TaskID)
	if err != nil {
		return err
	}
	return s.out.BroadcastExcept(ctx, room, EventUserTyping, UserTyping{
		UserID:   s.actor.UserID,
		UserName: s.client.UserName,
		IsTyping: req.IsTyping,
	}, s.client.ID)
}

func (s *Session) taskUpdated(ctx context.Context, data json.RawMessage) error {
	var ref TaskRef
	if err := decode(data, &ref); err != nil {
		return err
	}
	if ref.TaskID == 0 {
		return apperr.Validation("taskId is required")
	}
	room, err := s.currentRoom(ref.TaskID)
	if err != nil {
		return err
	}
	return s.out.BroadcastExcept(ctx, room, EventRefreshTask, TaskNotice{TaskID: ref.TaskID}, s.client.ID)
}

func (s *Session) uploadProgress(ctx context.Context, data json.RawMessage) error {
	var req UploadProgressRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.Progress < 0 || req.Progress > 100 {
		return apperr.Validation("progress must be between 0 and 100")
	}
	room, err := s.currentRoom(req.TaskID)
	if err != nil {
		return err
	}
	return s.out.Broadcast(ctx, room, EventFileUploadProgress, FileUploadProgress{
		UserID:   s.actor.UserID,
		UserName: s.client.UserName,
		Progress: req.Progress,
		Filename: req.Filename,
	})
}
