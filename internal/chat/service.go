// Package chat berisi operasi domain message, task, summary dan review.
// Semua jalur masuk (HTTP dan websocket) berakhir di sini.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/metrics"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/ws"

	"gorm.io/datatypes"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Service struct {
	store  *store.Store
	files  *attachments.Processor
	out    ws.Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st *store.Store, files *attachments.Processor, out ws.Broadcaster, logger *slog.Logger) *Service {
	return &Service{store: st, files: files, out: out, logger: logger, now: time.Now}
}

// NewMessage adalah input create-message; attachment sudah tervalidasi dan tersimpan.
type NewMessage struct {
	TaskID      uint
	SenderID    uint
	Content     string
	ReplyToID   *uint
	Attachments []models.Attachment
	// UploadIDs: pending upload milik sender yang diklaim saat message disimpan (jalur websocket).
	UploadIDs []string
}

// CreateMessage dipanggil identik oleh kedua jalur intake:
// cek task, cek reply target (harus di task yang sama), simpan, lalu muat ulang dengan relasi.
func (s *Service) CreateMessage(ctx context.Context, in NewMessage) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Attachments) == 0 && len(in.UploadIDs) == 0 {
		return nil, apperr.Validation("message needs content or attachments")
	}

	ok, err := s.store.TaskExists(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("task not found")
	}

	if in.ReplyToID != nil {
		target, err := s.store.FindMessage(ctx, *in.ReplyToID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.NotFound("reply target not found")
			}
			return nil, err
		}
		if target.TaskID != in.TaskID {
			return nil, apperr.ReplyMismatch("reply target belongs to a different task")
		}
	}

	atts := in.Attachments
	if atts == nil {
		atts = []models.Attachment{}
	}
	m := &models.Message{
		TaskID:      in.TaskID,
		SenderID:    in.SenderID,
		ReplyToID:   in.ReplyToID,
		Content:     content,
		Attachments: datatypes.NewJSONSlice(atts),
	}
	if len(in.UploadIDs) > 0 {
		err = s.store.CreateMessageClaiming(ctx, m, in.SenderID, in.UploadIDs, s.files.CheckStored)
	} else {
		err = s.store.CreateMessage(ctx, m)
	}
	if err != nil {
		return nil, err
	}
	return s.store.FindMessageHydrated(ctx, m.ID)
}

// SendMessage = CreateMessage + broadcast new_message ke room task.
// Gagal broadcast tidak membatalkan message yang sudah tersimpan.
func (s *Service) SendMessage(ctx context.Context, in NewMessage, path string) (*models.Message, error) {
	m, err := s.CreateMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	metrics.MessagesCreated.WithLabelValues(path).Inc()
	s.broadcast(ctx, ws.TaskRoom(m.TaskID), ws.EventNewMessage, m)
	return m, nil
}

func (s *Service) broadcast(ctx context.Context, room, eventType string, data interface{}) {
	if err := s.out.Broadcast(ctx, room, eventType, data); err != nil {
		s.logger.Warn("broadcast failed",
			slog.String("room", room),
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

type MessagePage struct {
	Data  []models.Message `json:"data"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int64            `json:"total"`
}

func (s *Service) ListMessages(ctx context.Context, taskID uint, page, limit int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	ok, err := s.store.TaskExists(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("task not found")
	}

	msgs, total, err := s.store.ListMessages(ctx, taskID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &MessagePage{Data: msgs, Page: page, Limit: limit, Total: total}, nil
}

type Thread struct {
	Message *models.Message  `json:"message"`
	Replies []models.Message `json:"replies"`
}

// Thread: message + balasan langsung (satu level), urut naik.
func (s *Service) Thread(ctx context.Context, messageID uint) (*Thread, error) {
	m, err := s.store.FindMessageHydrated(ctx, messageID)
	if err != nil {
		return nil, err
	}
	replies, err := s.store.ListReplies(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []models.Message{}
	}
	return &Thread{Message: m, Replies: replies}, nil
}

// UpdateMessage: content diganti kalau dikirim, file baru ditambahkan di belakang.
func (s *Service) UpdateMessage(ctx context.Context, actor auth.Identity, id uint, content *string, uploads []attachments.Upload) (*models.Message, error) {
	m, err := s.store.FindMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Can(actor, auth.ActionEditMessage, auth.Owned(m.SenderID)) {
		return nil, apperr.Forbidden("only the sender can edit this message")
	}
	if content == nil && len(uploads) == 0 {
		return nil, apperr.Validation("nothing to update")
	}

	if content != nil {
		m.Content = strings.TrimSpace(*content)
	}

	var added []models.Attachment
	if len(uploads) > 0 {
		added, err = s.files.Save(ctx, uploads)
		if err != nil {
			return nil, err
		}
		m.Attachments = append(m.Attachments, added...)
	}

	if m.Content == "" && len(m.Attachments) == 0 {
		s.files.DeleteAll(context.WithoutCancel(ctx), added)
		return nil, apperr.Validation("message needs content or attachments")
	}

	m.UpdatedAt = s.now()
	if err := s.store.SaveMessage(ctx, m); err != nil {
		s.files.DeleteAll(context.WithoutCancel(ctx), added)
		return nil, err
	}

	out, err := s.store.FindMessageHydrated(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, ws.TaskRoom(out.TaskID), ws.EventMessageUpdated, out)
	return out, nil
}

// DeleteMessage menghapus row lalu file attachment-nya (best-effort).
func (s *Service) DeleteMessage(ctx context.Context, actor auth.Identity, id uint) error {
	m, err := s.store.FindMessage(ctx, id)
	if err != nil {
		return err
	}
	if !auth.Can(actor, auth.ActionDeleteMessage, auth.Owned(m.SenderID)) {
		return apperr.Forbidden("only the sender or an admin can delete this message")
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return err
	}

	s.files.DeleteAll(context.WithoutCancel(ctx), m.Attachments)
	s.broadcast(ctx, ws.TaskRoom(m.TaskID), ws.EventMessageDeleted, ws.MessageDeleted{ID: m.ID, TaskID: m.TaskID})
	return nil
}

func (s *Service) RemoveAttachment(ctx context.Context, actor auth.Identity, messageID uint, attachmentID string) (*models.Message, error) {
	m, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !auth.Can(actor, auth.ActionRemoveAttachment, auth.Owned(m.SenderID)) {
		return nil, apperr.Forbidden("only the sender can remove attachments")
	}
	i := m.FindAttachment(attachmentID)
	if i < 0 {
		return nil, apperr.NotFound("attachment not found")
	}

	removed := m.Attachments[i]
	m.Attachments = append(m.Attachments[:i:i], m.Attachments[i+1:]...)
	m.UpdatedAt = s.now()
	if err := s.store.SaveMessage(ctx, m); err != nil {
		return nil, err
	}
	s.files.DeleteAll(context.WithoutCancel(ctx), []models.Attachment{removed})

	out, err := s.store.FindMessageHydrated(ctx, messageID)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, ws.TaskRoom(out.TaskID), ws.EventMessageUpdated, out)
	return out, nil
}
