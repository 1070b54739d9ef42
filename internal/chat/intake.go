package chat

import (
	"context"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/metrics"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/ws"
)

// Intake adalah dua adapter tipis di atas Service.SendMessage:
// FromUpload (HTTP multipart) dan FromSession (event websocket).
type Intake struct {
	svc   *Service
	store *store.Store
	files *attachments.Processor
}

func NewIntake(svc *Service) *Intake {
	return &Intake{svc: svc, store: svc.store, files: svc.files}
}

type UploadMessage struct {
	TaskID    uint
	Content   string
	ReplyToID *uint
	Files     []attachments.Upload
}

// FromUpload memvalidasi semua file dulu, baru menyimpan, lalu membuat message.
// Kalau create gagal, file yang sudah tersimpan dihapus lagi.
func (i *Intake) FromUpload(ctx context.Context, actor auth.Identity, in UploadMessage) (*models.Message, error) {
	if !auth.Can(actor, auth.ActionCreateMessage, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to post messages")
	}

	atts, err := i.files.Save(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	m, err := i.svc.SendMessage(ctx, NewMessage{
		TaskID:      in.TaskID,
		SenderID:    actor.UserID,
		Content:     in.Content,
		ReplyToID:   in.ReplyToID,
		Attachments: atts,
	}, metrics.PathHTTP)
	if err != nil {
		i.files.DeleteAll(context.WithoutCancel(ctx), atts)
		return nil, err
	}
	return m, nil
}

// PreUpload menyimpan file untuk dikirim belakangan lewat send_message.
// Setiap file dicatat sebagai pending upload milik actor sampai diklaim satu message.
func (i *Intake) PreUpload(ctx context.Context, actor auth.Identity, files []attachments.Upload) ([]models.Attachment, error) {
	if !auth.Can(actor, auth.ActionCreateMessage, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to post messages")
	}
	if len(files) == 0 {
		return nil, apperr.Validation("no files")
	}

	atts, err := i.files.Save(ctx, files)
	if err != nil {
		return nil, err
	}
	pending := make([]models.PendingUpload, 0, len(atts))
	for _, att := range atts {
		pending = append(pending, models.NewPendingUpload(actor.UserID, att))
	}
	if err := i.store.CreatePendingUploads(ctx, pending); err != nil {
		i.files.DeleteAll(context.WithoutCancel(ctx), atts)
		return nil, err
	}
	return atts, nil
}

// FromSession hanya menerima id dari PreUpload milik actor sendiri yang belum dipakai.
// File tersebut tidak dihapus kalau create gagal; client bisa mencoba lagi.
func (i *Intake) FromSession(ctx context.Context, actor auth.Identity, req ws.SendMessageRequest) (*models.Message, error) {
	if !auth.Can(actor, auth.ActionCreateMessage, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to post messages")
	}

	ids, err := i.files.ReferenceIDs(req.Attachments)
	if err != nil {
		return nil, err
	}

	return i.svc.SendMessage(ctx, NewMessage{
		TaskID:    req.TaskID,
		SenderID:  actor.UserID,
		Content:   req.Content,
		ReplyToID: req.ReplyToID,
		UploadIDs: ids,
	}, metrics.PathSession)
}

// CheckTask dan SendMessage membuat Intake memenuhi ws.Backend.
func (i *Intake) CheckTask(ctx context.Context, taskID uint) error {
	ok, err := i.store.TaskExists(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (i *Intake) SendMessage(ctx context.Context, actor auth.Identity, req ws.SendMessageRequest) error {
	_, err := i.FromSession(ctx, actor, req)
	return err
}
