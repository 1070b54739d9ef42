package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/metrics"
	"github.com/adityaraj-09/faff-assign/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLen = 3072

var DefaultAllowedMIME = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"text/csv",
	"application/zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type Limits struct {
	MaxFiles    int
	MaxBytes    int64
	AllowedMIME []string
}

// Upload adalah satu file yang belum disimpan.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

func FromMultipart(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func FromBytes(name string, data []byte) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// checked adalah upload yang sudah lolos validasi + MIME hasil sniff.
type checked struct {
	Upload
	mimeType string
}

// Processor memvalidasi, menyimpan, dan menghapus attachment.
type Processor struct {
	storage Storage
	limits  Limits
	allowed map[string]struct{}
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessor(storage Storage, limits Limits, baseURL string, logger *slog.Logger) *Processor {
	if len(limits.AllowedMIME) == 0 {
		limits.AllowedMIME = DefaultAllowedMIME
	}
	allowed := make(map[string]struct{}, len(limits.AllowedMIME))
	for _, m := range limits.AllowedMIME {
		allowed[strings.ToLower(m)] = struct{}{}
	}
	return &Processor{
		storage: storage,
		limits:  limits,
		allowed: allowed,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Processor) Limits() Limits { return p.limits }

// validate memeriksa SEMUA file sebelum satu pun disimpan (all-or-nothing).
func (p *Processor) validate(uploads []Upload) ([]checked, error) {
	if len(uploads) > p.limits.MaxFiles {
		return nil, apperr.Validation(fmt.Sprintf("too many files: at most %d per message", p.limits.MaxFiles))
	}
	out := make([]checked, 0, len(uploads))
	for _, u := range uploads {
		if u.Size > p.limits.MaxBytes {
			return nil, apperr.Validation(fmt.Sprintf("file %q exceeds %d bytes", u.Filename, p.limits.MaxBytes))
		}
		if u.Size == 0 {
			return nil, apperr.Validation(fmt.Sprintf("file %q is empty", u.Filename))
		}
		mt, err := p.sniff(u)
		if err != nil {
			return nil, err
		}
		out = append(out, checked{Upload: u, mimeType: mt})
	}
	return out, nil
}

func (p *Processor) sniff(u Upload) (string, error) {
	rc, err := u.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidationFailed, fmt.Sprintf("cannot read %q", u.Filename), err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperr.Wrap(apperr.KindValidationFailed, fmt.Sprintf("cannot read %q", u.Filename), err)
	}

	for mt := mimetype.Detect(head[:n]); mt != nil; mt = mt.Parent() {
		base, _, _ := mime.ParseMediaType(mt.String())
		if _, ok := p.allowed[base]; ok {
			return base, nil
		}
	}
	return "", apperr.Validation(fmt.Sprintf("file type of %q is not allowed", u.Filename))
}

// Save memvalidasi semua upload lalu menyimpannya. Kalau salah satu gagal disimpan,
// file yang sudah tersimpan dihapus lagi.
func (p *Processor) Save(ctx context.Context, uploads []Upload) ([]models.Attachment, error) {
	valid, err := p.validate(uploads)
	if err != nil {
		return nil, err
	}

	saved := make([]models.Attachment, 0, len(valid))
	for _, c := range valid {
		if err := ctx.Err(); err != nil {
			p.DeleteAll(context.WithoutCancel(ctx), saved)
			return nil, err
		}
		att, err := p.store(c)
		if err != nil {
			p.DeleteAll(context.WithoutCancel(ctx), saved)
			return nil, err
		}
		saved = append(saved, att)
	}
	return saved, nil
}

func (p *Processor) store(c checked) (models.Attachment, error) {
	id := uuid.NewString()
	name := id + strings.ToLower(filepath.Ext(c.Filename))

	rc, err := c.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("open %q: %w", c.Filename, err)
	}
	defer rc.Close()

	n, err := p.storage.Put(name, io.LimitReader(rc, p.limits.MaxBytes+1))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("store %q: %w", c.Filename, err)
	}
	if n > p.limits.MaxBytes {
		_ = p.storage.Remove(name)
		return models.Attachment{}, apperr.Validation(fmt.Sprintf("file %q exceeds %d bytes", c.Filename, p.limits.MaxBytes))
	}

	return models.Attachment{
		ID:        id,
		Filename:  filepath.Base(c.Filename),
		Path:      name,
		URL:       p.baseURL + "/" + name,
		MimeType:  c.mimeType,
		Size:      n,
		CreatedAt: p.now().UTC(),
	}, nil
}

// Delete best-effort: file yang sudah tidak ada dianggap sukses.
func (p *Processor) Delete(_ context.Context, att models.Attachment) error {
	if err := p.storage.Remove(att.Path); err != nil && err != ErrNotExist {
		return err
	}
	return nil
}

// DeleteAll tidak pernah gagal: kegagalan per file hanya di-log.
func (p *Processor) DeleteAll(ctx context.Context, atts []models.Attachment) {
	for _, att := range atts {
		if err := p.Delete(ctx, att); err != nil {
			metrics.AttachmentCleanupFailures.Inc()
			p.logger.Warn("attachment cleanup failed",
				slog.String("attachment_id", att.ID),
				slog.String("path", att.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ReferenceIDs mengambil id upload dari referensi yang dikirim client (jalur websocket).
// Metadata lain dari client diabaikan; yang dipakai adalah catatan upload di server.
func (p *Processor) ReferenceIDs(refs []models.Attachment) ([]string, error) {
	if len(refs) > p.limits.MaxFiles {
		return nil, apperr.Validation(fmt.Sprintf("too many files: at most %d per message", p.limits.MaxFiles))
	}
	ids := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		id, err := uuid.Parse(ref.ID)
		if err != nil {
			return nil, apperr.Validation("invalid attachment id")
		}
		key := id.String()
		if _, dup := seen[key]; dup {
			return nil, apperr.Validation("duplicate attachment id")
		}
		seen[key] = struct{}{}
		ids = append(ids, key)
	}
	return ids, nil
}

// CheckStored memastikan file milik attachment masih ada dengan ukuran yang tercatat.
func (p *Processor) CheckStored(atts []models.Attachment) error {
	for _, att := range atts {
		size, err := p.storage.Stat(att.Path)
		if err != nil {
			if err == ErrNotExist {
				return apperr.NotFound(fmt.Sprintf("attachment %s not found", att.ID))
			}
			return fmt.Errorf("stat attachment: %w", err)
		}
		if size != att.Size {
			return fmt.Errorf("attachment %s: stored size %d, recorded %d", att.ID, size, att.Size)
		}
	}
	return nil
}
