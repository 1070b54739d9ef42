package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store adalah system of record; tidak ada cache konten message di sini.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return fmt.Errorf("find %s: %w", what, err)
}

// ---- users

// CreateUser: email duplikat (termasuk yang lolos pengecekan awal karena race) jadi validation_failed.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("email already registered")
	}
	return err
}

func (s *Store) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, email, role string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ---- tasks

type TaskFilter struct {
	Status     models.TaskStatus
	AssigneeID uint
	Limit      int
	Offset     int
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (s *Store) FindTask(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	err := s.db.WithContext(ctx).
		Preload("Requester").
		Preload("Assignee").
		First(&t, id).Error
	if err != nil {
		return nil, notFound(err, "task")
	}
	return &t, nil
}

func (s *Store) TaskExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Preload("Requester").Preload("Assignee").Order("updated_at desc, id desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssigneeID != 0 {
		q = q.Where("assignee_id = ?", f.AssigneeID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		ok, err := s.TaskExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("task not found")
		}
	}
	return nil
}

// DeleteTask menghapus task beserta message, review dan summary-nya dalam satu transaksi.
// Attachment yang ikut terhapus dikembalikan supaya file-nya bisa dibersihkan caller.
func (s *Store) DeleteTask(ctx context.Context, id uint) ([]models.Attachment, error) {
	var removed []models.Attachment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Task
		if err := tx.First(&t, id).Error; err != nil {
			return notFound(err, "task")
		}

		var msgs []models.Message
		if err := tx.Where("task_id = ?", id).Find(&msgs).Error; err != nil {
			return err
		}
		ids := make([]uint, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)
			removed = append(removed, m.Attachments...)
		}

		if len(ids) > 0 {
			if err := tx.Where("message_id IN ?", ids).Delete(&models.QAReview{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Message{}).Where("id IN ?", ids).Update("reply_to_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Summary{}).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ---- messages

func hydrated(db *gorm.DB) *gorm.DB {
	return db.Preload("Sender").Preload("ReplyTo").Preload("ReplyTo.Sender")
}

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

// CreateMessageClaiming menempelkan pending upload milik uploaderID ke message baru dalam satu transaksi.
// Metadata attachment diambil dari baris pending, bukan dari client. Upload yang tidak ada,
// milik user lain, atau sudah diklaim message lain membuat seluruh create gagal.
// check (boleh nil) dijalankan atas attachment yang diklaim sebelum message disimpan.
func (s *Store) CreateMessageClaiming(ctx context.Context, m *models.Message, uploaderID uint, uploadIDs []string, check func([]models.Attachment) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.PendingUpload
		if err := tx.Where("id IN ? AND uploader_id = ?", uploadIDs, uploaderID).Find(&pending).Error; err != nil {
			return err
		}
		byID := make(map[string]models.PendingUpload, len(pending))
		for _, p := range pending {
			byID[p.ID] = p
		}

		claimed := make([]models.Attachment, 0, len(uploadIDs))
		for _, id := range uploadIDs {
			p, ok := byID[id]
			if !ok {
				return apperr.NotFound(fmt.Sprintf("attachment %s not found", id))
			}
			claimed = append(claimed, p.Attachment())
		}
		if check != nil {
			if err := check(claimed); err != nil {
				return err
			}
		}

		res := tx.Where("id IN ? AND uploader_id = ?", uploadIDs, uploaderID).Delete(&models.PendingUpload{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(uploadIDs)) {
			return apperr.NotFound("attachment already used")
		}

		m.Attachments = append(m.Attachments, claimed...)
		return tx.Omit(clause.Associations).Create(m).Error
	})
}

func (s *Store) FindMessage(ctx context.Context, id uint) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "message")
	}
	return &m, nil
}

// FindMessageHydrated memuat sender dan reply target (beserta sender-nya).
func (s *Store) FindMessageHydrated(ctx context.Context, id uint) (*models.Message, error) {
	var m models.Message
	if err := hydrated(s.db.WithContext(ctx)).First(&m, id).Error; err != nil {
		return nil, notFound(err, "message")
	}
	return &m, nil
}

// ListMessages returns one page of a task's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, taskID uint, limit, offset int) ([]models.Message, int64, error) {
	var total int64
	base := s.db.WithContext(ctx).Model(&models.Message{}).Where("task_id = ?", taskID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []models.Message
	q := hydrated(s.db.WithContext(ctx)).
		Where("task_id = ?", taskID).
		Order("created_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (s *Store) ListReplies(ctx context.Context, messageID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("reply_to_id = ?", messageID).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Store) SaveMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).
		Model(m).
		Omit(clause.Associations).
		Select("content", "attachments", "updated_at").
		Updates(m).Error
}

// DeleteMessage menghapus message + review-nya; reply yang menunjuk ke message ini di-unlink.
func (s *Store) DeleteMessage(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.QAReview{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Message{}).Where("reply_to_id = ?", id).Update("reply_to_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("message not found")
		}
		return nil
	})
}

// TaskHistory dipakai untuk summary: semua message task, urut naik, dengan sender.
func (s *Store) TaskHistory(ctx context.Context, taskID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("task_id = ?", taskID).
		Order("created_at asc, id asc").
		Find(&msgs).Error
	return msgs, err
}

// ---- pending uploads

func (s *Store) CreatePendingUploads(ctx context.Context, ups []models.PendingUpload) error {
	if len(ups) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&ups).Error
}

// ---- summaries

func (s *Store) FindSummary(ctx context.Context, taskID uint) (*models.Summary, error) {
	var sum models.Summary
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).First(&sum).Error; err != nil {
		return nil, notFound(err, "summary")
	}
	return &sum, nil
}

// UpsertSummary: create-or-update per task.
func (s *Store) UpsertSummary(ctx context.Context, sum *models.Summary) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "entities", "degraded", "generated_at", "updated_at"}),
	}).Create(sum).Error
}

// ---- reviews

// CreateReview menolak request kedua untuk message yang sama.
func (s *Store) CreateReview(ctx context.Context, r *models.QAReview) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.QAReview{}).Where("message_id = ?", r.MessageID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("review already requested")
		}
		return tx.Omit(clause.Associations).Create(r).Error
	})
}

func (s *Store) FindReview(ctx context.Context, id uint) (*models.QAReview, error) {
	var r models.QAReview
	err := s.db.WithContext(ctx).
		Preload("Message").
		Preload("Reviewer").
		First(&r, id).Error
	if err != nil {
		return nil, notFound(err, "review")
	}
	return &r, nil
}

func (s *Store) ListReviews(ctx context.Context, messageID uint) ([]models.QAReview, error) {
	var rs []models.QAReview
	err := s.db.WithContext(ctx).
		Preload("Reviewer").
		Where("message_id = ?", messageID).
		Order("id asc").
		Find(&rs).Error
	return rs, err
}

func (s *Store) SaveReview(ctx context.Context, r *models.QAReview) error {
	return s.db.WithContext(ctx).
		Model(r).
		Omit(clause.Associations).
		Select("status", "feedback", "reviewer_id", "updated_at").
		Updates(r).Error
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
