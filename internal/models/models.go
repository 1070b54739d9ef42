package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:operator" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TaskStatus string

const (
	StatusLogged   TaskStatus = "Logged"
	StatusOngoing  TaskStatus = "Ongoing"
	StatusReviewed TaskStatus = "Reviewed"
	StatusDone     TaskStatus = "Done"
	StatusBlocked  TaskStatus = "Blocked"
)

// Status sengaja tidak punya tabel transisi: semua nilai valid boleh di-set.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusLogged, StatusOngoing, StatusReviewed, StatusDone, StatusBlocked:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Tags        string       `gorm:"size:500" json:"tags"`
	Status      TaskStatus   `gorm:"size:20;not null;index" json:"status"`
	Priority    TaskPriority `gorm:"size:20;not null" json:"priority"`
	RequesterID uint         `gorm:"index;not null" json:"requester_id"`
	AssigneeID  *uint        `gorm:"index" json:"assignee_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Assignee  *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
}

// Attachment disimpan embedded (JSON) di Message, bukan tabel terpisah.
type Attachment struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingUpload adalah file dari /uploads yang belum menempel ke message.
// Baris ini hilang saat file diklaim oleh satu message milik uploader yang sama.
type PendingUpload struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UploaderID uint      `gorm:"index;not null" json:"uploader_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	Path       string    `gorm:"size:255;not null" json:"path"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	MimeType   string    `gorm:"size:128;not null" json:"mime_type"`
	Size       int64     `gorm:"not null" json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewPendingUpload(uploaderID uint, a Attachment) PendingUpload {
	return PendingUpload{
		ID:         a.ID,
		UploaderID: uploaderID,
		Filename:   a.Filename,
		Path:       a.Path,
		URL:        a.URL,
		MimeType:   a.MimeType,
		Size:       a.Size,
		CreatedAt:  a.CreatedAt,
	}
}

func (p PendingUpload) Attachment() Attachment {
	return Attachment{
		ID:        p.ID,
		Filename:  p.Filename,
		Path:      p.Path,
		URL:       p.URL,
		MimeType:  p.MimeType,
		Size:      p.Size,
		CreatedAt: p.CreatedAt,
	}
}

type Message struct {
	ID          uint                            `gorm:"primaryKey" json:"id"`
	TaskID      uint                            `gorm:"index;not null" json:"task_id"`
	SenderID    uint                            `gorm:"index;not null" json:"sender_id"`
	ReplyToID   *uint                           `gorm:"index" json:"reply_to_id"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSONSlice[Attachment] `gorm:"not null" json:"attachments"`
	CreatedAt   time.Time                       `gorm:"index;<-:create" json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`

	Sender  *User    `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReplyTo *Message `gorm:"foreignKey:ReplyToID;constraint:OnDelete:SET NULL" json:"reply_to,omitempty"`
	Task    *Task    `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"task,omitempty"`
}

func (m *Message) BeforeSave(*gorm.DB) error {
	if m.Attachments == nil {
		m.Attachments = datatypes.JSONSlice[Attachment]{}
	}
	return nil
}

func (m *Message) AfterFind(*gorm.DB) error {
	if m.Attachments == nil {
		m.Attachments = datatypes.JSONSlice[Attachment]{}
	}
	return nil
}

// FindAttachment returns the index of the attachment or -1.
func (m *Message) FindAttachment(id string) int {
	for i, a := range m.Attachments {
		if a.ID == id {
			return i
		}
	}
	return -1
}

const (
	EntityURL   = "url"
	EntityPhone = "phone"
	EntityEmail = "email"
)

type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Summary: maksimal satu per task (uniqueIndex).
type Summary struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	TaskID      uint                        `gorm:"uniqueIndex;not null" json:"task_id"`
	Content     string                      `gorm:"type:text" json:"content"`
	Entities    datatypes.JSONSlice[Entity] `gorm:"not null" json:"entities"`
	Degraded    bool                        `gorm:"not null;default:false" json:"degraded"`
	GeneratedAt time.Time                   `json:"generated_at"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (s *Summary) BeforeSave(*gorm.DB) error {
	if s.Entities == nil {
		s.Entities = datatypes.JSONSlice[Entity]{}
	}
	return nil
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type QAReview struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	MessageID     uint         `gorm:"index;not null" json:"message_id"`
	Status        ReviewStatus `gorm:"size:20;not null" json:"status"`
	Feedback      string       `gorm:"type:text" json:"feedback"`
	RequestedByID uint         `gorm:"not null" json:"requested_by_id"`
	ReviewerID    *uint        `json:"reviewer_id"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	Message  *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"message,omitempty"`
	Reviewer *User    `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// All dipakai untuk AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Task{},
		&Message{},
		&Summary{},
		&QAReview{},
		&PendingUpload{},
	}
}
