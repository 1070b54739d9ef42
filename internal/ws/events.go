package ws

import (
	"encoding/json"
	"strconv"

	"github.com/adityaraj-09/faff-assign/internal/models"
)

// client -> server
const (
	EventJoinTask       = "join_task"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventTaskUpdated    = "task_updated"
	EventUploadProgress = "upload_progress"
)

// server -> client
const (
	EventJoinedTask         = "joined_task"
	EventNewMessage         = "new_message"
	EventMessageUpdated     = "message_updated"
	EventMessageDeleted     = "message_deleted"
	EventUserTyping         = "user_typing"
	EventRefreshTask        = "refresh_task"
	EventTaskAssigned       = "task_assigned"
	EventFileUploadProgress = "file_upload_progress"
	EventError              = "error"
)

const (
	taskRoomPrefix = "task:"
	userRoomPrefix = "user:"
)

func TaskRoom(taskID uint) string { return taskRoomPrefix + strconv.FormatUint(uint64(taskID), 10) }
func UserRoom(userID uint) string { return userRoomPrefix + strconv.FormatUint(uint64(userID), 10) }

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TaskRef diterima sebagai angka polos (`5`) atau objek (`{"taskId":5}`).
type TaskRef struct {
	TaskID uint `json:"taskId"`
}

func (r *TaskRef) UnmarshalJSON(b []byte) error {
	var id uint
	if err := json.Unmarshal(b, &id); err == nil {
		r.TaskID = id
		return nil
	}
	type plain TaskRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = TaskRef(p)
	return nil
}

// SendMessageRequest adalah payload send_message.
type SendMessageRequest struct {
	TaskID      uint                `json:"taskId"`
	Content     string              `json:"content"`
	ReplyToID   *uint               `json:"replyToId,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

type TypingRequest struct {
	TaskID   uint `json:"taskId"`
	IsTyping bool `json:"isTyping"`
}

type UploadProgressRequest struct {
	TaskID   uint    `json:"taskId"`
	Progress float64 `json:"progress"`
	Filename string  `json:"filename"`
}

type UserTyping struct {
	UserID   uint   `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type FileUploadProgress struct {
	UserID   uint    `json:"userId"`
	UserName string  `json:"userName"`
	Progress float64 `json:"progress"`
	Filename string  `json:"filename"`
}

type TaskNotice struct {
	TaskID uint `json:"taskId"`
}

type MessageDeleted struct {
	ID     uint `json:"id"`
	TaskID uint `json:"taskId"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
