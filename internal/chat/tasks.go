package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/ws"
)

type TaskService struct {
	store  *store.Store
	files  *attachments.Processor
	out    ws.Broadcaster
	logger *slog.Logger
}

func NewTaskService(st *store.Store, files *attachments.Processor, out ws.Broadcaster, logger *slog.Logger) *TaskService {
	return &TaskService{store: st, files: files, out: out, logger: logger}
}

type CreateTask struct {
	Title       string
	Description string
	Tags        string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	AssigneeID  *uint
}

// UpdateTask: field nil = tidak diubah. AssigneeID yang menunjuk 0 berarti lepas assignee.
type UpdateTask struct {
	Title       *string
	Description *string
	Tags        *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	AssigneeID  *uint
}

func (t *TaskService) Create(ctx context.Context, actor auth.Identity, in CreateTask) (*models.Task, error) {
	if !auth.Can(actor, auth.ActionCreateTask, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to create tasks")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.Status == "" {
		in.Status = models.StatusLogged
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation("invalid status")
	}
	if !in.Priority.Valid() {
		return nil, apperr.Validation("invalid priority")
	}
	if in.AssigneeID != nil && *in.AssigneeID == 0 {
		in.AssigneeID = nil
	}
	if in.AssigneeID != nil {
		if _, err := t.store.FindUser(ctx, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		Title:       title,
		Description: in.Description,
		Tags:        in.Tags,
		Status:      in.Status,
		Priority:    in.Priority,
		RequesterID: actor.UserID,
		AssigneeID:  in.AssigneeID,
	}
	if err := t.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	if task.AssigneeID != nil {
		t.notifyAssignee(ctx, *task.AssigneeID, task.ID)
	}
	return t.store.FindTask(ctx, task.ID)
}

func (t *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	return t.store.FindTask(ctx, id)
}

func (t *TaskService) List(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status")
	}
	tasks, err := t.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// Update mengirim refresh_task ke room task, dan task_assigned ke room user assignee baru.
func (t *TaskService) Update(ctx context.Context, actor auth.Identity, id uint, in UpdateTask) (*models.Task, error) {
	if !auth.Can(actor, auth.ActionUpdateTask, auth.Resource{}) {
		return nil, apperr.Forbidden("not allowed to update tasks")
	}
	current, err := t.store.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validation("title is required")
		}
		fields["title"] = title
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Tags != nil {
		fields["tags"] = *in.Tags
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid status")
		}
		fields["status"] = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, apperr.Validation("invalid priority")
		}
		fields["priority"] = *in.Priority
	}

	var newAssignee uint
	if in.AssigneeID != nil {
		if *in.AssigneeID == 0 {
			fields["assignee_id"] = nil
		} else {
			if _, err := t.store.FindUser(ctx, *in.AssigneeID); err != nil {
				return nil, err
			}
			fields["assignee_id"] = *in.AssigneeID
			if current.AssigneeID == nil || *current.AssigneeID != *in.AssigneeID {
				newAssignee = *in.AssigneeID
			}
		}
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("nothing to update")
	}

	if err := t.store.UpdateTask(ctx, id, fields); err != nil {
		return nil, err
	}

	t.broadcast(ctx, ws.TaskRoom(id), ws.EventRefreshTask, ws.TaskNotice{TaskID: id})
	if newAssignee != 0 {
		t.notifyAssignee(ctx, newAssignee, id)
	}
	return t.store.FindTask(ctx, id)
}

// Delete hanya untuk admin; message, review, summary ikut terhapus, file attachment dibersihkan.
func (t *TaskService) Delete(ctx context.Context, actor auth.Identity, id uint) error {
	if !auth.Can(actor, auth.ActionDeleteTask, auth.Resource{}) {
		return apperr.Forbidden("only an admin can delete tasks")
	}
	removed, err := t.store.DeleteTask(ctx, id)
	if err != nil {
		return err
	}
	t.files.DeleteAll(context.WithoutCancel(ctx), removed)
	t.broadcast(ctx, ws.TaskRoom(id), ws.EventRefreshTask, ws.TaskNotice{TaskID: id})
	return nil
}

func (t *TaskService) notifyAssignee(ctx context.Context, userID, taskID uint) {
	t.broadcast(ctx, ws.UserRoom(userID), ws.EventTaskAssigned, ws.TaskNotice{TaskID: taskID})
}

func (t *TaskService) broadcast(ctx context.Context, room, eventType string, data interface{}) {
	if err := t.out.Broadcast(ctx, room, eventType, data); err != nil {
		t.logger.Warn("broadcast failed",
			slog.String("room", room),
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
