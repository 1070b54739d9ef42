package handlers

import (
	"net/http"

	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	Tasks *chat.TaskService
}

type createTaskReq struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Tags        string              `json:"tags"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	AssigneeID  *uint               `json:"assignee_id"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	task, err := h.Tasks.Create(c.Request.Context(), middleware.MustIdentity(c), chat.CreateTask{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": task})
}

func (h *TaskHandler) List(c *gin.Context) {
	f := store.TaskFilter{
		Status: models.TaskStatus(c.Query("status")),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if a := queryInt(c, "assignee_id", 0); a > 0 {
		f.AssigneeID = uint(a)
	}

	tasks, err := h.Tasks.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tasks})
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	task, err := h.Tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": task})
}

type updateTaskReq struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Tags        *string              `json:"tags"`
	Status      *models.TaskStatus   `json:"status"`
	Priority    *models.TaskPriority `json:"priority"`
	AssigneeID  *uint                `json:"assignee_id"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	task, err := h.Tasks.Update(c.Request.Context(), middleware.MustIdentity(c), id, chat.UpdateTask{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": task})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Tasks.Delete(c.Request.Context(), middleware.MustIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
