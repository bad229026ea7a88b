package delivery

import (
	"errors"
	"net/http"

	nlusecase "thinkwrapper-backend/internal/newsletter/usecase"
	"thinkwrapper-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task submission and status polling
type TaskHandler struct {
	tasks             *usecase.Service
	newsletterUsecase *nlusecase.NewsletterUsecase
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks *usecase.Service, newsletterUsecase *nlusecase.NewsletterUsecase) *TaskHandler {
	return &TaskHandler{
		tasks:             tasks,
		newsletterUsecase: newsletterUsecase,
	}
}

// GenerateRequest represents the request body for an on-demand generation
type GenerateRequest struct {
	NewsletterID string `json:"newsletter_id" binding:"required"`
}

// SubmitGenerate enqueues a generation run for one of the user's newsletters.
// Returns the existing task when one is already queued or running.
// POST /api/tasks/generate
func (h *TaskHandler) SubmitGenerate(c *gin.Context) {
	userID := c.GetString("userID")

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newsletter, err := h.newsletterUsecase.GetByID(userID, req.NewsletterID)
	if err != nil {
		respondOwnershipError(c, err)
		return
	}
	if !newsletter.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Newsletter is inactive"})
		return
	}

	task, err := h.tasks.SubmitGenerate(newsletter.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// GetStatus returns the polling view for a task the user owns
// GET /api/tasks/:id
func (h *TaskHandler) GetStatus(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	view, err := h.tasks.GetStatus(taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	// Tasks belong to whoever owns the newsletter they run for
	if _, err := h.newsletterUsecase.GetByID(userID, view.NewsletterID); err != nil {
		respondOwnershipError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func respondOwnershipError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, nlusecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Newsletter not found"})
	case errors.Is(err, nlusecase.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
