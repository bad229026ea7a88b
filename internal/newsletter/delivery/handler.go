package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"thinkwrapper-backend/internal/newsletter/usecase"

	"github.com/gin-gonic/gin"
)

// NewsletterHandler handles newsletter management HTTP requests
type NewsletterHandler struct {
	newsletterUsecase *usecase.NewsletterUsecase
}

// NewNewsletterHandler creates a new NewsletterHandler
func NewNewsletterHandler(newsletterUsecase *usecase.NewsletterUsecase) *NewsletterHandler {
	return &NewsletterHandler{
		newsletterUsecase: newsletterUsecase,
	}
}

// CreateNewsletterRequest represents the request body for creating a newsletter
type CreateNewsletterRequest struct {
	Name       string `json:"name" binding:"required"`
	Topic      string `json:"topic" binding:"required"`
	Style      string `json:"style"`
	Schedule   string `json:"schedule" binding:"required"`
	MaxSources int    `json:"max_sources"`
}

// CreateNewsletter creates a new newsletter for the authenticated user
// POST /api/newsletters
func (h *NewsletterHandler) CreateNewsletter(c *gin.Context) {
	userID := c.GetString("userID")

	var req CreateNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newsletter, err := h.newsletterUsecase.Create(userID, req.Name, req.Topic, req.Style, req.Schedule, req.MaxSources)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, newsletter)
}

// GetNewsletters returns all newsletters for the authenticated user
// GET /api/newsletters
func (h *NewsletterHandler) GetNewsletters(c *gin.Context) {
	userID := c.GetString("userID")

	newsletters, err := h.newsletterUsecase.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"newsletters": newsletters,
		"total":       len(newsletters),
	})
}

// GetNewsletterByID returns a specific newsletter
// GET /api/newsletters/:id
func (h *NewsletterHandler) GetNewsletterByID(c *gin.Context) {
	userID := c.GetString("userID")
	newsletterID := c.Param("id")

	newsletter, err := h.newsletterUsecase.GetByID(userID, newsletterID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newsletter)
}

// UpdateNewsletter updates an existing newsletter
// PUT /api/newsletters/:id
func (h *NewsletterHandler) UpdateNewsletter(c *gin.Context) {
	userID := c.GetString("userID")
	newsletterID := c.Param("id")

	var updates usecase.NewsletterUpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newsletter, err := h.newsletterUsecase.Update(userID, newsletterID, updates)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newsletter)
}

// DeactivateNewsletter disables a newsletter without deleting its issues
// DELETE /api/newsletters/:id
func (h *NewsletterHandler) DeactivateNewsletter(c *gin.Context) {
	userID := c.GetString("userID")
	newsletterID := c.Param("id")

	if err := h.newsletterUsecase.Deactivate(userID, newsletterID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Newsletter deactivated"})
}

// GetIssues returns past issues of a newsletter, newest first
// GET /api/newsletters/:id/issues?limit=20
func (h *NewsletterHandler) GetIssues(c *gin.Context) {
	userID := c.GetString("userID")
	newsletterID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	issues, err := h.newsletterUsecase.ListIssues(userID, newsletterID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues": issues,
		"total":  len(issues),
	})
}

// GetIssueByID returns one issue including its rendered bodies
// GET /api/newsletters/:id/issues/:issueId
func (h *NewsletterHandler) GetIssueByID(c *gin.Context) {
	userID := c.GetString("userID")
	newsletterID := c.Param("id")
	issueID := c.Param("issueId")

	issue, err := h.newsletterUsecase.GetIssue(userID, newsletterID, issueID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

func (h *NewsletterHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Newsletter not found"})
	case errors.Is(err, usecase.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
