// api/controller/feedback_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/feedback"
	"github.com/aegis-governance/aegis/api/util"
)

type FeedbackController struct {
	feedbackService feedback.Service
}

func NewFeedbackController(feedbackService feedback.Service) *FeedbackController {
	return &FeedbackController{
		feedbackService: feedbackService,
	}
}

// RegisterRoutes registers the API routes
func (fc *FeedbackController) RegisterRoutes(r *gin.RouterGroup) {
	fb := r.Group("/feedback")
	{
		fb.POST("", fc.SubmitFeedback)
	}
}

type feedbackRequest struct {
	AuditID string `json:"audit_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// SubmitFeedback endpoint
func (fc *FeedbackController) SubmitFeedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid feedback data", err)
		return
	}

	principalID := util.GetPrincipalIDFromContext(c)
	if principalID == "" {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", aegis_errors.ErrUnauthorized)
		return
	}

	fb, err := fc.feedbackService.Submit(c, body.AuditID, body.Rating, body.Comment, principalID)
	if err != nil {
		switch {
		case errors.Is(err, aegis_errors.ErrValidation):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid feedback data", err)
		case errors.Is(err, aegis_errors.ErrAuditNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Audit record not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to store feedback", err)
		}
		return
	}

	c.JSON(http.StatusCreated, fb)
}
