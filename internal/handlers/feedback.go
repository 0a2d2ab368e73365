package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"gorm.io/gorm"
)

type FeedbackHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
}

func NewFeedbackHandler(db *gorm.DB, authHandler *auth.AuthHandler) *FeedbackHandler {
	return &FeedbackHandler{db: db, authHandler: authHandler}
}

type CreateFeedbackInput struct {
	auth.AuthInput
	TourID uint `path:"id"`
	Body   struct {
		Text string `json:"text"`
		Rate int    `json:"rate" required:"true"`
	}
}

type CreateFeedbackOutput struct {
	Status int
	Body   struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

// HandleCreate stores the feedback and synchronously recomputes the tour's
// mean rating. Recomputation is O(n) in feedback count, which is fine at the
// expected scale.
func (h *FeedbackHandler) HandleCreate(ctx context.Context, input *CreateFeedbackInput) (*CreateFeedbackOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var tour models.Tour
	if err := h.db.First(&tour, input.TourID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("tour not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	if input.Body.Rate < 1 || input.Body.Rate > 5 {
		return nil, huma.Error400BadRequest("rating must be an integer between 1 and 5")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		feedback := models.Feedback{
			UserID: identity.UserID,
			TourID: tour.ID,
			Text:   input.Body.Text,
			Rate:   input.Body.Rate,
		}
		if err := tx.Create(&feedback).Error; err != nil {
			return huma.Error500InternalServerError("failed to create feedback: " + err.Error())
		}

		var rating float64
		if err := tx.Model(&models.Feedback{}).
			Select("COALESCE(AVG(rate), 0)").
			Where("tour_id = ?", tour.ID).
			Scan(&rating).Error; err != nil {
			return huma.Error500InternalServerError("failed to compute rating: " + err.Error())
		}
		if err := tx.Model(&models.Tour{}).Where("id = ?", tour.ID).
			Update("rating", rating).Error; err != nil {
			return huma.Error500InternalServerError("failed to update rating: " + err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &CreateFeedbackOutput{Status: http.StatusCreated}
	res.Body.Status = "success"
	res.Body.Message = "feedback created"
	return res, nil
}
