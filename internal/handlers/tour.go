package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"github.com/explore-metroplex/metroplex-api/internal/storage"
	"gorm.io/gorm"
)

type TourHandler struct {
	db          *gorm.DB
	store       storage.ObjectStore
	authHandler *auth.AuthHandler
}

func NewTourHandler(db *gorm.DB, store storage.ObjectStore, authHandler *auth.AuthHandler) *TourHandler {
	return &TourHandler{db: db, store: store, authHandler: authHandler}
}

type FeedbackDetail struct {
	ID        uint            `json:"id"`
	Text      string          `json:"text"`
	Rate      int             `json:"rate"`
	CreatedAt time.Time       `json:"created_at"`
	User      auth.PublicUser `json:"user"`
}

type TourDetail struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	City        string           `json:"city"`
	Price       int              `json:"price"`
	Capacity    int              `json:"capacity"`
	Visitor     int              `json:"visitor"`
	Rating      float64          `json:"rating"`
	Description string           `json:"description"`
	Address     string           `json:"address"`
	Map         string           `json:"map"`
	Photo       string           `json:"photo"`
	Feedbacks   []FeedbackDetail `json:"feedbacks"`
}

func (h *TourHandler) toDetail(ctx context.Context, tour models.Tour) (TourDetail, error) {
	photoURL, err := h.store.SignedURL(ctx, tour.Photo)
	if err != nil {
		return TourDetail{}, huma.Error500InternalServerError("failed to sign photo url: " + err.Error())
	}
	feedbacks := make([]FeedbackDetail, 0, len(tour.Feedbacks))
	for _, f := range tour.Feedbacks {
		feedbacks = append(feedbacks, FeedbackDetail{
			ID:        f.ID,
			Text:      f.Text,
			Rate:      f.Rate,
			CreatedAt: f.CreatedAt,
			User:      auth.ToPublicUser(f.User),
		})
	}
	return TourDetail{
		ID:          tour.ID,
		Name:        tour.Name,
		City:        tour.City,
		Price:       tour.Price,
		Capacity:    tour.Capacity,
		Visitor:     tour.Visitor,
		Rating:      tour.Rating,
		Description: tour.Description,
		Address:     tour.Address,
		Map:         tour.Map,
		Photo:       photoURL,
		Feedbacks:   feedbacks,
	}, nil
}

type ListToursInput struct {
	Name  string `query:"name" doc:"Case-insensitive name filter"`
	City  string `query:"city" doc:"Case-insensitive city filter"`
	Page  int    `query:"page" default:"1" minimum:"1"`
	Limit int    `query:"limit" default:"100" minimum:"1"`
}

type ListToursOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Tours []TourDetail `json:"tours"`
		} `json:"data"`
	}
}

func (h *TourHandler) HandleList(ctx context.Context, input *ListToursInput) (*ListToursOutput, error) {
	q := h.db.Model(&models.Tour{}).Preload("Feedbacks").Preload("Feedbacks.User")
	if input.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(input.Name)+"%")
	}
	if input.City != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(input.City)+"%")
	}

	var tours []models.Tour
	if err := q.Order("rating desc").
		Offset((input.Page - 1) * input.Limit).
		Limit(input.Limit).
		Find(&tours).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to list tours: " + err.Error())
	}

	details := make([]TourDetail, 0, len(tours))
	for _, tour := range tours {
		d, err := h.toDetail(ctx, tour)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	res := &ListToursOutput{}
	res.Body.Status = "success"
	res.Body.Message = "tours retrieved"
	res.Body.Data.Tours = details
	return res, nil
}

type GetTourInput struct {
	ID uint `path:"id"`
}

type GetTourOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Tour TourDetail `json:"tour"`
		} `json:"data"`
	}
}

func (h *TourHandler) HandleGet(ctx context.Context, input *GetTourInput) (*GetTourOutput, error) {
	var tour models.Tour
	if err := h.db.Preload("Feedbacks").Preload("Feedbacks.User").First(&tour, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("tour not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	detail, err := h.toDetail(ctx, tour)
	if err != nil {
		return nil, err
	}

	res := &GetTourOutput{}
	res.Body.Status = "success"
	res.Body.Message = "tour retrieved"
	res.Body.Data.Tour = detail
	return res, nil
}

type TourFormInput struct {
	auth.AuthInput
	RawBody multipart.Form
}

type TourMutationOutput struct {
	Status int
	Body   struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Tour TourDetail `json:"tour"`
		} `json:"data"`
	}
}

// formValue returns the first value for a multipart field.
func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// readImage extracts the uploaded image, returning its generated storage key,
// content and content type. ok is false when the form carries no image.
func readImage(form *multipart.Form) (key string, data []byte, contentType string, ok bool, err error) {
	files := form.File["image"]
	if len(files) == 0 {
		return "", nil, "", false, nil
	}
	header := files[0]

	f, err := header.Open()
	if err != nil {
		return "", nil, "", false, err
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", false, err
	}

	nameBytes := make([]byte, 32)
	if _, err := rand.Read(nameBytes); err != nil {
		return "", nil, "", false, err
	}
	key = fmt.Sprintf("tours/%s-%s", hex.EncodeToString(nameBytes), header.Filename)
	return key, data, header.Header.Get("Content-Type"), true, nil
}

func (h *TourHandler) HandleCreate(ctx context.Context, input *TourFormInput) (*TourMutationOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := h.authHandler.RequireAdmin(identity); err != nil {
		return nil, err
	}

	price, err := strconv.Atoi(formValue(&input.RawBody, "price"))
	if err != nil {
		return nil, huma.Error400BadRequest("price must be an integer")
	}
	capacity, err := strconv.Atoi(formValue(&input.RawBody, "capacity"))
	if err != nil {
		return nil, huma.Error400BadRequest("capacity must be an integer")
	}

	key, data, contentType, hasImage, err := readImage(&input.RawBody)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read image: " + err.Error())
	}
	if !hasImage {
		return nil, huma.Error400BadRequest("image is required")
	}

	tour := models.Tour{
		Name:        formValue(&input.RawBody, "name"),
		City:        formValue(&input.RawBody, "city"),
		Price:       price,
		Capacity:    capacity,
		Description: formValue(&input.RawBody, "description"),
		Address:     formValue(&input.RawBody, "address"),
		Map:         formValue(&input.RawBody, "map"),
		Photo:       key,
	}
	if err := h.db.Create(&tour).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to create tour: " + err.Error())
	}

	// Row first, object second. If the upload fails the key is cleared so the
	// record never points at an object that was not stored.
	if err := h.store.Upload(ctx, key, data, contentType); err != nil {
		log.Printf("Image upload failed for tour %d: %v", tour.ID, err)
		if uerr := h.db.Model(&tour).Update("photo", "").Error; uerr != nil {
			log.Printf("Failed to clear photo key for tour %d: %v", tour.ID, uerr)
		}
		return nil, huma.Error500InternalServerError("failed to upload tour image")
	}

	detail, err := h.toDetail(ctx, tour)
	if err != nil {
		return nil, err
	}

	res := &TourMutationOutput{Status: http.StatusCreated}
	res.Body.Status = "success"
	res.Body.Message = "tour created"
	res.Body.Data.Tour = detail
	return res, nil
}

type UpdateTourInput struct {
	auth.AuthInput
	ID      uint `path:"id"`
	RawBody multipart.Form
}

func (h *TourHandler) HandleUpdate(ctx context.Context, input *UpdateTourInput) (*TourMutationOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := h.authHandler.RequireAdmin(identity); err != nil {
		return nil, err
	}

	var tour models.Tour
	if err := h.db.First(&tour, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("tour not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	updates := map[string]interface{}{}
	for _, field := range []string{"name", "city", "description", "address", "map"} {
		if v := formValue(&input.RawBody, field); v != "" {
			updates[field] = v
		}
	}
	if v := formValue(&input.RawBody, "price"); v != "" {
		price, err := strconv.Atoi(v)
		if err != nil {
			return nil, huma.Error400BadRequest("price must be an integer")
		}
		updates["price"] = price
	}
	if v := formValue(&input.RawBody, "capacity"); v != "" {
		capacity, err := strconv.Atoi(v)
		if err != nil {
			return nil, huma.Error400BadRequest("capacity must be an integer")
		}
		updates["capacity"] = capacity
	}

	key, data, contentType, hasImage, err := readImage(&input.RawBody)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read image: " + err.Error())
	}

	oldPhoto := tour.Photo
	if hasImage {
		updates["photo"] = key
	}

	if len(updates) > 0 {
		if err := h.db.Model(&tour).Updates(updates).Error; err != nil {
			return nil, huma.Error500InternalServerError("failed to update tour: " + err.Error())
		}
	}

	if hasImage {
		if err := h.store.Upload(ctx, key, data, contentType); err != nil {
			log.Printf("Image upload failed for tour %d: %v", tour.ID, err)
			if uerr := h.db.Model(&tour).Update("photo", "").Error; uerr != nil {
				log.Printf("Failed to clear photo key for tour %d: %v", tour.ID, uerr)
			}
			return nil, huma.Error500InternalServerError("failed to upload tour image")
		}
		if err := h.store.Delete(ctx, oldPhoto); err != nil {
			log.Printf("Failed to delete old tour image %q: %v", oldPhoto, err)
		}
	}

	if err := h.db.Preload("Feedbacks").Preload("Feedbacks.User").First(&tour, input.ID).Error; err != nil {
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	detail, err := h.toDetail(ctx, tour)
	if err != nil {
		return nil, err
	}

	res := &TourMutationOutput{Status: http.StatusOK}
	res.Body.Status = "success"
	res.Body.Message = "tour updated"
	res.Body.Data.Tour = detail
	return res, nil
}

type DeleteTourInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type DeleteTourOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

func (h *TourHandler) HandleDelete(ctx context.Context, input *DeleteTourInput) (*DeleteTourOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if err := h.authHandler.RequireAdmin(identity); err != nil {
		return nil, err
	}

	var tour models.Tour
	if err := h.db.First(&tour, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("tour not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	if err := h.db.Delete(&tour).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to delete tour: " + err.Error())
	}

	if err := h.store.Delete(ctx, tour.Photo); err != nil {
		log.Printf("Failed to delete tour image %q: %v", tour.Photo, err)
	}

	res := &DeleteTourOutput{}
	res.Body.Status = "success"
	res.Body.Message = "tour deleted"
	return res, nil
}
