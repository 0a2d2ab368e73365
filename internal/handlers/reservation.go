package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"github.com/explore-metroplex/metroplex-api/internal/notifier"
	"github.com/explore-metroplex/metroplex-api/internal/storage"
	"gorm.io/gorm"
)

type ReservationHandler struct {
	db          *gorm.DB
	store       storage.ObjectStore
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler

	// tourLocks serializes the capacity check-then-book sequence per tour.
	// Two requests for the same tour must not both read the committed ticket
	// sum before either writes, or capacity can be oversold.
	tourLocks sync.Map
}

func NewReservationHandler(db *gorm.DB, store storage.ObjectStore, n notifier.Notifier, authHandler *auth.AuthHandler) *ReservationHandler {
	return &ReservationHandler{db: db, store: store, notifier: n, authHandler: authHandler}
}

func (h *ReservationHandler) lockTour(tourID uint) func() {
	v, _ := h.tourLocks.LoadOrStore(tourID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// dayStart truncates t to 00:00 UTC of its calendar day. Reservations are
// per-day: the time-of-day component is normalized away on write and both
// sides of every date comparison go through this.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// likeEscaper neutralizes LIKE metacharacters in user-supplied search text;
// the patterns built from it must carry an ESCAPE '\' clause.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// parseReservedAt accepts a plain calendar date or a full RFC 3339 timestamp.
func parseReservedAt(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type ReservationTour struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Price       int    `json:"price"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Map         string `json:"map"`
	Photo       string `json:"photo"`
}

type ReservationDetail struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Ticket     int             `json:"ticket"`
	Subtotal   int             `json:"subtotal"`
	ReservedAt time.Time       `json:"reserved_at"`
	Status     string          `json:"status"`
	User       auth.PublicUser `json:"user"`
	Tour       ReservationTour `json:"tour"`
}

type CreateReservationInput struct {
	auth.AuthInput
	TourID uint `path:"id"`
	Body   struct {
		Name       string `json:"name" required:"true"`
		Phone      string `json:"phone" required:"true"`
		Email      string `json:"email" required:"true"`
		Ticket     int    `json:"ticket" required:"true"`
		Subtotal   int    `json:"subtotal,omitempty" doc:"Ignored; the subtotal is derived from the tour price"`
		ReservedAt string `json:"reservedAt" required:"true" doc:"Reservation date, YYYY-MM-DD or RFC 3339"`
	}
}

type CreateReservationOutput struct {
	Status int
	Body   struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reservation ReservationDetail `json:"reservation"`
		} `json:"data"`
	}
}

// HandleCreate runs the capacity check and, on acceptance, persists the
// reservation and bumps the tour's visitor counter in one transaction.
func (h *ReservationHandler) HandleCreate(ctx context.Context, input *CreateReservationInput) (*CreateReservationOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if _, err := mail.ParseAddress(input.Body.Email); err != nil {
		return nil, huma.Error400BadRequest("invalid email format")
	}
	if input.Body.Ticket <= 0 {
		return nil, huma.Error400BadRequest("ticket must be a positive integer")
	}

	reservedAt, err := parseReservedAt(input.Body.ReservedAt)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid reservation date")
	}
	day := dayStart(reservedAt)
	// Same-day bookings are allowed; only strictly earlier days are rejected.
	if day.Before(dayStart(time.Now())) {
		return nil, huma.Error400BadRequest("reservation date cannot be in the past")
	}

	unlock := h.lockTour(input.TourID)
	defer unlock()

	var reservation models.Reservation
	var tour models.Tour
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tour, input.TourID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return huma.Error404NotFound("tour not found")
			}
			return huma.Error500InternalServerError("database error: " + err.Error())
		}

		var committed int64
		if err := tx.Model(&models.Reservation{}).
			Select("COALESCE(SUM(ticket), 0)").
			Where("tour_id = ? AND reserved_at >= ? AND reserved_at < ? AND status <> ?",
				tour.ID, day, day.AddDate(0, 0, 1), models.ReservationCanceled).
			Scan(&committed).Error; err != nil {
			return huma.Error500InternalServerError("database error: " + err.Error())
		}

		available := tour.Capacity - int(committed)
		if input.Body.Ticket > available {
			if available > 0 {
				return huma.Error409Conflict(fmt.Sprintf("only %d tickets are available", available))
			}
			return huma.Error409Conflict("tour is fully booked on this date")
		}

		reservation = models.Reservation{
			UserID:     identity.UserID,
			TourID:     tour.ID,
			Name:       input.Body.Name,
			Phone:      input.Body.Phone,
			Email:      input.Body.Email,
			Ticket:     input.Body.Ticket,
			Subtotal:   input.Body.Ticket * tour.Price,
			ReservedAt: day,
			Status:     models.ReservationBooked,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return huma.Error500InternalServerError("failed to create reservation: " + err.Error())
		}

		if err := tx.Model(&models.Tour{}).Where("id = ?", tour.ID).
			Update("visitor", gorm.Expr("visitor + ?", reservation.Ticket)).Error; err != nil {
			return huma.Error500InternalServerError("failed to update visitor count: " + err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.notifier != nil {
		var user models.User
		if err := h.db.First(&user, identity.UserID).Error; err == nil {
			if err := h.notifier.NotifyReservation(user, tour, reservation); err != nil {
				log.Printf("Failed to send reservation notification: %v", err)
			}
		}
	}

	detail, err := h.reservationDetail(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}

	res := &CreateReservationOutput{Status: http.StatusCreated}
	res.Body.Status = "success"
	res.Body.Message = "reservation created"
	res.Body.Data.Reservation = *detail
	return res, nil
}

type ListReservationsInput struct {
	auth.AuthInput
	Filter string `query:"status" doc:"Filter by reservation status (BOOKED, DONE, CANCELED)"`
	Query  string `query:"query" doc:"Case-insensitive match against contact fields, user name or tour name"`
}

type ListReservationsOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reservations []ReservationDetail `json:"reservations"`
		} `json:"data"`
	}
}

// HandleList returns reservations visible to the caller. Listing is not a
// pure query: stale BOOKED rows are transitioned to DONE and persisted
// before the select, so no reservation with a past date is ever shown as
// BOOKED.
func (h *ReservationHandler) HandleList(ctx context.Context, input *ListReservationsInput) (*ListReservationsOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var statusFilter string
	if input.Filter != "" {
		statusFilter = strings.ToUpper(strings.TrimSpace(input.Filter))
		switch statusFilter {
		case models.ReservationBooked, models.ReservationDone, models.ReservationCanceled:
		default:
			return nil, huma.Error400BadRequest("invalid status filter")
		}
	}

	// Lazy BOOKED -> DONE sweep over the caller-visible rows. A reserved day
	// strictly before today is over; same-day reservations stay BOOKED.
	sweep := h.db.Model(&models.Reservation{}).
		Where("status = ? AND reserved_at < ?", models.ReservationBooked, dayStart(time.Now()))
	if !identity.IsAdmin() {
		sweep = sweep.Where("user_id = ?", identity.UserID)
	}
	if err := sweep.Update("status", models.ReservationDone).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to update reservations: " + err.Error())
	}

	q := h.db.Model(&models.Reservation{}).Joins("User").Joins("Tour")
	if !identity.IsAdmin() {
		q = q.Where("reservations.user_id = ?", identity.UserID)
	}
	if statusFilter != "" {
		q = q.Where("reservations.status = ?", statusFilter)
	}
	if input.Query != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(input.Query)) + "%"
		q = q.Where(
			`LOWER(reservations.name) LIKE ? ESCAPE '\' OR LOWER(reservations.phone) LIKE ? ESCAPE '\'
			 OR LOWER(reservations.email) LIKE ? ESCAPE '\'
			 OR LOWER("User".name) LIKE ? ESCAPE '\' OR LOWER("Tour".name) LIKE ? ESCAPE '\'`,
			like, like, like, like, like)
	}

	var reservations []models.Reservation
	if err := q.Order("reservations.reserved_at asc, reservations.created_at asc").
		Find(&reservations).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to list reservations: " + err.Error())
	}

	details := make([]ReservationDetail, 0, len(reservations))
	for _, r := range reservations {
		d, err := h.toDetail(ctx, r)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	res := &ListReservationsOutput{}
	res.Body.Status = "success"
	res.Body.Message = "reservations retrieved"
	res.Body.Data.Reservations = details
	return res, nil
}

type CancelReservationInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type CancelReservationOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

// HandleCancel voids a reservation and returns its tickets to the capacity
// pool. Cancellation is a soft state change: the row stays, the visitor
// counter is decremented by the original ticket count, and terminal
// reservations cannot be canceled again.
func (h *ReservationHandler) HandleCancel(ctx context.Context, input *CancelReservationInput) (*CancelReservationOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var reservation models.Reservation
	if err := h.db.First(&reservation, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("reservation not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	if !identity.IsAdmin() && reservation.UserID != identity.UserID {
		return nil, huma.Error403Forbidden("unauthorized to cancel this reservation")
	}

	unlock := h.lockTour(reservation.TourID)
	defer unlock()

	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock so two racing cancels cannot both pass the
		// terminal-state check and decrement the counter twice.
		if err := tx.First(&reservation, input.ID).Error; err != nil {
			return huma.Error500InternalServerError("database error: " + err.Error())
		}
		switch reservation.Status {
		case models.ReservationCanceled:
			return huma.Error409Conflict("reservation already canceled")
		case models.ReservationDone:
			return huma.Error409Conflict("reservation already completed")
		}

		// A BOOKED row whose day has passed is already over even if no
		// listing has swept it to DONE yet; cancellation must not depend
		// on whether a sweep ran first.
		if reservation.ReservedAt.Before(dayStart(time.Now())) {
			return huma.Error409Conflict("reservation already completed")
		}

		if err := tx.Model(&reservation).Update("status", models.ReservationCanceled).Error; err != nil {
			return huma.Error500InternalServerError("failed to cancel reservation: " + err.Error())
		}
		if err := tx.Model(&models.Tour{}).Where("id = ?", reservation.TourID).
			Update("visitor", gorm.Expr("visitor - ?", reservation.Ticket)).Error; err != nil {
			return huma.Error500InternalServerError("failed to update visitor count: " + err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.notifier != nil {
		var user models.User
		var tour models.Tour
		if h.db.First(&user, reservation.UserID).Error == nil && h.db.First(&tour, reservation.TourID).Error == nil {
			if err := h.notifier.NotifyCancellation(user, tour, reservation); err != nil {
				log.Printf("Failed to send cancellation notification: %v", err)
			}
		}
	}

	res := &CancelReservationOutput{}
	res.Body.Status = "success"
	res.Body.Message = "reservation canceled"
	return res, nil
}

func (h *ReservationHandler) reservationDetail(ctx context.Context, id uint) (*ReservationDetail, error) {
	var reservation models.Reservation
	if err := h.db.Preload("User").Preload("Tour").First(&reservation, id).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to load reservation: " + err.Error())
	}
	d, err := h.toDetail(ctx, reservation)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *ReservationHandler) toDetail(ctx context.Context, r models.Reservation) (ReservationDetail, error) {
	photoURL, err := h.store.SignedURL(ctx, r.Tour.Photo)
	if err != nil {
		return ReservationDetail{}, huma.Error500InternalServerError("failed to sign photo url: " + err.Error())
	}
	return ReservationDetail{
		ID:         r.ID,
		Name:       r.Name,
		Phone:      r.Phone,
		Email:      r.Email,
		Ticket:     r.Ticket,
		Subtotal:   r.Subtotal,
		ReservedAt: r.ReservedAt,
		Status:     r.Status,
		User:       auth.ToPublicUser(r.User),
		Tour: ReservationTour{
			ID:          r.Tour.ID,
			Name:        r.Tour.Name,
			City:        r.Tour.City,
			Price:       r.Tour.Price,
			Description: r.Tour.Description,
			Address:     r.Tour.Address,
			Map:         r.Tour.Map,
			Photo:       photoURL,
		},
	}, nil
}
