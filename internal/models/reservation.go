package models

import (
	"time"

	"gorm.io/gorm"
)

// Reservation status values. BOOKED is the only non-terminal state: it moves
// to DONE once the reserved day has passed, or to CANCELED on request.
// Canceled reservations are kept as rows and excluded from capacity sums.
const (
	ReservationBooked   = "BOOKED"
	ReservationDone     = "DONE"
	ReservationCanceled = "CANCELED"
)

type Reservation struct {
	gorm.Model
	UserID uint `json:"user_id"`
	User   User `json:"user"`
	TourID uint `json:"tour_id"`
	Tour   Tour `json:"tour"`

	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Email    string    `json:"email"`
	Ticket   int       `json:"ticket"`
	Subtotal int       `json:"subtotal"`
	// ReservedAt is normalized to 00:00 UTC of the reserved calendar day.
	ReservedAt time.Time `json:"reserved_at"`
	Status     string    `json:"status" gorm:"default:BOOKED"`
}
