package models

import (
	"gorm.io/gorm"
)

type Feedback struct {
	gorm.Model
	UserID uint `json:"user_id"`
	User   User `json:"user"`
	TourID uint `json:"tour_id"`

	Text string `json:"text"`
	Rate int    `json:"rate"`
}
