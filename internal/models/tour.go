package models

import (
	"gorm.io/gorm"
)

// Tour is a bookable listing. Capacity bounds the tickets that may be sold
// for any single calendar day; Visitor is the cumulative count of tickets
// across all non-canceled reservations. Photo holds the object-storage key,
// never a URL.
type Tour struct {
	gorm.Model
	Name        string  `json:"name"`
	City        string  `json:"city"`
	Price       int     `json:"price"`
	Capacity    int     `json:"capacity"`
	Visitor     int     `json:"visitor"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	Map         string  `json:"map"`
	Photo       string  `json:"photo"`

	Feedbacks []Feedback `json:"feedbacks,omitempty"`
}
