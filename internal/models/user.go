package models

import (
	"gorm.io/gorm"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	gorm.Model
	Name           string `json:"name"`
	Username       string `json:"username" gorm:"uniqueIndex"`
	Email          string `json:"email" gorm:"uniqueIndex"`
	Password       string `json:"-"`
	ProfilePicture string `json:"profile_picture"`
	Role           string `json:"role" gorm:"default:USER"`
	RefreshToken   string `json:"-"`
}
