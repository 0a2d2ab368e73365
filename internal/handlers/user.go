package handlers

import (
	"context"
	"net/mail"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"gorm.io/gorm"
)

type UserHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
}

func NewUserHandler(db *gorm.DB, authHandler *auth.AuthHandler) *UserHandler {
	return &UserHandler{db: db, authHandler: authHandler}
}

type ListUsersInput struct {
	auth.AuthInput
}

type ListUsersOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Users []auth.PublicUser `json:"users"`
		} `json:"data"`
	}
}

func (h *UserHandler) HandleList(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	var users []models.User
	if err := h.db.Find(&users).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to list users: " + err.Error())
	}

	public := make([]auth.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, auth.ToPublicUser(u))
	}

	res := &ListUsersOutput{}
	res.Body.Status = "success"
	res.Body.Message = "users retrieved"
	res.Body.Data.Users = public
	return res, nil
}

type UpdateUserInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		Name           string `json:"name,omitempty"`
		Username       string `json:"username,omitempty"`
		Email          string `json:"email,omitempty"`
		ProfilePicture string `json:"profile_picture,omitempty"`
	}
}

type UpdateUserOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			User auth.PublicUser `json:"user"`
		} `json:"data"`
	}
}

func (h *UserHandler) HandleUpdate(ctx context.Context, input *UpdateUserInput) (*UpdateUserOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if identity.UserID != input.ID {
		return nil, huma.Error403Forbidden("unauthorized to update user")
	}

	var user models.User
	if err := h.db.First(&user, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("user not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	updates := map[string]interface{}{}
	if input.Body.Username != "" {
		var existing models.User
		if err := h.db.Where("username = ?", input.Body.Username).First(&existing).Error; err == nil && existing.ID != input.ID {
			return nil, huma.Error409Conflict("username already taken")
		} else if err != nil && err != gorm.ErrRecordNotFound {
			return nil, huma.Error500InternalServerError("database error: " + err.Error())
		}
		updates["username"] = input.Body.Username
	}
	if input.Body.Email != "" {
		if _, err := mail.ParseAddress(input.Body.Email); err != nil {
			return nil, huma.Error400BadRequest("invalid email format")
		}
		var existing models.User
		if err := h.db.Where("email = ?", input.Body.Email).First(&existing).Error; err == nil && existing.ID != input.ID {
			return nil, huma.Error409Conflict("email already taken")
		} else if err != nil && err != gorm.ErrRecordNotFound {
			return nil, huma.Error500InternalServerError("database error: " + err.Error())
		}
		updates["email"] = input.Body.Email
	}
	if input.Body.Name != "" {
		updates["name"] = input.Body.Name
	}
	if input.Body.ProfilePicture != "" {
		updates["profile_picture"] = input.Body.ProfilePicture
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, huma.Error500InternalServerError("failed to update user: " + err.Error())
		}
	}
	if err := h.db.First(&user, input.ID).Error; err != nil {
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	res := &UpdateUserOutput{}
	res.Body.Status = "success"
	res.Body.Message = "user updated"
	res.Body.Data.User = auth.ToPublicUser(user)
	return res, nil
}

type DeleteUserInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type DeleteUserOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

func (h *UserHandler) HandleDelete(ctx context.Context, input *DeleteUserInput) (*DeleteUserOutput, error) {
	identity, err := h.authHandler.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if identity.UserID != input.ID {
		return nil, huma.Error403Forbidden("unauthorized to delete user")
	}

	var user models.User
	if err := h.db.First(&user, input.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("user not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	// Physical delete. A soft-deleted row would keep holding the unique
	// username/email indexes and block re-registration.
	if err := h.db.Unscoped().Delete(&user).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to delete user: " + err.Error())
	}

	res := &DeleteUserOutput{}
	res.Body.Status = "success"
	res.Body.Message = "user deleted"
	return res, nil
}
