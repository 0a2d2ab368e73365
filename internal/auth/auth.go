package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/config"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthInput is embedded by every protected operation's input struct so the
// bearer credential shows up in the OpenAPI schema and reaches Authorize.
type AuthInput struct {
	Authorization string `header:"Authorization" doc:"Bearer access token"`
}

// Identity is the resolved caller, as carried in the access-token claims.
type Identity struct {
	UserID   uint
	Name     string
	Username string
	Email    string
	Role     string
}

func (i *Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

type AuthHandler struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{cfg: cfg, db: db}
}

func (h *AuthHandler) accessTTL() time.Duration {
	return time.Duration(h.cfg.AccessTokenTTLMin) * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	return time.Duration(h.cfg.RefreshTokenTTLHours) * time.Hour
}

func (h *AuthHandler) GenerateAccessToken(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID,
		"name":     user.Name,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
		"exp":      time.Now().Add(h.accessTTL()).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.AccessTokenSecret))
}

func (h *AuthHandler) GenerateRefreshToken(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"id":  user.ID,
		"exp": time.Now().Add(h.refreshTTL()).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.RefreshTokenSecret))
}

func (h *AuthHandler) parseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Authorize resolves the Authorization header to a caller identity. A missing
// credential is a 401; a bad or expired one is a 403, matching the error
// taxonomy used across the API.
func (h *AuthHandler) Authorize(ctx context.Context, authorization string) (*Identity, error) {
	if authorization == "" {
		return nil, huma.Error401Unauthorized("unauthorized access")
	}
	tokenString := strings.TrimPrefix(authorization, "Bearer ")
	tokenString = strings.TrimPrefix(tokenString, "bearer ")

	claims, err := h.parseToken(tokenString, h.cfg.AccessTokenSecret)
	if err != nil {
		return nil, huma.Error403Forbidden("jwt expired")
	}

	id, ok := claims["id"].(float64)
	if !ok {
		return nil, huma.Error403Forbidden("invalid token claims")
	}
	identity := &Identity{UserID: uint(id)}
	identity.Name, _ = claims["name"].(string)
	identity.Username, _ = claims["username"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.Role, _ = claims["role"].(string)
	return identity, nil
}

// RequireAdmin is used by catalog mutation operations.
func (h *AuthHandler) RequireAdmin(identity *Identity) error {
	if !identity.IsAdmin() {
		return huma.Error403Forbidden("access forbidden: admin only")
	}
	return nil
}

// PublicUser is the serializable subset of a user record.
type PublicUser struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
	Role           string `json:"role"`
}

func ToPublicUser(u models.User) PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
	}
}

type RegisterInput struct {
	Body struct {
		Name     string `json:"name" required:"true"`
		Username string `json:"username" required:"true"`
		Email    string `json:"email" required:"true"`
		Password string `json:"password" required:"true"`
	}
}

type RegisterOutput struct {
	Status int
	Body   struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			User PublicUser `json:"user"`
		} `json:"data"`
	}
}

func (h *AuthHandler) HandleRegister(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
	if _, err := mail.ParseAddress(input.Body.Email); err != nil {
		return nil, huma.Error400BadRequest("invalid email format")
	}

	var existing models.User
	if err := h.db.Where("username = ?", input.Body.Username).First(&existing).Error; err == nil {
		return nil, huma.Error409Conflict("username already exist")
	} else if err != gorm.ErrRecordNotFound {
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}
	if err := h.db.Where("email = ?", input.Body.Email).First(&existing).Error; err == nil {
		return nil, huma.Error409Conflict("email already exist")
	} else if err != gorm.ErrRecordNotFound {
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Body.Password), h.cfg.BcryptCost)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to hash password")
	}

	user := models.User{
		Name:           input.Body.Name,
		Username:       input.Body.Username,
		Email:          input.Body.Email,
		Password:       string(hashed),
		ProfilePicture: avatarURL(input.Body.Name),
		Role:           models.RoleUser,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to create user: " + err.Error())
	}

	res := &RegisterOutput{Status: http.StatusCreated}
	res.Body.Status = "success"
	res.Body.Message = "user registered"
	res.Body.Data.User = ToPublicUser(user)
	return res, nil
}

// avatarURL derives a default profile picture from the display name.
func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" required:"true"`
		Password string `json:"password" required:"true"`
	}
}

type LoginOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
}

func (h *AuthHandler) HandleLogin(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	var user models.User
	if err := h.db.Where("email = ?", input.Body.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, huma.Error404NotFound("user not found")
		}
		return nil, huma.Error500InternalServerError("database error: " + err.Error())
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Body.Password)) != nil {
		return nil, huma.Error401Unauthorized("password wrong")
	}

	accessToken, err := h.GenerateAccessToken(user)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}
	refreshToken, err := h.GenerateRefreshToken(user)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	if err := h.db.Model(&user).Update("refresh_token", refreshToken).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to store refresh token")
	}

	res := &LoginOutput{
		SetCookie: http.Cookie{
			Name:     "refreshToken",
			Value:    refreshToken,
			HttpOnly: true,
			Path:     "/",
			MaxAge:   int(h.refreshTTL().Seconds()),
		},
	}
	res.Body.Status = "success"
	res.Body.Message = "login success"
	res.Body.Data.Token = accessToken
	return res, nil
}

type RefreshInput struct {
	RefreshToken string `cookie:"refreshToken"`
}

type RefreshOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
}

func (h *AuthHandler) HandleRefresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
	if input.RefreshToken == "" {
		return nil, huma.Error401Unauthorized("unauthorized access")
	}

	var user models.User
	if err := h.db.Where("refresh_token = ?", input.RefreshToken).First(&user).Error; err != nil {
		return nil, huma.Error403Forbidden("invalid refresh token")
	}

	claims, err := h.parseToken(input.RefreshToken, h.cfg.RefreshTokenSecret)
	if err != nil {
		return nil, huma.Error403Forbidden("invalid refresh token")
	}
	if id, ok := claims["id"].(float64); !ok || uint(id) != user.ID {
		return nil, huma.Error403Forbidden("invalid refresh token")
	}

	accessToken, err := h.GenerateAccessToken(user)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	res := &RefreshOutput{}
	res.Body.Status = "success"
	res.Body.Message = "access token refreshed"
	res.Body.Data.Token = accessToken
	return res, nil
}

type LogoutInput struct {
	RefreshToken string `cookie:"refreshToken"`
}

type LogoutOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

func (h *AuthHandler) HandleLogout(ctx context.Context, input *LogoutInput) (*LogoutOutput, error) {
	res := &LogoutOutput{
		SetCookie: http.Cookie{
			Name:     "refreshToken",
			Value:    "",
			HttpOnly: true,
			Path:     "/",
			MaxAge:   -1,
		},
	}
	res.Body.Status = "success"
	res.Body.Message = "logout success"

	if input.RefreshToken == "" {
		return res, nil
	}

	var user models.User
	if err := h.db.Where("refresh_token = ?", input.RefreshToken).First(&user).Error; err != nil {
		return res, nil
	}
	if err := h.db.Model(&user).Update("refresh_token", "").Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to clear refresh token")
	}
	return res, nil
}

type MeInput struct {
	AuthInput
}

type MeOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			User PublicUser `json:"user"`
		} `json:"data"`
	}
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *MeInput) (*MeOutput, error) {
	identity, err := h.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.First(&user, identity.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("user not found")
	}

	res := &MeOutput{}
	res.Body.Status = "success"
	res.Body.Message = "profile retrieved"
	res.Body.Data.User = ToPublicUser(user)
	return res, nil
}

type UpdatePasswordInput struct {
	AuthInput
	Body struct {
		CurrentPassword string `json:"currentPassword" required:"true"`
		NewPassword     string `json:"newPassword" required:"true"`
	}
}

type UpdatePasswordOutput struct {
	Body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
}

func (h *AuthHandler) HandleUpdatePassword(ctx context.Context, input *UpdatePasswordInput) (*UpdatePasswordOutput, error) {
	identity, err := h.Authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.First(&user, identity.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("user not found")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Body.CurrentPassword)) != nil {
		return nil, huma.Error401Unauthorized("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Body.NewPassword), h.cfg.BcryptCost)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to hash password")
	}
	if err := h.db.Model(&user).Update("password", string(hashed)).Error; err != nil {
		return nil, huma.Error500InternalServerError("failed to update password")
	}

	res := &UpdatePasswordOutput{}
	res.Body.Status = "success"
	res.Body.Message = "password updated"
	return res, nil
}
