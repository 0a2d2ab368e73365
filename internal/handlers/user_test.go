package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"gorm.io/gorm"
)

func userFixture(t *testing.T) (*gorm.DB, *auth.AuthHandler, *UserHandler, models.User, models.User) {
	t.Helper()
	db := newTestDB(t)
	authHandler := auth.NewAuthHandler(testConfig(), db)
	handler := NewUserHandler(db, authHandler)

	userA := models.User{Name: "Alice", Username: "alice", Email: "alice@example.com"}
	if err := db.Create(&userA).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	userB := models.User{Name: "Bob", Username: "bob", Email: "bob@example.com"}
	if err := db.Create(&userB).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return db, authHandler, handler, userA, userB
}

func TestUserList(t *testing.T) {
	_, authHandler, handler, userA, _ := userFixture(t)
	ctx := context.Background()

	input := &ListUsersInput{}
	input.Authorization = bearer(t, authHandler, userA)
	resp, err := handler.HandleList(ctx, input)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Body.Data.Users) != 2 {
		t.Errorf("expected 2 users, got %d", len(resp.Body.Data.Users))
	}

	_, err = handler.HandleList(ctx, &ListUsersInput{})
	assertHumaError(t, err, http.StatusUnauthorized, "unauthorized access")
}

func TestUserUpdateSelfOnly(t *testing.T) {
	db, authHandler, handler, userA, userB := userFixture(t)
	ctx := context.Background()

	input := &UpdateUserInput{ID: userB.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Name = "Mallory"
	_, err := handler.HandleUpdate(ctx, input)
	assertHumaError(t, err, http.StatusForbidden, "unauthorized to update user")

	input = &UpdateUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Name = "Alice Smith"
	resp, err := handler.HandleUpdate(ctx, input)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if resp.Body.Data.User.Name != "Alice Smith" {
		t.Errorf("expected updated name, got %q", resp.Body.Data.User.Name)
	}
	// Untouched fields survive a partial update.
	if resp.Body.Data.User.Username != "alice" || resp.Body.Data.User.Email != "alice@example.com" {
		t.Errorf("unexpected user after update: %+v", resp.Body.Data.User)
	}

	var stored models.User
	if err := db.First(&stored, userA.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if stored.Name != "Alice Smith" {
		t.Errorf("update not persisted, got %q", stored.Name)
	}
}

func TestUserUpdateUniqueness(t *testing.T) {
	_, authHandler, handler, userA, _ := userFixture(t)
	ctx := context.Background()

	input := &UpdateUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Username = "bob"
	_, err := handler.HandleUpdate(ctx, input)
	assertHumaError(t, err, http.StatusConflict, "username already taken")

	input = &UpdateUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Email = "bob@example.com"
	_, err = handler.HandleUpdate(ctx, input)
	assertHumaError(t, err, http.StatusConflict, "email already taken")

	input = &UpdateUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Email = "not-an-email"
	_, err = handler.HandleUpdate(ctx, input)
	assertHumaError(t, err, http.StatusBadRequest, "invalid email format")

	// Setting a field to its current value is not a conflict.
	input = &UpdateUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	input.Body.Username = "alice"
	if _, err := handler.HandleUpdate(ctx, input); err != nil {
		t.Fatalf("self-same username update failed: %v", err)
	}
}

func TestUserDelete(t *testing.T) {
	db, authHandler, handler, userA, userB := userFixture(t)
	ctx := context.Background()

	input := &DeleteUserInput{ID: userB.ID}
	input.Authorization = bearer(t, authHandler, userA)
	_, err := handler.HandleDelete(ctx, input)
	assertHumaError(t, err, http.StatusForbidden, "unauthorized to delete user")

	input = &DeleteUserInput{ID: userA.ID}
	input.Authorization = bearer(t, authHandler, userA)
	if _, err := handler.HandleDelete(ctx, input); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.User{}).Unscoped().Where("id = ?", userA.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected user row removed")
	}
}

func TestUserDeleteFreesUsernameAndEmail(t *testing.T) {
	_, authHandler, handler, _, _ := userFixture(t)
	ctx := context.Background()

	register := &auth.RegisterInput{}
	register.Body.Name = "Carol"
	register.Body.Username = "carol"
	register.Body.Email = "carol@example.com"
	register.Body.Password = "secret123"
	registered, err := authHandler.HandleRegister(ctx, register)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	carolID := registered.Body.Data.User.ID

	input := &DeleteUserInput{ID: carolID}
	input.Authorization = bearer(t, authHandler, models.User{
		Model:    gorm.Model{ID: carolID},
		Name:     "Carol",
		Username: "carol",
		Email:    "carol@example.com",
		Role:     models.RoleUser,
	})
	if _, err := handler.HandleDelete(ctx, input); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// The deleted row must not keep holding the unique indexes.
	if _, err := authHandler.HandleRegister(ctx, register); err != nil {
		t.Fatalf("re-register after delete failed: %v", err)
	}
}
