package handlers

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/config"
	"github.com/explore-metroplex/metroplex-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	// A second pool connection would get its own empty in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Tour{}, &models.Reservation{}, &models.Feedback{}); err != nil {
		t.Fatalf("failed to auto migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:    "test-secret",
		RefreshTokenSecret:   "test-refresh-secret",
		AccessTokenTTLMin:    60,
		RefreshTokenTTLHours: 24,
		BcryptCost:           bcrypt.MinCost,
	}
}

func bearer(t *testing.T, authHandler *auth.AuthHandler, user models.User) string {
	t.Helper()
	token, err := authHandler.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

// fakeStore implements storage.ObjectStore for tests.
type fakeStore struct {
	uploads    map[string][]byte
	deleted    []string
	failUpload bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}}
}

func (s *fakeStore) SignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return "https://signed.example/" + key, nil
}

func (s *fakeStore) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	if s.failUpload {
		return context.DeadlineExceeded
	}
	s.uploads[key] = body
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func assertHumaError(t *testing.T, err error, status int, detail string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	em, ok := err.(*huma.ErrorModel)
	if !ok {
		t.Fatalf("expected *huma.ErrorModel, got %T: %v", err, err)
	}
	if em.Status != status {
		t.Errorf("expected status %d, got %d (%v)", status, em.Status, err)
	}
	if detail != "" && em.Detail != detail {
		t.Errorf("expected detail %q, got %q", detail, em.Detail)
	}
}
