package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupUserAuthServiceTest(t *testing.T) (*UserAuthService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:user_auth_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{
		UserJWT: config.JWTConfig{SecretKey: "test-secret-key-0123456789abcdef", ExpireHours: 2},
	}
	return NewUserAuthService(cfg, repository.NewUserRepository(db)), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := setupUserAuthServiceTest(t)

	user, token, expiresAt, err := svc.Register("  Alice@Example.COM ", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.DisplayName != "alice" {
		t.Fatalf("display_name want alice got %s", user.DisplayName)
	}
	if user.Status != constants.UserStatusActive {
		t.Fatalf("status want active got %s", user.Status)
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Fatalf("password must be hashed")
	}
	if token == "" {
		t.Fatalf("token empty")
	}
	if time.Until(expiresAt) > 2*time.Hour || time.Until(expiresAt) < time.Hour {
		t.Fatalf("expires_at out of range: %v", expiresAt)
	}

	claims, err := svc.ParseUserJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	loggedIn, token2, _, err := svc.Login("alice@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loggedIn.ID != user.ID || token2 == "" {
		t.Fatalf("login result unexpected")
	}
	if loggedIn.LastLoginAt == nil {
		t.Fatalf("last_login_at not set")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupUserAuthServiceTest(t)

	if _, _, _, err := svc.Register("not-an-email", "password123"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad email want ErrInvalidEmail got %v", err)
	}
	if _, _, _, err := svc.Register("short@example.com", "1234567"); !errors.Is(err, ErrPasswordTooWeak) {
		t.Fatalf("short password want ErrPasswordTooWeak got %v", err)
	}

	if _, _, _, err := svc.Register("dup@example.com", "password123"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, _, _, err := svc.Register("DUP@example.com", "password123"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate email want ErrEmailExists got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, db := setupUserAuthServiceTest(t)

	if _, _, _, err := svc.Register("carol@example.com", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, _, _, err := svc.Login("carol@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password want ErrInvalidCredentials got %v", err)
	}
	if _, _, _, err := svc.Login("nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email want ErrInvalidCredentials got %v", err)
	}

	if err := db.Model(&models.User{}).Where("email = ?", "carol@example.com").
		Update("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("disable user failed: %v", err)
	}
	if _, _, _, err := svc.Login("carol@example.com", "password123"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("disabled user want ErrUserDisabled got %v", err)
	}
}

func TestParseUserJWTRejectsTamperedToken(t *testing.T) {
	svc, _ := setupUserAuthServiceTest(t)

	_, token, _, err := svc.Register("dave@example.com", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	other := NewUserAuthService(&config.Config{
		UserJWT: config.JWTConfig{SecretKey: "another-secret-key-xxxxxxxxxxxxx", ExpireHours: 2},
	}, nil)
	if _, err := other.ParseUserJWT(token); err == nil {
		t.Fatalf("token signed with different secret must fail")
	}
	if _, err := svc.ParseUserJWT(token + "x"); err == nil {
		t.Fatalf("tampered token must fail")
	}
}
