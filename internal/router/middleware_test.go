package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/repository"
	"github.com/topup-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	// 未携带请求 ID 时自动生成
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id should be generated when absent")
	}
}

const testJWTSecret = "middleware-test-secret-0123456789"

func setupAuthMiddlewareTest(t *testing.T) (*gin.Engine, *service.UserAuthService, *models.User, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:middleware_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	authService := service.NewUserAuthService(&config.Config{
		UserJWT: config.JWTConfig{SecretKey: testJWTSecret, ExpireHours: 1},
	}, userRepo)

	user, _, _, err := authService.Register("mw@example.com", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	r := gin.New()
	r.GET("/me", UserJWTAuthMiddleware(testJWTSecret, userRepo), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r, authService, user, db
}

func doAuthedRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestUserJWTAuthMiddleware(t *testing.T) {
	r, authService, user, db := setupAuthMiddlewareTest(t)

	_, token, _, err := authService.Login("mw@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		w := doAuthedRequest(r, token)
		if w.Code != http.StatusOK {
			t.Fatalf("status want 200 got %d body %s", w.Code, w.Body.String())
		}
	})

	t.Run("missing header", func(t *testing.T) {
		w := doAuthedRequest(r, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status want 401 got %d", w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doAuthedRequest(r, "not-a-jwt")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status want 401 got %d", w.Code)
		}
	})

	t.Run("token version bump revokes", func(t *testing.T) {
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).
			Update("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
			t.Fatalf("bump token version failed: %v", err)
		}
		w := doAuthedRequest(r, token)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status want 401 got %d", w.Code)
		}
		// 恢复供后续用例使用
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).
			Update("token_version", user.TokenVersion).Error; err != nil {
			t.Fatalf("restore token version failed: %v", err)
		}
	})

	t.Run("disabled user rejected", func(t *testing.T) {
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).
			Update("status", constants.UserStatusDisabled).Error; err != nil {
			t.Fatalf("disable user failed: %v", err)
		}
		w := doAuthedRequest(r, token)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status want 401 got %d", w.Code)
		}
	})
}

func TestUserJWTAuthMiddlewareInvalidBefore(t *testing.T) {
	r, authService, user, db := setupAuthMiddlewareTest(t)

	_, token, _, err := authService.Login("mw@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// 把失效线推到未来，已签发的 Token 全部作废
	future := time.Now().Add(time.Hour)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("token_invalid_before", future).Error; err != nil {
		t.Fatalf("set invalid_before failed: %v", err)
	}
	w := doAuthedRequest(r, token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status want 401 got %d", w.Code)
	}
}
