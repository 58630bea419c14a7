package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		JWTExpireTime: time.Hour,
		JWTIssuer:     "arkconsole",
	}
}

func testUser(role string) model.User {
	user := model.User{
		Username: "alice",
		Role:     role,
	}
	user.ID = 42
	return user
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(testUser(model.RoleAdmin), cfg)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseToken(token, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != model.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != "arkconsole" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(testUser(model.RoleUser), cfg)
	if err != nil {
		t.Fatal(err)
	}

	other := testConfig()
	other.JWTSecret = "another-secret"
	if _, err := ParseToken(token, other); err == nil {
		t.Error("错误密钥签发的Token应被拒绝")
	}
}

func TestJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	r := gin.New()
	r.GET("/protected", JWTAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  GetCurrentUserID(c),
			"username": GetCurrentUsername(c),
			"role":     GetCurrentRole(c),
		})
	})

	// 无Token被拒绝
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("无Token状态码 = %d, 期望 401", w.Code)
	}

	// 带Bearer Token通过
	token, err := GenerateToken(testUser(model.RoleUser), cfg)
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set("role", c.Query("role"))
	}, RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin?role=admin", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("管理员状态码 = %d, 期望 200", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/admin?role=user", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("普通用户状态码 = %d, 期望 403", w.Code)
	}
}
