package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/internal/model"
)

// JWTClaims 自定义JWT载荷
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// GenerateToken 生成JWT Token
func GenerateToken(user model.User, cfg *config.Config) (string, error) {
	// 设置JWT声明
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.JWTExpireTime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.JWTIssuer,
			Subject:   user.Username,
		},
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}

	// 创建Token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))

	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken 解析JWT Token
func ParseToken(tokenString string, cfg *config.Config) (*JWTClaims, error) {
	// 解析Token
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	// 提取Claims
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的Token")
}

// JWTAuth JWT认证中间件
func JWTAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头或Cookie获取Token
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			// 尝试从Cookie获取
			cookie, err := c.Cookie("token")
			if err != nil {
				c.JSON(401, model.ErrorResponse(401, "未授权: 缺少Token"))
				c.Abort()
				return
			}
			tokenString = cookie
		} else {
			// 处理 Bearer Token
			if strings.HasPrefix(tokenString, "Bearer ") {
				tokenString = strings.TrimPrefix(tokenString, "Bearer ")
			}
		}

		// 解析Token
		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			c.JSON(401, model.ErrorResponse(401, "未授权: "+err.Error()))
			c.Abort()
			return
		}

		// 将用户信息保存到上下文中
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireAdmin 管理员权限中间件，维护操作（存档、关闭、重启、备份）仅管理员可用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCurrentRole(c) != model.RoleAdmin {
			c.JSON(403, model.ErrorResponse(403, "权限不足: 需要管理员角色"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentUserID 从上下文中获取当前用户ID
func GetCurrentUserID(c *gin.Context) uint {
	userID, _ := c.Get("user_id")
	uid, _ := userID.(uint)
	return uid
}

// GetCurrentUsername 从上下文中获取当前用户名
func GetCurrentUsername(c *gin.Context) string {
	username, _ := c.Get("username")
	name, _ := username.(string)
	return name
}

// GetCurrentRole 从上下文中获取当前用户角色
func GetCurrentRole(c *gin.Context) string {
	role, _ := c.Get("role")
	name, _ := role.(string)
	return name
}

// RefreshToken 刷新Token
func RefreshToken(c *gin.Context, cfg *config.Config) (string, error) {
	user := model.User{
		Username: GetCurrentUsername(c),
		Role:     GetCurrentRole(c),
	}
	user.ID = GetCurrentUserID(c)

	// 生成新Token
	return GenerateToken(user, cfg)
}
