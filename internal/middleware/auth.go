package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// Gin 上下文中保存认证信息的键
const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

// ErrMissingAuthHeader 表示请求中没有携带 token
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证 JWT token。
// WebSocket 握手无法自定义请求头，因此也接受 ?token= 查询参数。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Token is expired")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logrus.Errorf("Auth middleware: 'user_id' claim is missing or not a string: %v", claims["user_id"])
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token processing error: invalid user_id"})
			return
		}
		role, _ := claims["role"].(string)

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, domain.Role(role))
		logrus.WithFields(logrus.Fields{"user_id": userID, "role": role}).Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// RequireRole 必须放在 Auth 之后
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentRole(c) != role {
			logrus.WithFields(logrus.Fields{
				"user_id":       CurrentUserID(c),
				"required_role": role.String(),
			}).Warn("Forbidden: role mismatch")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("%s access required", role)})
			return
		}
		c.Next()
	}
}

// CurrentUserID 读取 Auth 写入的用户 ID，未认证时为空串
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

func CurrentRole(c *gin.Context) domain.Role {
	v, ok := c.Get(ContextRoleKey)
	if !ok {
		return domain.RoleUnset
	}
	role, _ := v.(domain.Role)
	return role
}

// extractToken 优先读取 Bearer 头，其次是 token 查询参数
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT，只接受 HMAC 签名
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
