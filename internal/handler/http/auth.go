package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/service"
)

// 出生日期接受纯日期或 RFC3339
var birthDateLayouts = []string{"2006-01-02", time.RFC3339}

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService}
}

// RegisterRequest 定义注册请求的结构体
type RegisterRequest struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	BirthDate   string `json:"birthDate"`
	PhoneNumber string `json:"phoneNumber" binding:"max=32"`
	Role        string `json:"role" binding:"required,oneof=teacher student"`
}

// AuthResponse 注册与登录成功后的响应
type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Register: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	birthDate, ok := parseBirthDate(req.BirthDate)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "Invalid birthDate")
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		BirthDate:   birthDate,
		PhoneNumber: req.PhoneNumber,
		Role:        domain.Role(req.Role),
	})
	if err != nil {
		logrus.WithError(err).WithField("email", req.Email).Warn("Handler.Register: Registration failed")
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", user.ID).Info("Handler.Register: User registered successfully")
	SuccessResponse(c, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// LoginRequest 定义登录请求的结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Login: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: email and password required"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", user.ID).Info("Handler.Login: User logged in successfully")
	SuccessResponse(c, http.StatusOK, AuthResponse{User: user, Token: token})
}

func parseBirthDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
