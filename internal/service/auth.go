package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository"
)

// AuthService 负责用户注册、登录与签发 JWT。
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// RegisterInput 是注册所需的全部字段。
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	BirthDate   time.Time
	PhoneNumber string
	Role        domain.Role
}

// NewAuthService 创建 AuthService 实例。jwtExpiryHours <= 0 时默认 24 小时。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 创建用户并直接返回登录 token。
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	email := normalizeEmail(in.Email)
	logCtx := logrus.WithFields(logrus.Fields{"email": email, "role": in.Role.String()})

	if email == "" || in.Password == "" || strings.TrimSpace(in.FirstName) == "" || !in.Role.Valid() {
		return nil, "", ErrInvalidInput
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, "", ErrInternalServer
	}

	user := &domain.User{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       email,
		Password:    hashedPassword,
		BirthDate:   in.BirthDate,
		PhoneNumber: in.PhoneNumber,
		Role:        in.Role,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: email already exists")
			return nil, "", ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, "", ErrInternalServer
	}

	token, err := s.generateJWT(user)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token after registration")
		return nil, "", ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	user.Password = ""
	return user, token, nil
}

// Login 校验邮箱与密码。任何失败都对外统一返回 ErrAuthenticationFailed。
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return nil, "", ErrAuthenticationFailed
	}
	if user == nil {
		return nil, "", ErrAuthenticationFailed
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return nil, "", ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return nil, "", ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	user.Password = ""
	return user, token, nil
}

// --- 私有辅助函数 ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateJWT 签发包含 user_id 与 role 的 HS256 token
func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
