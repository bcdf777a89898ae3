// Package auth provides the token-to-identity capability for the API:
// register/login glue issuing JWT bearer tokens and middleware resolving
// them back to a user id.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/entities"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrUserExists   = errors.New("username or email already registered")
)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Service handles user registration, login and token verification.
type Service struct {
	db     *gorm.DB
	secret []byte
	expiry time.Duration
	cost   int
	now    func() time.Time
}

// NewService creates an auth service. When no secret is configured a random
// one is generated, which invalidates outstanding tokens across restarts.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		secret = hex.EncodeToString(buf)
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = 12
	}
	return &Service{
		db:     db,
		secret: []byte(secret),
		expiry: cfg.TokenExpiry,
		cost:   cost,
		now:    time.Now,
	}
}

// Register creates a user account.
func (s *Service) Register(username, email, password string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required")
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	var existing entities.User
	err = s.db.Where("username = ? OR email = ?", username, email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user := &entities.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(username, password string) (*entities.User, string, error) {
	var user entities.User
	err := s.db.Where("username = ? OR email = ?", username, strings.ToLower(username)).
		First(&user).Error
	if err != nil {
		return nil, "", ErrUnauthorized
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, "", ErrUnauthorized
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// IssueToken signs a bearer token for the user.
func (s *Service) IssueToken(userID uint) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken resolves a bearer token to the user id it was issued for.
func (s *Service) VerifyToken(tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return 0, ErrUnauthorized
	}
	return claims.UserID, nil
}
