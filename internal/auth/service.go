package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/signal-desk/internal/db"
	"github.com/david/signal-desk/internal/models"
)

const (
	DefaultTokenTTL   = 24 * time.Hour
	minPasswordLength = 8
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidInput = errors.New("email and a password of at least 8 characters are required")
)

type UserStore interface {
	CreateDeskUser(ctx context.Context, u *models.DeskUser) error
	GetDeskUserByEmail(ctx context.Context, email string) (*models.DeskUser, error)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      models.DeskUser `json:"user"`
}

// Claims carry the desk user's id as subject and email for audit fields.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService signs tokens with secret. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewService(store UserStore, secret string, ttl time.Duration, logger *zap.Logger) (*Service, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		key = []byte(base64.RawURLEncoding.EncodeToString(buf))
		if logger != nil {
			logger.Warn("JWT secret is not set; using ephemeral in-memory fallback secret")
		}
	}
	return &Service{store: store, secret: key, ttl: ttl, now: time.Now}, nil
}

// CreateUser registers a desk user. Only admins reach this.
func (s *Service) CreateUser(ctx context.Context, req Credentials) (*models.DeskUser, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || len(req.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	user := &models.DeskUser{Email: email, PasswordHash: string(hash)}
	if err := s.store.CreateDeskUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert failed: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) Login(ctx context.Context, req Credentials) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.GetDeskUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, exp, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, ExpiresAt: exp, User: *user}, nil
}

func (s *Service) generateToken(user *models.DeskUser) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a signed token and returns its claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidCreds
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidCreds
	}
	return claims, nil
}
