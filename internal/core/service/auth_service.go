package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

const minPasswordLength = 8

// Claims carried by access tokens.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	Secret        []byte
	TokenTTL      time.Duration
	MaxFailures   int
	LockoutWindow time.Duration
	BcryptCost    int
}

type AuthService struct {
	users  port.UserRepository
	locks  port.LockoutStore
	cfg    AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users port.UserRepository, locks port.LockoutStore, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = 15 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, locks: locks, cfg: cfg, logger: logger, now: time.Now}
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

// Login checks credentials. After MaxFailures misses within LockoutWindow
// the email is refused with ErrLockedOut until the window lapses.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	failures, err := s.locks.Failures(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lockout lookup: %w", err)
	}
	if failures >= s.cfg.MaxFailures {
		return nil, ErrLockedOut
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		n, err := s.locks.RecordFailure(ctx, email, s.cfg.LockoutWindow)
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		s.logger.Warn("failed login", zap.String("email", email), zap.Int("failures", n))
		if n >= s.cfg.MaxFailures {
			return nil, ErrLockedOut
		}
		return nil, ErrInvalidLogin
	}

	if err := s.locks.ResetFailures(ctx, email); err != nil {
		s.logger.Warn("reset login failures", zap.String("email", email), zap.Error(err))
	}

	token, expires, err := s.IssueToken(*user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: *user}, nil
}

// IssueToken signs an HS256 token for user.
func (s *AuthService) IssueToken(user domain.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies a token issued by IssueToken.
func (s *AuthService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Register creates a customer account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, domain.RoleCustomer)
}

// CreateAdmin creates an admin account, used by the CLI bootstrap.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, domain.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, invalid("Name is required")
	case !validEmail(email):
		return nil, invalid("Invalid email address")
	case len(in.Password) < minPasswordLength:
		return nil, invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	case in.Phone != "" && !domain.ValidPhone(in.Phone):
		return nil, invalid("Invalid phone number format")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
