// Package auth implements credential authentication: sign-up, sign-in, email
// verification, and password reset. Sessions are stateless JWT bearer tokens;
// the resolved core.Session is passed explicitly into every pipeline and
// store call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"notulio/internal/core"
	"notulio/internal/logger"
	"notulio/internal/store"
)

var (
	// ErrInvalidCredentials is returned for a wrong email/password pair
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a session token fails verification
	ErrInvalidToken = errors.New("invalid session token")
)

const minPasswordLength = 8

// Mailer delivers verification and password-reset emails. A nil mailer
// disables delivery (tokens are still issued).
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, link string) error
	SendPasswordResetEmail(ctx context.Context, to, name, link string) error
}

// Service wires the user store, token signing, and mail delivery together.
type Service struct {
	store     *store.Store
	mailer    Mailer
	jwtSecret []byte
	tokenTTL  time.Duration
	verifyTTL time.Duration
	siteURL   string
	log       *slog.Logger
}

// NewService creates an auth service.
func NewService(st *store.Store, mailer Mailer, jwtSecret string, tokenTTL, verifyTTL time.Duration, siteURL string) (*Service, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 168 * time.Hour
	}
	if verifyTTL <= 0 {
		verifyTTL = 24 * time.Hour
	}
	return &Service{
		store:     st,
		mailer:    mailer,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		verifyTTL: verifyTTL,
		siteURL:   strings.TrimRight(siteURL, "/"),
		log:       logger.Get(),
	}, nil
}

// SignUp registers a new account and issues a verification email. Signup
// succeeds even when mail delivery fails; the verification token can be
// reissued later.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, name, string(hash))
	if err != nil {
		return nil, err
	}

	token, err := s.store.CreateAuthToken(ctx, user.ID, store.TokenPurposeVerifyEmail, s.verifyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}

	if s.mailer != nil {
		link := s.siteURL + "/email-verified?token=" + token
		if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Name, link); err != nil {
			s.log.Warn("failed to send verification email", "email", user.Email, "error", err.Error())
		}
	}

	return user, nil
}

// SignIn checks the credentials and returns a signed session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *core.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.signToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) signToken(user *core.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies a bearer token and resolves it to a session.
func (s *Service) Authenticate(tokenString string) (*core.Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)

	return &core.Session{Subject: subject, Email: email}, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.store.ConsumeAuthToken(ctx, token, store.TokenPurposeVerifyEmail)
	if err != nil {
		return err
	}
	return s.store.MarkEmailVerified(ctx, userID)
}

// RequestPasswordReset issues a reset token and emails it. Unknown addresses
// are ignored so the endpoint cannot be used for account enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.store.CreateAuthToken(ctx, user.ID, store.TokenPurposeResetPassword, s.verifyTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if s.mailer != nil {
		link := s.siteURL + "/reset-password?token=" + token
		if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, link); err != nil {
			s.log.Warn("failed to send password reset email", "email", user.Email, "error", err.Error())
		}
	}

	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	userID, err := s.store.ConsumeAuthToken(ctx, token, store.TokenPurposeResetPassword)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, userID, string(hash))
}
