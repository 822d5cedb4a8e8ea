// Package auth authenticates administrators with bcrypt passwords and
// revocable bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type AdminStore interface {
	FindAdmin(ctx context.Context, id string) (*models.AdminUser, error)
	FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
}

type Denylist interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Session struct {
	Token string            `json:"token"`
	Admin *models.AdminUser `json:"admin"`
}

// Principal is an authenticated request's admin and the token that proved it.
type Principal struct {
	Admin     *models.AdminUser
	TokenID   string
	ExpiresAt time.Time
}

type Service struct {
	admins   AdminStore
	denylist Denylist
	tokens   *TokenIssuer
	logger   *zap.Logger
}

func NewService(admins AdminStore, denylist Denylist, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		admins:   admins,
		denylist: denylist,
		tokens:   tokens,
		logger:   logger.Named("auth"),
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var problems []string
	switch {
	case email == "":
		problems = append(problems, "Email is required")
	case !emailPattern.MatchString(email):
		problems = append(problems, "Invalid email format")
	}
	if password == "" {
		problems = append(problems, "Password is required")
	}
	if len(problems) > 0 {
		return nil, apperr.Validation(problems[0], problems...)
	}

	admin, err := s.admins.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, apperr.Unexpected(err, "failed to load admin")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Rejected login", zap.String("email", email))
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	token, _, err := s.tokens.Issue(admin.ID)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to issue token")
	}

	s.logger.Info("Admin logged in", zap.String("admin_id", admin.ID))
	return &Session{Token: token, Admin: admin}, nil
}

// Authenticate verifies a bearer token and loads its admin. Revoked tokens and
// tokens of deleted admins are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, apperr.Unauthorized("No token, authorization denied")
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Unauthorized("Token is not valid")
	}

	revoked, err := s.denylist.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Unexpected(err, "failed to check token")
	}
	if revoked {
		return nil, apperr.Unauthorized("Token has been revoked")
	}

	admin, err := s.admins.FindAdmin(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Token is not valid")
		}
		return nil, apperr.Unexpected(err, "failed to load admin")
	}

	return &Principal{Admin: admin, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if err := s.denylist.RevokeToken(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return apperr.Unexpected(err, "failed to revoke token")
	}
	s.logger.Info("Admin logged out", zap.String("admin_id", p.Admin.ID))
	return nil
}
