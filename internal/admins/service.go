package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigmalabbd/labstore-backend/internal/rbac"
	"github.com/sigmalabbd/labstore-backend/pkg/auth"
	"github.com/sigmalabbd/labstore-backend/pkg/auth/session"
	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/db/models"
	pkgerrors "github.com/sigmalabbd/labstore-backend/pkg/errors"
	"github.com/sigmalabbd/labstore-backend/pkg/logger"
	"github.com/sigmalabbd/labstore-backend/pkg/security"
)

// LoginResult carries the minted token pair and the authenticated identity.
type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	AdminID      uuid.UUID       `json:"admin_id"`
	FullName     string          `json:"full_name"`
	Role         rbac.Role       `json:"role"`
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// Service authenticates back-office users.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, accessID string) error
	CreateAdmin(ctx context.Context, input CreateAdminInput) (*models.AdminUser, error)
}

// CreateAdminInput is the payload for provisioning a back-office user.
type CreateAdminInput struct {
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=10"`
	FullName string    `json:"full_name" validate:"required"`
	Role     rbac.Role `json:"role" validate:"required"`
}

type service struct {
	db       *gorm.DB
	sessions sessionManager
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

// Params collects the dependencies for NewService.
type Params struct {
	DB       *gorm.DB
	Sessions sessionManager
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

// NewService builds the admin auth service.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if p.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:       p.DB,
		sessions: p.Sessions,
		jwtCfg:   p.JWT,
		pwCfg:    p.Password,
		logg:     p.Logger,
		now:      time.Now,
	}, nil
}

// Login verifies credentials and mints an access/refresh pair. Failures are
// uniformly unauthorized so probing cannot distinguish unknown emails.
func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	var admin models.AdminUser
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading admin user")
	}
	if !admin.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	result, err := s.mintFor(ctx, &admin)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", admin.ID).
		Update("last_login_at", now).Error; err != nil {
		actx := s.logg.WithAdminID(ctx, admin.ID.String())
		s.logg.Warn(actx, "recording last login failed: "+err.Error())
	}
	return result, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	claims, err := auth.ParseExpiredAccessToken(s.jwtCfg, accessToken)
	if err != nil {
		return nil, err
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	token, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		AdminID: claims.AdminID,
		Role:    claims.Role,
		JTI:     newAccessID,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  token,
		RefreshToken: newRefresh,
		AdminID:      claims.AdminID,
		Role:         rbac.Role(claims.Role),
	}, nil
}

// Logout revokes the session tied to the access token's jti.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id is required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

// CreateAdmin provisions a back-office user with a hashed password.
func (s *service) CreateAdmin(ctx context.Context, input CreateAdminInput) (*models.AdminUser, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || strings.TrimSpace(input.FullName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and full name are required")
	}
	if len(input.Password) < 10 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 10 characters")
	}
	if !rbac.Valid(input.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	admin := &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         string(input.Role),
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating admin user")
	}
	return admin, nil
}

func (s *service) mintFor(ctx context.Context, admin *models.AdminUser) (*LoginResult, error) {
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		AdminID: admin.ID,
		Role:    admin.Role,
		JTI:     accessID,
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating session")
	}

	return &LoginResult{
		AccessToken:  token,
		RefreshToken: refresh,
		AdminID:      admin.ID,
		FullName:     admin.FullName,
		Role:         rbac.Role(admin.Role),
	}, nil
}
