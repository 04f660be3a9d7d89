package auth

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/spm-sp2d/internal"
	"golang.org/x/crypto/bcrypt"
)

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	roles          RoleLoader
	tokenGenerator TokenGeneratorAPI
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, roles RoleLoader, tokenGen TokenGeneratorAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		roles:          roles,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.repo.GetCredentials(ctx, dto.Email)
	if err != nil {
		s.logger.Warn("login failed: unknown email", "email", dto.Email)
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("login failed: password mismatch", "user_id", creds.UserID)
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if !creds.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	return s.issueTokens(strconv.FormatInt(creds.UserID, 10), dto.Email)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	info, err := s.repo.GetUserInfo(ctx, userID)
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	if !info.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	return s.issueTokens(claims.UserID, info.Email)
}

func (s *Service) issueTokens(userID, email string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GetUserWithRoles loads the principal and its role assignments. Inactive users are refused.
func (s *Service) GetUserWithRoles(ctx context.Context, userID int64) (*User, error) {
	info, err := s.repo.GetUserInfo(ctx, userID)
	if err != nil {
		return nil, internal.ErrInvalidToken.WithCause(err)
	}
	if !info.IsActive {
		return nil, internal.ErrUserInactive
	}

	roles, err := s.roles.RolesFor(ctx, userID)
	if err != nil {
		return nil, internal.NewPersistenceError("load roles", err)
	}

	return &User{
		ID:    info.ID,
		Email: info.Email,
		Name:  info.Name,
		Roles: roles,
	}, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
