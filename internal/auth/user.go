package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserWithRoles(ctx context.Context, userID int64) (*User, error)
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error)
}

// RoleLoader is satisfied by role.Directory.
type RoleLoader interface {
	RolesFor(ctx context.Context, userID int64) (role.Set, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID string, email string) (token string, err error)
	GenerateRefreshToken(userID string, email string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// User is the authenticated principal attached to every request context.
type User struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles role.Set `json:"roles"`
}

func (u *User) HasRole(r role.Role) bool {
	return u.Roles.Has(r)
}

func (u *User) HasAnyRole(roles ...role.Role) bool {
	return u.Roles.HasAny(roles...)
}

func (u *User) IsAdmin() bool {
	return u.Roles.IsAdmin()
}

// OPDID returns the OPD the user works for as bendahara, if any.
func (u *User) OPDID() *int64 {
	return u.Roles.OPDFor(role.BendaharaOPD)
}

type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

type UserInfo struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Phone     *string   `db:"phone"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
