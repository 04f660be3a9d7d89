package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/spm-sp2d/internal/auth"
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var _ auth.RepositoryAPI = (*Repository)(nil)

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "password_hash", "is_active").
		Where("email = ?", email).
		Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       u.ID,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}, nil
}

func (r *Repository) GetUserInfo(ctx context.Context, userID int64) (*auth.UserInfo, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Take(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &auth.UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}, nil
}
