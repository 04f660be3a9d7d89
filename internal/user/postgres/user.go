package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/spm-sp2d/internal"
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := database.Conn(ctx, r.db).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) OPDsByID(ctx context.Context, ids []int64) (map[int64]*userDatamodel.OPD, error) {
	var rows []*userDatamodel.OPD
	if err := database.Conn(ctx, r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]*userDatamodel.OPD, len(rows))
	for _, o := range rows {
		out[o.ID] = o
	}
	return out, nil
}
