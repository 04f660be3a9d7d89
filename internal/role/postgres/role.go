package postgres

import (
	"context"

	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.RepositoryAPI {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) ListByUser(ctx context.Context, userID int64) ([]*userDatamodel.RoleAssignment, error) {
	var rows []*userDatamodel.RoleAssignment
	err := database.Conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *RoleRepository) ListUserIDsByRole(ctx context.Context, roleName string) ([]int64, error) {
	var ids []int64
	err := database.Conn(ctx, r.db).
		Model(&userDatamodel.RoleAssignment{}).
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("user_roles.role = ? AND users.is_active = ?", roleName, true).
		Distinct().
		Pluck("user_roles.user_id", &ids).Error
	return ids, err
}

func (r *RoleRepository) Assign(ctx context.Context, assignment *userDatamodel.RoleAssignment) error {
	return database.Conn(ctx, r.db).Create(assignment).Error
}
