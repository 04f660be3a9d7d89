package role

import (
	"context"
	"fmt"
	"log/slog"

	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	ListByUser(ctx context.Context, userID int64) ([]*userDatamodel.RoleAssignment, error)
	ListUserIDsByRole(ctx context.Context, r string) ([]int64, error)
	Assign(ctx context.Context, assignment *userDatamodel.RoleAssignment) error
}

// Directory answers who holds which role. It is read by the workflow engine on every
// transition and by the auth middleware on every request.
type Directory struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewDirectory(repo RepositoryAPI, logger *slog.Logger) *Directory {
	return &Directory{repo: repo, logger: logger}
}

func (d *Directory) RolesFor(ctx context.Context, userID int64) (Set, error) {
	rows, err := d.repo.ListByUser(ctx, userID)
	if err != nil {
		d.logger.Error("failed to load role assignments", "error", err, "user_id", userID)
		return nil, fmt.Errorf("load roles for user %d: %w", userID, err)
	}

	set := make(Set, 0, len(rows))
	for _, row := range rows {
		set = append(set, FromDataModel(row))
	}
	return set, nil
}

func (d *Directory) HasRole(ctx context.Context, userID int64, r Role) (bool, error) {
	set, err := d.RolesFor(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(r), nil
}

func (d *Directory) UsersWithRole(ctx context.Context, r Role) ([]int64, error) {
	ids, err := d.repo.ListUserIDsByRole(ctx, string(r))
	if err != nil {
		d.logger.Error("failed to list users by role", "error", err, "role", r)
		return nil, fmt.Errorf("list users with role %s: %w", r, err)
	}
	return ids, nil
}

func (d *Directory) Assign(ctx context.Context, a Assignment) error {
	if _, ok := Parse(string(a.Role)); !ok {
		return fmt.Errorf("unknown role %q", a.Role)
	}
	if err := d.repo.Assign(ctx, ToDataModel(a)); err != nil {
		return fmt.Errorf("assign role %s to user %d: %w", a.Role, a.UserID, err)
	}
	d.logger.Info("role assigned", "user_id", a.UserID, "role", a.Role, "opd_id", a.OPDID)
	return nil
}
