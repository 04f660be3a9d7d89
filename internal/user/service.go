package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	OPDsByID(ctx context.Context, ids []int64) (map[int64]*userDatamodel.OPD, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Profile returns the caller's account with each role resolved to its OPD.
func (s *Service) Profile(ctx context.Context, principal *auth.User) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, a := range principal.Roles {
		if a.OPDID != nil {
			ids = append(ids, *a.OPDID)
		}
	}
	opds := map[int64]*userDatamodel.OPD{}
	if len(ids) > 0 {
		opds, err = s.repo.OPDsByID(ctx, ids)
		if err != nil {
			return nil, internal.NewPersistenceError("load opd", err)
		}
	}

	p := FromDataModel(u)
	for _, a := range principal.Roles {
		view := RoleView{Role: a.Role, OPDID: a.OPDID}
		if a.OPDID != nil {
			if o, ok := opds[*a.OPDID]; ok {
				view.OPDKode = o.Kode
				view.OPDNama = o.Nama
			}
		}
		p.Roles = append(p.Roles, view)
	}
	return p, nil
}
