package taxcode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/spm-sp2d/internal"
	taxcodeDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/taxcode"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
)

type RepositoryAPI interface {
	List(ctx context.Context, activeOnly bool) ([]*taxcodeDatamodel.TaxCode, error)
	GetByCode(ctx context.Context, code string) (*taxcodeDatamodel.TaxCode, error)
	Upsert(ctx context.Context, t *taxcodeDatamodel.TaxCode) error
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

var _ spm.TaxCodeChecker = (*Service)(nil)

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*TaxCode, error) {
	rows, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		s.logger.Error("failed to get tax codes from repository", "error", err)
		return nil, internal.NewPersistenceError("list tax codes", err)
	}

	out := make([]*TaxCode, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// IsActive reports whether code exists and may be used on new deductions. Codes are
// matched case-insensitively.
func (s *Service) IsActive(ctx context.Context, code string) (bool, error) {
	row, err := s.repo.GetByCode(ctx, normalize(code))
	if err != nil {
		s.logger.Warn("error checking tax code", "code", code, "error", err)
		return false, err
	}
	return row != nil && row.IsActive, nil
}

// Save creates or refreshes a code by its natural key.
func (s *Service) Save(ctx context.Context, t *TaxCode) error {
	t.Code = normalize(t.Code)
	row := ToDataModel(t)
	if err := s.repo.Upsert(ctx, row); err != nil {
		return internal.NewPersistenceError("save tax code", err)
	}
	t.ID = row.ID
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
