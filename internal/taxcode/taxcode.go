package taxcode

import (
	"time"

	"github.com/shopspring/decimal"

	taxcodeDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/taxcode"
)

// TaxCode is a deduction code an SPM line may reference, e.g. PPH21 or PPN.
type TaxCode struct {
	ID          int64            `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	DefaultRate *decimal.Decimal `json:"default_rate,omitempty"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func ToDataModel(t *TaxCode) *taxcodeDatamodel.TaxCode {
	return &taxcodeDatamodel.TaxCode{
		ID:          t.ID,
		Code:        t.Code,
		Name:        t.Name,
		DefaultRate: t.DefaultRate,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func FromDataModel(t *taxcodeDatamodel.TaxCode) *TaxCode {
	return &TaxCode{
		ID:          t.ID,
		Code:        t.Code,
		Name:        t.Name,
		DefaultRate: t.DefaultRate,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
