package taxcode

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaxCode struct {
	ID          int64            `gorm:"primaryKey"`
	Code        string           `gorm:"column:code;uniqueIndex;not null"`
	Name        string           `gorm:"column:name;not null"`
	DefaultRate *decimal.Decimal `gorm:"column:default_rate;type:numeric(7,4)"`
	IsActive    bool             `gorm:"column:is_active;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (TaxCode) TableName() string {
	return "tax_codes"
}
