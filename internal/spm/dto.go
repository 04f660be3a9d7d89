package spm

import (
	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type DeductionDTO struct {
	KodePajak  string           `json:"kode_pajak" validate:"required,max=32"`
	Tarif      *decimal.Decimal `json:"tarif,omitempty"`
	NilaiTetap *int64           `json:"nilai_tetap,omitempty"`
}

type CreateSPMDTO struct {
	JenisSPM     string         `json:"jenis_spm" validate:"required,oneof=LS GU UP TU"`
	Uraian       string         `json:"uraian" validate:"required,max=2000"`
	NamaPenerima string         `json:"nama_penerima" validate:"required,max=255"`
	NilaiSPM     int64          `json:"nilai_spm" validate:"required,min=1"`
	Potongan     []DeductionDTO `json:"potongan" validate:"dive"`
}

func (dto CreateSPMDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

// UpdateSPMDTO replaces every editable field, deductions included.
type UpdateSPMDTO = CreateSPMDTO

type VerifyDTO struct {
	ActingRole string `json:"acting_role" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=approve revise"`
	Catatan    string `json:"catatan" validate:"max=2000"`
	NomorSPM   string `json:"nomor_spm,omitempty" validate:"max=64"`
	PIN        string `json:"pin,omitempty"`
}

func (dto VerifyDTO) Validate() *internal.AppError {
	if err := validation.Struct(dto); err != nil {
		if appErr := actionError(dto.Action); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func actionError(action string) *internal.AppError {
	if action != "" && action != string(ActionApprove) && action != string(ActionRevise) {
		return internal.ErrInvalidAction
	}
	return nil
}

type ListFilter struct {
	Status   string
	OwnerID  *int64
	OPDID    *int64
	NonDraft bool
	Limit    int
	Offset   int
}

type ListResult struct {
	Items  []*SPM `json:"items"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
