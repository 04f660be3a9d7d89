package sp2d

import (
	"strings"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/core/common/validation"
)

type CreateSP2DDTO struct {
	SPMID int64 `json:"spm_id"`
}

func (dto CreateSP2DDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("spm_id", dto.SPMID).Required().MinInt(1, internal.ErrCodeValidationFailed)
	return v.Validate()
}

type ReleaseDTO struct {
	OTP string `json:"otp"`
}

// BankCallbackDTO is the bank integration's confirmation payload.
type BankCallbackDTO struct {
	NomorSP2D     string `json:"nomor_sp2d"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (dto BankCallbackDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("nomor_sp2d", dto.NomorSP2D).Required().MaxLength(64)
	v.Field("status", dto.Status).Required().OneOf(internal.ErrCodeValidationFailed, BankSuccess, BankFailed)
	v.Field("reference", dto.Reference).MaxLength(128)
	if dto.Status == BankSuccess {
		v.Field("reference", dto.Reference).Required()
	}
	if dto.Status == BankFailed {
		v.Field("failure_reason", strings.TrimSpace(dto.FailureReason)).Required().MaxLength(500)
	}
	return v.Validate()
}

// ListFilter scopes SP2D by the owner and OPD of the SPM they were drawn from.
type ListFilter struct {
	Status  string
	OwnerID *int64
	OPDID   *int64
	Limit   int
	Offset  int
}

type ListResult struct {
	Items  []*SP2D `json:"items"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
