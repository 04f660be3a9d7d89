package sp2d

import (
	"fmt"
	"time"

	sp2dDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDiterbitkan Status = "diterbitkan"
	StatusDiujiBank   Status = "diuji_bank"
	StatusCair        Status = "cair"
	StatusGagal       Status = "gagal"
)

var AllStatuses = []Status{StatusPending, StatusDiterbitkan, StatusDiujiBank, StatusCair, StatusGagal}

// Bank callback outcomes.
const (
	BankSuccess = "success"
	BankFailed  = "failed"
)

const DocumentType = "sp2d"

type SP2D struct {
	ID                   int64           `json:"id"`
	NomorSP2D            string          `json:"nomor_sp2d"`
	SPMID                int64           `json:"spm_id"`
	NilaiSP2D            int64           `json:"nilai_sp2d"`
	NilaiDiterima        int64           `json:"nilai_diterima"`
	Status               Status          `json:"status"`
	CreatedBy            int64           `json:"created_by"`
	Potongan             []spm.Deduction `json:"potongan"`
	TanggalVerifikasiOTP *time.Time      `json:"tanggal_verifikasi_otp,omitempty"`
	VerifiedBy           *int64          `json:"verified_by,omitempty"`
	OTPTestMode          bool            `json:"otp_test_mode"`
	TanggalKirimBank     *time.Time      `json:"tanggal_kirim_bank,omitempty"`
	TanggalCair          *time.Time      `json:"tanggal_cair,omitempty"`
	BankReference        *string         `json:"bank_reference,omitempty"`
	BankConfirmedAt      *time.Time      `json:"bank_confirmed_at,omitempty"`
	BankFailureReason    *string         `json:"bank_failure_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func FromDataModel(m *sp2dDatamodel.SP2D) *SP2D {
	out := &SP2D{
		ID:                   m.ID,
		NomorSP2D:            m.NomorSP2D,
		SPMID:                m.SPMID,
		NilaiSP2D:            m.NilaiSP2D,
		NilaiDiterima:        m.NilaiDiterima,
		Status:               Status(m.Status),
		CreatedBy:            m.CreatedBy,
		Potongan:             make([]spm.Deduction, 0, len(m.Potongan)),
		TanggalVerifikasiOTP: m.TanggalVerifikasiOTP,
		VerifiedBy:           m.VerifiedBy,
		OTPTestMode:          m.OTPTestMode,
		TanggalKirimBank:     m.TanggalKirimBank,
		TanggalCair:          m.TanggalCair,
		BankReference:        m.BankReference,
		BankConfirmedAt:      m.BankConfirmedAt,
		BankFailureReason:    m.BankFailureReason,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	for _, p := range m.Potongan {
		out.Potongan = append(out.Potongan, spm.Deduction{
			ID:         p.ID,
			KodePajak:  p.KodePajak,
			Tarif:      p.Tarif,
			NilaiTetap: p.NilaiTetap,
			Nilai:      p.Nilai,
		})
	}
	return out
}

// fromSPM builds the pending SP2D for an approved SPM. Deductions are copied as they
// were approved, not recomputed.
func fromSPM(doc *spm.SPM, actorID int64, at time.Time) *sp2dDatamodel.SP2D {
	m := &sp2dDatamodel.SP2D{
		NomorSP2D:     GenerateNomor(doc, at),
		SPMID:         doc.ID,
		NilaiSP2D:     doc.NilaiSPM,
		NilaiDiterima: doc.NilaiBersih,
		Status:        string(StatusPending),
		CreatedBy:     actorID,
		Potongan:      make([]sp2dDatamodel.Potongan, 0, len(doc.Potongan)),
	}
	for _, d := range doc.Potongan {
		m.Potongan = append(m.Potongan, sp2dDatamodel.Potongan{
			KodePajak:  d.KodePajak,
			Tarif:      d.Tarif,
			NilaiTetap: d.NilaiTetap,
			Nilai:      d.Nilai,
		})
	}
	return m
}

// GenerateNomor derives the SP2D number from its SPM, which is unique per SP2D.
func GenerateNomor(doc *spm.SPM, at time.Time) string {
	return fmt.Sprintf("%05d/SP2D/%d/%d", doc.ID, doc.OPDID, at.Year())
}
