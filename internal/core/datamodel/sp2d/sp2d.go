package sp2d

import (
	"time"

	"github.com/shopspring/decimal"
)

type SP2D struct {
	ID                   int64      `gorm:"primaryKey"`
	NomorSP2D            string     `gorm:"column:nomor_sp2d;uniqueIndex;not null"`
	SPMID                int64      `gorm:"column:spm_id;uniqueIndex;not null"`
	NilaiSP2D            int64      `gorm:"column:nilai_sp2d;not null"`
	NilaiDiterima        int64      `gorm:"column:nilai_diterima;not null"`
	Status               string     `gorm:"column:status;not null;index"`
	CreatedBy            int64      `gorm:"column:created_by;not null"`
	TanggalVerifikasiOTP *time.Time `gorm:"column:tanggal_verifikasi_otp"`
	VerifiedBy           *int64     `gorm:"column:verified_by"`
	OTPTestMode          bool       `gorm:"column:otp_test_mode;not null;default:false"`
	TanggalKirimBank     *time.Time `gorm:"column:tanggal_kirim_bank"`
	TanggalCair          *time.Time `gorm:"column:tanggal_cair"`
	BankReference        *string    `gorm:"column:bank_reference"`
	BankConfirmedAt      *time.Time `gorm:"column:bank_confirmed_at"`
	BankFailureReason    *string    `gorm:"column:bank_failure_reason"`

	Potongan []Potongan `gorm:"foreignKey:SP2DID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SP2D) TableName() string {
	return "sp2d"
}

type Potongan struct {
	ID         int64            `gorm:"primaryKey"`
	SP2DID     int64            `gorm:"column:sp2d_id;not null;index"`
	KodePajak  string           `gorm:"column:kode_pajak;not null"`
	Tarif      *decimal.Decimal `gorm:"column:tarif;type:numeric(7,4)"`
	NilaiTetap *int64           `gorm:"column:nilai_tetap"`
	Nilai      int64            `gorm:"column:nilai;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Potongan) TableName() string {
	return "sp2d_potongan"
}
