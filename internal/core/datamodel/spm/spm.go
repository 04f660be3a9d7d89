package spm

import (
	"time"

	"github.com/shopspring/decimal"
)

type SPM struct {
	ID           int64   `gorm:"primaryKey"`
	NomorSPM     *string `gorm:"column:nomor_spm;uniqueIndex"`
	OPDID        int64   `gorm:"column:opd_id;not null;index"`
	CreatedBy    int64   `gorm:"column:created_by;not null;index"`
	JenisSPM     string  `gorm:"column:jenis_spm;not null"`
	Uraian       string  `gorm:"column:uraian;not null"`
	NamaPenerima string  `gorm:"column:nama_penerima;not null"`
	NilaiSPM     int64   `gorm:"column:nilai_spm;not null"`
	NilaiBersih  int64   `gorm:"column:nilai_bersih;not null"`
	Status       string  `gorm:"column:status;not null;index"`

	VerifiedByResepsionis *int64     `gorm:"column:verified_by_resepsionis"`
	TanggalResepsionis    *time.Time `gorm:"column:tanggal_resepsionis"`
	CatatanResepsionis    *string    `gorm:"column:catatan_resepsionis"`

	VerifiedByPBMD *int64     `gorm:"column:verified_by_pbmd"`
	TanggalPBMD    *time.Time `gorm:"column:tanggal_pbmd"`
	CatatanPBMD    *string    `gorm:"column:catatan_pbmd"`

	VerifiedByAkuntansi *int64     `gorm:"column:verified_by_akuntansi"`
	TanggalAkuntansi    *time.Time `gorm:"column:tanggal_akuntansi"`
	CatatanAkuntansi    *string    `gorm:"column:catatan_akuntansi"`

	VerifiedByPerbendaharaan *int64     `gorm:"column:verified_by_perbendaharaan"`
	TanggalPerbendaharaan    *time.Time `gorm:"column:tanggal_perbendaharaan"`
	CatatanPerbendaharaan    *string    `gorm:"column:catatan_perbendaharaan"`

	VerifiedByKepalaBKAD *int64     `gorm:"column:verified_by_kepala_bkad"`
	TanggalKepalaBKAD    *time.Time `gorm:"column:tanggal_kepala_bkad"`
	CatatanKepalaBKAD    *string    `gorm:"column:catatan_kepala_bkad"`

	TanggalAjuan      *time.Time `gorm:"column:tanggal_ajuan"`
	TanggalDisetujui  *time.Time `gorm:"column:tanggal_disetujui"`
	EmergencyApproval bool       `gorm:"column:emergency_approval;not null;default:false"`
	EmergencyReason   *string    `gorm:"column:emergency_reason"`

	Potongan []Potongan `gorm:"foreignKey:SPMID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SPM) TableName() string {
	return "spm"
}

// Potongan is one deduction line. Exactly one of Tarif (percent of gross) or NilaiTetap is set.
type Potongan struct {
	ID         int64            `gorm:"primaryKey"`
	SPMID      int64            `gorm:"column:spm_id;not null;index"`
	KodePajak  string           `gorm:"column:kode_pajak;not null"`
	Tarif      *decimal.Decimal `gorm:"column:tarif;type:numeric(7,4)"`
	NilaiTetap *int64           `gorm:"column:nilai_tetap"`
	Nilai      int64            `gorm:"column:nilai;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Potongan) TableName() string {
	return "spm_potongan"
}

// StageEvent is the append-only record of one workflow transition.
type StageEvent struct {
	ID         int64     `gorm:"primaryKey"`
	SPMID      int64     `gorm:"column:spm_id;not null;index"`
	Stage      string    `gorm:"column:stage;not null"`
	ActorID    int64     `gorm:"column:actor_id;not null"`
	ActorRole  string    `gorm:"column:actor_role;not null"`
	Action     string    `gorm:"column:action;not null"`
	FromStatus string    `gorm:"column:from_status;not null"`
	ToStatus   string    `gorm:"column:to_status;not null"`
	Note       *string   `gorm:"column:note"`
	Bypass     bool      `gorm:"column:bypass;not null;default:false"`
	BypassNote *string   `gorm:"column:bypass_reason"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (StageEvent) TableName() string {
	return "spm_stage_events"
}
