package spm

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft                    Status = "draft"
	StatusDiajukan                 Status = "diajukan"
	StatusResepsionisVerifikasi    Status = "resepsionis_verifikasi"
	StatusPBMDVerifikasi           Status = "pbmd_verifikasi"
	StatusAkuntansiValidasi        Status = "akuntansi_validasi"
	StatusPerbendaharaanVerifikasi Status = "perbendaharaan_verifikasi"
	StatusKepalaBKADReview         Status = "kepala_bkad_review"
	StatusDisetujui                Status = "disetujui"
	StatusPerluRevisi              Status = "perlu_revisi"
)

// AllStatuses lists every status in workflow order, perlu_revisi last.
var AllStatuses = []Status{
	StatusDraft,
	StatusDiajukan,
	StatusResepsionisVerifikasi,
	StatusPBMDVerifikasi,
	StatusAkuntansiValidasi,
	StatusPerbendaharaanVerifikasi,
	StatusKepalaBKADReview,
	StatusDisetujui,
	StatusPerluRevisi,
}

func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusPerluRevisi
}

type Jenis string

const (
	JenisLS Jenis = "LS"
	JenisGU Jenis = "GU"
	JenisUP Jenis = "UP"
	JenisTU Jenis = "TU"
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionRevise  Action = "revise"
)

// Attachment categories the submission check looks for.
const (
	AttachmentDokumenSPM = "dokumen_spm"
	AttachmentKwitansi   = "kwitansi"
)

const DocumentType = "spm"

const minUraianLength = 10

type Deduction struct {
	ID         int64            `json:"id,omitempty"`
	KodePajak  string           `json:"kode_pajak"`
	Tarif      *decimal.Decimal `json:"tarif,omitempty"`
	NilaiTetap *int64           `json:"nilai_tetap,omitempty"`
	Nilai      int64            `json:"nilai"`
}

type StageAudit struct {
	VerifiedBy *int64     `json:"verified_by,omitempty"`
	Tanggal    *time.Time `json:"tanggal,omitempty"`
	Catatan    *string    `json:"catatan,omitempty"`
}

type SPM struct {
	ID           int64       `json:"id"`
	NomorSPM     *string     `json:"nomor_spm,omitempty"`
	OPDID        int64       `json:"opd_id"`
	CreatedBy    int64       `json:"created_by"`
	JenisSPM     Jenis       `json:"jenis_spm"`
	Uraian       string      `json:"uraian"`
	NamaPenerima string      `json:"nama_penerima"`
	NilaiSPM     int64       `json:"nilai_spm"`
	NilaiBersih  int64       `json:"nilai_bersih"`
	Status       Status      `json:"status"`
	Potongan     []Deduction `json:"potongan"`

	Resepsionis    StageAudit `json:"resepsionis"`
	PBMD           StageAudit `json:"pbmd"`
	Akuntansi      StageAudit `json:"akuntansi"`
	Perbendaharaan StageAudit `json:"perbendaharaan"`
	KepalaBKAD     StageAudit `json:"kepala_bkad"`

	TanggalAjuan      *time.Time `json:"tanggal_ajuan,omitempty"`
	TanggalDisetujui  *time.Time `json:"tanggal_disetujui,omitempty"`
	EmergencyApproval bool       `json:"emergency_approval"`
	EmergencyReason   *string    `json:"emergency_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TotalPotongan sums the deductions, saturating at math.MaxInt64.
func (s *SPM) TotalPotongan() int64 {
	total := decimal.Zero
	for _, d := range s.Potongan {
		total = total.Add(decimal.NewFromInt(d.Nilai))
	}
	if total.GreaterThan(maxRupiah) {
		return math.MaxInt64
	}
	return total.IntPart()
}

type StageEvent struct {
	ID         int64     `json:"id"`
	SPMID      int64     `json:"spm_id"`
	Stage      string    `json:"stage"`
	ActorID    int64     `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Note       *string   `json:"note,omitempty"`
	Bypass     bool      `json:"bypass"`
	BypassNote *string   `json:"bypass_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	hundred   = decimal.NewFromInt(100)
	maxRupiah = decimal.NewFromInt(math.MaxInt64)
	minRupiah = decimal.NewFromInt(math.MinInt64)
)

// ComputeDeductions resolves each line to a rupiah amount. A rate line deducts
// gross*rate/100 rounded half away from zero; a fixed line deducts its amount.
func ComputeDeductions(gross int64, lines []DeductionDTO) ([]Deduction, *internal.AppError) {
	var errs []internal.ValidationError
	out := make([]Deduction, 0, len(lines))

	for i, line := range lines {
		field := fmt.Sprintf("potongan[%d]", i)
		switch {
		case line.Tarif != nil && line.NilaiTetap != nil:
			errs = append(errs, internal.ValidationError{Field: field, Message: "set either tarif or nilai_tetap, not both", Code: string(internal.ErrCodeInvalidAmount)})
			continue
		case line.Tarif == nil && line.NilaiTetap == nil:
			errs = append(errs, internal.ValidationError{Field: field, Message: "tarif or nilai_tetap is required", Code: string(internal.ErrCodeInvalidAmount)})
			continue
		}

		d := Deduction{KodePajak: NormalizeKodePajak(line.KodePajak)}
		if line.Tarif != nil {
			rate := *line.Tarif
			if rate.IsNegative() || rate.GreaterThan(hundred) {
				errs = append(errs, internal.ValidationError{Field: field + ".tarif", Message: "tarif must be between 0 and 100", Code: string(internal.ErrCodeInvalidAmount)})
				continue
			}
			d.Tarif = &rate
			d.Nilai = decimal.NewFromInt(gross).Mul(rate).Div(hundred).Round(0).IntPart()
		} else {
			if *line.NilaiTetap < 0 {
				errs = append(errs, internal.ValidationError{Field: field + ".nilai_tetap", Message: "nilai_tetap must not be negative", Code: string(internal.ErrCodeInvalidAmount)})
				continue
			}
			fixed := *line.NilaiTetap
			d.NilaiTetap = &fixed
			d.Nilai = fixed
		}
		out = append(out, d)
	}

	if len(errs) > 0 {
		return nil, internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: errs})
	}
	return out, nil
}

// NetAmount is gross minus the sum of deductions. It may be negative; callers reject that.
func NetAmount(gross int64, deductions []Deduction) int64 {
	amounts := make([]int64, len(deductions))
	for i, d := range deductions {
		amounts[i] = d.Nilai
	}
	return netAfter(gross, amounts...)
}

// netAfter subtracts amounts from gross in decimal so huge deductions cannot wrap
// around into a positive net. Results below math.MinInt64 saturate.
func netAfter(gross int64, amounts ...int64) int64 {
	net := decimal.NewFromInt(gross)
	for _, a := range amounts {
		net = net.Sub(decimal.NewFromInt(a))
	}
	switch {
	case net.LessThan(minRupiah):
		return math.MinInt64
	case net.GreaterThan(maxRupiah):
		return math.MaxInt64
	}
	return net.IntPart()
}

// NormalizeKodePajak matches the form tax_codes.code is stored in.
func NormalizeKodePajak(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func FromDataModel(m *spmDatamodel.SPM) *SPM {
	s := &SPM{
		ID:           m.ID,
		NomorSPM:     m.NomorSPM,
		OPDID:        m.OPDID,
		CreatedBy:    m.CreatedBy,
		JenisSPM:     Jenis(m.JenisSPM),
		Uraian:       m.Uraian,
		NamaPenerima: m.NamaPenerima,
		NilaiSPM:     m.NilaiSPM,
		NilaiBersih:  m.NilaiBersih,
		Status:       Status(m.Status),
		Potongan:     make([]Deduction, 0, len(m.Potongan)),

		Resepsionis:    StageAudit{m.VerifiedByResepsionis, m.TanggalResepsionis, m.CatatanResepsionis},
		PBMD:           StageAudit{m.VerifiedByPBMD, m.TanggalPBMD, m.CatatanPBMD},
		Akuntansi:      StageAudit{m.VerifiedByAkuntansi, m.TanggalAkuntansi, m.CatatanAkuntansi},
		Perbendaharaan: StageAudit{m.VerifiedByPerbendaharaan, m.TanggalPerbendaharaan, m.CatatanPerbendaharaan},
		KepalaBKAD:     StageAudit{m.VerifiedByKepalaBKAD, m.TanggalKepalaBKAD, m.CatatanKepalaBKAD},

		TanggalAjuan:      m.TanggalAjuan,
		TanggalDisetujui:  m.TanggalDisetujui,
		EmergencyApproval: m.EmergencyApproval,
		EmergencyReason:   m.EmergencyReason,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	for _, p := range m.Potongan {
		s.Potongan = append(s.Potongan, Deduction{
			ID:         p.ID,
			KodePajak:  p.KodePajak,
			Tarif:      p.Tarif,
			NilaiTetap: p.NilaiTetap,
			Nilai:      p.Nilai,
		})
	}
	return s
}

func potonganToDataModel(deductions []Deduction) []spmDatamodel.Potongan {
	rows := make([]spmDatamodel.Potongan, 0, len(deductions))
	for _, d := range deductions {
		rows = append(rows, spmDatamodel.Potongan{
			KodePajak:  d.KodePajak,
			Tarif:      d.Tarif,
			NilaiTetap: d.NilaiTetap,
			Nilai:      d.Nilai,
		})
	}
	return rows
}

func EventFromDataModel(e *spmDatamodel.StageEvent) StageEvent {
	return StageEvent{
		ID:         e.ID,
		SPMID:      e.SPMID,
		Stage:      e.Stage,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Note:       e.Note,
		Bypass:     e.Bypass,
		BypassNote: e.BypassNote,
		CreatedAt:  e.CreatedAt,
	}
}
