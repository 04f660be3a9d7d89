package spm_test

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	notificationDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/notification"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	notificationPostgres "github.com/frahmantamala/spm-sp2d/internal/notification/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database/dbtest"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	rolePostgres "github.com/frahmantamala/spm-sp2d/internal/role/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	spmPostgres "github.com/frahmantamala/spm-sp2d/internal/spm/postgres"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	stepupPostgres "github.com/frahmantamala/spm-sp2d/internal/stepup/postgres"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	bendaharaID      int64 = 1
	resepsionisID    int64 = 2
	pbmdID           int64 = 3
	akuntansiID      int64 = 4
	perbendaharaanID int64 = 5
	kepalaID         int64 = 6
	adminID          int64 = 7
	otherBendahara   int64 = 8

	opdID      int64 = 10
	otherOPDID int64 = 11
)

type staticFlags struct {
	flags stepup.Flags
}

func (s *staticFlags) Flags(context.Context) (stepup.Flags, error) {
	return s.flags, nil
}

type capturedCodes struct {
	mu    sync.Mutex
	codes map[int64]string
}

func (c *capturedCodes) DeliverCode(_ context.Context, userID int64, _ stepup.Purpose, code string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[userID] = code
	return nil
}

type attachmentSet map[string]bool

func (a attachmentSet) HasCategory(_ context.Context, _ string, _ int64, category string) (bool, error) {
	return a[category], nil
}

type activeTaxCodes map[string]bool

func (t activeTaxCodes) IsActive(_ context.Context, code string) (bool, error) {
	return t[code], nil
}

type cacheCounter struct {
	mu    sync.Mutex
	bumps int
}

func (c *cacheCounter) Bump(context.Context) {
	c.mu.Lock()
	c.bumps++
	c.mu.Unlock()
}

func (c *cacheCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bumps
}

// collidingRepo moves the document out of its expected status right before the
// conditional write, as a concurrent reviewer would.
type collidingRepo struct {
	spm.RepositoryAPI
	db *gorm.DB
}

func (r *collidingRepo) Transition(ctx context.Context, id int64, expected string, updates map[string]interface{}) (bool, error) {
	err := database.Conn(ctx, r.db).Model(&spmDatamodel.SPM{}).
		Where("id = ?", id).
		Update("status", string(spm.StatusPerluRevisi)).Error
	if err != nil {
		return false, err
	}
	return r.RepositoryAPI.Transition(ctx, id, expected, updates)
}

var _ = ginkgo.Describe("SPM Service", func() {
	var (
		db          *gorm.DB
		slogger     *slog.Logger
		repo        spm.RepositoryAPI
		txm         *database.TxManager
		directory   *role.Directory
		gate        *stepup.Gate
		flags       *staticFlags
		codes       *capturedCodes
		attachments attachmentSet
		cache       *cacheCounter
		deps        spm.Dependencies
		service     *spm.Service
		ctx         context.Context
	)

	fixed := func(v int64) *int64 { return &v }

	validDTO := func() spm.CreateSPMDTO {
		return spm.CreateSPMDTO{
			JenisSPM:     "LS",
			Uraian:       "Pembayaran pengadaan alat tulis kantor",
			NamaPenerima: "CV Sinar Jaya",
			NilaiSPM:     1000000,
			Potongan:     []spm.DeductionDTO{{KodePajak: "PPH21", NilaiTetap: fixed(20000)}},
		}
	}

	seedUser := func(id int64, r role.Role, opd *int64) {
		gomega.Expect(db.Create(&userDatamodel.User{
			ID:           id,
			Email:        fmt.Sprintf("user%d@pemda.go.id", id),
			Name:         string(r),
			PasswordHash: "x",
			IsActive:     true,
		}).Error).To(gomega.Succeed())
		gomega.Expect(directory.Assign(ctx, role.Assignment{UserID: id, Role: r, OPDID: opd})).To(gomega.Succeed())
	}

	create := func() *spm.SPM {
		doc, err := service.Create(ctx, bendaharaID, validDTO())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return doc
	}

	submitted := func() *spm.SPM {
		doc := create()
		doc, err := service.Submit(ctx, doc.ID, bendaharaID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return doc
	}

	approve := func(id, actor int64, r role.Role) *spm.SPM {
		doc, err := service.Verify(ctx, id, actor, spm.VerifyDTO{ActingRole: string(r), Action: "approve"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return doc
	}

	// atKepalaReview walks a fresh document through every stage up to kepala_bkad_review.
	atKepalaReview := func() *spm.SPM {
		doc := submitted()
		approve(doc.ID, resepsionisID, role.Resepsionis)
		approve(doc.ID, resepsionisID, role.Resepsionis)
		approve(doc.ID, pbmdID, role.PBMD)
		approve(doc.ID, akuntansiID, role.Akuntansi)
		return approve(doc.ID, perbendaharaanID, role.Perbendaharaan)
	}

	reload := func(id int64) *spm.SPM {
		doc, err := service.GetForDisbursement(ctx, id)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return doc
	}

	build := func() {
		deps.Repo = repo
		service = spm.NewService(deps, slogger)
	}

	ginkgo.BeforeEach(func() {
		var err error
		db, err = dbtest.Open()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = spmPostgres.NewSPMRepository(db)
		txm = database.NewTxManager(db, slogger)
		directory = role.NewDirectory(rolePostgres.NewRoleRepository(db), slogger)
		flags = &staticFlags{}
		codes = &capturedCodes{codes: map[int64]string{}}
		gate = stepup.NewGate(stepupPostgres.NewCodeRepository(db), flags, codes, stepup.GateConfig{HashCost: bcrypt.MinCost}, slogger)
		attachments = attachmentSet{spm.AttachmentDokumenSPM: true, spm.AttachmentKwitansi: true}
		cache = &cacheCounter{}

		notifier := notification.NewService(notificationPostgres.NewNotificationRepository(db), nil, "test", slogger)

		deps = spm.Dependencies{
			Tx:          txm,
			Roles:       directory,
			Gate:        gate,
			Notifier:    notifier,
			Attachments: attachments,
			TaxCodes:    activeTaxCodes{"PPH21": true, "PPN": true},
			Cache:       cache,
		}
		build()

		o, other := opdID, otherOPDID
		seedUser(bendaharaID, role.BendaharaOPD, &o)
		seedUser(resepsionisID, role.Resepsionis, nil)
		seedUser(pbmdID, role.PBMD, nil)
		seedUser(akuntansiID, role.Akuntansi, nil)
		seedUser(perbendaharaanID, role.Perbendaharaan, nil)
		seedUser(kepalaID, role.KepalaBKAD, nil)
		seedUser(adminID, role.Administrator, nil)
		seedUser(otherBendahara, role.BendaharaOPD, &other)
	})

	ginkgo.AfterEach(func() {
		_ = dbtest.Close(db)
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("computes the net amount and starts as draft in the owner's OPD", func() {
			doc := create()

			gomega.Expect(doc.Status).To(gomega.Equal(spm.StatusDraft))
			gomega.Expect(doc.OPDID).To(gomega.Equal(opdID))
			gomega.Expect(doc.NilaiBersih).To(gomega.Equal(int64(980000)))
			gomega.Expect(doc.Potongan).To(gomega.HaveLen(1))
			gomega.Expect(doc.Potongan[0].Nilai).To(gomega.Equal(int64(20000)))
			gomega.Expect(doc.NomorSPM).To(gomega.BeNil())
		})

		ginkgo.It("rejects a negative net", func() {
			dto := validDTO()
			dto.Potongan = []spm.DeductionDTO{{KodePajak: "PPH21", NilaiTetap: fixed(1500000)}}

			_, err := service.Create(ctx, bendaharaID, dto)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrNegativeNetAmount))
		})

		ginkgo.It("rejects deductions whose sum overflows instead of wrapping to a positive net", func() {
			dto := validDTO()
			dto.Potongan = []spm.DeductionDTO{
				{KodePajak: "PPH21", NilaiTetap: fixed(math.MaxInt64)},
				{KodePajak: "PPN", NilaiTetap: fixed(math.MaxInt64)},
			}

			_, err := service.Create(ctx, bendaharaID, dto)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrNegativeNetAmount))

			var count int64
			gomega.Expect(db.Model(&spmDatamodel.SPM{}).
				Where("nilai_bersih > nilai_spm").
				Count(&count).Error).To(gomega.Succeed())
			gomega.Expect(count).To(gomega.BeZero())
		})

		ginkgo.It("accepts a tax code typed in lower case and stores it canonically", func() {
			dto := validDTO()
			dto.Potongan[0].KodePajak = " pph21"

			doc, err := service.Create(ctx, bendaharaID, dto)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(doc.Potongan[0].KodePajak).To(gomega.Equal("PPH21"))
		})

		ginkgo.It("rejects an unknown tax code", func() {
			dto := validDTO()
			dto.Potongan[0].KodePajak = "XXX"

			_, err := service.Create(ctx, bendaharaID, dto)
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeInvalidTaxCode))
		})

		ginkgo.It("is limited to bendahara", func() {
			_, err := service.Create(ctx, pbmdID, validDTO())
			gomega.Expect(err).To(gomega.MatchError(internal.ErrRoleRequired))
		})
	})

	ginkgo.Describe("Update and Delete", func() {
		ginkgo.It("recomputes deductions on update", func() {
			doc := create()
			dto := validDTO()
			dto.NilaiSPM = 2000000
			dto.Potongan = []spm.DeductionDTO{{KodePajak: "PPH21", NilaiTetap: fixed(50000)}, {KodePajak: "PPN", NilaiTetap: fixed(10000)}}

			updated, err := service.Update(ctx, doc.ID, bendaharaID, dto)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(updated.NilaiBersih).To(gomega.Equal(int64(1940000)))
			gomega.Expect(updated.Potongan).To(gomega.HaveLen(2))
		})

		ginkgo.It("refuses updates once submitted", func() {
			doc := submitted()
			_, err := service.Update(ctx, doc.ID, bendaharaID, validDTO())
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCannotModifySPM))
		})

		ginkgo.It("refuses updates from someone else", func() {
			doc := create()
			_, err := service.Update(ctx, doc.ID, otherBendahara, validDTO())
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("deletes drafts only", func() {
			doc := create()
			gomega.Expect(service.Delete(ctx, doc.ID, bendaharaID)).To(gomega.Succeed())
			_, err := service.GetForDisbursement(ctx, doc.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrSPMNotFound))

			sub := submitted()
			gomega.Expect(service.Delete(ctx, sub.ID, bendaharaID)).To(gomega.MatchError(internal.ErrCannotModifySPM))
		})
	})

	ginkgo.Describe("Submit", func() {
		ginkgo.It("moves a complete draft to diajukan and notifies resepsionis", func() {
			doc := submitted()

			gomega.Expect(doc.Status).To(gomega.Equal(spm.StatusDiajukan))
			gomega.Expect(doc.TanggalAjuan).NotTo(gomega.BeNil())

			var count int64
			gomega.Expect(db.Model(&notificationDatamodel.Notification{}).
				Where("user_id = ? AND action = ?", resepsionisID, "submit").
				Count(&count).Error).To(gomega.Succeed())
			gomega.Expect(count).To(gomega.Equal(int64(1)))
			gomega.Expect(cache.count()).To(gomega.BeNumerically(">=", 2))
		})

		ginkgo.It("reports every missing requirement together", func() {
			delete(attachments, spm.AttachmentDokumenSPM)
			delete(attachments, spm.AttachmentKwitansi)
			doc := create()
			gomega.Expect(db.Model(&spmDatamodel.SPM{}).Where("id = ?", doc.ID).Update("uraian", "pendek").Error).To(gomega.Succeed())

			_, err := service.Submit(ctx, doc.ID, bendaharaID)
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeSubmissionIncomplete))

			details := appErr.Details.(internal.ValidationErrors)
			gomega.Expect(details.Errors).To(gomega.HaveLen(3))
			gomega.Expect(reload(doc.ID).Status).To(gomega.Equal(spm.StatusDraft))
		})

		ginkgo.It("does not need a receipt for non-LS documents", func() {
			delete(attachments, spm.AttachmentKwitansi)
			dto := validDTO()
			dto.JenisSPM = "GU"
			doc, err := service.Create(ctx, bendaharaID, dto)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = service.Submit(ctx, doc.ID, bendaharaID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("rejects a stored negative net", func() {
			doc := create()
			gomega.Expect(db.Model(&spmDatamodel.Potongan{}).Where("spm_id = ?", doc.ID).Update("nilai", 2000000).Error).To(gomega.Succeed())

			_, err := service.Submit(ctx, doc.ID, bendaharaID)
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			gomega.Expect(details.Errors[0].Code).To(gomega.Equal(string(internal.ErrCodeNegativeNetAmount)))
		})

		ginkgo.It("is owner only", func() {
			doc := create()
			_, err := service.Submit(ctx, doc.ID, otherBendahara)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})
	})

	ginkgo.Describe("Verify", func() {
		ginkgo.It("lets resepsionis take in a submission and stamps the audit columns", func() {
			doc := submitted()

			out := approve(doc.ID, resepsionisID, role.Resepsionis)

			gomega.Expect(out.Status).To(gomega.Equal(spm.StatusResepsionisVerifikasi))
			gomega.Expect(out.Resepsionis.VerifiedBy).To(gomega.HaveValue(gomega.Equal(resepsionisID)))
			gomega.Expect(out.Resepsionis.Tanggal).NotTo(gomega.BeNil())
			gomega.Expect(out.NomorSPM).NotTo(gomega.BeNil())
			gomega.Expect(*out.NomorSPM).To(gomega.HavePrefix("00001/SPM-LS/10/"))
		})

		ginkgo.It("keeps a number registered by resepsionis", func() {
			doc := submitted()
			out, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{
				ActingRole: "resepsionis",
				Action:     "approve",
				NomorSPM:   "900/123/BKAD/2026",
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(*out.NomorSPM).To(gomega.Equal("900/123/BKAD/2026"))
		})

		ginkgo.It("records a pbmd revision note", func() {
			doc := submitted()
			approve(doc.ID, resepsionisID, role.Resepsionis)
			approve(doc.ID, resepsionisID, role.Resepsionis)

			out, err := service.Verify(ctx, doc.ID, pbmdID, spm.VerifyDTO{
				ActingRole: "pbmd",
				Action:     "revise",
				Catatan:    "missing receipt",
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(out.Status).To(gomega.Equal(spm.StatusPerluRevisi))
			gomega.Expect(out.PBMD.Catatan).To(gomega.HaveValue(gomega.Equal("missing receipt")))

			var notes int64
			gomega.Expect(db.Model(&notificationDatamodel.Notification{}).
				Where("user_id = ? AND action = ?", bendaharaID, "revise").
				Count(&notes).Error).To(gomega.Succeed())
			gomega.Expect(notes).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("requires a note to revise", func() {
			doc := submitted()
			_, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "revise"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrNoteRequired))
		})

		ginkgo.It("rejects an unknown action", func() {
			doc := submitted()
			_, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "skip"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidAction))
		})

		ginkgo.It("refuses kepala_bkad at akuntansi_validasi and leaves the document alone", func() {
			doc := submitted()
			approve(doc.ID, resepsionisID, role.Resepsionis)
			approve(doc.ID, resepsionisID, role.Resepsionis)
			before := approve(doc.ID, pbmdID, role.PBMD)
			gomega.Expect(before.Status).To(gomega.Equal(spm.StatusAkuntansiValidasi))

			_, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: "123456"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrWrongStage))

			after := reload(doc.ID)
			gomega.Expect(after.Status).To(gomega.Equal(spm.StatusAkuntansiValidasi))
			gomega.Expect(after.KepalaBKAD.VerifiedBy).To(gomega.BeNil())
			gomega.Expect(after.UpdatedAt).To(gomega.Equal(before.UpdatedAt))
		})

		ginkgo.It("refuses an acting role the user does not hold", func() {
			doc := submitted()
			_, err := service.Verify(ctx, doc.ID, pbmdID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "approve"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrRoleRequired))
		})

		ginkgo.It("refuses a verify on a draft", func() {
			doc := create()
			_, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "approve"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrWrongStage))
		})

		ginkgo.It("lets an administrator act as any stage", func() {
			doc := submitted()
			approve(doc.ID, resepsionisID, role.Resepsionis)
			out := approve(doc.ID, adminID, role.Administrator)
			gomega.Expect(out.Status).To(gomega.Equal(spm.StatusPBMDVerifikasi))
			gomega.Expect(out.Resepsionis.VerifiedBy).To(gomega.HaveValue(gomega.Equal(adminID)))
		})

		ginkgo.It("returns a collision when the status moved underneath", func() {
			doc := submitted()
			repo = &collidingRepo{RepositoryAPI: spmPostgres.NewSPMRepository(db), db: db}
			build()

			_, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "approve"})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrStatusCollision))
			gomega.Expect(reload(doc.ID).Status).To(gomega.Equal(spm.StatusDiajukan))
		})

		ginkgo.Describe("final approval", func() {
			ginkgo.It("requires a PIN", func() {
				doc := atKepalaReview()
				_, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve"})
				gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeRequired))
				gomega.Expect(reload(doc.ID).Status).To(gomega.Equal(spm.StatusKepalaBKADReview))
			})

			ginkgo.It("rejects a wrong PIN", func() {
				doc := atKepalaReview()
				_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())

				_, err = service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: "000000x"})
				gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
			})

			ginkgo.It("approves with a valid PIN exactly once", func() {
				doc := atKepalaReview()
				_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				pin := codes.codes[kepalaID]

				out, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: pin})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(out.Status).To(gomega.Equal(spm.StatusDisetujui))
				gomega.Expect(out.TanggalDisetujui).NotTo(gomega.BeNil())
				gomega.Expect(out.EmergencyApproval).To(gomega.BeFalse())

				second := atKepalaReview()
				_, err = service.Verify(ctx, second.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: pin})
				gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
			})

			ginkgo.It("keeps the PIN usable when the write collides", func() {
				doc := atKepalaReview()
				_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				pin := codes.codes[kepalaID]

				repo = &collidingRepo{RepositoryAPI: spmPostgres.NewSPMRepository(db), db: db}
				build()
				_, err = service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: pin})
				gomega.Expect(err).To(gomega.MatchError(internal.ErrStatusCollision))

				repo = spmPostgres.NewSPMRepository(db)
				build()
				out, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve", PIN: pin})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(out.Status).To(gomega.Equal(spm.StatusDisetujui))
			})

			ginkgo.It("skips the PIN in emergency mode and records the reason", func() {
				flags.flags = stepup.Flags{EmergencyModeEnabled: true, EmergencyModeReason: "server PIN down"}
				doc := atKepalaReview()

				out, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "approve"})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(out.Status).To(gomega.Equal(spm.StatusDisetujui))
				gomega.Expect(out.EmergencyApproval).To(gomega.BeTrue())
				gomega.Expect(out.EmergencyReason).To(gomega.HaveValue(gomega.Equal("server PIN down")))

				events, err := service.History(ctx, doc.ID, &auth.User{ID: bendaharaID})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				last := events[len(events)-1]
				gomega.Expect(last.Bypass).To(gomega.BeTrue())
				gomega.Expect(last.BypassNote).To(gomega.HaveValue(gomega.Equal("server PIN down")))
			})

			ginkgo.It("does not ask for a PIN to revise", func() {
				doc := atKepalaReview()
				out, err := service.Verify(ctx, doc.ID, kepalaID, spm.VerifyDTO{ActingRole: "kepala_bkad", Action: "revise", Catatan: "nilai tidak sesuai"})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(out.Status).To(gomega.Equal(spm.StatusPerluRevisi))
			})
		})

		ginkgo.It("restarts at diajukan after a revision and keeps the full history", func() {
			doc := submitted()
			_, err := service.Verify(ctx, doc.ID, resepsionisID, spm.VerifyDTO{ActingRole: "resepsionis", Action: "revise", Catatan: "lampiran buram"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			again, err := service.Submit(ctx, doc.ID, bendaharaID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(again.Status).To(gomega.Equal(spm.StatusDiajukan))

			events, err := service.History(ctx, doc.ID, &auth.User{ID: bendaharaID})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(events).To(gomega.HaveLen(3))
			gomega.Expect(events[1].Action).To(gomega.Equal("revise"))
			gomega.Expect(events[1].Stage).To(gomega.Equal("resepsionis"))
			gomega.Expect(events[2].FromStatus).To(gomega.Equal(string(spm.StatusPerluRevisi)))
		})
	})

	ginkgo.Describe("visibility", func() {
		ginkgo.It("hides drafts from other OPDs and reviewers", func() {
			doc := create()

			_, err := service.Get(ctx, doc.ID, &auth.User{ID: resepsionisID, Roles: role.Set{{UserID: resepsionisID, Role: role.Resepsionis}}})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))

			other := otherOPDID
			_, err = service.Get(ctx, doc.ID, &auth.User{ID: otherBendahara, Roles: role.Set{{UserID: otherBendahara, Role: role.BendaharaOPD, OPDID: &other}}})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("lists non-draft documents for reviewers and own OPD for bendahara", func() {
			create()
			submitted()

			reviewer := &auth.User{ID: pbmdID, Roles: role.Set{{UserID: pbmdID, Role: role.PBMD}}}
			res, err := service.List(ctx, reviewer, spm.ListFilter{Limit: 20})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(res.Total).To(gomega.Equal(int64(1)))

			o := opdID
			owner := &auth.User{ID: bendaharaID, Roles: role.Set{{UserID: bendaharaID, Role: role.BendaharaOPD, OPDID: &o}}}
			res, err = service.List(ctx, owner, spm.ListFilter{Limit: 20})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(res.Total).To(gomega.Equal(int64(2)))

			res, err = service.List(ctx, owner, spm.ListFilter{Status: "diajukan", Limit: 20})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(res.Items).To(gomega.HaveLen(1))

			_, err = service.List(ctx, owner, spm.ListFilter{Status: "bogus", Limit: 20})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
