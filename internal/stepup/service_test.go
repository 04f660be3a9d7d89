package stepup_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	stepupDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/stepup"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database/dbtest"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	stepupPostgres "github.com/frahmantamala/spm-sp2d/internal/stepup/postgres"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type staticFlags struct {
	flags stepup.Flags
	err   error
}

func (s *staticFlags) Flags(context.Context) (stepup.Flags, error) {
	return s.flags, s.err
}

type inbox struct {
	last map[int64]string
	fail error
}

func (i *inbox) DeliverCode(_ context.Context, userID int64, _ stepup.Purpose, code string, _ time.Time) error {
	if i.fail != nil {
		return i.fail
	}
	i.last[userID] = code
	return nil
}

var _ = ginkgo.Describe("Step-Up Gate", func() {
	const kepalaID int64 = 5

	var (
		db    *gorm.DB
		flags *staticFlags
		box   *inbox
		now   time.Time
		gate  *stepup.Gate
		ctx   context.Context
	)

	docID := func(id int64) *int64 { return &id }

	ginkgo.BeforeEach(func() {
		var err error
		db, err = dbtest.Open()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		flags = &staticFlags{}
		box = &inbox{last: map[int64]string{}}
		now = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		gate = stepup.NewGate(stepupPostgres.NewCodeRepository(db), flags, box, stepup.GateConfig{
			CodeTTL:  10 * time.Minute,
			HashCost: bcrypt.MinCost,
			Now:      func() time.Time { return now },
		}, slogger)
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		_ = dbtest.Close(db)
	})

	ginkgo.Describe("Request and Verify", func() {
		ginkgo.It("delivers a numeric code and stores only its hash", func() {
			expiresAt, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(expiresAt).To(gomega.Equal(now.Add(10 * time.Minute)))

			code := box.last[kepalaID]
			gomega.Expect(code).To(gomega.MatchRegexp(`^\d{6}$`))

			var row stepupDatamodel.OneTimeCode
			gomega.Expect(db.First(&row).Error).To(gomega.Succeed())
			gomega.Expect(row.CodeHash).NotTo(gomega.ContainSubstring(code))
		})

		ginkgo.It("accepts a code once", func() {
			_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			code := box.last[kepalaID]

			result, err := gate.Verify(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN, code)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Method).To(gomega.Equal(stepup.MethodCode))

			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN, code)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("rejects an expired code", func() {
			_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			now = now.Add(11 * time.Minute)
			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN, box.last[kepalaID])
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("keeps a code valid for fifteen minutes by default", func() {
			slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
			defaultGate := stepup.NewGate(stepupPostgres.NewCodeRepository(db), flags, box, stepup.GateConfig{
				HashCost: bcrypt.MinCost,
				Now:      func() time.Time { return now },
			}, slogger)
			issuedAt := now
			scope := stepup.Scope{UserID: kepalaID}

			expiresAt, err := defaultGate.Request(ctx, scope, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(expiresAt).To(gomega.Equal(issuedAt.Add(15 * time.Minute)))

			now = issuedAt.Add(14*time.Minute + 59*time.Second)
			_, err = defaultGate.Verify(ctx, scope, stepup.PurposeApprovalPIN, box.last[kepalaID])
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			now = issuedAt
			_, err = defaultGate.Request(ctx, scope, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			now = issuedAt.Add(15 * time.Minute)
			_, err = defaultGate.Verify(ctx, scope, stepup.PurposeApprovalPIN, box.last[kepalaID])
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("only accepts the most recently issued code", func() {
			scope := stepup.Scope{UserID: kepalaID}
			first, _, err := gate.Issue(ctx, scope, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			second := first
			for second == first {
				second, _, err = gate.Issue(ctx, scope, stepup.PurposeApprovalPIN)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
			}

			_, err = gate.Verify(ctx, scope, stepup.PurposeApprovalPIN, first)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))

			_, err = gate.Verify(ctx, scope, stepup.PurposeApprovalPIN, second)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("requires a code", func() {
			_, err := gate.Verify(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN, "  ")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeRequired))
		})

		ginkgo.It("does not accept a code for another purpose or user", func() {
			_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			code := box.last[kepalaID]

			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeDisbursementOTP, code)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID + 1}, stepup.PurposeApprovalPIN, code)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("binds a document scoped code to that document", func() {
			scope := stepup.Scope{UserID: kepalaID, DocumentType: "spm", DocumentID: docID(7)}
			_, err := gate.Request(ctx, scope, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			code := box.last[kepalaID]

			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID, DocumentType: "spm", DocumentID: docID(8)}, stepup.PurposeApprovalPIN, code)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))

			_, err = gate.Verify(ctx, scope, stepup.PurposeApprovalPIN, code)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("lets an unscoped code serve any document", func() {
			_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = gate.Verify(ctx, stepup.Scope{UserID: kepalaID, DocumentType: "spm", DocumentID: docID(9)}, stepup.PurposeApprovalPIN, box.last[kepalaID])
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("surfaces delivery failures", func() {
			box.fail = errors.New("smtp down")
			_, err := gate.Request(ctx, stepup.Scope{UserID: kepalaID}, stepup.PurposeApprovalPIN)
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInternal))
		})
	})

	ginkgo.Describe("CheckApprovalPIN", func() {
		ginkgo.It("bypasses the PIN in emergency mode and reports the reason", func() {
			flags.flags = stepup.Flags{EmergencyModeEnabled: true, EmergencyModeReason: "server PIN down"}

			result, err := gate.CheckApprovalPIN(ctx, stepup.Scope{UserID: kepalaID}, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Bypassed()).To(gomega.BeTrue())
			gomega.Expect(*result.BypassReason).To(gomega.Equal("server PIN down"))
		})

		ginkgo.It("fills in a default reason", func() {
			flags.flags = stepup.Flags{EmergencyModeEnabled: true}

			result, err := gate.CheckApprovalPIN(ctx, stepup.Scope{UserID: kepalaID}, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(*result.BypassReason).NotTo(gomega.BeEmpty())
		})

		ginkgo.It("treats unreadable flags as off", func() {
			flags.err = errors.New("db down")
			flags.flags = stepup.Flags{EmergencyModeEnabled: true}

			_, err := gate.CheckApprovalPIN(ctx, stepup.Scope{UserID: kepalaID}, "")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeRequired))
		})
	})

	ginkgo.Describe("CheckDisbursementOTP", func() {
		ginkgo.It("accepts only the configured static code in test mode", func() {
			flags.flags = stepup.Flags{OTPTestMode: true, OTPTestCode: "123456"}

			result, err := gate.CheckDisbursementOTP(ctx, stepup.Scope{UserID: 2}, "123456")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Method).To(gomega.Equal(stepup.MethodOTPTestMode))

			_, err = gate.CheckDisbursementOTP(ctx, stepup.Scope{UserID: 2}, "654321")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("does not fall back to issued codes in test mode", func() {
			_, err := gate.Request(ctx, stepup.Scope{UserID: 2}, stepup.PurposeDisbursementOTP)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			flags.flags = stepup.Flags{OTPTestMode: true, OTPTestCode: "123456"}

			_, err = gate.CheckDisbursementOTP(ctx, stepup.Scope{UserID: 2}, box.last[2])
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})

		ginkgo.It("rejects everything when test mode has no code configured", func() {
			flags.flags = stepup.Flags{OTPTestMode: true}

			_, err := gate.CheckDisbursementOTP(ctx, stepup.Scope{UserID: 2}, "000000")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAuthCodeInvalid))
		})
	})

	ginkgo.Describe("POST /step-up/pin", func() {
		var handler *stepup.Handler

		ginkgo.BeforeEach(func() {
			handler = stepup.NewHandler(gate)
		})

		request := func(body string) *httptest.ResponseRecorder {
			var r *http.Request
			if body == "" {
				r = httptest.NewRequest(http.MethodPost, "/step-up/pin", nil)
			} else {
				r = httptest.NewRequest(http.MethodPost, "/step-up/pin", bytes.NewBufferString(body))
			}
			r = r.WithContext(auth.WithUser(r.Context(), &auth.User{ID: kepalaID}))
			w := httptest.NewRecorder()
			handler.IssueApprovalPIN(w, r)
			return w
		}

		ginkgo.It("issues a PIN without echoing it", func() {
			w := request("")
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusAccepted))
			gomega.Expect(w.Body.String()).NotTo(gomega.ContainSubstring(box.last[kepalaID]))

			var resp stepup.IssuePINResponse
			gomega.Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Purpose).To(gomega.Equal(stepup.PurposeApprovalPIN))
		})

		ginkgo.It("scopes the PIN to an SPM when given", func() {
			w := request(`{"spm_id": 7}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusAccepted))

			var row stepupDatamodel.OneTimeCode
			gomega.Expect(db.First(&row).Error).To(gomega.Succeed())
			gomega.Expect(row.DocumentID).NotTo(gomega.BeNil())
			gomega.Expect(*row.DocumentID).To(gomega.Equal(int64(7)))
		})

		ginkgo.It("rejects a non-positive SPM id", func() {
			w := request(`{"spm_id": 0}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})
})
