package spm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
)

type RepositoryAPI interface {
	Create(ctx context.Context, doc *spmDatamodel.SPM) error
	GetByID(ctx context.Context, id int64) (*spmDatamodel.SPM, error)
	List(ctx context.Context, filter ListFilter) ([]*spmDatamodel.SPM, int64, error)
	ReplaceDraft(ctx context.Context, doc *spmDatamodel.SPM, expectedStatus string) (bool, error)
	Delete(ctx context.Context, id int64, expectedStatus string) (bool, error)
	// Transition applies updates only while the row still has expectedStatus.
	Transition(ctx context.Context, id int64, expectedStatus string, updates map[string]interface{}) (bool, error)
	AppendEvent(ctx context.Context, event *spmDatamodel.StageEvent) error
	ListEvents(ctx context.Context, spmID int64) ([]*spmDatamodel.StageEvent, error)
}

type RoleDirectory interface {
	RolesFor(ctx context.Context, userID int64) (role.Set, error)
	UsersWithRole(ctx context.Context, r role.Role) ([]int64, error)
}

type ApprovalGate interface {
	CheckApprovalPIN(ctx context.Context, scope stepup.Scope, pin string) (stepup.Result, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notification.Event) error
}

type AttachmentChecker interface {
	HasCategory(ctx context.Context, documentType string, documentID int64, category string) (bool, error)
}

type TaxCodeChecker interface {
	IsActive(ctx context.Context, code string) (bool, error)
}

// CacheInvalidator drops cached dashboard views after a write.
type CacheInvalidator interface {
	Bump(ctx context.Context)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Repo        RepositoryAPI
	Tx          TxRunner
	Roles       RoleDirectory
	Gate        ApprovalGate
	Notifier    Notifier
	Attachments AttachmentChecker
	TaxCodes    TaxCodeChecker
	Cache       CacheInvalidator
	Now         func() time.Time
}

// Service is the SPM workflow engine.
type Service struct {
	repo        RepositoryAPI
	tx          TxRunner
	roles       RoleDirectory
	gate        ApprovalGate
	notifier    Notifier
	attachments AttachmentChecker
	taxCodes    TaxCodeChecker
	cache       CacheInvalidator
	policy      *auth.DocumentPolicy
	now         func() time.Time
	logger      *slog.Logger
}

func NewService(deps Dependencies, logger *slog.Logger) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        deps.Repo,
		tx:          deps.Tx,
		roles:       deps.Roles,
		gate:        deps.Gate,
		notifier:    deps.Notifier,
		attachments: deps.Attachments,
		taxCodes:    deps.TaxCodes,
		cache:       deps.Cache,
		policy:      &auth.DocumentPolicy{},
		now:         now,
		logger:      logger,
	}
}

func (s *Service) Create(ctx context.Context, actorID int64, dto CreateSPMDTO) (*SPM, error) {
	roles, err := s.roles.RolesFor(ctx, actorID)
	if err != nil {
		return nil, internal.NewPersistenceError("load roles", err)
	}
	if !roles.Has(role.BendaharaOPD) {
		s.logger.Warn("create SPM refused: not a bendahara", "user_id", actorID)
		return nil, internal.ErrRoleRequired
	}
	opdID := roles.OPDFor(role.BendaharaOPD)
	if opdID == nil {
		return nil, internal.NewValidationFieldError("opd_id", "bendahara role carries no OPD", internal.ErrCodeValidationFailed)
	}

	deductions, net, appErr := s.prepare(ctx, dto)
	if appErr != nil {
		return nil, appErr
	}

	doc := &spmDatamodel.SPM{
		OPDID:        *opdID,
		CreatedBy:    actorID,
		JenisSPM:     dto.JenisSPM,
		Uraian:       strings.TrimSpace(dto.Uraian),
		NamaPenerima: strings.TrimSpace(dto.NamaPenerima),
		NilaiSPM:     dto.NilaiSPM,
		NilaiBersih:  net,
		Status:       string(StatusDraft),
		Potongan:     potonganToDataModel(deductions),
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Error("failed to create SPM", "error", err, "user_id", actorID)
		return nil, internal.NewPersistenceError("create SPM", err)
	}

	s.logger.Info("SPM created",
		"spm_id", doc.ID,
		"user_id", actorID,
		"opd_id", doc.OPDID,
		"nilai_spm", doc.NilaiSPM,
		"nilai_bersih", doc.NilaiBersih)

	s.bumpCache(ctx)
	return FromDataModel(doc), nil
}

func (s *Service) Update(ctx context.Context, id, actorID int64, dto UpdateSPMDTO) (*SPM, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CreatedBy != actorID {
		return nil, internal.ErrUnauthorizedAccess
	}
	if !Status(doc.Status).Editable() {
		return nil, internal.ErrCannotModifySPM
	}

	deductions, net, appErr := s.prepare(ctx, dto)
	if appErr != nil {
		return nil, appErr
	}

	expected := doc.Status
	doc.JenisSPM = dto.JenisSPM
	doc.Uraian = strings.TrimSpace(dto.Uraian)
	doc.NamaPenerima = strings.TrimSpace(dto.NamaPenerima)
	doc.NilaiSPM = dto.NilaiSPM
	doc.NilaiBersih = net
	doc.Potongan = potonganToDataModel(deductions)

	var updated bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.ReplaceDraft(ctx, doc, expected)
		return err
	})
	if err != nil {
		s.logger.Error("failed to update SPM", "error", err, "spm_id", id)
		return nil, internal.NewPersistenceError("update SPM", err)
	}
	if !updated {
		return nil, internal.ErrStatusCollision
	}

	s.logger.Info("SPM updated", "spm_id", id, "user_id", actorID, "nilai_bersih", net)
	s.bumpCache(ctx)
	return s.Get(ctx, id, &auth.User{ID: actorID})
}

// prepare validates a create/update payload and computes deductions and net.
func (s *Service) prepare(ctx context.Context, dto CreateSPMDTO) ([]Deduction, int64, *internal.AppError) {
	if err := dto.Validate(); err != nil {
		return nil, 0, err
	}

	deductions, appErr := ComputeDeductions(dto.NilaiSPM, dto.Potongan)
	if appErr != nil {
		return nil, 0, appErr
	}

	for i, d := range deductions {
		active, err := s.taxCodes.IsActive(ctx, d.KodePajak)
		if err != nil {
			return nil, 0, internal.NewPersistenceError("check tax code", err)
		}
		if !active {
			return nil, 0, internal.NewValidationFieldError(
				fmt.Sprintf("potongan[%d].kode_pajak", i),
				fmt.Sprintf("unknown tax code %s", d.KodePajak),
				internal.ErrCodeInvalidTaxCode)
		}
	}

	net := NetAmount(dto.NilaiSPM, deductions)
	if net < 0 {
		return nil, 0, internal.ErrNegativeNetAmount
	}
	return deductions, net, nil
}

// Get returns the SPM when user may see it. Drafts stay private to their OPD.
func (s *Service) Get(ctx context.Context, id int64, user *auth.User) (*SPM, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(user, doc) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return FromDataModel(doc), nil
}

func (s *Service) canView(user *auth.User, doc *spmDatamodel.SPM) bool {
	attrs := auth.DocumentAttributes{OwnerID: doc.CreatedBy, OPDID: doc.OPDID}
	if Status(doc.Status) == StatusDraft {
		if doc.CreatedBy == user.ID {
			return true
		}
		opd := user.OPDID()
		return opd != nil && *opd == doc.OPDID
	}
	return s.policy.CanView(user, attrs)
}

func (s *Service) List(ctx context.Context, user *auth.User, filter ListFilter) (*ListResult, error) {
	ownerID, opdID := s.policy.ScopeFilter(user)
	filter.OwnerID = ownerID
	filter.OPDID = opdID
	filter.NonDraft = ownerID == nil && opdID == nil

	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, internal.NewValidationFieldError("status", "unknown status", internal.ErrCodeValidationFailed)
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list SPM", "error", err, "user_id", user.ID)
		return nil, internal.NewPersistenceError("list SPM", err)
	}

	items := make([]*SPM, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromDataModel(row))
	}
	return &ListResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if doc.CreatedBy != actorID {
		return internal.ErrUnauthorizedAccess
	}
	if Status(doc.Status) != StatusDraft {
		return internal.ErrCannotModifySPM
	}

	var deleted bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.repo.Delete(ctx, id, string(StatusDraft))
		return err
	})
	if err != nil {
		return internal.NewPersistenceError("delete SPM", err)
	}
	if !deleted {
		return internal.ErrStatusCollision
	}

	s.logger.Info("SPM deleted", "spm_id", id, "user_id", actorID)
	s.bumpCache(ctx)
	return nil
}

// Submit sends a draft or revised SPM into the chain. Every unmet requirement is
// reported at once.
func (s *Service) Submit(ctx context.Context, id, actorID int64) (*SPM, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CreatedBy != actorID {
		metrics.RecordRejection(DocumentType, "not_owner")
		return nil, internal.ErrUnauthorizedAccess
	}
	from := Status(doc.Status)
	if !from.Editable() {
		metrics.RecordRejection(DocumentType, "invalid_status")
		return nil, internal.ErrInvalidSPMStatus
	}

	if appErr := s.preflight(ctx, doc); appErr != nil {
		metrics.RecordRejection(DocumentType, "incomplete")
		return nil, appErr
	}

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Transition(ctx, id, string(from), map[string]interface{}{
			"status":        string(StatusDiajukan),
			"tanggal_ajuan": now,
		})
		if err != nil {
			return internal.NewPersistenceError("submit SPM", err)
		}
		if !ok {
			return internal.ErrStatusCollision
		}

		if err := s.repo.AppendEvent(ctx, &spmDatamodel.StageEvent{
			SPMID:      id,
			Stage:      "bendahara",
			ActorID:    actorID,
			ActorRole:  string(role.BendaharaOPD),
			Action:     string(ActionSubmit),
			FromStatus: string(from),
			ToStatus:   string(StatusDiajukan),
		}); err != nil {
			return internal.NewPersistenceError("record stage event", err)
		}

		if err := s.notifyRole(ctx, role.Resepsionis, doc, ActionSubmit, "bendahara", from, StatusDiajukan, actorID, ""); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			metrics.RecordTransition(DocumentType, "bendahara", string(ActionSubmit))
			s.bumpCache(ctx)
		})
		return nil
	})
	if err != nil {
		s.logger.Error("SPM submission failed", "error", err, "spm_id", id, "user_id", actorID)
		return nil, err
	}

	s.logger.Info("SPM submitted", "spm_id", id, "user_id", actorID, "from_status", from)
	return s.Get(ctx, id, &auth.User{ID: actorID})
}

func (s *Service) preflight(ctx context.Context, doc *spmDatamodel.SPM) *internal.AppError {
	var errs []internal.ValidationError
	add := func(field, message string, code internal.ErrorCode) {
		errs = append(errs, internal.ValidationError{Field: field, Message: message, Code: string(code)})
	}

	hasPrimary, err := s.attachments.HasCategory(ctx, DocumentType, doc.ID, AttachmentDokumenSPM)
	if err != nil {
		return internal.NewPersistenceError("check attachments", err)
	}
	if !hasPrimary {
		add("attachments", "primary SPM document (dokumen_spm) is required", internal.ErrCodeMissingAttachment)
	}

	if Jenis(doc.JenisSPM) == JenisLS {
		hasReceipt, err := s.attachments.HasCategory(ctx, DocumentType, doc.ID, AttachmentKwitansi)
		if err != nil {
			return internal.NewPersistenceError("check attachments", err)
		}
		if !hasReceipt {
			add("attachments", "receipt (kwitansi) is required for LS payments", internal.ErrCodeMissingAttachment)
		}
	}

	if doc.NilaiSPM <= 0 {
		add("nilai_spm", "gross amount must be greater than zero", internal.ErrCodeInvalidAmount)
	}

	deducted := make([]int64, len(doc.Potongan))
	for i, p := range doc.Potongan {
		deducted[i] = p.Nilai
	}
	if netAfter(doc.NilaiSPM, deducted...) < 0 {
		add("nilai_bersih", "deductions exceed the gross amount", internal.ErrCodeNegativeNetAmount)
	}

	if utf8.RuneCountInString(strings.TrimSpace(doc.Uraian)) < minUraianLength {
		add("uraian", fmt.Sprintf("uraian must be at least %d characters", minUraianLength), internal.ErrCodeInvalidDescription)
	}

	if len(errs) == 0 {
		return nil
	}
	return internal.NewValidationError("SPM is not complete enough to submit", internal.ErrCodeSubmissionIncomplete).
		WithDetails(internal.ValidationErrors{Errors: errs})
}

// Verify applies one reviewer decision. All checks run before the transaction; the PIN,
// the conditional status write, the stage event and the in-app notification commit
// together or not at all.
func (s *Service) Verify(ctx context.Context, id, actorID int64, dto VerifyDTO) (*SPM, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	action := Action(dto.Action)
	note := strings.TrimSpace(dto.Catatan)
	if action == ActionRevise && note == "" {
		return nil, internal.ErrNoteRequired
	}

	actingRole, ok := role.Parse(dto.ActingRole)
	if !ok || !(actingRole.IsVerifier() || actingRole.IsAdmin()) {
		return nil, internal.NewValidationFieldError("acting_role", "acting_role is not a reviewer role", internal.ErrCodeValidationFailed)
	}

	roles, err := s.roles.RolesFor(ctx, actorID)
	if err != nil {
		return nil, internal.NewPersistenceError("load roles", err)
	}
	if !roles.Has(actingRole) {
		s.logger.Warn("verify refused: role not held", "spm_id", id, "user_id", actorID, "acting_role", actingRole)
		metrics.RecordRejection(DocumentType, "role_not_held")
		return nil, internal.ErrRoleRequired
	}

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	from := Status(doc.Status)
	stage, ok := StageFor(from)
	if !ok || !stage.AllowedFor(actingRole) {
		s.logger.Warn("verify refused: wrong stage",
			"spm_id", id,
			"user_id", actorID,
			"acting_role", actingRole,
			"status", from)
		metrics.RecordRejection(DocumentType, "wrong_stage")
		return nil, internal.ErrWrongStage
	}

	target := stage.Target(action)
	now := s.now()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updates := stage.auditUpdates(actorID, now, note)
		updates["status"] = string(target)

		event := &spmDatamodel.StageEvent{
			SPMID:      id,
			Stage:      stage.Audit,
			ActorID:    actorID,
			ActorRole:  string(actingRole),
			Action:     string(action),
			FromStatus: string(from),
			ToStatus:   string(target),
		}
		if note != "" {
			event.Note = &note
		}

		if action == ActionApprove && stage.RequiresPIN {
			result, err := s.gate.CheckApprovalPIN(ctx, stepup.Scope{
				UserID:       actorID,
				DocumentType: DocumentType,
				DocumentID:   &id,
			}, dto.PIN)
			if err != nil {
				return err
			}
			if result.Bypassed() {
				updates["emergency_approval"] = true
				updates["emergency_reason"] = *result.BypassReason
				event.Bypass = true
				event.BypassNote = result.BypassReason
			}
		}

		if action == ActionApprove && stage.Intake {
			if nomor := strings.TrimSpace(dto.NomorSPM); nomor != "" {
				updates["nomor_spm"] = nomor
			} else if doc.NomorSPM == nil {
				updates["nomor_spm"] = GenerateNomor(doc, now)
			}
		}

		if target == StatusDisetujui {
			updates["tanggal_disetujui"] = now
		}

		ok, err := s.repo.Transition(ctx, id, string(from), updates)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return internal.ErrDuplicateNumber
			}
			return internal.NewPersistenceError("update SPM status", err)
		}
		if !ok {
			return internal.ErrStatusCollision
		}

		if err := s.repo.AppendEvent(ctx, event); err != nil {
			return internal.NewPersistenceError("record stage event", err)
		}

		actor := actorID
		if err := s.notifier.Notify(ctx, notification.Event{
			RecipientUserID: doc.CreatedBy,
			DocumentType:    DocumentType,
			DocumentID:      id,
			DocumentNumber:  nomorOf(doc, updates),
			Action:          string(action),
			Stage:           stage.Audit,
			FromStatus:      string(from),
			ToStatus:        string(target),
			ActorID:         &actor,
			Notes:           note,
			Amount:          doc.NilaiSPM,
		}); err != nil {
			return err
		}

		if action == ActionApprove {
			if next, ok := NextRole(target); ok {
				if err := s.notifyRole(ctx, next, doc, action, stage.Audit, from, target, actorID, ""); err != nil {
					return err
				}
			}
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			metrics.RecordTransition(DocumentType, stage.Audit, string(action))
			s.bumpCache(ctx)
		})
		return nil
	})
	if err != nil {
		var appErr *internal.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			s.logger.Warn("SPM verification refused", "error", err, "spm_id", id, "user_id", actorID)
			metrics.RecordRejection(DocumentType, strings.ToLower(string(appErr.Code)))
		} else {
			s.logger.Error("SPM verification failed", "error", err, "spm_id", id, "user_id", actorID)
		}
		return nil, err
	}

	s.logger.Info("SPM verified",
		"spm_id", id,
		"user_id", actorID,
		"acting_role", actingRole,
		"action", action,
		"from_status", from,
		"to_status", target)

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(updated), nil
}

func (s *Service) History(ctx context.Context, id int64, user *auth.User) ([]StageEvent, error) {
	if _, err := s.Get(ctx, id, user); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, internal.NewPersistenceError("load SPM history", err)
	}
	events := make([]StageEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, EventFromDataModel(row))
	}
	return events, nil
}

// GetForDisbursement loads an SPM for SP2D creation without user scoping.
func (s *Service) GetForDisbursement(ctx context.Context, id int64) (*SPM, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(doc), nil
}

func (s *Service) load(ctx context.Context, id int64) (*spmDatamodel.SPM, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrSPMNotFound) {
			return nil, internal.ErrSPMNotFound
		}
		s.logger.Error("failed to load SPM", "error", err, "spm_id", id)
		return nil, internal.NewPersistenceError("load SPM", err)
	}
	return doc, nil
}

func (s *Service) notifyRole(ctx context.Context, r role.Role, doc *spmDatamodel.SPM, action Action, stage string, from, to Status, actorID int64, note string) error {
	recipients, err := s.roles.UsersWithRole(ctx, r)
	if err != nil {
		return internal.NewPersistenceError("load notification recipients", err)
	}
	actor := actorID
	for _, userID := range recipients {
		if userID == actorID {
			continue
		}
		if err := s.notifier.Notify(ctx, notification.Event{
			RecipientUserID: userID,
			DocumentType:    DocumentType,
			DocumentID:      doc.ID,
			DocumentNumber:  deref(doc.NomorSPM),
			Action:          string(action),
			Stage:           stage,
			FromStatus:      string(from),
			ToStatus:        string(to),
			ActorID:         &actor,
			Notes:           note,
			Amount:          doc.NilaiSPM,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Bump(ctx)
	}
}

// GenerateNomor builds the registration number assigned at intake when the
// resepsionis does not supply one.
func GenerateNomor(doc *spmDatamodel.SPM, at time.Time) string {
	return fmt.Sprintf("%05d/SPM-%s/%d/%d", doc.ID, doc.JenisSPM, doc.OPDID, at.Year())
}

func nomorOf(doc *spmDatamodel.SPM, updates map[string]interface{}) string {
	if v, ok := updates["nomor_spm"].(string); ok {
		return v
	}
	return deref(doc.NomorSPM)
}

func validStatus(status string) bool {
	for _, st := range AllStatuses {
		if string(st) == status {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
