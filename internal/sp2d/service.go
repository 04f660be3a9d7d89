package sp2d

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/auth"
	sp2dDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/notification"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"github.com/frahmantamala/spm-sp2d/internal/role"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
)

type RepositoryAPI interface {
	Create(ctx context.Context, doc *sp2dDatamodel.SP2D) error
	GetByID(ctx context.Context, id int64) (*sp2dDatamodel.SP2D, error)
	GetByNomor(ctx context.Context, nomor string) (*sp2dDatamodel.SP2D, error)
	ExistsForSPM(ctx context.Context, spmID int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*sp2dDatamodel.SP2D, int64, error)
	Transition(ctx context.Context, id int64, expectedStatus string, updates map[string]interface{}) (bool, error)
}

// SPMSource reads the approved SPM an SP2D is drawn from.
type SPMSource interface {
	GetForDisbursement(ctx context.Context, id int64) (*spm.SPM, error)
}

type DisbursementGate interface {
	Request(ctx context.Context, scope stepup.Scope, purpose stepup.Purpose) (time.Time, error)
	CheckDisbursementOTP(ctx context.Context, scope stepup.Scope, otp string) (stepup.Result, error)
}

type RoleDirectory interface {
	RolesFor(ctx context.Context, userID int64) (role.Set, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notification.Event) error
}

type CacheInvalidator interface {
	Bump(ctx context.Context)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Repo     RepositoryAPI
	SPM      SPMSource
	Tx       TxRunner
	Roles    RoleDirectory
	Gate     DisbursementGate
	Notifier Notifier
	Cache    CacheInvalidator
	Now      func() time.Time
}

type Service struct {
	repo     RepositoryAPI
	spm      SPMSource
	tx       TxRunner
	roles    RoleDirectory
	gate     DisbursementGate
	notifier Notifier
	cache    CacheInvalidator
	policy   *auth.DocumentPolicy
	now      func() time.Time
	logger   *slog.Logger
}

func NewService(deps Dependencies, logger *slog.Logger) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     deps.Repo,
		spm:      deps.SPM,
		tx:       deps.Tx,
		roles:    deps.Roles,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		policy:   &auth.DocumentPolicy{},
		now:      now,
		logger:   logger,
	}
}

// transition is one SP2D status move.
type transition struct {
	id      int64
	from    Status
	to      Status
	action  string
	stage   string
	actorID *int64
	notes   string
	updates map[string]interface{}
	before  func(ctx context.Context, updates map[string]interface{}) error
}

// Create issues a pending SP2D for an approved SPM.
func (s *Service) Create(ctx context.Context, actorID int64, dto CreateSP2DDTO) (*SP2D, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := s.requireKuasaBUD(ctx, actorID); err != nil {
		return nil, err
	}

	source, err := s.spm.GetForDisbursement(ctx, dto.SPMID)
	if err != nil {
		return nil, err
	}
	if source.Status != spm.StatusDisetujui {
		s.logger.Warn("SP2D refused: SPM not approved", "spm_id", source.ID, "status", source.Status, "user_id", actorID)
		metrics.RecordRejection(DocumentType, "spm_not_approved")
		return nil, internal.ErrSPMNotApproved
	}

	exists, err := s.repo.ExistsForSPM(ctx, source.ID)
	if err != nil {
		return nil, internal.NewPersistenceError("check existing SP2D", err)
	}
	if exists {
		return nil, internal.ErrSP2DExists
	}

	row := fromSPM(source, actorID, s.now())
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, row); err != nil {
			if database.IsUniqueViolation(err) {
				return internal.ErrSP2DExists
			}
			return internal.NewPersistenceError("create SP2D", err)
		}

		actor := actorID
		if err := s.notifyOwner(ctx, source, row, "create", "kuasa_bud", "", StatusPending, &actor, ""); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			metrics.RecordTransition(DocumentType, "kuasa_bud", "create")
			s.bumpCache(ctx)
		})
		return nil
	})
	if err != nil {
		s.logger.Error("SP2D creation failed", "error", err, "spm_id", source.ID, "user_id", actorID)
		return nil, err
	}

	s.logger.Info("SP2D created",
		"sp2d_id", row.ID,
		"spm_id", source.ID,
		"nomor_sp2d", row.NomorSP2D,
		"nilai_sp2d", row.NilaiSP2D,
		"user_id", actorID)
	return FromDataModel(row), nil
}

func (s *Service) Get(ctx context.Context, id int64, user *auth.User) (*SP2D, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	source, err := s.spm.GetForDisbursement(ctx, row.SPMID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(user, auth.DocumentAttributes{OwnerID: source.CreatedBy, OPDID: source.OPDID}) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, user *auth.User, filter ListFilter) (*ListResult, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, internal.NewValidationFieldError("status", "unknown status", internal.ErrCodeValidationFailed)
	}

	filter.OwnerID, filter.OPDID = s.policy.ScopeFilter(user)

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list SP2D", "error", err, "user_id", user.ID)
		return nil, internal.NewPersistenceError("list SP2D", err)
	}
	items := make([]*SP2D, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromDataModel(row))
	}
	return &ListResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// RequestOTP sends a disbursement OTP for this SP2D to the acting kuasa BUD.
func (s *Service) RequestOTP(ctx context.Context, id, actorID int64) (time.Time, error) {
	if err := s.requireKuasaBUD(ctx, actorID); err != nil {
		return time.Time{}, err
	}
	row, err := s.load(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if Status(row.Status) != StatusPending {
		return time.Time{}, internal.ErrInvalidSP2DStatus
	}

	expiresAt, err := s.gate.Request(ctx, stepup.Scope{
		UserID:       actorID,
		DocumentType: DocumentType,
		DocumentID:   &id,
	}, stepup.PurposeDisbursementOTP)
	if err != nil {
		return time.Time{}, err
	}
	s.logger.Info("disbursement OTP requested", "sp2d_id", id, "user_id", actorID, "expires_at", expiresAt)
	return expiresAt, nil
}

// Release issues the SP2D once the disbursement OTP checks out.
func (s *Service) Release(ctx context.Context, id, actorID int64, dto ReleaseDTO) (*SP2D, error) {
	if err := s.requireKuasaBUD(ctx, actorID); err != nil {
		return nil, err
	}
	now := s.now()
	actor := actorID

	return s.apply(ctx, transition{
		id:      id,
		from:    StatusPending,
		to:      StatusDiterbitkan,
		action:  "release",
		stage:   "kuasa_bud",
		actorID: &actor,
		updates: map[string]interface{}{
			"tanggal_verifikasi_otp": now,
			"verified_by":            actorID,
		},
		before: func(ctx context.Context, updates map[string]interface{}) error {
			result, err := s.gate.CheckDisbursementOTP(ctx, stepup.Scope{
				UserID:       actorID,
				DocumentType: DocumentType,
				DocumentID:   &id,
			}, dto.OTP)
			if err != nil {
				return err
			}
			updates["otp_test_mode"] = result.Method == stepup.MethodOTPTestMode
			return nil
		},
	})
}

func (s *Service) SendToBank(ctx context.Context, id, actorID int64) (*SP2D, error) {
	if err := s.requireKuasaBUD(ctx, actorID); err != nil {
		return nil, err
	}
	actor := actorID
	return s.apply(ctx, transition{
		id:      id,
		from:    StatusDiterbitkan,
		to:      StatusDiujiBank,
		action:  "send_to_bank",
		stage:   "kuasa_bud",
		actorID: &actor,
		updates: map[string]interface{}{"tanggal_kirim_bank": s.now()},
	})
}

// BankCallback records the bank's verdict. A repeated callback for an SP2D that already
// reached the same outcome is acknowledged without another write.
func (s *Service) BankCallback(ctx context.Context, dto BankCallbackDTO) (*SP2D, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	row, err := s.repo.GetByNomor(ctx, strings.TrimSpace(dto.NomorSP2D))
	if err != nil {
		if errors.Is(err, internal.ErrSP2DNotFound) {
			return nil, internal.ErrSP2DNotFound
		}
		return nil, internal.NewPersistenceError("load SP2D", err)
	}

	now := s.now()
	t := transition{id: row.ID, from: StatusDiujiBank, stage: "bank"}
	switch dto.Status {
	case BankSuccess:
		if Status(row.Status) == StatusCair {
			return FromDataModel(row), nil
		}
		t.to, t.action = StatusCair, "disburse"
		t.updates = map[string]interface{}{
			"tanggal_cair":      now,
			"bank_reference":    dto.Reference,
			"bank_confirmed_at": now,
		}
	default:
		if Status(row.Status) == StatusGagal {
			return FromDataModel(row), nil
		}
		reason := strings.TrimSpace(dto.FailureReason)
		t.to, t.action, t.notes = StatusGagal, "fail", reason
		t.updates = map[string]interface{}{
			"bank_failure_reason": reason,
			"bank_confirmed_at":   now,
		}
		if dto.Reference != "" {
			t.updates["bank_reference"] = dto.Reference
		}
	}
	return s.apply(ctx, t)
}

// apply runs one conditional status move with its notification in a transaction.
func (s *Service) apply(ctx context.Context, t transition) (*SP2D, error) {
	row, err := s.load(ctx, t.id)
	if err != nil {
		return nil, err
	}
	if Status(row.Status) != t.from {
		s.logger.Warn("SP2D transition refused: wrong status",
			"sp2d_id", t.id,
			"status", row.Status,
			"expected", t.from,
			"action", t.action)
		metrics.RecordRejection(DocumentType, "invalid_status")
		return nil, internal.ErrInvalidSP2DStatus
	}

	source, err := s.spm.GetForDisbursement(ctx, row.SPMID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{}, len(t.updates)+1)
	for k, v := range t.updates {
		updates[k] = v
	}
	updates["status"] = string(t.to)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if t.before != nil {
			if err := t.before(ctx, updates); err != nil {
				return err
			}
		}

		ok, err := s.repo.Transition(ctx, t.id, string(t.from), updates)
		if err != nil {
			return internal.NewPersistenceError("update SP2D status", err)
		}
		if !ok {
			return internal.ErrStatusCollision
		}

		if err := s.notifyOwner(ctx, source, row, t.action, t.stage, t.from, t.to, t.actorID, t.notes); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			metrics.RecordTransition(DocumentType, t.stage, t.action)
			s.bumpCache(ctx)
		})
		return nil
	})
	if err != nil {
		var appErr *internal.AppError
		if errors.As(err, &appErr) && appErr.StatusCode < 500 {
			s.logger.Warn("SP2D transition refused", "error", err, "sp2d_id", t.id, "action", t.action)
			metrics.RecordRejection(DocumentType, strings.ToLower(string(appErr.Code)))
		} else {
			s.logger.Error("SP2D transition failed", "error", err, "sp2d_id", t.id, "action", t.action)
		}
		return nil, err
	}

	s.logger.Info("SP2D status changed",
		"sp2d_id", t.id,
		"nomor_sp2d", row.NomorSP2D,
		"from_status", t.from,
		"to_status", t.to,
		"action", t.action)

	updated, err := s.load(ctx, t.id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(updated), nil
}

func (s *Service) requireKuasaBUD(ctx context.Context, actorID int64) error {
	roles, err := s.roles.RolesFor(ctx, actorID)
	if err != nil {
		return internal.NewPersistenceError("load roles", err)
	}
	if !roles.Has(role.KuasaBUD) && !roles.IsAdmin() {
		s.logger.Warn("SP2D action refused: kuasa_bud role required", "user_id", actorID)
		metrics.RecordRejection(DocumentType, "role_not_held")
		return internal.ErrRoleRequired
	}
	return nil
}

func (s *Service) notifyOwner(ctx context.Context, source *spm.SPM, row *sp2dDatamodel.SP2D, action, stage string, from, to Status, actorID *int64, notes string) error {
	return s.notifier.Notify(ctx, notification.Event{
		RecipientUserID: source.CreatedBy,
		DocumentType:    DocumentType,
		DocumentID:      row.ID,
		DocumentNumber:  row.NomorSP2D,
		Action:          action,
		Stage:           stage,
		FromStatus:      string(from),
		ToStatus:        string(to),
		ActorID:         actorID,
		Notes:           notes,
		Amount:          row.NilaiDiterima,
	})
}

func (s *Service) load(ctx context.Context, id int64) (*sp2dDatamodel.SP2D, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrSP2DNotFound) {
			return nil, internal.ErrSP2DNotFound
		}
		s.logger.Error("failed to load SP2D", "error", err, "sp2d_id", id)
		return nil, internal.NewPersistenceError("load SP2D", err)
	}
	return row, nil
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Bump(ctx)
	}
}

func validStatus(status string) bool {
	for _, st := range AllStatuses {
		if string(st) == status {
			return true
		}
	}
	return false
}
