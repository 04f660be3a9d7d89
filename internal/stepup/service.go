package stepup

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/frahmantamala/spm-sp2d/internal"
	stepupDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/stepup"
	"github.com/frahmantamala/spm-sp2d/internal/platform/metrics"
	"golang.org/x/crypto/bcrypt"
)

var ErrCodeNotFound = errors.New("no active code")

type RepositoryAPI interface {
	Create(ctx context.Context, code *stepupDatamodel.OneTimeCode) error
	FindActive(ctx context.Context, userID int64, purpose string, documentType string, documentID *int64, now time.Time) (*stepupDatamodel.OneTimeCode, error)
	Consume(ctx context.Context, id int64, usedAt time.Time) (bool, error)
}

type GateConfig struct {
	CodeTTL    time.Duration
	CodeLength int
	HashCost   int
	Now        func() time.Time
}

// Gate issues and checks the approval PIN and the disbursement OTP. Codes are stored as
// bcrypt hashes and are consumed with a conditional update so each one works once.
// There is no attempt counter; brute force is only slowed by the HTTP rate limiter.
type Gate struct {
	repo      RepositoryAPI
	config    ConfigProvider
	deliverer Deliverer
	cfg       GateConfig
	logger    *slog.Logger
}

func NewGate(repo RepositoryAPI, config ConfigProvider, deliverer Deliverer, cfg GateConfig, logger *slog.Logger) *Gate {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 15 * time.Minute
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Gate{
		repo:      repo,
		config:    config,
		deliverer: deliverer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Issue stores a new code for scope and returns the plaintext. The plaintext must only
// travel through the delivery channel.
func (g *Gate) Issue(ctx context.Context, scope Scope, purpose Purpose) (string, time.Time, error) {
	code, err := generateNumericCode(g.cfg.CodeLength)
	if err != nil {
		return "", time.Time{}, internal.NewInternalError("failed to generate code", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), g.cfg.HashCost)
	if err != nil {
		return "", time.Time{}, internal.NewInternalError("failed to hash code", err)
	}

	issuedAt := g.cfg.Now()
	expiresAt := issuedAt.Add(g.cfg.CodeTTL)
	record := &stepupDatamodel.OneTimeCode{
		UserID:     scope.UserID,
		Purpose:    string(purpose),
		DocumentID: scope.DocumentID,
		CodeHash:   string(hash),
		ExpiresAt:  expiresAt,
		CreatedAt:  issuedAt,
	}
	if scope.DocumentType != "" {
		docType := scope.DocumentType
		record.DocumentType = &docType
	}

	if err := g.repo.Create(ctx, record); err != nil {
		g.logger.Error("failed to store one-time code", "error", err, "user_id", scope.UserID, "purpose", purpose)
		return "", time.Time{}, internal.NewPersistenceError("store one-time code", err)
	}

	g.logger.Info("one-time code issued",
		"user_id", scope.UserID,
		"purpose", purpose,
		"document_type", scope.DocumentType,
		"document_id", scope.DocumentID,
		"expires_at", expiresAt)

	return code, expiresAt, nil
}

// Request issues a code and sends it to the user.
func (g *Gate) Request(ctx context.Context, scope Scope, purpose Purpose) (time.Time, error) {
	code, expiresAt, err := g.Issue(ctx, scope, purpose)
	if err != nil {
		return time.Time{}, err
	}
	if g.deliverer == nil {
		g.logger.Warn("no code deliverer configured, code cannot reach the user", "user_id", scope.UserID, "purpose", purpose)
		return expiresAt, nil
	}
	if err := g.deliverer.DeliverCode(ctx, scope.UserID, purpose, code, expiresAt); err != nil {
		g.logger.Error("failed to deliver one-time code", "error", err, "user_id", scope.UserID, "purpose", purpose)
		return time.Time{}, internal.NewInternalError("failed to deliver code", err)
	}
	return expiresAt, nil
}

// Verify checks code against the latest active record for scope and consumes it.
func (g *Gate) Verify(ctx context.Context, scope Scope, purpose Purpose, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		metrics.RecordStepUp(string(purpose), "missing")
		return Result{}, internal.ErrAuthCodeRequired
	}

	now := g.cfg.Now()
	record, err := g.repo.FindActive(ctx, scope.UserID, string(purpose), scope.DocumentType, scope.DocumentID, now)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			g.logger.Warn("no active code for scope", "user_id", scope.UserID, "purpose", purpose)
			metrics.RecordStepUp(string(purpose), "invalid")
			return Result{}, internal.ErrAuthCodeInvalid
		}
		return Result{}, internal.NewPersistenceError("load one-time code", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)); err != nil {
		g.logger.Warn("one-time code mismatch", "user_id", scope.UserID, "purpose", purpose, "code_id", record.ID)
		metrics.RecordStepUp(string(purpose), "invalid")
		return Result{}, internal.ErrAuthCodeInvalid
	}

	consumed, err := g.repo.Consume(ctx, record.ID, now)
	if err != nil {
		return Result{}, internal.NewPersistenceError("consume one-time code", err)
	}
	if !consumed {
		g.logger.Warn("one-time code already used", "user_id", scope.UserID, "purpose", purpose, "code_id", record.ID)
		metrics.RecordStepUp(string(purpose), "reused")
		return Result{}, internal.ErrAuthCodeInvalid
	}

	metrics.RecordStepUp(string(purpose), "ok")
	return Result{Method: MethodCode, VerifiedAt: now}, nil
}

// CheckApprovalPIN gates the final kepala_bkad approval. Emergency mode skips the PIN.
func (g *Gate) CheckApprovalPIN(ctx context.Context, scope Scope, pin string) (Result, error) {
	flags := g.flags(ctx)
	if flags.EmergencyModeEnabled {
		reason := flags.EmergencyModeReason
		if reason == "" {
			reason = "emergency mode enabled"
		}
		g.logger.Warn("emergency mode: approval PIN bypassed",
			"user_id", scope.UserID,
			"document_id", scope.DocumentID,
			"reason", reason)
		metrics.RecordStepUp(string(PurposeApprovalPIN), "bypassed")
		return Result{Method: MethodEmergencyBypass, BypassReason: &reason, VerifiedAt: g.cfg.Now()}, nil
	}
	return g.Verify(ctx, scope, PurposeApprovalPIN, pin)
}

// CheckDisbursementOTP gates SP2D release. In OTP test mode only the configured static
// code is accepted and the store is not consulted.
func (g *Gate) CheckDisbursementOTP(ctx context.Context, scope Scope, otp string) (Result, error) {
	flags := g.flags(ctx)
	if !flags.OTPTestMode {
		return g.Verify(ctx, scope, PurposeDisbursementOTP, otp)
	}

	otp = strings.TrimSpace(otp)
	if otp == "" {
		metrics.RecordStepUp(string(PurposeDisbursementOTP), "missing")
		return Result{}, internal.ErrAuthCodeRequired
	}
	if flags.OTPTestCode == "" || subtle.ConstantTimeCompare([]byte(otp), []byte(flags.OTPTestCode)) != 1 {
		g.logger.Warn("OTP test mode: code rejected", "user_id", scope.UserID, "document_id", scope.DocumentID)
		metrics.RecordStepUp(string(PurposeDisbursementOTP), "invalid")
		return Result{}, internal.ErrAuthCodeInvalid
	}

	g.logger.Warn("OTP test mode: static code accepted",
		"user_id", scope.UserID,
		"document_id", scope.DocumentID)
	metrics.RecordStepUp(string(PurposeDisbursementOTP), "test_mode")
	return Result{Method: MethodOTPTestMode, VerifiedAt: g.cfg.Now()}, nil
}

// flags fails closed: when the store cannot be read every flag is treated as off.
func (g *Gate) flags(ctx context.Context) Flags {
	if g.config == nil {
		return Flags{}
	}
	flags, err := g.config.Flags(ctx)
	if err != nil {
		g.logger.Error("failed to read step-up flags, using defaults", "error", err)
		return Flags{}
	}
	return flags
}

func generateNumericCode(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random digit: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}
