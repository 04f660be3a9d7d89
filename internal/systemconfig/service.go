package systemconfig

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/spm-sp2d/internal"
	systemconfigDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/systemconfig"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
)

const (
	KeyOTPTestMode          = "otp_test_mode"
	KeyOTPTestCode          = "otp_test_code"
	KeyEmergencyModeEnabled = "emergency_mode_enabled"
	KeyEmergencyModeReason  = "emergency_mode_reason"
)

var boolKeys = map[string]bool{
	KeyOTPTestMode:          true,
	KeyEmergencyModeEnabled: true,
}

var knownKeys = map[string]bool{
	KeyOTPTestMode:          true,
	KeyOTPTestCode:          true,
	KeyEmergencyModeEnabled: true,
	KeyEmergencyModeReason:  true,
}

type RepositoryAPI interface {
	All(ctx context.Context) ([]*systemconfigDatamodel.Setting, error)
	Upsert(ctx context.Context, setting *systemconfigDatamodel.Setting) error
}

// Service is the key/value configuration store. It backs the step-up gate flags.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

var _ stepup.ConfigProvider = (*Service)(nil)

func (s *Service) Flags(ctx context.Context) (stepup.Flags, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return stepup.Flags{}, err
	}
	return stepup.Flags{
		OTPTestMode:          parseBool(values[KeyOTPTestMode]),
		OTPTestCode:          values[KeyOTPTestCode],
		EmergencyModeEnabled: parseBool(values[KeyEmergencyModeEnabled]),
		EmergencyModeReason:  values[KeyEmergencyModeReason],
	}, nil
}

func (s *Service) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		s.logger.Error("failed to load system config", "error", err)
		return nil, internal.NewPersistenceError("load system config", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

func (s *Service) Update(ctx context.Context, actorID int64, values map[string]string) (map[string]string, error) {
	if err := validateValues(values); err != nil {
		return nil, err
	}

	for key, value := range values {
		setting := &systemconfigDatamodel.Setting{Key: key, Value: value, UpdatedBy: &actorID}
		if err := s.repo.Upsert(ctx, setting); err != nil {
			s.logger.Error("failed to update system config", "error", err, "key", key)
			return nil, internal.NewPersistenceError("update system config", err)
		}
		s.logger.Warn("system config changed", "key", key, "updated_by", actorID)
	}

	return s.GetAll(ctx)
}

func validateValues(values map[string]string) *internal.AppError {
	var errs []internal.ValidationError
	for key, value := range values {
		if !knownKeys[key] {
			errs = append(errs, internal.ValidationError{
				Field:   key,
				Message: fmt.Sprintf("unknown setting %s", key),
				Code:    string(internal.ErrCodeValidationFailed),
			})
			continue
		}
		if boolKeys[key] {
			if _, err := strconv.ParseBool(value); err != nil {
				errs = append(errs, internal.ValidationError{
					Field:   key,
					Message: fmt.Sprintf("%s must be true or false", key),
					Code:    string(internal.ErrCodeValidationFailed),
				})
			}
		}
	}
	if len(errs) > 0 {
		return internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: errs})
	}
	return nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
