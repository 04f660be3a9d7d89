package stepup

import (
	"context"
	"time"
)

type Purpose string

const (
	PurposeApprovalPIN     Purpose = "approval_pin"
	PurposeDisbursementOTP Purpose = "disbursement_otp"
)

// Method records how a step-up check was satisfied.
type Method string

const (
	MethodCode            Method = "code"
	MethodOTPTestMode     Method = "otp_test_mode"
	MethodEmergencyBypass Method = "emergency_bypass"
)

// Scope binds a code to a user and optionally to one document.
type Scope struct {
	UserID       int64
	DocumentType string
	DocumentID   *int64
}

type Result struct {
	Method       Method    `json:"method"`
	BypassReason *string   `json:"bypass_reason,omitempty"`
	VerifiedAt   time.Time `json:"verified_at"`
}

func (r Result) Bypassed() bool {
	return r.Method == MethodEmergencyBypass
}

// Flags are the runtime switches read from the configuration store.
type Flags struct {
	OTPTestMode          bool
	OTPTestCode          string
	EmergencyModeEnabled bool
	EmergencyModeReason  string
}

type ConfigProvider interface {
	Flags(ctx context.Context) (Flags, error)
}

// Deliverer hands a freshly issued plaintext code to the user out of band.
type Deliverer interface {
	DeliverCode(ctx context.Context, userID int64, purpose Purpose, code string, expiresAt time.Time) error
}
