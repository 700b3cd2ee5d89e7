package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobDisabled means the job row is missing or switched off.
	ErrJobDisabled = errors.New("job disabled")
	// ErrMisconfigured means provider credentials or identifiers are missing.
	// The tick aborts without touching the record or escalating.
	ErrMisconfigured = errors.New("channel misconfigured")
	// ErrQuotaExceeded is an admission rejection; no provider call was made.
	ErrQuotaExceeded = errors.New("send quota exceeded")
	// ErrProvider wraps network and vendor failures.
	ErrProvider = errors.New("provider error")
	// ErrChannelNotImplemented is reported by channels without a transport.
	ErrChannelNotImplemented = errors.New("channel not implemented")
	// ErrChannelDisabled is an outcome, not a failure.
	ErrChannelDisabled = errors.New("channel disabled")
	// ErrNoHandler means no handler is registered for a delivery's channel.
	ErrNoHandler = errors.New("no handler for channel")
)

// ProviderError wraps a vendor failure so callers can match ErrProvider
// while keeping the vendor's message.
func ProviderError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}

// Severity ranks an escalation for operators.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityFor classifies a handler failure.
func SeverityFor(err error) Severity {
	switch {
	case errors.Is(err, ErrChannelNotImplemented):
		return SeverityInfo
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrProvider):
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// IsSilent reports failures that abort a tick without audit or escalation.
func IsSilent(err error) bool {
	return errors.Is(err, ErrMisconfigured) || errors.Is(err, ErrJobDisabled)
}
