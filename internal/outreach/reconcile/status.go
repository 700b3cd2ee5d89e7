package reconcile

import (
	"strings"

	"outreach_backend/internal/outreach/domain"
)

// MapVendorStatus translates the voice vendor's status into a CallStatus.
// ok is false for statuses the vendor added after this mapping was written.
func MapVendorStatus(status, endedReason string) (domain.CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "queued", "scheduled":
		return domain.CallStatusQueued, true
	case "ringing":
		return domain.CallStatusRinging, true
	case "in-progress", "forwarding":
		return domain.CallStatusInProgress, true
	case "busy":
		return domain.CallStatusBusy, true
	case "ended":
		return mapEndedReason(endedReason), true
	default:
		return "", false
	}
}

func mapEndedReason(reason string) domain.CallStatus {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "did-not-answer"), strings.Contains(r, "no-answer"), strings.Contains(r, "voicemail"):
		return domain.CallStatusNoAnswer
	case strings.Contains(r, "cancel"):
		return domain.CallStatusCanceled
	case strings.Contains(r, "error"), strings.Contains(r, "failed"):
		return domain.CallStatusFailed
	default:
		return domain.CallStatusEnded
	}
}
