// Package domain holds the outreach entities shared by the scheduling,
// dispatch and reconciliation packages.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the transport a sequence step is delivered over.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelCall  Channel = "CALL"
)

// ParseChannel accepts channel names in any case.
func ParseChannel(raw string) (Channel, bool) {
	switch Channel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, true
	case ChannelSMS:
		return ChannelSMS, true
	case ChannelCall:
		return ChannelCall, true
	default:
		return "", false
	}
}

// SequenceStep is one touch of the drip catalog.
type SequenceStep struct {
	ID                 uuid.UUID
	CatalogVersion     int
	Order              int
	DelayOffsetMinutes int
	Channel            Channel
	MessageTemplateRef string
	Subject            string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// Delay is the step's offset from the lead's reference time.
func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayOffsetMinutes) * time.Minute
}

// RetryPolicy annotates escalations for a step. It never drives re-attempts.
type RetryPolicy struct {
	ID                uuid.UUID
	SequenceStepID    uuid.UUID
	Name              string
	RetryAfterMinutes int
	IsActive          bool
}

// PendingDelivery is one scheduled touch of one lead.
// IsSent == nil means unresolved.
type PendingDelivery struct {
	ID             uuid.UUID
	Seq            int64
	LeadID         uuid.UUID
	SequenceStepID uuid.UUID
	Channel        Channel
	ScheduledFor   time.Time
	IsSent         *time.Time
	Error          *string
	ShouldSend     bool
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Unresolved reports whether the dispatch loop may still pick this record.
func (d PendingDelivery) Unresolved() bool {
	return d.IsSent == nil && d.ShouldSend && d.DeletedAt == nil
}

// RetryLogEntry is an append-only record of a failed (or successful) attempt.
type RetryLogEntry struct {
	ID                uuid.UUID
	PendingDeliveryID uuid.UUID
	RetryPolicyID     *uuid.UUID
	Attempt           int
	AttemptedAt       time.Time
	ErrorMessage      string
	Success           bool
	// Deferred marks a failure that did not consume an attempt (send quota).
	Deferred bool
}

// EmailStatus is the outcome recorded in the email log.
type EmailStatus string

const (
	EmailStatusSent     EmailStatus = "sent"
	EmailStatusFailed   EmailStatus = "failed"
	EmailStatusRejected EmailStatus = "rejected"
)

// EmailLogEntry backs the rolling send quota and the email audit trail.
type EmailLogEntry struct {
	ID                uuid.UUID
	PendingDeliveryID *uuid.UUID
	ToEmail           string
	Subject           string
	Status            EmailStatus
	Error             *string
	CreatedAt         time.Time
}

// ContactStatus tracks where a lead is in the outreach lifecycle.
type ContactStatus string

const (
	ContactStatusNew          ContactStatus = "NEW"
	ContactStatusInSequence   ContactStatus = "IN_SEQUENCE"
	ContactStatusCompleted    ContactStatus = "COMPLETED"
	ContactStatusDoNotContact ContactStatus = "DO_NOT_CONTACT"
)

// Lead is the subset of the lead record outreach reads and updates.
type Lead struct {
	ID            uuid.UUID
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	IPAddress     string
	Source        string
	ContactStatus ContactStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName joins first and last name, skipping blanks.
func (l Lead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// Admin is an operator who receives escalations.
type Admin struct {
	ID    uuid.UUID
	Email string
	Name  string
	Role  string
}

// ChannelToggles enables channels per job run.
type ChannelToggles struct {
	Email bool
	SMS   bool
	Call  bool
}

// Enabled reports whether ch may be dispatched.
func (t ChannelToggles) Enabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return t.Email
	case ChannelSMS:
		return t.SMS
	case ChannelCall:
		return t.Call
	default:
		return false
	}
}

// List returns the enabled channels in a stable order.
func (t ChannelToggles) List() []Channel {
	out := make([]Channel, 0, 3)
	for _, ch := range []Channel{ChannelEmail, ChannelSMS, ChannelCall} {
		if t.Enabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Job names stored in outreach_jobs.
const (
	JobDispatch           = "outreach_dispatch"
	JobCallReconciliation = "call_reconciliation"
	JobFollowUp           = "outreach_followup"
)

// JobConfig is the operator-editable row that enables a background job.
type JobConfig struct {
	Name      string
	Enabled   bool
	Channels  ChannelToggles
	Schedule  string
	UpdatedAt time.Time
}
