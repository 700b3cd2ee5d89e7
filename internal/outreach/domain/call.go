package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus is the lifecycle state of an outbound call.
type CallStatus string

const (
	CallStatusQueued     CallStatus = "QUEUED"
	CallStatusRinging    CallStatus = "RINGING"
	CallStatusBusy       CallStatus = "BUSY"
	CallStatusInProgress CallStatus = "IN_PROGRESS"
	CallStatusEnded      CallStatus = "ENDED"
	CallStatusFailed     CallStatus = "FAILED"
	CallStatusNoAnswer   CallStatus = "NO_ANSWER"
	CallStatusCanceled   CallStatus = "CANCELED"
)

// ActiveCallStatuses are the states that hold the dispatch gate shut.
var ActiveCallStatuses = []CallStatus{
	CallStatusQueued,
	CallStatusRinging,
	CallStatusBusy,
	CallStatusInProgress,
}

// IsTerminal reports whether no further vendor updates are expected.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusQueued, CallStatusRinging, CallStatusBusy, CallStatusInProgress:
		return false
	default:
		return true
	}
}

// CallSession is the local mirror of one vendor call.
type CallSession struct {
	ID            uuid.UUID
	CallID        string
	LeadID        uuid.UUID
	Status        CallStatus
	StartedAt     *time.Time
	EndedAt       *time.Time
	EndReason     *string
	Transcript    *string
	TranscriptKey *string
	CostCents     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
