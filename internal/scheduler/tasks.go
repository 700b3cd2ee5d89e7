package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScheduleSequence = "outreach:sequence.schedule"

const TaskInboundContact = "outreach:contact.inbound"

type ScheduleSequencePayload struct {
	LeadID    string  `json:"leadId"`
	CreatedBy *string `json:"createdBy,omitempty"`
}

type InboundContactPayload struct {
	LeadID string `json:"leadId"`
	Phone  string `json:"phone"`
}

func NewScheduleSequenceTask(payload ScheduleSequencePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScheduleSequence, data), nil
}

func ParseScheduleSequencePayload(task *asynq.Task) (ScheduleSequencePayload, error) {
	var payload ScheduleSequencePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScheduleSequencePayload{}, err
	}
	return payload, nil
}

func NewInboundContactTask(payload InboundContactPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInboundContact, data), nil
}

func ParseInboundContactPayload(task *asynq.Task) (InboundContactPayload, error) {
	var payload InboundContactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InboundContactPayload{}, err
	}
	return payload, nil
}
