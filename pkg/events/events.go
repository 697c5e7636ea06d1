// Package events defines the workflow lifecycle notifications handed to the execution engine.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mono-send/send-smartly/pkg/models"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "sendsmartly.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowVersionSavedEvent  EventType = "workflow.version_saved"
	WorkflowActivatedEvent     EventType = "workflow.activated"
	WorkflowVersionPrunedEvent EventType = "workflow.version_pruned"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowVersionSaved is published after a save wrote a new snapshot.
type WorkflowVersionSaved struct {
	BaseEvent

	VersionNumber int `json:"version_number"`
	StepCount     int `json:"step_count"`
}

func (e WorkflowVersionSaved) GetType() EventType {
	return WorkflowVersionSavedEvent
}

// WorkflowActivated tells the execution engine which version to run.
type WorkflowActivated struct {
	BaseEvent

	VersionNumber    int                   `json:"version_number"`
	TriggerSegmentID string                `json:"trigger_segment_id"`
	Settings         models.Settings       `json:"settings"`
	Steps            []models.WorkflowStep `json:"steps"`
}

func (e WorkflowActivated) GetType() EventType {
	return WorkflowActivatedEvent
}

// WorkflowVersionPruned is published when retention removed an old snapshot.
type WorkflowVersionPruned struct {
	BaseEvent

	VersionNumber int `json:"version_number"`
}

func (e WorkflowVersionPruned) GetType() EventType {
	return WorkflowVersionPrunedEvent
}
