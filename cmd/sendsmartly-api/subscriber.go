package main

import (
	"context"
	"log/slog"

	"github.com/mono-send/send-smartly/pkg/eventbus"
	"github.com/mono-send/send-smartly/pkg/events"
)

// logLifecycleEvents records every lifecycle event the API publishes. The execution
// engine consumes the same topic; this keeps an audit trail on the API side.
func logLifecycleEvents(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowVersionSavedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.WorkflowVersionSaved)
			logger.InfoContext(ctx, "Workflow version saved",
				"workflow_id", e.WorkflowID,
				"version", e.VersionNumber,
				"steps", e.StepCount)

			return nil
		},
		events.WorkflowActivatedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.WorkflowActivated)
			logger.InfoContext(ctx, "Workflow activated",
				"workflow_id", e.WorkflowID,
				"version", e.VersionNumber,
				"trigger_segment_id", e.TriggerSegmentID)

			return nil
		},
		events.WorkflowVersionPrunedEvent: func(ctx context.Context, event any) error {
			e := event.(*events.WorkflowVersionPruned)
			logger.DebugContext(ctx, "Workflow version pruned",
				"workflow_id", e.WorkflowID,
				"version", e.VersionNumber)

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
