package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mono-send/send-smartly/pkg/eventbus"
	"github.com/mono-send/send-smartly/pkg/lock"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/otelhelper"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a service.
type Option func(*base)

// WithLocker sets the per-workflow mutation lock. The default is an in-process lock.
func WithLocker(locker lock.Locker) Option {
	return func(b *base) {
		b.locker = locker
	}
}

// WithPublisher sets where lifecycle events go. Without one, events are dropped.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(b *base) {
		b.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(b *base) {
		b.tracer = tracer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base holds what every service shares.
type base struct {
	persistence persistence.Persistence
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

func newBase(p persistence.Persistence, opts []Option) base {
	b := base{
		persistence: p,
		locker:      lock.NewMemoryLocker(),
		tracer:      otelhelper.NewNoopTracer(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// withLock runs fn while holding the workflow's mutation lock. A held lock fails fast
// with ErrWorkflowBusy.
func (b *base) withLock(ctx context.Context, op, workflowID string, fn func(ctx context.Context) error) error {
	lease, err := b.locker.TryAcquire(ctx, lock.WorkflowKey(workflowID), lock.DefaultTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return newConflictError(op, "workflow is being modified by another request, please retry", ErrWorkflowBusy)
		}

		return fmt.Errorf("%s: failed to acquire workflow lock: %w", op, err)
	}

	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			b.logger.WarnContext(ctx, "failed to release workflow lock", "workflow_id", workflowID, "error", err)
		}
	}()

	return fn(ctx)
}

func (b *base) load(ctx context.Context, op, workflowID string) (*models.Workflow, error) {
	workflow, err := b.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, newNotFoundError(op, "workflow not found", ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get workflow: %w", op, err)
	}

	return workflow, nil
}

func (b *base) store(ctx context.Context, op string, workflow *models.Workflow) error {
	if err := b.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return fmt.Errorf("%s: failed to save workflow: %w", op, err)
	}

	return nil
}

// publish hands an event to the bus. Failures are logged: the state change already
// happened and is not rolled back.
func (b *base) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if b.publisher == nil {
		return
	}

	if err := b.publisher.Publish(ctx, workflowID, event); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish event",
			"workflow_id", workflowID,
			"event_type", event.GetType(),
			"error", err)
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}

	return id.String()
}
