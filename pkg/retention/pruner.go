// Package retention prunes old saved workflow versions on a schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mono-send/send-smartly/pkg/eventbus"
	"github.com/mono-send/send-smartly/pkg/events"
	"github.com/mono-send/send-smartly/pkg/lock"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@daily"
	DefaultKeep     = 20
)

type Config struct {
	// Schedule is a standard cron expression or descriptor.
	Schedule string
	// Keep is how many of the newest versions survive per workflow. The active
	// version always survives.
	Keep int
}

type Pruner struct {
	persistence persistence.Persistence
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	config      Config
	cron        *cron.Cron
}

func NewPruner(
	p persistence.Persistence,
	locker lock.Locker,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	config Config,
) (*Pruner, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}

	if config.Keep <= 0 {
		config.Keep = DefaultKeep
	}

	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule: %w", err)
	}

	return &Pruner{
		persistence: p,
		locker:      locker,
		publisher:   publisher,
		logger:      logger.With("module", "retention", "schedule", config.Schedule, "keep", config.Keep),
		config:      config,
	}, nil
}

// Start schedules Prune. Runs never overlap.
func (p *Pruner) Start(ctx context.Context) error {
	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := p.cron.AddFunc(p.config.Schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule version pruning: %w", err)
	}

	p.cron.Start()
	p.logger.InfoContext(ctx, "Version retention started")

	return nil
}

// Stop halts the schedule and waits for a running prune to finish or ctx to end.
func (p *Pruner) Stop(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}

	select {
	case <-p.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pruner) run(ctx context.Context) {
	pruned, err := p.Prune(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Version pruning failed", "error", err)

		return
	}

	p.logger.InfoContext(ctx, "Version pruning finished", "pruned", pruned)
}

// Prune deletes the versions that fall outside the retention window of every
// workflow and returns how many were removed. Workflows being edited are skipped.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	opts := persistence.ListWorkflowsOptions{
		Limit:     persistence.MaxListLimit,
		SortBy:    "created_at",
		SortOrder: "asc",
	}

	total := 0

	for {
		page, err := p.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
		if err != nil {
			return total, fmt.Errorf("failed to list workflows: %w", err)
		}

		for _, workflow := range page.Workflows {
			pruned, err := p.pruneWorkflow(ctx, workflow.ID)
			if errors.Is(err, lock.ErrLocked) {
				p.logger.DebugContext(ctx, "Skipping busy workflow", "workflow_id", workflow.ID)

				continue
			}

			if err != nil {
				return total, err
			}

			total += pruned
		}

		if !page.HasNextPage {
			return total, nil
		}

		opts.Offset += opts.Limit
	}
}

func (p *Pruner) pruneWorkflow(ctx context.Context, workflowID string) (int, error) {
	lease, err := p.locker.TryAcquire(ctx, lock.WorkflowKey(workflowID), lock.DefaultTTL)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.WarnContext(ctx, "Failed to release workflow lock", "workflow_id", workflowID, "error", err)
		}
	}()

	// Reload under the lock so a concurrent activation is seen.
	workflow, err := p.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to get workflow %s: %w", workflowID, err)
	}

	versions, err := p.persistence.VersionRepository().Versions(ctx, workflowID)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions of workflow %s: %w", workflowID, err)
	}

	pruned := 0

	for _, version := range expired(workflow, versions, p.config.Keep) {
		if err := p.persistence.VersionRepository().DeleteVersion(ctx, workflowID, version.Number); err != nil {
			return pruned, fmt.Errorf("failed to delete version %d of workflow %s: %w", version.Number, workflowID, err)
		}

		pruned++

		if p.publisher == nil {
			continue
		}

		event := events.WorkflowVersionPruned{
			BaseEvent:     events.NewBaseEvent(events.WorkflowVersionPrunedEvent, workflowID),
			VersionNumber: version.Number,
		}
		if err := p.publisher.Publish(ctx, workflowID, event); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish pruned event", "workflow_id", workflowID, "error", err)
		}
	}

	return pruned, nil
}

// expired returns the versions past the newest keep, sparing the active one.
// versions must be ordered newest first.
func expired(workflow *models.Workflow, versions []*models.WorkflowVersion, keep int) []*models.WorkflowVersion {
	if len(versions) <= keep {
		return nil
	}

	var out []*models.WorkflowVersion

	for _, version := range versions[keep:] {
		if workflow.ActiveVersion != nil && *workflow.ActiveVersion == version.Number {
			continue
		}

		out = append(out, version)
	}

	return out
}
