package editor

import (
	"context"

	"github.com/mono-send/send-smartly/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Save persists the staged settings and then stores the draft as a new version.
// It stops at the first failing call.
func (s *Session) Save(ctx context.Context) error {
	id, release, err := s.acquire(OpSave)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.save(ctx, OpSave, id); err != nil {
		return err
	}

	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Op: OpSave, Message: "Workflow saved"})

	return nil
}

// Activate saves and then promotes the version that save produced. Nothing is
// activated when save fails.
func (s *Session) Activate(ctx context.Context) error {
	id, release, err := s.acquire(OpActivate)
	if err != nil {
		return err
	}
	defer release()

	saved, err := s.save(ctx, OpActivate, id)
	if err != nil {
		return err
	}

	activated, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.ActivateWorkflow(ctx, id, saved.DraftVersion)
	})
	if err != nil {
		return s.fail(ctx, OpActivate, err)
	}

	s.populate(activated)
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Op: OpActivate, Message: "Workflow activated"})

	return nil
}

func (s *Session) save(ctx context.Context, op Operation, workflowID string) (*models.Workflow, error) {
	if workflowID == "" {
		return nil, s.fail(ctx, op, ErrNoWorkflow)
	}

	patch := s.Settings().Patch()

	if _, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.PatchWorkflow(ctx, workflowID, patch)
	}); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	saved, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.SaveWorkflow(ctx, workflowID)
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.populate(saved)

	return saved, nil
}

// Lookups fetches the selector sources and caches them for sender resolution.
func (s *Session) Lookups(ctx context.Context) (models.Lookups, error) {
	var out models.Lookups

	_, err := call(ctx, s, func(ctx context.Context) (struct{}, error) {
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() (err error) {
			out.Segments, err = s.api.Segments(ctx)
			return err
		})
		g.Go(func() (err error) {
			out.Categories, err = s.api.ContactCategories(ctx)
			return err
		})
		g.Go(func() (err error) {
			out.Senders, err = s.api.Senders(ctx)
			return err
		})
		g.Go(func() (err error) {
			out.Templates, err = s.api.Templates(ctx)
			return err
		})

		return struct{}{}, g.Wait()
	})
	if err != nil {
		return models.Lookups{}, s.fail(ctx, OpLookups, err)
	}

	s.mu.Lock()
	s.lookups = out
	s.refreshViewsLocked()
	s.mu.Unlock()

	return out, nil
}
