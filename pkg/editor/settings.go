package editor

import (
	"context"
	"strings"

	"github.com/mono-send/send-smartly/pkg/models"
)

// ExitCondition is the single radio choice behind the two exit flags.
type ExitCondition string

const (
	ExitCompleted ExitCondition = "completed"
	ExitRemoved   ExitCondition = "removed"
)

func (e ExitCondition) Valid() bool {
	return e == ExitCompleted || e == ExitRemoved
}

// Settings are the locally staged workflow settings.
type Settings struct {
	Name                  string
	TriggerSegmentID      string
	UnsubscribeCategoryID string
	TrackOpens            bool
	TrackClicks           bool
	Exit                  ExitCondition
}

// Patch converts the staged settings to the request sent on save. Empty ids clear
// the reference on the server.
func (st Settings) Patch() models.WorkflowPatch {
	exitOnAll := st.Exit == ExitCompleted
	exitOnLeave := st.Exit == ExitRemoved

	return models.WorkflowPatch{
		Name:                  models.StringPtr(st.Name),
		TriggerSegmentID:      models.StringPtr(st.TriggerSegmentID),
		UnsubscribeCategoryID: models.StringPtr(st.UnsubscribeCategoryID),
		TrackOpens:            &st.TrackOpens,
		TrackClicks:           &st.TrackClicks,
		ExitOnAllEmails:       &exitOnAll,
		ExitOnSegmentLeave:    &exitOnLeave,
	}
}

func settingsOf(w *models.Workflow) Settings {
	exit := ExitCompleted
	if w.ExitOnSegmentLeave && !w.ExitOnAllEmails {
		exit = ExitRemoved
	}

	return Settings{
		Name:                  w.Name,
		TriggerSegmentID:      models.StringValue(w.TriggerSegmentID),
		UnsubscribeCategoryID: models.StringValue(w.UnsubscribeCategoryID),
		TrackOpens:            w.TrackOpens,
		TrackClicks:           w.TrackClicks,
		Exit:                  exit,
	}
}

// Settings returns the staged settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// SetTriggerSegment stages the segment and, when it differs from the value the
// server last reported, patches it right away. A failed patch reverts the local
// value to the server-known one.
func (s *Session) SetTriggerSegment(ctx context.Context, segmentID string) error {
	s.mu.Lock()
	s.settings.TriggerSegmentID = segmentID
	known := s.serverSegment
	selected := s.selected != nil
	s.mu.Unlock()

	if !selected || segmentID == known {
		return nil
	}

	id, release, err := s.acquire(OpSetTriggerSegment)
	if err != nil {
		return err
	}
	defer release()

	patched, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.PatchWorkflow(ctx, id, models.WorkflowPatch{TriggerSegmentID: models.StringPtr(segmentID)})
	})
	if err != nil {
		s.mu.Lock()
		if s.settings.TriggerSegmentID == segmentID {
			s.settings.TriggerSegmentID = s.serverSegment
		}
		s.mu.Unlock()

		return s.fail(ctx, OpSetTriggerSegment, err)
	}

	s.mu.Lock()
	s.serverSegment = models.StringValue(patched.TriggerSegmentID)
	s.mu.Unlock()

	s.replaceWorkflow(patched)

	return nil
}

// Rename stages a new name. It reports false and changes nothing when the trimmed
// name is empty or unchanged.
func (s *Session) Rename(name string) bool {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || name == s.settings.Name {
		return false
	}

	s.settings.Name = name

	return true
}

func (s *Session) SetTracking(opens, clicks bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.TrackOpens = opens
	s.settings.TrackClicks = clicks
}

func (s *Session) SetExitCondition(exit ExitCondition) error {
	if !exit.Valid() {
		return ErrInvalidExitCondition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.Exit = exit

	return nil
}

func (s *Session) SetUnsubscribeCategory(categoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.UnsubscribeCategoryID = categoryID
}
