// Package editor is the workflow builder's lifecycle controller. A Session owns the
// selected workflow, the staged settings and the email views derived from its steps,
// and drives every change through the workflow API.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mono-send/send-smartly/pkg/client"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/projection"
	"github.com/mono-send/send-smartly/pkg/reconcile"
)

// API is the subset of the workflow API the editor consumes. *client.Client
// satisfies it.
type API interface {
	ListWorkflows(ctx context.Context, opts client.ListOptions) (*models.WorkflowList, error)
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	PatchWorkflow(ctx context.Context, id string, patch models.WorkflowPatch) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ActivateWorkflow(ctx context.Context, id string, version int) (*models.Workflow, error)
	CreateStep(ctx context.Context, workflowID string, req models.CreateStepRequest) (*models.WorkflowStep, error)
	UpdateStep(ctx context.Context, workflowID, stepID string, config models.StepConfig) (*models.WorkflowStep, error)
	DeleteStep(ctx context.Context, workflowID, stepID string) ([]models.WorkflowStep, error)
	ReorderSteps(ctx context.Context, workflowID string, items []models.ReorderItem) ([]models.WorkflowStep, error)
	Segments(ctx context.Context) ([]models.Segment, error)
	ContactCategories(ctx context.Context) ([]models.ContactCategory, error)
	Senders(ctx context.Context) ([]models.Sender, error)
	Templates(ctx context.Context) ([]models.Template, error)
}

var _ API = (*client.Client)(nil)

var (
	ErrSessionClosed        = errors.New("editor session is closed")
	ErrInFlight             = errors.New("operation already in progress")
	ErrNoWorkflow           = errors.New("no workflow selected")
	ErrSegmentRequired      = errors.New("a trigger segment must be selected before adding emails")
	ErrInvalidForm          = errors.New("email form is incomplete")
	ErrInvalidExitCondition = errors.New("unknown exit condition")
	ErrConditionExists      = errors.New("workflow already has a condition")
	ErrNoCondition          = errors.New("workflow has no condition")
	ErrNoEmailToEvaluate    = errors.New("add an email before adding a condition")
	ErrBranchFull           = errors.New("branch already has an email")
	ErrBranchEmpty          = errors.New("branch has no email")
	ErrEmailNotFound        = errors.New("email not found")
)

// Operation names a user action. The single-flight guard and notifications are
// keyed by it.
type Operation string

const (
	OpLoad              Operation = "load"
	OpSelect            Operation = "select"
	OpLookups           Operation = "lookups"
	OpSetTriggerSegment Operation = "set_trigger_segment"
	OpAddEmail          Operation = "add_email"
	OpUpdateEmail       Operation = "update_email"
	OpDeleteEmail       Operation = "delete_email"
	OpReorder           Operation = "reorder"
	OpAddCondition      Operation = "add_condition"
	OpRemoveCondition   Operation = "remove_condition"
	OpAddBranchEmail    Operation = "add_branch_email"
	OpRemoveBranchEmail Operation = "remove_branch_email"
	OpSave              Operation = "save"
	OpActivate          Operation = "activate"
)

// group returns the guard slot an operation occupies. Operations sharing a slot
// exclude each other on the same workflow.
func (op Operation) group() string {
	switch op {
	case OpSave, OpActivate:
		return "lifecycle"
	case OpAddEmail, OpUpdateEmail, OpDeleteEmail, OpReorder,
		OpAddCondition, OpRemoveCondition, OpAddBranchEmail, OpRemoveBranchEmail:
		return "steps"
	default:
		return string(op)
	}
}

type flightKey struct {
	workflowID string
	group      string
}

type Session struct {
	api      API
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger

	scope  context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	workflows     []models.WorkflowListItem
	selected      *models.Workflow
	settings      Settings
	serverSegment string
	views         projection.Views
	lookups       models.Lookups
	inflight      map[flightKey]Operation
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(s *Session) {
		s.validate = v
	}
}

// New starts an editing session. Every request the session issues is cancelled
// when ctx is done or Close is called.
func New(ctx context.Context, api API, opts ...Option) *Session {
	s := &Session{
		api:      api,
		logger:   slog.Default(),
		inflight: make(map[flightKey]Operation),
		settings: Settings{Exit: ExitCompleted},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	if s.validate == nil {
		s.validate = newValidator()
	}

	s.scope, s.cancel = context.WithCancel(ctx)

	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// Close cancels every outstanding request. Results that arrive afterwards are
// discarded.
func (s *Session) Close() {
	s.cancel()
}

// Workflows returns the last fetched workflow list.
func (s *Session) Workflows() []models.WorkflowListItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.WorkflowListItem, len(s.workflows))
	copy(out, s.workflows)

	return out
}

// Workflow returns a copy of the selected workflow, or nil.
func (s *Session) Workflow() *models.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return nil
	}

	return s.selected.Clone()
}

// Views returns the email lists and condition derived from the selected workflow.
func (s *Session) Views() projection.Views {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.views
}

// Emails returns one of the reorderable email lists.
func (s *Session) Emails(list reconcile.ListKind) []models.EmailStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.views.Main
	if list == reconcile.ListMerged {
		src = s.views.Merged
	}

	out := make([]models.EmailStep, len(src))
	copy(out, src)

	return out
}

// Busy reports whether op is in flight on the selected workflow.
func (s *Session) Busy(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.inflight[flightKey{workflowID: s.selectedID(), group: op.group()}]

	return ok && held == op
}

// Load fetches the workflow list and selects the first workflow, if any.
func (s *Session) Load(ctx context.Context) error {
	list, err := call(ctx, s, func(ctx context.Context) (*models.WorkflowList, error) {
		return s.api.ListWorkflows(ctx, client.ListOptions{})
	})
	if err != nil {
		return s.fail(ctx, OpLoad, err)
	}

	s.mu.Lock()
	s.workflows = list.Data
	s.mu.Unlock()

	if len(list.Data) == 0 {
		s.populate(nil)

		return nil
	}

	return s.Select(ctx, list.Data[0].ID)
}

// Select fetches a workflow and replaces all editor state with it.
func (s *Session) Select(ctx context.Context, id string) error {
	workflow, err := call(ctx, s, func(ctx context.Context) (*models.Workflow, error) {
		return s.api.GetWorkflow(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, OpSelect, err)
	}

	s.populate(workflow)

	return nil
}

// populate replaces the selection, the staged settings and the views wholesale.
func (s *Session) populate(workflow *models.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = workflow

	if workflow == nil {
		s.settings = Settings{Exit: ExitCompleted}
		s.serverSegment = ""
		s.views = projection.Views{}

		return
	}

	s.settings = settingsOf(workflow)
	s.serverSegment = models.StringValue(workflow.TriggerSegmentID)
	s.refreshViewsLocked()
}

// replaceWorkflow swaps in a server response while keeping staged settings.
func (s *Session) replaceWorkflow(workflow *models.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = workflow
	s.refreshViewsLocked()
}

// replaceSteps swaps in the server's step list for the selected workflow.
func (s *Session) replaceSteps(workflowID string, steps []models.WorkflowStep) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil || s.selected.ID != workflowID {
		return
	}

	s.selected.Steps = models.SortedSteps(steps)
	s.selected.HasUnsavedChanges = true
	s.refreshViewsLocked()
}

func (s *Session) refreshViewsLocked() {
	if s.selected == nil {
		s.views = projection.Views{}

		return
	}

	views, err := projection.Project(s.selected.Steps)
	if err != nil {
		s.logger.Warn("Step graph cannot be projected, showing path emails only",
			"workflow_id", s.selected.ID, "error", err)

		views = projection.Views{Main: projection.ToEmailSteps(s.selected.Steps)}
	}

	s.fillSenderEmails(views.Main)
	s.fillSenderEmails(views.Merged)

	if views.Condition != nil {
		for _, b := range []models.Branch{models.BranchYes, models.BranchNo} {
			if arm := views.Condition.Arm(b); arm.Email != nil {
				s.fillSenderEmail(arm.Email)
			}
		}
	}

	s.views = views
}

func (s *Session) fillSenderEmails(emails []models.EmailStep) {
	for i := range emails {
		s.fillSenderEmail(&emails[i])
	}
}

// fillSenderEmail resolves a blank sender address from the sender lookup.
func (s *Session) fillSenderEmail(email *models.EmailStep) {
	if email.SenderEmail != "" || email.SenderID == "" {
		return
	}

	if sender, ok := s.lookups.SenderByID(email.SenderID); ok {
		email.SenderEmail = sender.Email
	}
}

func (s *Session) selectedID() string {
	if s.selected == nil {
		return ""
	}

	return s.selected.ID
}

// acquire takes the single-flight slot of op on the selected workflow. The
// returned function releases it.
func (s *Session) acquire(op Operation) (string, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope.Err() != nil {
		return "", nil, ErrSessionClosed
	}

	id := s.selectedID()
	key := flightKey{workflowID: id, group: op.group()}

	if held, ok := s.inflight[key]; ok {
		s.logger.Debug("Operation rejected while another is in flight",
			"operation", string(op), "in_flight", string(held), "workflow_id", id)

		return "", nil, ErrInFlight
	}

	s.inflight[key] = op

	return id, func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}

// call runs fn with a context that is also cancelled when the session closes, and
// discards its result when the session closed meanwhile.
func call[T any](ctx context.Context, s *Session, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if s.scope.Err() != nil {
		return zero, ErrSessionClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.scope, cancel)

	defer func() {
		stop()
		cancel()
	}()

	out, err := fn(ctx)
	if s.scope.Err() != nil {
		return zero, ErrSessionClosed
	}

	return out, err
}

// fail reports err to the user and returns it.
func (s *Session) fail(ctx context.Context, op Operation, err error) error {
	if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrInFlight) {
		return err
	}

	message, ok := client.Detail(err)
	if !ok {
		message = failureMessage(op)
	}

	s.logger.Error("Editor operation failed", "operation", string(op), "error", err)
	s.notifier.Notify(ctx, Notification{Level: LevelError, Op: op, Message: message})

	return err
}

func (s *Session) warn(ctx context.Context, op Operation, err error, message string) error {
	s.notifier.Notify(ctx, Notification{Level: LevelWarning, Op: op, Message: message})

	return err
}
