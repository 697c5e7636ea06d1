// Package stepgraph turns the flat, position-addressed step list of a workflow into
// an explicit typed graph: a main path, at most one two-way fork and the merged
// continuation after it.
package stepgraph

import (
	"errors"

	"github.com/mono-send/send-smartly/pkg/models"
)

// Node is one typed step of the graph.
type Node interface {
	Step() *models.WorkflowStep
	Kind() models.StepType
}

type WaitNode struct {
	step models.WorkflowStep
}

func (n *WaitNode) Step() *models.WorkflowStep { return &n.step }
func (n *WaitNode) Kind() models.StepType     { return models.StepTypeWait }

// Duration returns the configured duration, defaulting when missing.
func (n *WaitNode) Duration() int {
	if n.step.Config.WaitDuration == nil {
		return models.DefaultWaitDuration
	}

	return *n.step.Config.WaitDuration
}

// Unit returns the configured unit, defaulting when missing or unknown.
func (n *WaitNode) Unit() models.WaitUnit {
	if !n.step.Config.WaitUnit.Valid() {
		return models.DefaultWaitUnit
	}

	return n.step.Config.WaitUnit
}

type EmailNode struct {
	step models.WorkflowStep
}

func (n *EmailNode) Step() *models.WorkflowStep { return &n.step }
func (n *EmailNode) Kind() models.StepType     { return models.StepTypeEmail }

type ConditionNode struct {
	step models.WorkflowStep
}

func (n *ConditionNode) Step() *models.WorkflowStep { return &n.step }
func (n *ConditionNode) Kind() models.StepType     { return models.StepTypeCondition }

// Pair is an email and the wait immediately in front of it, if any.
type Pair struct {
	Wait  *WaitNode
	Email *EmailNode
}

// Steps returns the pair's steps in order.
func (p Pair) Steps() []models.WorkflowStep {
	if p.Wait == nil {
		return []models.WorkflowStep{p.Email.step}
	}

	return []models.WorkflowStep{p.Wait.step, p.Email.step}
}

// Arm is one side of the fork.
type Arm struct {
	Wait  *WaitNode
	Email *EmailNode
}

// Empty reports whether the arm has no steps.
func (a Arm) Empty() bool {
	return a.Wait == nil && a.Email == nil
}

// Fork is the single condition with its yes and no arms.
type Fork struct {
	Condition *ConditionNode
	Yes       Arm
	No        Arm
}

// Arm returns the arm for b.
func (f *Fork) Arm(b models.Branch) Arm {
	if b == models.BranchNo {
		return f.No
	}

	return f.Yes
}

// Graph is the typed form of a workflow's steps.
type Graph struct {
	Main   []Pair
	Fork   *Fork
	Merged []Pair
	// Dangling holds path waits with no email right after them.
	Dangling []*WaitNode

	sorted []models.WorkflowStep
}

// Build validates steps and constructs the graph. The input is not modified.
func Build(steps []models.WorkflowStep) (*Graph, error) {
	sorted := models.SortedSteps(steps)

	if err := validate(sorted); err != nil {
		return nil, err
	}

	graph := &Graph{sorted: sorted}

	var condition *models.WorkflowStep

	for i := range sorted {
		if sorted[i].StepType == models.StepTypeCondition {
			condition = &sorted[i]
			graph.Fork = &Fork{Condition: &ConditionNode{step: sorted[i]}}
		}
	}

	claimed := make(map[string]bool)

	for i := range sorted {
		step := sorted[i]
		if step.StepType != models.StepTypeEmail {
			continue
		}

		pair := Pair{Email: &EmailNode{step: step}}

		if wait, ok := PrecedingWait(sorted, i); ok {
			pair.Wait = &WaitNode{step: wait}
			claimed[wait.ID] = true
		}

		switch {
		case step.InBranch():
			arm := graph.arm(step.BranchValue())
			arm.Email = pair.Email

			if pair.Wait != nil {
				arm.Wait = pair.Wait
			}
		case condition != nil && step.Position > condition.Position:
			graph.Merged = append(graph.Merged, pair)
		default:
			graph.Main = append(graph.Main, pair)
		}
	}

	var errs []error

	for i := range sorted {
		step := sorted[i]
		if step.StepType != models.StepTypeWait || claimed[step.ID] {
			continue
		}

		if !step.InBranch() {
			graph.Dangling = append(graph.Dangling, &WaitNode{step: step})

			continue
		}

		arm := graph.arm(step.BranchValue())
		if arm.Wait != nil {
			errs = append(errs, &StepError{StepID: step.ID, Position: step.Position, Err: ErrBranchTooLong})

			continue
		}

		arm.Wait = &WaitNode{step: step}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return graph, nil
}

func (g *Graph) arm(b models.Branch) *Arm {
	if b == models.BranchNo {
		return &g.Fork.No
	}

	return &g.Fork.Yes
}

// Steps returns every step in position order.
func (g *Graph) Steps() []models.WorkflowStep {
	return models.CloneSteps(g.sorted)
}

// HasCondition reports whether the graph forks.
func (g *Graph) HasCondition() bool {
	return g.Fork != nil
}

// EmailCount counts email steps across all paths.
func (g *Graph) EmailCount() int {
	count := len(g.Main) + len(g.Merged)

	if g.Fork != nil {
		if g.Fork.Yes.Email != nil {
			count++
		}

		if g.Fork.No.Email != nil {
			count++
		}
	}

	return count
}

// LastPosition returns the highest position in the graph, or 0 when empty.
func (g *Graph) LastPosition() int {
	if len(g.sorted) == 0 {
		return 0
	}

	return g.sorted[len(g.sorted)-1].Position
}

// MainEnd returns the highest position before the fork (all positions when there is
// no fork), or 0 when the main path is empty.
func (g *Graph) MainEnd() int {
	end := 0

	for _, step := range g.sorted {
		if g.Fork != nil && step.Position >= g.Fork.Condition.step.Position {
			break
		}

		end = step.Position
	}

	return end
}

// ForkEnd returns the highest position among the condition and its branch steps.
// For b == BranchYes only the yes arm is considered.
func (g *Graph) ForkEnd(b models.Branch) int {
	if g.Fork == nil {
		return 0
	}

	end := g.Fork.Condition.step.Position

	for _, step := range g.sorted {
		if !step.InBranch() {
			continue
		}

		if b == models.BranchYes && step.BranchValue() != models.BranchYes {
			continue
		}

		if step.Position > end {
			end = step.Position
		}
	}

	return end
}

// FindEmail locates the pair holding the email step id on the main or merged path.
func (g *Graph) FindEmail(id string) (Pair, bool) {
	for _, pairs := range [][]Pair{g.Main, g.Merged} {
		for _, p := range pairs {
			if p.Email.step.ID == id {
				return p, true
			}
		}
	}

	if g.Fork != nil {
		for _, arm := range []Arm{g.Fork.Yes, g.Fork.No} {
			if arm.Email != nil && arm.Email.step.ID == id {
				return Pair{Wait: arm.Wait, Email: arm.Email}, true
			}
		}
	}

	return Pair{}, false
}

// PrecedingWait returns the wait step immediately before sorted[i] when it sits on
// the same path (same parent and branch).
func PrecedingWait(sorted []models.WorkflowStep, i int) (models.WorkflowStep, bool) {
	if i <= 0 || i >= len(sorted) {
		return models.WorkflowStep{}, false
	}

	prev := sorted[i-1]
	if prev.StepType != models.StepTypeWait {
		return models.WorkflowStep{}, false
	}

	cur := sorted[i]
	if models.StringValue(prev.ParentStepID) != models.StringValue(cur.ParentStepID) ||
		prev.BranchValue() != cur.BranchValue() {
		return models.WorkflowStep{}, false
	}

	return prev, true
}
