// Package reconcile translates edits of the editor's email lists back into step
// positions for the persistence API.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/stepgraph"
)

// ListKind names one of the independently reorderable email lists.
type ListKind int

const (
	// ListMain is the path before the condition, or the whole path without one.
	ListMain ListKind = iota
	// ListMerged is the path after the branches rejoin.
	ListMerged
)

func (k ListKind) String() string {
	switch k {
	case ListMain:
		return "main"
	case ListMerged:
		return "merged"
	default:
		return fmt.Sprintf("ListKind(%d)", int(k))
	}
}

var (
	ErrUnknownList   = errors.New("unknown email list")
	ErrUnknownEmail  = errors.New("email is not part of the list")
	ErrOrderMismatch = errors.New("new order does not cover the list exactly once")
)

// Move returns a copy of list with the element at from moved to to. It reports false
// and returns an unchanged copy when either index is out of range or they are equal.
func Move[T any](list []T, from, to int) ([]T, bool) {
	out := make([]T, len(list))
	copy(out, list)

	if from == to || from < 0 || to < 0 || from >= len(list) || to >= len(list) {
		return out, false
	}

	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{moved}, out[to:]...)...)

	return out, true
}

// PlanReorder assigns positions to the steps of one list so that they follow order.
// The k-th email gets base+2k+2 and its wait base+2k+1, or base+2k+1 when it has no
// wait. Steps after the list that would collide with or sort before the new
// positions are pushed down and included in the plan. Parent and branch are copied
// from prev unchanged. The result is sorted by position.
func PlanReorder(prev []models.WorkflowStep, list ListKind, order []models.EmailStep) ([]models.ReorderItem, error) {
	graph, err := stepgraph.Build(prev)
	if err != nil {
		return nil, err
	}

	pairs, base, err := segment(graph, list)
	if err != nil {
		return nil, err
	}

	if len(order) != len(pairs) {
		return nil, fmt.Errorf("%w: %d emails, %d in %s list", ErrOrderMismatch, len(order), len(pairs), list)
	}

	byEmail := make(map[string]stepgraph.Pair, len(pairs))
	for _, p := range pairs {
		byEmail[p.Email.Step().ID] = p
	}

	planned := make(map[string]bool, 2*len(pairs))
	items := make([]models.ReorderItem, 0, 2*len(pairs))

	assign := func(step *models.WorkflowStep, position int) {
		planned[step.ID] = true
		items = append(items, item(step, position))
	}

	for k, email := range order {
		pair, ok := byEmail[email.ID]
		if !ok {
			if planned[email.ID] {
				return nil, fmt.Errorf("%w: %s appears twice", ErrOrderMismatch, email.ID)
			}

			return nil, fmt.Errorf("%w: %s", ErrUnknownEmail, email.ID)
		}

		delete(byEmail, email.ID)

		if pair.Wait != nil {
			assign(pair.Wait.Step(), base+2*k+1)
			assign(pair.Email.Step(), base+2*k+2)

			continue
		}

		assign(pair.Email.Step(), base+2*k+1)
	}

	next := base + 1
	for _, it := range items {
		if it.Position >= next {
			next = it.Position + 1
		}
	}

	for _, step := range graph.Steps() {
		if planned[step.ID] || step.Position <= base {
			continue
		}

		if step.Position < next {
			items = append(items, item(&step, next))
			next++

			continue
		}

		next = step.Position + 1
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})

	return items, nil
}

func item(step *models.WorkflowStep, position int) models.ReorderItem {
	it := models.ReorderItem{ID: step.ID, Position: position}

	if step.ParentStepID != nil {
		it.ParentStepID = models.StringPtr(*step.ParentStepID)
	}

	if step.Branch != nil {
		it.Branch = models.BranchPtr(*step.Branch)
	}

	return it
}

// segment returns the pairs of a list and the position right before it.
func segment(graph *stepgraph.Graph, list ListKind) ([]stepgraph.Pair, int, error) {
	switch list {
	case ListMain:
		return graph.Main, 0, nil
	case ListMerged:
		if graph.Fork == nil {
			return nil, 0, nil
		}

		return graph.Merged, mergedBase(graph), nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownList, list)
	}
}

// mergedBase is the highest position of any step outside the merged path.
func mergedBase(graph *stepgraph.Graph) int {
	fork := graph.Fork.Condition.Step().Position
	base := 0

	for _, step := range graph.Steps() {
		merged := !step.InBranch() && step.Position > fork && step.StepType != models.StepTypeCondition
		if !merged && step.Position > base {
			base = step.Position
		}
	}

	return base
}
