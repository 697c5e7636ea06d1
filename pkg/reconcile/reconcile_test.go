package reconcile

import (
	"slices"
	"testing"

	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/projection"
	"github.com/mono-send/send-smartly/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		list     []string
		from, to int
		want     []string
		moved    bool
	}{
		{name: "last to first", list: []string{"A", "B", "C"}, from: 2, to: 0, want: []string{"C", "A", "B"}, moved: true},
		{name: "first to last", list: []string{"A", "B", "C"}, from: 0, to: 2, want: []string{"B", "C", "A"}, moved: true},
		{name: "adjacent", list: []string{"A", "B", "C"}, from: 1, to: 2, want: []string{"A", "C", "B"}, moved: true},
		{name: "same index", list: []string{"A", "B"}, from: 1, to: 1, want: []string{"A", "B"}},
		{name: "source out of range", list: []string{"A", "B"}, from: 2, to: 0, want: []string{"A", "B"}},
		{name: "target out of range", list: []string{"A", "B"}, from: 0, to: -1, want: []string{"A", "B"}},
		{name: "empty list", list: []string{}, from: 0, to: 0, want: []string{}},
		{name: "single element", list: []string{"A"}, from: 0, to: 0, want: []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := slices.Clone(tt.list)

			got, moved := Move(tt.list, tt.from, tt.to)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.moved, moved)
			assert.Equal(t, original, tt.list)
		})
	}
}

func threePairs() []models.WorkflowStep {
	return []models.WorkflowStep{
		testutil.Wait("wA", 1, 1, models.WaitUnitDay),
		testutil.Email("A", 2, "s1"),
		testutil.Wait("wB", 3, 2, models.WaitUnitDay),
		testutil.Email("B", 4, "s1"),
		testutil.Wait("wC", 5, 3, models.WaitUnitDay),
		testutil.Email("C", 6, "s1"),
	}
}

func positions(items []models.ReorderItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Position
	}

	return out
}

func TestPlanReorder_MoveLastToFront(t *testing.T) {
	prev := threePairs()

	order, moved := Move(projection.ToEmailSteps(prev), 2, 0)
	require.True(t, moved)

	items, err := PlanReorder(prev, ListMain, order)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"wC": 1, "C": 2,
		"wA": 3, "A": 4,
		"wB": 5, "B": 6,
	}, positions(items))

	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].Position, items[i].Position)
	}
}

func TestPlanReorder_EmailsWithoutWaits(t *testing.T) {
	prev := []models.WorkflowStep{
		testutil.Email("A", 1, "s1"),
		testutil.Wait("wB", 2, 2, models.WaitUnitHour),
		testutil.Email("B", 3, "s1"),
	}

	order, _ := Move(projection.ToEmailSteps(prev), 0, 1)

	items, err := PlanReorder(prev, ListMain, order)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"wB": 1, "B": 2, "A": 3}, positions(items))
}

func TestPlanReorder_ShiftsForkWhenMainGrows(t *testing.T) {
	prev := []models.WorkflowStep{
		testutil.Email("A", 1, "s1"),
		testutil.Email("B", 2, "s1"),
		testutil.Condition("c1", 3, "A"),
		testutil.Email("yes", 4, "s1", testutil.InBranch("c1", models.BranchYes)),
		testutil.Email("M", 10, "s1"),
	}

	order, _ := Move(projection.ToEmailSteps(prev)[:2], 1, 0)

	items, err := PlanReorder(prev, ListMain, order)
	require.NoError(t, err)

	// B lands at 1 and A at 3, so the condition and its yes email move down.
	assert.Equal(t, map[string]int{"B": 1, "A": 3, "c1": 4, "yes": 5}, positions(items))

	for _, it := range items {
		if it.ID == "yes" {
			require.NotNil(t, it.ParentStepID)
			assert.Equal(t, "c1", *it.ParentStepID)
			assert.Equal(t, models.BranchYes, *it.Branch)
		}
	}
}

func TestPlanReorder_MergedList(t *testing.T) {
	prev := testutil.ForkedSteps()
	prev = append(prev,
		testutil.Email("e5", 10, "s1"),
	)

	merged := []models.EmailStep{{ID: "e5"}, {ID: "e4"}}

	items, err := PlanReorder(prev, ListMerged, merged)
	require.NoError(t, err)

	// Everything up to the no-branch email (position 7) stays where it is.
	assert.Equal(t, map[string]int{"e5": 8, "w4": 10, "e4": 11}, positions(items))
}

func TestPlanReorder_PreservesParentAndBranch(t *testing.T) {
	prev := testutil.ForkedSteps()
	before := make(map[string]models.WorkflowStep, len(prev))

	for _, step := range prev {
		before[step.ID] = step
	}

	lists := []struct {
		kind  ListKind
		order []models.EmailStep
	}{
		{kind: ListMain, order: []models.EmailStep{{ID: "e1"}}},
		{kind: ListMerged, order: []models.EmailStep{{ID: "e4"}}},
	}

	for _, list := range lists {
		t.Run(list.kind.String(), func(t *testing.T) {
			items, err := PlanReorder(prev, list.kind, list.order)
			require.NoError(t, err)

			for _, it := range items {
				step := before[it.ID]
				assert.Equal(t, step.ParentStepID, it.ParentStepID, it.ID)
				assert.Equal(t, step.Branch, it.Branch, it.ID)
			}
		})
	}
}

func TestPlanReorder_Errors(t *testing.T) {
	prev := threePairs()

	tests := []struct {
		name    string
		steps   []models.WorkflowStep
		list    ListKind
		order   []models.EmailStep
		wantErr error
	}{
		{name: "missing email", steps: prev, list: ListMain, order: []models.EmailStep{{ID: "A"}, {ID: "B"}}, wantErr: ErrOrderMismatch},
		{name: "unknown email", steps: prev, list: ListMain, order: []models.EmailStep{{ID: "A"}, {ID: "B"}, {ID: "Z"}}, wantErr: ErrUnknownEmail},
		{name: "duplicate email", steps: prev, list: ListMain, order: []models.EmailStep{{ID: "A"}, {ID: "A"}, {ID: "B"}}, wantErr: ErrOrderMismatch},
		{name: "merged without condition", steps: prev, list: ListMerged, order: []models.EmailStep{{ID: "A"}}, wantErr: ErrOrderMismatch},
		{name: "unknown list", steps: prev, list: ListKind(7), order: nil, wantErr: ErrUnknownList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanReorder(tt.steps, tt.list, tt.order)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlanReorder_InvalidGraph(t *testing.T) {
	_, err := PlanReorder([]models.WorkflowStep{
		testutil.Email("A", 1, "s1"),
		testutil.Email("B", 1, "s1"),
	}, ListMain, []models.EmailStep{{ID: "A"}, {ID: "B"}})

	require.Error(t, err)
}
