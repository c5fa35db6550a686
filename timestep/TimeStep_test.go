package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestNewTransition ensures a transition carries the reward and
// discount of the step it transitions into
func TestNewTransition(t *testing.T) {
	state := mat.NewVecDense(2, []float64{1.0, 2.0})
	nextState := mat.NewVecDense(2, []float64{3.0, 4.0})
	action := mat.NewVecDense(1, []float64{0.5})

	step := New(Mid, -1.0, 0.99, state, 3)
	nextStep := New(Mid, -2.5, 0.99, nextState, 4)

	transition := NewTransition(step, action, nextStep)

	if transition.Reward != -2.5 {
		t.Errorf("expected reward -2.5, got %v", transition.Reward)
	}
	if transition.Discount != 0.99 {
		t.Errorf("expected discount 0.99, got %v", transition.Discount)
	}
	if transition.State.AtVec(0) != 1.0 ||
		transition.NextState.AtVec(0) != 3.0 {
		t.Error("transition states do not match the timesteps")
	}
}

// TestNewTransitionTerminal ensures transitions into terminal states
// carry a discount of exactly 0, so bootstrapped update targets reduce
// to the immediate reward
func TestNewTransitionTerminal(t *testing.T) {
	state := mat.NewVecDense(2, nil)
	action := mat.NewVecDense(1, nil)

	step := New(Mid, 0.0, 0.99, state, 7)
	lastStep := New(Last, -3.0, 0.99, state, 8)

	transition := NewTransition(step, action, lastStep)

	if transition.Discount != 0.0 {
		t.Errorf("terminal transition should have discount 0, got %v",
			transition.Discount)
	}
	if transition.Reward != -3.0 {
		t.Errorf("expected reward -3.0, got %v", transition.Reward)
	}
}

// TestStepTypes ensures the step type predicates agree with the
// step type
func TestStepTypes(t *testing.T) {
	obs := mat.NewVecDense(1, nil)

	first := New(First, 0, 1, obs, 0)
	if !first.First() || first.Mid() || first.Last() {
		t.Error("first step misreports its type")
	}

	mid := New(Mid, 0, 1, obs, 1)
	if mid.First() || !mid.Mid() || mid.Last() {
		t.Error("mid step misreports its type")
	}

	last := New(Last, 0, 1, obs, 2)
	if last.First() || last.Mid() || !last.Last() {
		t.Error("last step misreports its type")
	}
}
