package timestep

import (
	"gonum.org/v1/gonum/mat"
)

// Transition packages together a single environmental transition
// (S, A, R, S'). The Discount field holds the discount to apply to
// value estimates bootstrapped from NextState. On transitions into a
// terminal state the discount is 0, so that bootstrapped update
// targets reduce to the immediate reward exactly.
//
// Transitions are immutable once stored in a replay buffer.
type Transition struct {
	State     mat.Vector
	Action    mat.Vector
	Reward    float64
	Discount  float64
	NextState mat.Vector
}

// NewTransition packages the timestep step, the action taken at that
// timestep, and the next resulting timestep into a Transition.
func NewTransition(step TimeStep, action mat.Vector,
	nextStep TimeStep) Transition {
	discount := nextStep.Discount
	if nextStep.Last() {
		discount = 0.0
	}

	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  discount,
		NextState: nextStep.Observation,
	}
}
