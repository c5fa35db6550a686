// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"github.com/samuelfneumann/goddpg/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines when episodes end. If an episode should end, End()
// modifies the timestep so that its StepType field is timestep.Last
// and returns true.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment, along with the starting state distribution and the
// episode ending conditions for the task.
type Task interface {
	Starter
	Ender

	// GetReward returns the reward for taking action a in state,
	// resulting in nextState
	GetReward(state, a, nextState mat.Vector) float64

	// AtGoal returns whether state is a goal state of the Task
	AtGoal(state mat.Matrix) bool

	// Min and Max return the minimum and maximum attainable rewards
	Min() float64
	Max() float64

	RewardSpec() Spec
}

// Environment implements a simulated environment, which includes a
// Task to complete
type Environment interface {
	Task

	// Reset resets the environment between episodes and returns the
	// first timestep of the new episode
	Reset() timestep.TimeStep

	// Step takes one environmental step given an action, returning the
	// next timestep and whether that timestep is the last of the
	// episode
	Step(action *mat.VecDense) (timestep.TimeStep, bool)

	// Close releases any resources held by the environment. It is
	// called once, after the last step has been taken.
	Close() error

	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
