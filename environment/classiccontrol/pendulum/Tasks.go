package pendulum

import (
	"math"

	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Rewards are the cosine of the
// pendulum angle measured from the positive y-axis. The goal state
// is the pendulum sticking straight up, at which point the agent gets
// a reward of 1.0 on each timestep
type SwingUp struct {
	environment.Starter
	environment.Ender
}

// NewSwingUp creates and returns a new SwingUp task
func NewSwingUp(s environment.Starter, maxSteps int) *SwingUp {
	ender := environment.NewStepLimit(maxSteps)
	return &SwingUp{s, ender}
}

// GetReward returns the reward for transitioning to nextState
func (s *SwingUp) GetReward(_, _, nextState mat.Vector) float64 {
	th := nextState.AtVec(0)
	return math.Cos(th)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -1.0
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 1.0
}

// RewardSpec returns the reward specification of the Task
func (s *SwingUp) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)

	lowerBound := mat.NewVecDense(1, []float64{s.Min()})
	upperBound := mat.NewVecDense(1, []float64{s.Max()})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}

// SwingUpCost implements the swing-up task with the quadratic cost
// reward used by the OpenAI Gym Pendulum environment:
//
//	r = -(θ² + 0.1·ω² + 0.001·u²)
//
// where θ is the pendulum angle from the positive y-axis, ω the
// angular velocity, and u the applied torque. Rewards are always
// non-positive, with 0 attained only when the pendulum balances
// motionless straight up under zero torque.
type SwingUpCost struct {
	environment.Starter
	environment.Ender
}

// NewSwingUpCost creates and returns a new SwingUpCost task
func NewSwingUpCost(s environment.Starter, maxSteps int) *SwingUpCost {
	ender := environment.NewStepLimit(maxSteps)
	return &SwingUpCost{s, ender}
}

// GetReward returns the negated quadratic cost of the transition. The
// torque is clipped to the legal torque range first, matching the
// clipping applied to the dynamics.
func (s *SwingUpCost) GetReward(state, a, _ mat.Vector) float64 {
	th := state.AtVec(0)
	thdot := state.AtVec(1)
	torque := floatutils.Clip(a.AtVec(0), MinContinuousAction,
		MaxContinuousAction)

	return -(th*th + 0.1*thdot*thdot + 0.001*torque*torque)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUpCost) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0 && state.At(1, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUpCost) Min() float64 {
	return -(AngleBound*AngleBound + 0.1*SpeedBound*SpeedBound +
		0.001*TorqueBound*TorqueBound)
}

// Max returns the maximum possible reward
func (s *SwingUpCost) Max() float64 {
	return 0.0
}

// RewardSpec returns the reward specification of the Task
func (s *SwingUpCost) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)

	lowerBound := mat.NewVecDense(1, []float64{s.Min()})
	upperBound := mat.NewVecDense(1, []float64{s.Max()})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}
