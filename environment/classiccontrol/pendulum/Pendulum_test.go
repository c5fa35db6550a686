package pendulum

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goddpg/environment"
)

// fixedStarter always starts episodes in the same state
type fixedStarter struct {
	state []float64
}

func (f fixedStarter) Start() mat.Vector {
	return mat.NewVecDense(len(f.state), f.state)
}

// TestSwingUpCostReward ensures the reward is the negated quadratic
// cost of the pre-transition state and applied torque
func TestSwingUpCostReward(t *testing.T) {
	starter := fixedStarter{[]float64{math.Pi / 2, 1.0}}
	task := NewSwingUpCost(starter, 200)
	env, firstStep := NewContinuous(task, 0.99)

	if !firstStep.First() {
		t.Error("first step should have step type First")
	}
	if firstStep.Reward != 0.0 {
		t.Errorf("first step should carry no reward, got %v",
			firstStep.Reward)
	}

	torque := 0.5
	step, _ := env.Step(mat.NewVecDense(1, []float64{torque}))

	th, thdot := math.Pi/2, 1.0
	expected := -(th*th + 0.1*thdot*thdot + 0.001*torque*torque)
	if math.Abs(step.Reward-expected) > 1e-12 {
		t.Errorf("expected reward %v, got %v", expected, step.Reward)
	}
}

// TestStepLimit ensures episodes end with a Last timestep exactly at
// the configured step limit
func TestStepLimit(t *testing.T) {
	const maxSteps = 10
	starter := fixedStarter{[]float64{0.0, 0.0}}
	task := NewSwingUpCost(starter, maxSteps)
	env, _ := NewContinuous(task, 0.99)

	action := mat.NewVecDense(1, []float64{1.0})
	for i := 1; i < maxSteps; i++ {
		step, done := env.Step(action)
		if done || step.Last() {
			t.Fatalf("episode ended early at step %v", i)
		}
	}

	step, done := env.Step(action)
	if !done || !step.Last() {
		t.Errorf("episode should end at step %v", maxSteps)
	}

	// Resetting starts a fresh episode
	first := env.Reset()
	if !first.First() || first.Number != 0 {
		t.Error("reset should return the first step of a new episode")
	}
}

// TestStateStaysWithinBounds ensures angles stay normalized to
// [-π, π] and speeds clipped to [-8, 8] under maximal torque
func TestStateStaysWithinBounds(t *testing.T) {
	bounds := []r1.Interval{
		{Min: -AngleBound, Max: AngleBound},
		{Min: -1.0, Max: 1.0},
	}
	starter := environment.NewUniformStarter(bounds, 3)
	task := NewSwingUpCost(starter, 1000)
	env, _ := NewContinuous(task, 0.99)

	action := mat.NewVecDense(1, []float64{TorqueBound})
	for i := 0; i < 1000; i++ {
		step, done := env.Step(action)
		th := step.Observation.AtVec(0)
		thdot := step.Observation.AtVec(1)

		if th < -AngleBound || th > AngleBound {
			t.Fatalf("angle %v outside [-π, π] at step %v", th, i)
		}
		if thdot < -SpeedBound || thdot > SpeedBound {
			t.Fatalf("speed %v outside bounds at step %v", thdot, i)
		}
		if done {
			env.Reset()
		}
	}
}

// TestActionClipped ensures torques outside the action bounds produce
// the same transition as the bounded torque
func TestActionClipped(t *testing.T) {
	starter := fixedStarter{[]float64{1.0, 0.5}}
	task := NewSwingUpCost(starter, 200)

	env1, _ := NewContinuous(task, 0.99)
	step1, _ := env1.Step(mat.NewVecDense(1, []float64{100.0}))

	env2, _ := NewContinuous(task, 0.99)
	step2, _ := env2.Step(mat.NewVecDense(1, []float64{TorqueBound}))

	for i := 0; i < ObservationDims; i++ {
		if step1.Observation.AtVec(i) != step2.Observation.AtVec(i) {
			t.Errorf("state dimension %v differs between clipped and "+
				"bounded torque", i)
		}
	}
}

// TestActionSpecSymmetric ensures the action specification reports
// bounds symmetric about zero, as required by bounded tanh policies
func TestActionSpecSymmetric(t *testing.T) {
	starter := fixedStarter{[]float64{0.0, 0.0}}
	task := NewSwingUpCost(starter, 200)
	env, _ := NewContinuous(task, 0.99)

	spec := env.ActionSpec()
	if spec.Cardinality != environment.Continuous {
		t.Error("actions should be continuous")
	}
	if !spec.Symmetric() {
		t.Error("action bounds should be symmetric about zero")
	}
	if spec.UpperBound.AtVec(0) != TorqueBound {
		t.Errorf("expected upper bound %v, got %v", TorqueBound,
			spec.UpperBound.AtVec(0))
	}
}
