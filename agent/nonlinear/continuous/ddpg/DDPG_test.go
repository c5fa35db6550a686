package ddpg

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goddpg/expreplay"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
	ts "github.com/samuelfneumann/goddpg/timestep"
)

// newTestEnv returns a pendulum swing-up environment suitable for
// small agent tests
func newTestEnv(t *testing.T) (environment.Environment, ts.TimeStep) {
	bounds := []r1.Interval{
		{Min: -pendulum.AngleBound, Max: pendulum.AngleBound},
		{Min: -1.0, Max: 1.0},
	}
	starter := environment.NewUniformStarter(bounds, 11)
	task := pendulum.NewSwingUpCost(starter, 200)
	env, firstStep := pendulum.NewContinuous(task, 0.99)
	return env, firstStep
}

// newTestConfig returns a small agent configuration for testing
func newTestConfig(t *testing.T) Config {
	policySolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		t.Fatal(err)
	}
	criticSolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		t.Fatal(err)
	}
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		t.Fatal(err)
	}

	return Config{
		PolicyLayers:      []int{8},
		PolicyBiases:      []bool{true},
		PolicyActivations: []*network.Activation{network.ReLU()},

		CriticEncoderSize: 8,
		CriticLayers:      []int{8},
		CriticBiases:      []bool{true},
		CriticActivations: []*network.Activation{network.ReLU()},

		PolicySolver: policySolver,
		CriticSolver: criticSolver,
		InitWFn:      init,

		ExpReplay: expreplay.Config{
			MinCapacity: 5,
			MaxCapacity: 100,
			BatchSize:   4,
		},

		Tau:                  0.05,
		TargetUpdateInterval: 50,
		PolicyUpdateInterval: 2,

		TargetActionNoise: 0.2,
		TargetNoiseClip:   0.5,

		RewardScale: 16.2736044,
	}
}

// newTestAgent returns a DDPG agent on a pendulum environment
func newTestAgent(t *testing.T, config Config) (*DDPG, environment.Environment,
	ts.TimeStep) {
	env, firstStep := newTestEnv(t)
	a, err := New(env, config, 13)
	if err != nil {
		t.Fatal(err)
	}
	return a, env, firstStep
}

// sameWeights returns whether two networks hold identical weight values
func sameWeights(a, b network.NeuralNet) bool {
	aNodes := a.Learnables()
	bNodes := b.Learnables()
	if len(aNodes) != len(bNodes) {
		return false
	}
	for i := range aNodes {
		aWeights := aNodes[i].Value().Data().([]float64)
		bWeights := bNodes[i].Value().Data().([]float64)
		for j := range aWeights {
			if aWeights[j] != bWeights[j] {
				return false
			}
		}
	}
	return true
}

// TestTargetNetworksStartEqual ensures the target networks start as
// exact copies of the networks they track
func TestTargetNetworksStartEqual(t *testing.T) {
	a, _, _ := newTestAgent(t, newTestConfig(t))
	defer a.Close()

	if !sameWeights(a.targetPolicy, a.trainPolicy) {
		t.Error("target policy does not start equal to the learned policy")
	}
	if !sameWeights(a.targetCritic, a.trainCritic) {
		t.Error("target critic does not start equal to the learned critic")
	}
	if !sameWeights(a.behaviourPolicy, a.trainPolicy) {
		t.Error("behaviour policy does not start equal to the learned " +
			"policy")
	}
}

// TestTDTargets ensures bootstrapped update targets reduce to the
// immediate reward on terminal transitions
func TestTDTargets(t *testing.T) {
	rewards := []float64{1.0, -2.0, 0.5}
	discounts := []float64{0.99, 0.0, 0.5}
	nextValues := []float64{10.0, 10.0, -4.0}

	targets := tdTargets(rewards, discounts, nextValues)

	expected := []float64{1.0 + 0.99*10.0, -2.0, 0.5 + 0.5*-4.0}
	for i := range expected {
		if math.Abs(targets[i]-expected[i]) > 1e-12 {
			t.Errorf("target %v: expected %v, got %v", i, expected[i],
				targets[i])
		}
	}
}

// TestSmoothTargetActionsWithinBounds ensures smoothed target actions
// always stay within the action bounds, even with extreme noise
func TestSmoothTargetActionsWithinBounds(t *testing.T) {
	config := newTestConfig(t)
	config.TargetActionNoise = 10.0
	config.TargetNoiseClip = 25.0
	a, _, _ := newTestAgent(t, config)
	defer a.Close()

	actions := []float64{-2.0, -1.0, 0.0, 1.0, 2.0}
	for trial := 0; trial < 100; trial++ {
		smoothed := a.smoothTargetActions(actions)
		for i, action := range smoothed {
			if action < -pendulum.TorqueBound ||
				action > pendulum.TorqueBound {
				t.Fatalf("smoothed action %v = %v outside bounds [%v, %v]",
					i, action, -pendulum.TorqueBound, pendulum.TorqueBound)
			}
		}
	}
}

// TestSmoothTargetActionsNoiseClip ensures the added noise never moves
// an action by more than the noise bound
func TestSmoothTargetActionsNoiseClip(t *testing.T) {
	config := newTestConfig(t)
	config.TargetActionNoise = 10.0
	config.TargetNoiseClip = 0.5
	a, _, _ := newTestAgent(t, config)
	defer a.Close()

	actions := []float64{0.0, 0.5, -0.5, 1.0}
	for trial := 0; trial < 100; trial++ {
		smoothed := a.smoothTargetActions(actions)
		for i := range smoothed {
			if math.Abs(smoothed[i]-actions[i]) > config.TargetNoiseClip {
				t.Fatalf("noise moved action %v by %v > clip %v", i,
					math.Abs(smoothed[i]-actions[i]), config.TargetNoiseClip)
			}
		}
	}
}

// TestUpdateCadence ensures gradient, policy, and target updates
// happen on their configured schedules: no updates before the buffer
// holds enough samples, policy updates every second gradient step, and
// no target sync before the target update interval has elapsed
func TestUpdateCadence(t *testing.T) {
	config := newTestConfig(t)
	a, env, step := newTestAgent(t, config)
	defer a.Close()

	if err := a.ObserveFirst(step); err != nil {
		t.Fatal(err)
	}

	const iterations = 14
	for i := 0; i < iterations; i++ {
		action := a.SelectAction(step)
		nextStep, _ := env.Step(action)
		if err := a.Observe(action, nextStep); err != nil {
			t.Fatal(err)
		}
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}
		step = nextStep
	}

	// The first 4 calls to Step() find fewer than MinCapacity = 5
	// samples, so 10 of the 14 calls perform gradient steps
	if a.gradientSteps != 10 {
		t.Errorf("expected 10 gradient steps, got %v", a.gradientSteps)
	}
	if a.policySteps != 5 {
		t.Errorf("expected 5 policy steps, got %v", a.policySteps)
	}
	if a.targetSyncs != 0 {
		t.Errorf("expected no target syncs before step %v, got %v",
			config.TargetUpdateInterval, a.targetSyncs)
	}
}

// TestRewardScaling ensures rewards are divided by the configured
// scale before they are stored in the replay buffer
func TestRewardScaling(t *testing.T) {
	config := newTestConfig(t)
	config.RewardScale = 2.0
	a, _, _ := newTestAgent(t, config)
	defer a.Close()

	first := ts.New(ts.First, 0, 0.99, mat.NewVecDense(2, nil), 0)
	if err := a.ObserveFirst(first); err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(1, []float64{0.5})
	for i := 1; i <= 6; i++ {
		next := ts.New(ts.Mid, 10.0, 0.99, mat.NewVecDense(2, nil), i)
		if err := a.Observe(action, next); err != nil {
			t.Fatal(err)
		}
	}

	_, _, rewards, _, _, err := a.replay.Sample()
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rewards {
		if r != 5.0 {
			t.Errorf("expected stored reward 5.0, got %v", r)
		}
	}
}

// TestSelectActionWithinBounds ensures actions selected by the
// behaviour policy stay within the environment's action bounds
func TestSelectActionWithinBounds(t *testing.T) {
	a, env, step := newTestAgent(t, newTestConfig(t))
	defer a.Close()

	for i := 0; i < 20; i++ {
		action := a.SelectAction(step)
		if action.Len() != 1 {
			t.Fatalf("expected 1-dimensional action, got %v", action.Len())
		}
		if math.Abs(action.AtVec(0)) > pendulum.TorqueBound {
			t.Fatalf("selected action %v outside bounds", action.AtVec(0))
		}
		step, _ = env.Step(action)
	}
}

// TestNonContinuousActionsRejected ensures agent construction fails on
// invalid configurations rather than on later updates
func TestInvalidConfigRejected(t *testing.T) {
	env, _ := newTestEnv(t)

	config := newTestConfig(t)
	config.Tau = 0.0
	if _, err := New(env, config, 1); err == nil {
		t.Error("expected error for zero Polyak averaging constant")
	}

	config = newTestConfig(t)
	config.PolicyUpdateInterval = 0
	if _, err := New(env, config, 1); err == nil {
		t.Error("expected error for zero policy update interval")
	}

	config = newTestConfig(t)
	config.TargetUpdateInterval = -1
	if _, err := New(env, config, 1); err == nil {
		t.Error("expected error for negative target update interval")
	}
}

// BenchmarkDDPGStep benchmarks a full gradient step, including target
// action smoothing, the critic update, and the delayed policy update
func BenchmarkDDPGStep(b *testing.B) {
	bounds := []r1.Interval{
		{Min: -pendulum.AngleBound, Max: pendulum.AngleBound},
		{Min: -1.0, Max: 1.0},
	}
	starter := environment.NewUniformStarter(bounds, 11)
	task := pendulum.NewSwingUpCost(starter, 200)
	env, step := pendulum.NewContinuous(task, 0.99)

	policySolver, _ := solver.NewDefaultAdam(3e-4, 1)
	criticSolver, _ := solver.NewDefaultAdam(3e-4, 1)
	init, _ := initwfn.NewGlorotN(1.0)

	config := Config{
		PolicyLayers:      []int{64, 64},
		PolicyBiases:      []bool{true, true},
		PolicyActivations: []*network.Activation{network.ReLU(), network.ReLU()},

		CriticEncoderSize: 64,
		CriticLayers:      []int{64},
		CriticBiases:      []bool{true},
		CriticActivations: []*network.Activation{network.ReLU()},

		PolicySolver: policySolver,
		CriticSolver: criticSolver,
		InitWFn:      init,

		ExpReplay: expreplay.Config{
			MinCapacity: 129,
			MaxCapacity: 10000,
			BatchSize:   128,
		},

		Tau:                  0.005,
		TargetUpdateInterval: 50,
		PolicyUpdateInterval: 2,

		TargetActionNoise: 0.2,
		TargetNoiseClip:   0.5,

		RewardScale: 16.2736044,
	}

	a, err := New(env, config, 13)
	if err != nil {
		b.Fatal(err)
	}
	defer a.Close()

	a.ObserveFirst(step)
	for i := 0; i < config.ExpReplay.MinCapacity; i++ {
		action := a.SelectAction(step)
		nextStep, _ := env.Step(action)
		a.Observe(action, nextStep)
		step = nextStep
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := a.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
