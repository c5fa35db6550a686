// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm with the stabilization mechanisms of TD3: target policy
// smoothing, delayed policy updates, and Polyak averaged target
// networks.
package ddpg

import (
	"fmt"
	"os"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	env "github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/expreplay"
	"github.com/samuelfneumann/goddpg/network"
	ts "github.com/samuelfneumann/goddpg/timestep"
	"github.com/samuelfneumann/goddpg/utils/floatutils"
)

// DDPG implements an off-policy deterministic actor-critic agent for
// continuous action spaces.
//
// The agent holds five networks. A behaviour policy with batch size 1
// selects actions in the environment. A critic learns action values
// from replayed transitions by regression towards bootstrapped update
// targets. A training policy shares a graph with a frozen copy of the
// critic so that the deterministic policy gradient can flow through
// the critic's action input into the policy weights. Target copies of
// the policy and critic provide the update targets and track the
// learned weights with Polyak averaging.
type DDPG struct {
	// Action selection policy
	behaviourPolicy   network.NeuralNet
	behaviourPolicyVM G.VM

	// Critic whose weights are adapted, with the node that is given
	// the bootstrapped update target y = r + γQ'(s', a')
	trainCritic   network.ActionValueNet
	trainCriticVM G.VM
	criticSolver  G.Solver
	updateTarget  *G.Node
	criticLossVal G.Value

	// Policy whose weights are adapted. The policy's predicted actions
	// feed the action input of policyCritic, a copy of the critic on
	// the same graph whose weights are refreshed from trainCritic
	// before each policy update but never trained.
	trainPolicy   network.NeuralNet
	policyCritic  network.NeuralNet
	trainPolicyVM G.VM
	policySolver  G.Solver
	policyLossVal G.Value

	// Networks that provide the update targets
	targetPolicy   network.NeuralNet
	targetPolicyVM G.VM
	targetCritic   network.ActionValueNet
	targetCriticVM G.VM

	// Target and policy update schedules, counted in gradient steps
	tau                  float64
	targetUpdateInterval int
	policyUpdateInterval int
	gradientSteps        int
	policySteps          int
	targetSyncs          int

	// Target policy smoothing
	targetActionNoise float64
	targetNoiseClip   float64
	noiseDist         distuv.Normal

	actionLowerBound []float64
	actionUpperBound []float64
	actionDims       int
	numFeatures      int
	batchSize        int

	rewardScale float64

	replay expreplay.ExperienceReplayer

	// Last timestep observed, from which the next transition starts
	lastStep ts.TimeStep

	eval bool

	// Console progress reports
	verboseEvery  int
	envSteps      int
	recentRewards []float64
	recentLosses  []float64
}

// New creates and returns a new DDPG agent
func New(e env.Environment, config Config, seed int64) (*DDPG, error) {
	// Ensure environment has continuous actions
	if e.ActionSpec().Cardinality != env.Continuous {
		return &DDPG{}, fmt.Errorf("ddpg: cannot use non-continuous " +
			"actions")
	}

	// Bounded tanh policies need action bounds symmetric about zero
	if !e.ActionSpec().Symmetric() {
		return &DDPG{}, fmt.Errorf("ddpg: action bounds must be " +
			"symmetric about zero")
	}

	// Ensure the configuration is valid
	err := config.Validate()
	if err != nil {
		return &DDPG{}, err
	}

	// Extract configuration variables
	batchSize := config.BatchSize()
	numFeatures := e.ObservationSpec().Shape.Len()
	actionDims := e.ActionSpec().Shape.Len()
	init := config.InitWFn.InitWFn()

	actionLowerBound := make([]float64, actionDims)
	actionUpperBound := make([]float64, actionDims)
	for i := 0; i < actionDims; i++ {
		actionLowerBound[i] = e.ActionSpec().LowerBound.AtVec(i)
		actionUpperBound[i] = e.ActionSpec().UpperBound.AtVec(i)
	}

	// Behaviour policy for selecting actions
	gBehaviour := G.NewGraph()
	behaviourPolicy, err := network.NewPolicyMLP(
		numFeatures,
		1, // For the behaviour policy, a single action is selected
		actionDims,
		gBehaviour,
		config.PolicyLayers,
		config.PolicyBiases,
		init,
		config.PolicyActivations,
		actionUpperBound,
	)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not create behaviour "+
			"policy: %v", err)
	}
	behaviourPolicyVM := G.NewTapeMachine(gBehaviour)

	// Critic whose weights are learned, together with its update
	// target node and mean squared Bellman error
	gCritic := G.NewGraph()
	trainCriticNet, err := network.NewQMLP(
		numFeatures,
		actionDims,
		batchSize,
		gCritic,
		config.CriticEncoderSize,
		config.CriticLayers,
		config.CriticBiases,
		init,
		config.CriticActivations,
	)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not create critic: %v", err)
	}
	trainCritic := trainCriticNet.(network.ActionValueNet)

	updateTarget := G.NewMatrix(gCritic, tensor.Float64,
		G.WithShape(batchSize, 1), G.WithName("updateTarget"))

	criticLosses := G.Must(G.Sub(trainCritic.Prediction(), updateTarget))
	criticLosses = G.Must(G.Square(criticLosses))
	criticCost := G.Must(G.Mean(criticLosses))
	criticCost = G.Must(G.Mul(criticCost, G.NewConstant(0.5)))

	var criticLossVal G.Value
	G.Read(criticCost, &criticLossVal)

	_, err = G.Grad(criticCost, trainCritic.Learnables()...)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not compute critic "+
			"gradient: %v", err)
	}
	trainCriticVM := G.NewTapeMachine(
		gCritic,
		G.BindDualValues(trainCritic.Learnables()...),
	)

	// Training policy connected to a frozen critic copy so that
	// maximizing Q(s, π(s)) adapts only the policy weights
	trainPolicy, policyCritic, err := network.ConnectPolicyCritic(
		behaviourPolicy,
		trainCritic,
		batchSize,
	)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not connect policy to "+
			"critic: %v", err)
	}

	policyCost := G.Must(G.Mean(policyCritic.Prediction()))
	policyCost = G.Must(G.Neg(policyCost))

	var policyLossVal G.Value
	G.Read(policyCost, &policyLossVal)

	_, err = G.Grad(policyCost, trainPolicy.Learnables()...)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not compute policy "+
			"gradient: %v", err)
	}
	trainPolicyVM := G.NewTapeMachine(
		trainPolicy.Graph(),
		G.BindDualValues(trainPolicy.Learnables()...),
	)

	// Target networks start as exact copies of the learned networks
	targetPolicy, err := trainPolicy.Clone()
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not create target "+
			"policy: %v", err)
	}
	targetPolicyVM := G.NewTapeMachine(targetPolicy.Graph())

	targetCriticNet, err := trainCritic.Clone()
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not create target "+
			"critic: %v", err)
	}
	targetCritic := targetCriticNet.(network.ActionValueNet)
	targetCriticVM := G.NewTapeMachine(targetCritic.Graph())

	// Create the experience replay buffer
	replay, err := config.ExpReplay.Create(numFeatures, actionDims, seed)
	if err != nil {
		return &DDPG{}, fmt.Errorf("new: could not create experience "+
			"replay buffer: %v", err)
	}

	rewardScale := config.RewardScale
	if rewardScale == 0 {
		rewardScale = 1.0
	}

	noiseDist := distuv.Normal{
		Mu:    0.0,
		Sigma: config.TargetActionNoise,
		Src:   rand.NewSource(uint64(seed)),
	}

	return &DDPG{
		behaviourPolicy:   behaviourPolicy,
		behaviourPolicyVM: behaviourPolicyVM,

		trainCritic:   trainCritic,
		trainCriticVM: trainCriticVM,
		criticSolver:  config.CriticSolver,
		updateTarget:  updateTarget,
		criticLossVal: criticLossVal,

		trainPolicy:   trainPolicy,
		policyCritic:  policyCritic,
		trainPolicyVM: trainPolicyVM,
		policySolver:  config.PolicySolver,
		policyLossVal: policyLossVal,

		targetPolicy:   targetPolicy,
		targetPolicyVM: targetPolicyVM,
		targetCritic:   targetCritic,
		targetCriticVM: targetCriticVM,

		tau:                  config.Tau,
		targetUpdateInterval: config.TargetUpdateInterval,
		policyUpdateInterval: config.PolicyUpdateInterval,

		targetActionNoise: config.TargetActionNoise,
		targetNoiseClip:   config.TargetNoiseClip,
		noiseDist:         noiseDist,

		actionLowerBound: actionLowerBound,
		actionUpperBound: actionUpperBound,
		actionDims:       actionDims,
		numFeatures:      numFeatures,
		batchSize:        batchSize,

		rewardScale: rewardScale,

		replay: replay,

		lastStep: ts.TimeStep{},
		eval:     false,

		verboseEvery: config.VerboseEvery,
	}, nil
}

// ObserveFirst observes and records the first episodic timestep
func (d *DDPG) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)", t.Number)
	}
	d.lastStep = t
	return nil
}

// Observe observes and records any timestep other than the first
// timestep. The transition from the previously observed timestep is
// stored in the replay buffer immediately, so transitions into
// terminal states are never lost at episode boundaries.
func (d *DDPG) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if action.Len() != d.actionDims {
		return fmt.Errorf("observe: invalid action dimensions \n\twant(%v)"+
			"\n\thave(%v)", d.actionDims, action.Len())
	}

	reward := nextStep.Reward
	nextStep.Reward /= d.rewardScale

	transition := ts.NewTransition(d.lastStep, action, nextStep)
	if err := d.replay.Add(transition); err != nil {
		return fmt.Errorf("observe: could not add to replay buffer: %v",
			err)
	}

	d.lastStep = nextStep
	d.envSteps++
	d.recentRewards = append(d.recentRewards, reward)
	d.report()

	return nil
}

// Step updates the weights of the agent's networks. If the replay
// buffer does not yet hold enough samples, no update is performed.
func (d *DDPG) Step() error {
	S, A, R, discounts, NextS, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("step: could not sample replay buffer: %v", err)
	}

	// Compute the smoothed target actions a' = clip(π'(s') + ε)
	if err := d.targetPolicy.SetInput(NextS); err != nil {
		return fmt.Errorf("step: could not set target policy input: %v",
			err)
	}
	if err := d.targetPolicyVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run target policy: %v", err)
	}
	targetActions := d.smoothTargetActions(
		d.targetPolicy.Output().Data().([]float64),
	)
	d.targetPolicyVM.Reset()

	// Compute the next state-action values Q'(s', a')
	if err := d.targetCritic.SetInput(NextS); err != nil {
		return fmt.Errorf("step: could not set target critic input: %v",
			err)
	}
	if err := d.targetCritic.SetActionInput(targetActions); err != nil {
		return fmt.Errorf("step: could not set target critic action "+
			"input: %v", err)
	}
	if err := d.targetCriticVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run target critic: %v", err)
	}
	nextStateValues := d.targetCritic.Output().Data().([]float64)
	updateTargets := tdTargets(R, discounts, nextStateValues)
	d.targetCriticVM.Reset()

	// Critic update
	if err := d.trainCritic.SetInput(S); err != nil {
		return fmt.Errorf("step: could not set critic input: %v", err)
	}
	if err := d.trainCritic.SetActionInput(A); err != nil {
		return fmt.Errorf("step: could not set critic action input: %v",
			err)
	}
	targetTensor := tensor.New(
		tensor.WithBacking(updateTargets),
		tensor.WithShape(d.batchSize, 1),
	)
	if err := G.Let(d.updateTarget, targetTensor); err != nil {
		return fmt.Errorf("step: could not set update target: %v", err)
	}
	if err := d.trainCriticVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run critic update: %v", err)
	}
	if err := d.criticSolver.Step(d.trainCritic.Model()); err != nil {
		return fmt.Errorf("step: could not step critic solver: %v", err)
	}
	d.trainCriticVM.Reset()
	d.gradientSteps++
	d.recentLosses = append(d.recentLosses,
		d.criticLossVal.Data().(float64))

	// Delayed policy update
	if d.gradientSteps%d.policyUpdateInterval == 0 {
		if err := d.stepPolicy(S); err != nil {
			return err
		}
	}

	// Polyak averaged target updates
	if d.gradientSteps%d.targetUpdateInterval == 0 {
		if err := d.targetPolicy.Polyak(d.trainPolicy, d.tau); err != nil {
			return fmt.Errorf("step: could not update target policy: %v",
				err)
		}
		err := d.targetCritic.Polyak(d.trainCritic, d.tau)
		if err != nil {
			return fmt.Errorf("step: could not update target critic: %v",
				err)
		}
		d.targetSyncs++
	}

	return nil
}

// stepPolicy performs a single gradient ascent step on the policy,
// maximizing the critic's value of the policy's actions at the states
// S. The behaviour policy is refreshed with the new weights afterward.
func (d *DDPG) stepPolicy(S []float64) error {
	// The critic copy on the policy graph predicts with the current
	// critic weights but is never trained
	if err := d.policyCritic.Set(d.trainCritic); err != nil {
		return fmt.Errorf("step: could not refresh policy graph "+
			"critic: %v", err)
	}

	if err := d.trainPolicy.SetInput(S); err != nil {
		return fmt.Errorf("step: could not set policy input: %v", err)
	}
	if err := d.trainPolicyVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run policy update: %v", err)
	}
	if err := d.policySolver.Step(d.trainPolicy.Model()); err != nil {
		return fmt.Errorf("step: could not step policy solver: %v", err)
	}
	d.trainPolicyVM.Reset()

	if err := d.behaviourPolicy.Set(d.trainPolicy); err != nil {
		return fmt.Errorf("step: could not refresh behaviour policy: %v",
			err)
	}
	d.policySteps++

	return nil
}

// smoothTargetActions adds clipped Gaussian noise to a batch of target
// policy actions and clips the result to the action bounds
func (d *DDPG) smoothTargetActions(actions []float64) []float64 {
	smoothed := make([]float64, len(actions))
	for i := range actions {
		noise := d.noiseDist.Rand()
		noise = floatutils.Clip(noise, -d.targetNoiseClip,
			d.targetNoiseClip)

		dim := i % d.actionDims
		smoothed[i] = floatutils.Clip(actions[i]+noise,
			d.actionLowerBound[dim], d.actionUpperBound[dim])
	}
	return smoothed
}

// tdTargets computes the bootstrapped update targets
// y = r + γQ'(s', a') for a batch of transitions. The discounts are 0
// on transitions into terminal states, where the target reduces to the
// immediate reward.
func tdTargets(rewards, discounts, nextStateValues []float64) []float64 {
	targets := make([]float64, len(rewards))
	for i := range targets {
		targets[i] = rewards[i] + discounts[i]*nextStateValues[i]
	}
	return targets
}

// SelectAction runs the behaviour policy and returns the action
// selected at the timestep t
func (d *DDPG) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs := make([]float64, t.Observation.Len())
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}
	if err := d.behaviourPolicy.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectaction: %v", err))
	}

	if err := d.behaviourPolicyVM.RunAll(); err != nil {
		panic(fmt.Sprintf("selectaction: could not run policy: %v", err))
	}

	actionData := d.behaviourPolicy.Output().Data().([]float64)
	action := make([]float64, d.actionDims)
	copy(action, actionData)

	d.behaviourPolicyVM.Reset()
	return mat.NewVecDense(d.actionDims, action)
}

// report prints training progress to the console
func (d *DDPG) report() {
	if d.verboseEvery <= 0 || d.envSteps%d.verboseEvery != 0 {
		return
	}

	fmt.Printf("Steps: %v | Avg. reward: %.4f | Avg. critic loss: %.6f\n",
		d.envSteps, floatutils.Mean(d.recentRewards),
		floatutils.Mean(d.recentLosses))

	d.recentRewards = d.recentRewards[:0]
	d.recentLosses = d.recentLosses[:0]
}

// Eval sets the agent into evaluation mode
func (d *DDPG) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DDPG) Train() {
	d.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (d *DDPG) IsEval() bool {
	return d.eval
}

// EndEpisode performs cleanup at the end of an episode
func (d *DDPG) EndEpisode() {}

// Close releases the virtual machines of the agent's networks
func (d *DDPG) Close() error {
	vms := []G.VM{
		d.behaviourPolicyVM,
		d.trainCriticVM,
		d.trainPolicyVM,
		d.targetPolicyVM,
		d.targetCriticVM,
	}

	var firstErr error
	for _, vm := range vms {
		if err := vm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
