package ddpg

import (
	"fmt"

	"github.com/samuelfneumann/goddpg/agent"
	env "github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/expreplay"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
)

// Config implements a configuration for a DDPG agent
type Config struct {
	// Policy network architecture
	PolicyLayers      []int                 // Hidden layer sizes
	PolicyBiases      []bool                // Whether each layer has a bias
	PolicyActivations []*network.Activation // Activation of each layer

	// Critic network architecture. States and actions are encoded
	// separately by layers of size CriticEncoderSize before the hidden
	// layers.
	CriticEncoderSize int
	CriticLayers      []int                 // Hidden layer sizes
	CriticBiases      []bool                // Whether each layer has a bias
	CriticActivations []*network.Activation // Activation of each layer

	PolicySolver *solver.Solver // Solver for learning policy weights
	CriticSolver *solver.Solver // Solver for learning critic weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	// Experience replay parameters
	ExpReplay expreplay.Config

	// Target net updates
	Tau                  float64 // Polyak averaging constant
	TargetUpdateInterval int     // Gradient steps between target updates

	// Delayed policy updates
	PolicyUpdateInterval int // Gradient steps between policy updates

	// Target policy smoothing
	TargetActionNoise float64 // Stddev of noise added to target actions
	TargetNoiseClip   float64 // Absolute bound on the noise

	// Rewards are divided by RewardScale before being stored in the
	// replay buffer. A scale of 0 is treated as no scaling.
	RewardScale float64

	// Console progress reports every VerboseEvery environment steps,
	// disabled when 0
	VerboseEvery int
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.BatchSize
}

// Validate checks a Config to ensure it is a valid configuration of a
// DDPG agent.
func (c Config) Validate() error {
	if len(c.PolicyLayers) != len(c.PolicyBiases) {
		return fmt.Errorf("config: invalid number of policy biases"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers),
			len(c.PolicyBiases))
	}

	if len(c.PolicyLayers) != len(c.PolicyActivations) {
		return fmt.Errorf("config: invalid number of policy activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers),
			len(c.PolicyActivations))
	}

	if len(c.CriticLayers) != len(c.CriticBiases) {
		return fmt.Errorf("config: invalid number of critic biases"+
			"\n\twant(%v)\n\thave(%v)", len(c.CriticLayers),
			len(c.CriticBiases))
	}

	if len(c.CriticLayers) != len(c.CriticActivations) {
		return fmt.Errorf("config: invalid number of critic activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.CriticLayers),
			len(c.CriticActivations))
	}

	if c.CriticEncoderSize <= 0 {
		return fmt.Errorf("config: critic encoder size must be positive "+
			"\n\twant(>0)\n\thave(%v)", c.CriticEncoderSize)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: Polyak averaging constant must be in "+
			"(0, 1] \n\thave(%v)", c.Tau)
	}

	if c.TargetUpdateInterval < 1 {
		return fmt.Errorf("config: target networks must be updated at "+
			"positive gradient step intervals \n\twant(>0) \n\thave(%v)",
			c.TargetUpdateInterval)
	}

	if c.PolicyUpdateInterval < 1 {
		return fmt.Errorf("config: policy must be updated at positive "+
			"gradient step intervals \n\twant(>0) \n\thave(%v)",
			c.PolicyUpdateInterval)
	}

	if c.TargetActionNoise < 0 {
		return fmt.Errorf("config: target action noise stddev must be "+
			"non-negative \n\thave(%v)", c.TargetActionNoise)
	}

	if c.TargetNoiseClip < 0 {
		return fmt.Errorf("config: target action noise bound must be "+
			"non-negative \n\thave(%v)", c.TargetNoiseClip)
	}

	if c.RewardScale < 0 {
		return fmt.Errorf("config: reward scale must be non-negative "+
			"\n\thave(%v)", c.RewardScale)
	}

	if c.PolicySolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("config: no solver provided")
	}

	if c.InitWFn == nil {
		return fmt.Errorf("config: no weight initializer provided")
	}

	return nil
}

// CreateAgent creates a new DDPG agent based on the configuration
func (c Config) CreateAgent(e env.Environment, s uint64) (agent.Agent,
	error) {
	return New(e, c, int64(s))
}
