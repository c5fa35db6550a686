package main

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goddpg/agent"
	"github.com/samuelfneumann/goddpg/agent/nonlinear/continuous/ddpg"
	"github.com/samuelfneumann/goddpg/environment"
	"github.com/samuelfneumann/goddpg/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/goddpg/experiment"
	"github.com/samuelfneumann/goddpg/experiment/tracker"
	"github.com/samuelfneumann/goddpg/expreplay"
	"github.com/samuelfneumann/goddpg/initwfn"
	"github.com/samuelfneumann/goddpg/network"
	"github.com/samuelfneumann/goddpg/solver"
)

func main() {
	var seed uint64 = 42

	// Create the pendulum swing-up environment
	bounds := []r1.Interval{
		{Min: -math.Pi, Max: math.Pi},
		{Min: -1.0, Max: 1.0},
	}
	starter := environment.NewUniformStarter(bounds, seed)
	task := pendulum.NewSwingUpCost(starter, 200)
	env, _ := pendulum.NewContinuous(task, 0.99)

	// Solvers and weight initialization
	policySolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		log.Fatalf("could not create policy solver: %v", err)
	}
	criticSolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		log.Fatalf("could not create critic solver: %v", err)
	}
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		log.Fatalf("could not create weight initializer: %v", err)
	}

	config := ddpg.Config{
		PolicyLayers:      []int{64, 64},
		PolicyBiases:      []bool{true, true},
		PolicyActivations: []*network.Activation{
			network.ReLU(),
			network.ReLU(),
		},

		CriticEncoderSize: 64,
		CriticLayers:      []int{64},
		CriticBiases:      []bool{true},
		CriticActivations: []*network.Activation{network.ReLU()},

		PolicySolver: policySolver,
		CriticSolver: criticSolver,
		InitWFn:      init,

		ExpReplay: expreplay.Config{
			MinCapacity: 129,
			MaxCapacity: 1_000_000,
			BatchSize:   128,
		},

		Tau:                  0.005,
		TargetUpdateInterval: 50,
		PolicyUpdateInterval: 2,

		TargetActionNoise: 0.2,
		TargetNoiseClip:   0.5,

		RewardScale: 16.2736044,

		VerboseEvery: 1_000,
	}

	a, err := config.CreateAgent(env, seed)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	returns := tracker.NewReturn("./data.bin")
	exp := experiment.NewOnline(env, a, 300_000, returns)

	if err := exp.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	if err := exp.Save(); err != nil {
		log.Fatalf("could not save experiment data: %v", err)
	}

	if closer, ok := a.(agent.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Fatalf("could not close agent: %v", err)
		}
	}
	if err := env.Close(); err != nil {
		log.Fatalf("could not close environment: %v", err)
	}

	fmt.Println("Saved episodic returns to ./data.bin")
}
