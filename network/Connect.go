package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ConnectPolicyCritic clones a policy network and an action value
// network onto a single fresh computational graph with a shared state
// input of the given batch size, feeding the policy's predicted
// actions directly into the critic's action input. Both clones keep
// the weight values of the networks they were cloned from.
//
// Running the returned critic's graph therefore computes
// Q(s, π(s)), with gradients able to flow through the critic into the
// policy weights. The returned critic's action input cannot be set
// manually.
func ConnectPolicyCritic(p, q NeuralNet, batch int) (NeuralNet, NeuralNet,
	error) {
	pol, ok := p.(*policyMLP)
	if !ok {
		return nil, nil, fmt.Errorf("connectpolicycritic: policy must be " +
			"a policy MLP")
	}
	critic, ok := q.(*qMLP)
	if !ok {
		return nil, nil, fmt.Errorf("connectpolicycritic: critic must be " +
			"an action value MLP")
	}
	if pol.Features() != critic.Features() {
		return nil, nil, fmt.Errorf("connectpolicycritic: policy and "+
			"critic have different feature sizes\n\tpolicy(%v)"+
			"\n\tcritic(%v)", pol.Features(), critic.Features())
	}
	if pol.Outputs() != critic.actionDims {
		return nil, nil, fmt.Errorf("connectpolicycritic: policy action "+
			"dimensions do not match critic\n\tpolicy(%v)\n\tcritic(%v)",
			pol.Outputs(), critic.actionDims)
	}

	graph := G.NewGraph()

	state := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batch, pol.Features()),
		G.WithName("SharedStateInput"),
		G.WithInit(G.Zeroes()),
	)

	newPolicy, err := pol.cloneWithInputTo(state, graph)
	if err != nil {
		return nil, nil, fmt.Errorf("connectpolicycritic: could not "+
			"clone policy: %v", err)
	}

	newCritic, err := critic.cloneWithInputsTo(state,
		newPolicy.Prediction(), graph, false)
	if err != nil {
		return nil, nil, fmt.Errorf("connectpolicycritic: could not "+
			"clone critic: %v", err)
	}

	return newPolicy, newCritic, nil
}
