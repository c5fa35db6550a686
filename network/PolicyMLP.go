package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// policyMLP implements a deterministic policy as a multi-layered
// perceptron. The output layer uses a tanh activation, scaled
// elementwise by the action bounds so that predicted actions always
// stay within the action space.
type policyMLP struct {
	g      *G.ExprGraph
	layers []Layer
	input  *G.Node

	numInputs  int
	actionDims int
	batchSize  int

	// Data needed for cloning
	hiddenSizes  []int
	biases       []bool
	activations  []*Activation
	actionBounds []float64
	prefix       string

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewPolicyMLP creates and returns a new deterministic policy MLP. The
// graph parameter g is populated with the policy network.
//
// The network has number of layers equal to len(hiddenSizes) + 1. A
// final layer of size actionDims with a tanh activation is always
// added, and its output is scaled elementwise by actionBounds, so the
// dimension i of any predicted action lies in
// [-actionBounds[i], actionBounds[i]]. The hidden layer architecture
// follows the same conventions as addfcLayers.
func NewPolicyMLP(features, batch, actionDims int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, actionBounds []float64) (NeuralNet, error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newpolicymlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newpolicymlp: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	if len(actionBounds) != actionDims {
		msg := "newpolicymlp: invalid number of action bounds\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, actionDims, len(actionBounds))
	}
	for i, bound := range actionBounds {
		if bound <= 0 {
			return nil, fmt.Errorf("newpolicymlp: action bound %v must be "+
				"positive but got %v", i, bound)
		}
	}

	// Add the final bounded action layer
	hiddenSizes = append(hiddenSizes, actionDims)
	biases = append(biases, true)
	activations = append(activations, TanH())

	prefix := "Policy"
	layers := addfcLayers(g, hiddenSizes, biases, activations, init,
		features, prefix)

	// Set up the input node
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(prefix+"Input"), G.WithInit(G.Zeroes()))

	network := policyMLP{
		g:            g,
		layers:       layers,
		input:        input,
		numInputs:    features,
		actionDims:   actionDims,
		batchSize:    batch,
		hiddenSizes:  hiddenSizes,
		biases:       biases,
		activations:  activations,
		actionBounds: actionBounds,
		prefix:       prefix,
	}
	_, err := network.fwd(input)
	if err != nil {
		msg := "newpolicymlp: could not compute forward pass: %v"
		return &policyMLP{}, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// Graph returns the computational graph of the policy
func (e *policyMLP) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones a policyMLP
func (e *policyMLP) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones a policyMLP with a new input batch size. The
// clone keeps the current weight values.
func (e *policyMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()

	input := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName(e.prefix+"Input"),
		G.WithInit(G.Zeroes()),
	)

	return e.cloneWithInputTo(input, graph)
}

// cloneWithInputTo clones a policyMLP to a specific computational graph
// with a specified input node
func (e *policyMLP) cloneWithInputTo(input *G.Node,
	graph *G.ExprGraph) (*policyMLP, error) {
	if input.Graph() != graph {
		return nil, fmt.Errorf("clonewithinputto: input not in graph")
	}
	if !input.IsMatrix() {
		return nil, fmt.Errorf("clonewithinputto: input must be a matrix node")
	}

	l := make([]Layer, len(e.layers))
	for i := range e.layers {
		l[i] = e.layers[i].CloneTo(graph)
	}

	network := policyMLP{
		g:            graph,
		layers:       l,
		input:        input,
		numInputs:    e.numInputs,
		actionDims:   e.actionDims,
		batchSize:    input.Shape()[0],
		hiddenSizes:  e.hiddenSizes,
		biases:       e.biases,
		activations:  e.activations,
		actionBounds: e.actionBounds,
		prefix:       e.prefix,
	}
	_, err := network.fwd(input)
	if err != nil {
		return nil, fmt.Errorf("clonewithinputto: could not clone: %v", err)
	}

	return &network, nil
}

// BatchSize returns the batch size of inputs to the policy
func (e *policyMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the policy takes as input.
func (e *policyMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of action dimensions the policy predicts
func (e *policyMLP) Outputs() int {
	return e.actionDims
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *policyMLP) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		msg := fmt.Sprintf("invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
		panic(msg)
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of a policyMLP to be equal to the weights of
// another policyMLP
func (dest *policyMLP) Set(source NeuralNet) error {
	return setWeights(dest, source)
}

// Polyak sets the weights of a policyMLP to be a Polyak average
// between its existing weights and the weights of another policyMLP
func (dest *policyMLP) Polyak(source NeuralNet, tau float64) error {
	return polyakWeights(dest, source, tau)
}

// Learnables returns the learnable nodes in a policyMLP
func (e *policyMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		e.learnables = layerLearnables(e.layers)
	}
	return e.learnables
}

// Model returns the learnable nodes with their gradients.
func (e *policyMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		e.model = learnablesModel(e.Learnables())
	}
	return e.model
}

// fwd performs the forward pass of the policyMLP on the input node
func (e *policyMLP) fwd(input *G.Node) (*G.Node, error) {
	inputShape := input.Shape()[len(input.Shape())-1]
	if inputShape%e.numInputs != 0 {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, inputShape)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	// Scale the tanh output to the action bounds, broadcast over the
	// batch dimension
	scaleBacking := make([]float64, e.actionDims)
	copy(scaleBacking, e.actionBounds)
	scaleTensor := tensor.New(
		tensor.WithBacking(scaleBacking),
		tensor.WithShape(1, e.actionDims),
	)
	scale := G.NewMatrix(
		input.Graph(),
		tensor.Float64,
		G.WithShape(1, e.actionDims),
		G.WithName(e.prefix+"ActionScale"),
		G.WithValue(scaleTensor),
	)
	pred, err = G.BroadcastHadamardProd(pred, scale, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not scale actions: %v", err)
	}

	e.prediction = pred

	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the policyMLP
func (e *policyMLP) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the policyMLP
func (e *policyMLP) Prediction() *G.Node {
	return e.prediction
}

// layerLearnables collects the learnable nodes of a sequence of layers
func layerLearnables(layers []Layer) G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(layers))

	for i := range layers {
		learnables = append(learnables, layers[i].Weights())
		if bias := layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// learnablesModel wraps learnable nodes as value-gradient pairs
func learnablesModel(learnables G.Nodes) []G.ValueGrad {
	model := make([]G.ValueGrad, 0, len(learnables))
	for _, node := range learnables {
		model = append(model, node)
	}
	return model
}
