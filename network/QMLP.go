package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ActionValueNet is a NeuralNet that predicts the value of
// state-action pairs and therefore takes a separate action input in
// addition to its state input.
type ActionValueNet interface {
	NeuralNet

	// SetActionInput sets the value of the network's action input node
	// before running a forward pass
	SetActionInput([]float64) error
}

// qMLP implements an action value function as a multi-layered
// perceptron. States and actions are passed through separate
// fully connected encoders whose outputs are summed before the hidden
// layers, and a final linear layer predicts a single value per
// state-action pair.
type qMLP struct {
	g             *G.ExprGraph
	stateEncoder  Layer
	actionEncoder Layer
	layers        []Layer

	stateInput  *G.Node
	actionInput *G.Node

	// ownsActionInput is false when the action input is another
	// network's prediction rather than a settable input node
	ownsActionInput bool

	numInputs   int
	actionDims  int
	batchSize   int
	encoderSize int

	// Data needed for cloning
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewQMLP creates and returns a new action value MLP. The graph
// parameter g is populated with the network.
//
// States and actions are first passed through separate fully connected
// encoders of size encoderSize with ReLU activations. The encoder
// outputs are summed and passed through the hidden layers described by
// hiddenSizes, biases, and activations, following the same conventions
// as addfcLayers. A final linear layer of size 1 with a bias unit is
// always added.
func NewQMLP(features, actionDims, batch int, g *G.ExprGraph,
	encoderSize int, hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newqmlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newqmlp: invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	if encoderSize <= 0 {
		return nil, fmt.Errorf("newqmlp: encoder size must be positive "+
			"but got %v", encoderSize)
	}

	stateEncoder := addfcLayers(g, []int{encoderSize}, []bool{true},
		[]*Activation{ReLU()}, init, features, "QStateEnc")[0]
	actionEncoder := addfcLayers(g, []int{encoderSize}, []bool{true},
		[]*Activation{ReLU()}, init, actionDims, "QActionEnc")[0]

	// Add the final linear value layer
	hiddenSizes = append(hiddenSizes, 1)
	biases = append(biases, true)
	activations = append(activations, Identity())

	layers := addfcLayers(g, hiddenSizes, biases, activations, init,
		encoderSize, "Q")

	// Set up the input nodes
	stateInput := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, features), G.WithName("QStateInput"),
		G.WithInit(G.Zeroes()))
	actionInput := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, actionDims), G.WithName("QActionInput"),
		G.WithInit(G.Zeroes()))

	network := qMLP{
		g:               g,
		stateEncoder:    stateEncoder,
		actionEncoder:   actionEncoder,
		layers:          layers,
		stateInput:      stateInput,
		actionInput:     actionInput,
		ownsActionInput: true,
		numInputs:       features,
		actionDims:      actionDims,
		batchSize:       batch,
		encoderSize:     encoderSize,
		hiddenSizes:     hiddenSizes,
		biases:          biases,
		activations:     activations,
	}
	_, err := network.fwd(stateInput, actionInput)
	if err != nil {
		msg := "newqmlp: could not compute forward pass: %v"
		return &qMLP{}, fmt.Errorf(msg, err)
	}

	return &network, nil
}

// Graph returns the computational graph of the qMLP
func (e *qMLP) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones a qMLP
func (e *qMLP) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones a qMLP with a new input batch size. The clone
// keeps the current weight values.
func (e *qMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()

	stateInput := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.numInputs),
		G.WithName("QStateInput"),
		G.WithInit(G.Zeroes()),
	)
	actionInput := G.NewMatrix(
		graph,
		tensor.Float64,
		G.WithShape(batchSize, e.actionDims),
		G.WithName("QActionInput"),
		G.WithInit(G.Zeroes()),
	)

	return e.cloneWithInputsTo(stateInput, actionInput, graph, true)
}

// cloneWithInputsTo clones a qMLP to a specific computational graph
// with specified state and action input nodes. The ownsActionInput
// parameter records whether the action input is a settable input node
// of the clone or another network's prediction.
func (e *qMLP) cloneWithInputsTo(stateInput, actionInput *G.Node,
	graph *G.ExprGraph, ownsActionInput bool) (*qMLP, error) {
	if stateInput.Graph() != graph || actionInput.Graph() != graph {
		return nil, fmt.Errorf("clonewithinputsto: not all inputs " +
			"have the same graph")
	}
	if !stateInput.IsMatrix() || !actionInput.IsMatrix() {
		return nil, fmt.Errorf("clonewithinputsto: inputs must be " +
			"matrix nodes")
	}
	if stateInput.Shape()[0] != actionInput.Shape()[0] {
		return nil, fmt.Errorf("clonewithinputsto: state and action "+
			"inputs have different batch sizes\n\tstate(%v)\n\taction(%v)",
			stateInput.Shape()[0], actionInput.Shape()[0])
	}

	l := make([]Layer, len(e.layers))
	for i := range e.layers {
		l[i] = e.layers[i].CloneTo(graph)
	}

	network := qMLP{
		g:               graph,
		stateEncoder:    e.stateEncoder.CloneTo(graph),
		actionEncoder:   e.actionEncoder.CloneTo(graph),
		layers:          l,
		stateInput:      stateInput,
		actionInput:     actionInput,
		ownsActionInput: ownsActionInput,
		numInputs:       e.numInputs,
		actionDims:      e.actionDims,
		batchSize:       stateInput.Shape()[0],
		encoderSize:     e.encoderSize,
		hiddenSizes:     e.hiddenSizes,
		biases:          e.biases,
		activations:     e.activations,
	}
	_, err := network.fwd(stateInput, actionInput)
	if err != nil {
		return nil, fmt.Errorf("clonewithinputsto: could not clone: %v", err)
	}

	return &network, nil
}

// BatchSize returns the batch size of inputs to the qMLP
func (e *qMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the qMLP takes as input.
func (e *qMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of values the qMLP predicts per
// state-action pair
func (e *qMLP) Outputs() int {
	return 1
}

// SetInput sets the value of the state input node before running the
// forward pass.
func (e *qMLP) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		msg := fmt.Sprintf("invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
		panic(msg)
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.stateInput.Shape()...),
	)
	return G.Let(e.stateInput, inputTensor)
}

// SetActionInput sets the value of the action input node before
// running the forward pass. If the qMLP's action input is another
// network's prediction, an error is returned.
func (e *qMLP) SetActionInput(input []float64) error {
	if !e.ownsActionInput {
		return fmt.Errorf("setactioninput: action input is computed by " +
			"another network")
	}
	if len(input) != e.actionDims*e.batchSize {
		msg := fmt.Sprintf("invalid number of actions\n\twant(%v)"+
			"\n\thave(%v)", e.actionDims*e.batchSize, len(input))
		panic(msg)
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.actionInput.Shape()...),
	)
	return G.Let(e.actionInput, inputTensor)
}

// Set sets the weights of a qMLP to be equal to the weights of another
// qMLP
func (dest *qMLP) Set(source NeuralNet) error {
	return setWeights(dest, source)
}

// Polyak sets the weights of a qMLP to be a Polyak average between its
// existing weights and the weights of another qMLP
func (dest *qMLP) Polyak(source NeuralNet, tau float64) error {
	return polyakWeights(dest, source, tau)
}

// Learnables returns the learnable nodes in a qMLP
func (e *qMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if e.learnables == nil {
		encoders := layerLearnables([]Layer{e.stateEncoder, e.actionEncoder})
		e.learnables = append(encoders, layerLearnables(e.layers)...)
	}
	return e.learnables
}

// Model returns the learnable nodes with their gradients.
func (e *qMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if e.model == nil {
		e.model = learnablesModel(e.Learnables())
	}
	return e.model
}

// fwd performs the forward pass of the qMLP on the state and action
// input nodes
func (e *qMLP) fwd(state, action *G.Node) (*G.Node, error) {
	stateShape := state.Shape()[len(state.Shape())-1]
	if stateShape%e.numInputs != 0 {
		return nil, fmt.Errorf("fwd: invalid shape for state input:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, stateShape)
	}
	actionShape := action.Shape()[len(action.Shape())-1]
	if actionShape%e.actionDims != 0 {
		return nil, fmt.Errorf("fwd: invalid shape for action input:"+
			" \n\twant(%v) \n\thave(%v)", e.actionDims, actionShape)
	}

	stateEnc, err := e.stateEncoder.fwd(state)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not encode state: %v", err)
	}
	actionEnc, err := e.actionEncoder.fwd(action)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not encode action: %v", err)
	}

	pred, err := G.Add(stateEnc, actionEnc)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not fuse encodings: %v", err)
	}

	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred

	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the qMLP
func (e *qMLP) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the qMLP
func (e *qMLP) Prediction() *G.Node {
	return e.prediction
}
