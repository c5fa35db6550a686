// Package expreplay implements experience replay buffers
package expreplay

import (
	"fmt"
	"math/rand"

	"github.com/samuelfneumann/goddpg/timestep"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	MinCapacity int // Samples needed before sampling is allowed
	MaxCapacity int // Maximum samples held
	BatchSize   int // Samples returned per Sample() call
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(featureSize, actionSize int,
	seed int64) (ExperienceReplayer, error) {
	return New(c.MinCapacity, c.MaxCapacity, c.BatchSize, featureSize,
		actionSize, seed)
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, evicting the oldest
	// transition if the buffer is full
	Add(t timestep.Transition) error

	// Sample samples a batch of experience from the buffer and returns
	// the batch column-wise: one []float64 per field, holding the
	// states, actions, rewards, discounts, and next states of the
	// batch in row-major order with per-field row alignment.
	Sample() ([]float64, []float64, []float64, []float64, []float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// fifoBuffer implements a concrete ExperienceReplayer as a
// fixed-capacity ring. Transitions are held in insertion order, the
// oldest overwritten first once the ring is full. Sampling draws
// uniformly at random without replacement within a single call.
type fifoBuffer struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	// oldest is the ring index of the oldest transition; size the
	// number of transitions currently held
	oldest int
	size   int

	minCapacity int
	maxCapacity int
	batchSize   int
	featureSize int
	actionSize  int

	rng *rand.Rand
}

// New creates and returns a new ExperienceReplayer. The featureSize and
// actionSize parameters define the size of the observation and action
// vectors stored in each transition.
func New(minCapacity, maxCapacity, batchSize, featureSize, actionSize int,
	seed int64) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < batchSize {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}

	source := rand.NewSource(seed)

	return &fifoBuffer{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		batchSize:   batchSize,
		featureSize: featureSize,
		actionSize:  actionSize,

		rng: rand.New(source),
	}, nil
}

// String returns the string representation of the buffer
func (c *fifoBuffer) String() string {
	baseStr := "Capacity: %v \nOldest: %v \nStates: %v \nActions: %v " +
		"\nRewards: %v \nDiscounts: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, c.size, c.oldest, c.stateCache,
		c.actionCache, c.rewardCache, c.discountCache, c.nextStateCache)
}

// BatchSize returns the number of samples returned per Sample() call
func (c *fifoBuffer) BatchSize() int {
	return c.batchSize
}

// Capacity returns the current number of elements in the buffer that
// are available for sampling
func (c *fifoBuffer) Capacity() int {
	return c.size
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the buffer
func (c *fifoBuffer) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// buffer before sampling is allowed
func (c *fifoBuffer) MinCapacity() int {
	return c.minCapacity
}

// Add adds a transition to the buffer. If the buffer is full, the
// oldest transition is overwritten first.
func (c *fifoBuffer) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", c.featureSize, t.State.Len())
	}
	if t.Action.Len() != c.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)"+
			"\n\thave(%v)", c.actionSize, t.Action.Len())
	}

	var index int
	if c.size < c.maxCapacity {
		index = (c.oldest + c.size) % c.maxCapacity
		c.size++
	} else {
		// Ring is full, overwrite the oldest transition
		index = c.oldest
		c.oldest = (c.oldest + 1) % c.maxCapacity
	}

	stateInd := index * c.featureSize
	for i := 0; i < c.featureSize; i++ {
		c.stateCache[stateInd+i] = t.State.AtVec(i)
		c.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}

	actionInd := index * c.actionSize
	for i := 0; i < c.actionSize; i++ {
		c.actionCache[actionInd+i] = t.Action.AtVec(i)
	}

	c.rewardCache[index] = t.Reward
	c.discountCache[index] = t.Discount

	return nil
}

// choose selects BatchSize() distinct ring indices uniformly at random
func (c *fifoBuffer) choose() []int {
	chosen := make(map[int]struct{}, c.batchSize)
	indices := make([]int, 0, c.batchSize)

	for len(indices) < c.batchSize {
		index := c.rng.Intn(c.size)
		if _, ok := chosen[index]; ok {
			continue
		}
		chosen[index] = struct{}{}
		indices = append(indices, index)
	}
	return indices
}

// Sample samples and returns a batch of transitions from the replay
// buffer. Each transition in the batch is distinct, but the same
// transition may be returned by separate Sample() calls.
func (c *fifoBuffer) Sample() ([]float64, []float64, []float64, []float64,
	[]float64, error) {
	if c.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyBuffer,
		}
		return nil, nil, nil, nil, nil, err
	}
	if c.Capacity() < c.MinCapacity() || c.Capacity() < c.BatchSize() {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
		return nil, nil, nil, nil, nil, err
	}

	indices := c.choose()

	stateBatch := make([]float64, c.batchSize*c.featureSize)
	nextStateBatch := make([]float64, c.batchSize*c.featureSize)
	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize],
		)
		copy(nextStateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize],
		)
	}

	actionBatch := make([]float64, c.batchSize*c.actionSize)
	for i, index := range indices {
		batchStartInd := i * c.actionSize
		expStartInd := index * c.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+c.actionSize],
			c.actionCache[expStartInd:expStartInd+c.actionSize],
		)
	}

	rewardBatch := make([]float64, c.batchSize)
	discountBatch := make([]float64, c.batchSize)
	for i, index := range indices {
		rewardBatch[i] = c.rewardCache[index]
		discountBatch[i] = c.discountCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, discountBatch,
		nextStateBatch, nil
}
