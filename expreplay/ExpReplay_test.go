package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goddpg/timestep"
)

// makeTransition creates a transition whose every field is filled with
// the value v so that sampled rows can be traced back to insertions.
func makeTransition(features, actions int, v float64) timestep.Transition {
	state := make([]float64, features)
	nextState := make([]float64, features)
	action := make([]float64, actions)
	for i := range state {
		state[i] = v
		nextState[i] = v
	}
	for i := range action {
		action[i] = v
	}

	return timestep.Transition{
		State:     mat.NewVecDense(features, state),
		Action:    mat.NewVecDense(actions, action),
		Reward:    v,
		Discount:  v,
		NextState: mat.NewVecDense(features, nextState),
	}
}

// TestSampleEmptyBuffer ensures sampling an empty buffer returns an
// error satisfying IsEmptyBuffer
func TestSampleEmptyBuffer(t *testing.T) {
	buffer, err := New(1, 10, 1, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	_, _, _, _, _, err = buffer.Sample()
	if err == nil {
		t.Error("expected error when sampling empty buffer")
	}
	if !IsEmptyBuffer(err) {
		t.Errorf("expected empty buffer error, got %v", err)
	}
}

// TestSampleInsufficientSamples ensures sampling below MinCapacity
// returns an error satisfying IsInsufficientSamples
func TestSampleInsufficientSamples(t *testing.T) {
	buffer, err := New(5, 10, 4, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		err := buffer.Add(makeTransition(2, 1, float64(i)))
		if err != nil {
			t.Fatal(err)
		}
	}

	_, _, _, _, _, err = buffer.Sample()
	if err == nil {
		t.Error("expected error when sampling below minimum capacity")
	}
	if !IsInsufficientSamples(err) {
		t.Errorf("expected insufficient samples error, got %v", err)
	}

	// One more sample reaches MinCapacity
	err = buffer.Add(makeTransition(2, 1, 4.0))
	if err != nil {
		t.Fatal(err)
	}
	_, _, _, _, _, err = buffer.Sample()
	if err != nil {
		t.Errorf("expected sampling to succeed at minimum capacity: %v", err)
	}
}

// TestFIFOEviction ensures that once the buffer is full the oldest
// transitions are overwritten first
func TestFIFOEviction(t *testing.T) {
	const maxCap = 4
	buffer, err := New(1, maxCap, 1, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Overfill the buffer: values 0..5, so 0 and 1 should be evicted
	for i := 0; i < maxCap+2; i++ {
		err := buffer.Add(makeTransition(1, 1, float64(i)))
		if err != nil {
			t.Fatal(err)
		}
	}

	if buffer.Capacity() != maxCap {
		t.Errorf("expected capacity %v, got %v", maxCap, buffer.Capacity())
	}

	// Sample many times; only values 2..5 should ever appear
	for i := 0; i < 100; i++ {
		_, _, rewards, _, _, err := buffer.Sample()
		if err != nil {
			t.Fatal(err)
		}
		if rewards[0] < 2.0 || rewards[0] > 5.0 {
			t.Fatalf("sampled evicted or unknown transition %v", rewards[0])
		}
	}
}

// TestSampleWithoutReplacement ensures a single batch never contains
// the same transition twice
func TestSampleWithoutReplacement(t *testing.T) {
	const batchSize = 5
	buffer, err := New(batchSize, 10, batchSize, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Exactly batchSize distinct transitions: every batch must contain
	// each exactly once
	for i := 0; i < batchSize; i++ {
		err := buffer.Add(makeTransition(1, 1, float64(i)))
		if err != nil {
			t.Fatal(err)
		}
	}

	for trial := 0; trial < 50; trial++ {
		_, _, rewards, _, _, err := buffer.Sample()
		if err != nil {
			t.Fatal(err)
		}

		seen := make(map[float64]bool)
		for _, r := range rewards {
			if seen[r] {
				t.Fatalf("transition %v sampled twice in one batch", r)
			}
			seen[r] = true
		}
	}
}

// TestSampleRowAlignment ensures that the columns of a sampled batch
// stay aligned: row i of each returned slice comes from the same
// transition
func TestSampleRowAlignment(t *testing.T) {
	const features, actions = 3, 2
	buffer, err := New(1, 10, 4, features, actions, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		err := buffer.Add(makeTransition(features, actions, float64(i)))
		if err != nil {
			t.Fatal(err)
		}
	}

	states, acts, rewards, discounts, nextStates, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < buffer.BatchSize(); i++ {
		v := rewards[i]
		if discounts[i] != v {
			t.Errorf("row %v: discount misaligned with reward", i)
		}
		for j := 0; j < features; j++ {
			if states[i*features+j] != v {
				t.Errorf("row %v: state misaligned with reward", i)
			}
			if nextStates[i*features+j] != v {
				t.Errorf("row %v: next state misaligned with reward", i)
			}
		}
		for j := 0; j < actions; j++ {
			if acts[i*actions+j] != v {
				t.Errorf("row %v: action misaligned with reward", i)
			}
		}
	}
}

// TestAddInvalidShape ensures transitions with wrong vector sizes are
// rejected
func TestAddInvalidShape(t *testing.T) {
	buffer, err := New(1, 10, 1, 3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	err = buffer.Add(makeTransition(2, 1, 0.0))
	if err == nil {
		t.Error("expected error when adding transition with wrong " +
			"feature size")
	}

	err = buffer.Add(makeTransition(3, 2, 0.0))
	if err == nil {
		t.Error("expected error when adding transition with wrong " +
			"action size")
	}

	if buffer.Capacity() != 0 {
		t.Errorf("invalid transitions should not be stored, capacity %v",
			buffer.Capacity())
	}
}

// TestNewInvalidConfig ensures invalid buffer configurations are
// rejected
func TestNewInvalidConfig(t *testing.T) {
	if _, err := New(0, 10, 1, 1, 1, 1); err == nil {
		t.Error("expected error for non-positive minimum capacity")
	}
	if _, err := New(1, 0, 1, 1, 1, 1); err == nil {
		t.Error("expected error for non-positive maximum capacity")
	}
	if _, err := New(1, 4, 8, 1, 1, 1); err == nil {
		t.Error("expected error for batch size above maximum capacity")
	}
}
