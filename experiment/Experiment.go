// Package experiment implements functionality for running an experiment
package experiment

import (
	"github.com/samuelfneumann/goddpg/experiment/tracker"
	ts "github.com/samuelfneumann/goddpg/timestep"
)

// Experiment outlines structs that can run experiments. Experiments
// track environment TimeSteps, caching each TimeStep in RAM to be
// later saved to disk. The Save() function takes all cached data and
// saves it to disk, usually after the experiment has been run. The
// Run() method runs all episodes until the maximum timestep limit, or
// some other ending condition, is reached. The RunEpisode() method
// runs a single episode.
//
// In order to save data, Experiments use tracker.Trackers, which
// determine which data generated during the experiment is saved.
// Experiments send each TimeStep to their Trackers through the
// Tracker's Track() method. New Trackers can be registered with an
// Experiment through the constructor or through an Experiment's
// Register() method.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the step limit was hit

	// Save all tracked data to disk
	Save() error

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment. Useful if data should be tracked only after
	// a specified event.
	Register(t tracker.Tracker)

	// Tracks current timestep by sending it to Trackers
	track(ts.TimeStep)
}
