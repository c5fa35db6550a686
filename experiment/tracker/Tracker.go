// Package tracker implements functionality for tracking data generated
// during an experiment and saving it to disk
package tracker

import (
	ts "github.com/samuelfneumann/goddpg/timestep"
)

// Tracker caches data generated during an experiment. Experiments send
// each environmental TimeStep to their Trackers through Track(), and
// each Tracker decides which data from the TimeStep it caches. Save()
// writes all cached data to disk, usually after the experiment has
// finished.
type Tracker interface {
	Track(ts.TimeStep)
	Save() error
}
