package router

import (
	"sync/atomic"
)

type stageCounters struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	replayed  atomic.Uint64
}

// StageStats is a snapshot of one stage's counters.
type StageStats struct {
	Stage     int
	Processed uint64
	Dropped   uint64
	// Delivered is only non-zero for the endpoint stage.
	Delivered uint64
	// Replayed counts messages dropped for a repeated IV. They are also
	// counted in Dropped.
	Replayed uint64
}

// Stats returns a snapshot of every stage, gateway first. The counters are
// read independently, so a snapshot taken while messages are in flight may
// be momentarily inconsistent across stages.
func (r *Relay) Stats() []StageStats {
	out := make([]StageStats, len(r.stats))
	for i := range r.stats {
		out[i] = StageStats{
			Stage:     i,
			Processed: r.stats[i].processed.Load(),
			Dropped:   r.stats[i].dropped.Load(),
			Delivered: r.stats[i].delivered.Load(),
			Replayed:  r.stats[i].replayed.Load(),
		}
	}
	return out
}

// TotalDropped sums the dropped counters of every stage.
func (r *Relay) TotalDropped() uint64 {
	var n uint64
	for i := range r.stats {
		n += r.stats[i].dropped.Load()
	}
	return n
}
