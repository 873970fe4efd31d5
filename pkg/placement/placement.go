// Package placement implements resource-weighted worker selection for
// automatic container deployment (spec.md §4.4, §5).
package placement

import (
	"errors"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

// ErrNoCandidate is returned when no registered worker is eligible.
var ErrNoCandidate = errors.New("placement: no suitable worker available")

// Select scores every worker in the snapshot and returns the best
// candidate. A worker is eligible only if it is Connected, has
// heartbeated within registry.LivenessWindow, and has spare container
// capacity. Ties are broken by earliest registration (first in the
// snapshot, since Registry.Snapshot preserves registration order) —
// spec.md §4.4.
//
// now is passed in rather than read internally so callers (and tests) can
// exercise the 30-second liveness boundary deterministically.
func Select(workers []models.Worker, now time.Time) (models.Worker, error) {
	var best models.Worker
	bestScore := -1.0
	found := false

	for _, w := range workers {
		if !eligible(w, now) {
			continue
		}

		score := Score(w)
		if score > bestScore {
			bestScore = score
			best = w
			found = true
		}
	}

	if !found {
		return models.Worker{}, ErrNoCandidate
	}
	return best, nil
}

func eligible(w models.Worker, now time.Time) bool {
	if w.State != models.WorkerConnected {
		return false
	}
	if now.Sub(w.LastHeartbeat) > registry.LivenessWindow {
		return false
	}
	if w.Resources.ContainerCount >= w.Resources.Capacity {
		return false
	}
	return true
}

// Score computes the weighted availability score for one worker:
// 0.30*(100-cpu%) + 0.30*(100-mem%) + 0.20*(100-disk%) + 0.20*100*(1-count/capacity)
// (spec.md §4.4, grounded in the original coordinator's find_best_node).
func Score(w models.Worker) float64 {
	r := w.Resources

	capacity := r.Capacity
	if capacity <= 0 {
		capacity = 1 // avoid division by zero for workers that haven't heartbeated yet
	}
	load := float64(r.ContainerCount) / float64(capacity)

	return (100.0-r.CPUPercent)*0.3 +
		(100.0-r.MemPercent)*0.3 +
		(100.0-r.DiskPercent)*0.2 +
		(1.0-load)*100.0*0.2
}
