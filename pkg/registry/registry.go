// Package registry is the coordinator's process-wide directory of known
// workers and their last observed state (spec.md §4.2).
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// Capacity is the maximum number of workers the registry will hold
// (spec.md §3).
const Capacity = 256

// LivenessWindow is how long a worker's last heartbeat may be stale before
// it's ineligible for placement (spec.md §3 invariant 4).
const LivenessWindow = 30 * time.Second

// ErrCapacity is returned by Upsert when the registry is full and the
// worker id is not already known.
var ErrCapacity = errors.New("registry: capacity reached")

// Registry is the worker directory. All methods are safe for concurrent
// use; Snapshot returns by-value copies so callers can make placement
// decisions without holding the lock (spec.md §4.2, §5).
type Registry struct {
	mu      sync.Mutex
	workers map[string]*models.Worker
	order   []string // registration order, for placement's earliest-registered tie-break
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{workers: make(map[string]*models.Worker)}
}

// Upsert creates a new worker record or updates an existing one in place
// (spec.md §3 invariant 1, §4.2). It sets state Connected and resets
// last_heartbeat to now either way.
func (r *Registry) Upsert(id, hostname, ip string, port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if w, ok := r.workers[id]; ok {
		w.Hostname = hostname
		w.IP = ip
		w.Port = port
		w.State = models.WorkerConnected
		w.LastHeartbeat = now
		return nil
	}

	if len(r.workers) >= Capacity {
		return ErrCapacity
	}

	r.workers[id] = &models.Worker{
		ID:            id,
		Hostname:      hostname,
		IP:            ip,
		Port:          port,
		State:         models.WorkerConnected,
		LastHeartbeat: now,
		RegisteredAt:  now,
	}
	r.order = append(r.order, id)
	return nil
}

// BindConnection attaches a live connection handle to an existing worker
// record, called by the session handler right after a successful Upsert.
func (r *Registry) BindConnection(id string, conn models.WriterCloser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[id]; ok {
		w.Conn = conn
	}
}

// Find returns a by-value snapshot of one worker record, or false if unknown.
func (r *Registry) Find(id string) (models.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return models.Worker{}, false
	}
	return w.Clone(), true
}

// Connection returns the live handle for a worker, or (nil, false) when the
// worker is unknown or has no bound connection. Used internally
// by callers (container index) that need to write to the socket; it is not
// part of Snapshot's by-value contract.
func (r *Registry) Connection(id string) (models.WriterCloser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok || w.Conn == nil {
		return nil, false
	}
	return w.Conn, true
}

// Remove deletes a worker record entirely. Used only for explicit operator
// unregistration (spec.md §3 lifecycles) — a disconnected socket alone does
// not remove the record.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[id]; !ok {
		return false
	}
	delete(r.workers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Touch records a heartbeat: sets state Connected, updates the resource
// sample, and resets last_heartbeat (spec.md §4.2).
func (r *Registry) Touch(id string, sample models.ResourceSample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return false
	}
	w.State = models.WorkerConnected
	w.Resources = sample
	w.LastHeartbeat = time.Now()
	return true
}

// CloseConnection moves a worker to Disconnected and clears its connection
// handle; the record itself is retained (spec.md §4.2, §5).
func (r *Registry) CloseConnection(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[id]; ok {
		w.State = models.WorkerDisconnected
		w.Conn = nil
	}
}

// AddContainer appends a container id to a worker's local view, used when a
// deploy succeeds (spec.md §4.5).
func (r *Registry) AddContainer(workerID, containerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workers[workerID]; ok {
		w.Containers = append(w.Containers, containerID)
	}
}

// RemoveContainer removes a container id from a worker's local view.
func (r *Registry) RemoveContainer(workerID, containerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return
	}
	for i, cid := range w.Containers {
		if cid == containerID {
			w.Containers = append(w.Containers[:i], w.Containers[i+1:]...)
			return
		}
	}
}

// Snapshot returns a consistent by-value copy of every worker record, in
// registration order, taken under the registry's lock (spec.md §3
// invariant 6, §4.2). Callers make placement decisions against this copy,
// outside the lock.
func (r *Registry) Snapshot() []models.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Worker, 0, len(r.order))
	for _, id := range r.order {
		if w, ok := r.workers[id]; ok {
			out = append(out, w.Clone())
		}
	}
	return out
}

// Len reports the current number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
