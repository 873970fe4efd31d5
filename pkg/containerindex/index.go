// Package containerindex is the coordinator's authoritative record of
// every deployed container and the state-transition commands sent to
// workers about them (spec.md §4.5, §5).
package containerindex

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/metrics"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/placement"
	"github.com/athulya-anil/distributed-lxc/pkg/protocol"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

// Capacity is the maximum number of containers the index will track
// (spec.md §3).
const Capacity = 1024

var (
	ErrCapacity    = errors.New("containerindex: capacity reached")
	ErrNotFound    = errors.New("containerindex: container not found")
	ErrWorkerGone  = errors.New("containerindex: target worker is not connected")
)

// Index holds deployed containers. Its mutex is independent of the
// registry's: per spec.md §5, deploy/start/stop/delete send their command
// message to the worker *while holding the index lock*, which serializes
// lifecycle transitions for a given container against concurrent commands
// (two racing "stop" calls each send and transition in turn, never
// interleaved; no current-state check is made before sending), at
// the cost of blocking other index operations on a slow/stuck connection
// write. That tradeoff is accepted deliberately, not an oversight.
type Index struct {
	mu         sync.Mutex
	containers map[string]*models.Container
	order      []string

	reg *registry.Registry
}

// New builds an index bound to the coordinator's worker registry, used to
// resolve a container's worker to a live connection.
func New(reg *registry.Registry) *Index {
	return &Index{
		containers: make(map[string]*models.Container),
		reg:        reg,
	}
}

// DeployAuto selects the best eligible worker via pkg/placement and
// deploys cfg to it. Returns the new container record.
func (idx *Index) DeployAuto(cfg models.ContainerConfig) (models.Container, error) {
	snapshot := idx.reg.Snapshot()
	best, err := placement.Select(snapshot, time.Now())
	if err != nil {
		metrics.PlacementDecisions.WithLabelValues("no_candidate").Inc()
		return models.Container{}, err
	}
	c, err := idx.Deploy(best.ID, cfg)
	if err != nil {
		metrics.PlacementDecisions.WithLabelValues("deploy_failed").Inc()
		return models.Container{}, err
	}
	metrics.PlacementDecisions.WithLabelValues("selected").Inc()
	return c, nil
}

// Deploy sends a DEPLOY command to a specific worker and records the new
// container as Starting (spec.md §4.5, grounded on coordinator.c's
// deploy_container). Unlike the original, a send failure aborts the
// deploy entirely rather than recording a container the worker never
// received.
func (idx *Index) Deploy(workerID string, cfg models.ContainerConfig) (models.Container, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.containers) >= Capacity {
		return models.Container{}, ErrCapacity
	}

	conn, ok := idx.reg.Connection(workerID)
	if !ok {
		return models.Container{}, fmt.Errorf("%w: %s", ErrWorkerGone, workerID)
	}

	id := models.ContainerID(workerID, cfg.Name)
	now := time.Now()
	c := &models.Container{
		ID:        id,
		Name:      cfg.Name,
		WorkerID:  workerID,
		State:     models.ContainerStarting,
		Config:    cfg,
		CreatedAt: now,
	}

	rec := protocol.NewRecord(protocol.TagDeploy, "coordinator", workerID, protocol.EncodeContainerConfig(cfg))
	if err := protocol.WriteMessage(conn, rec); err != nil {
		return models.Container{}, fmt.Errorf("containerindex: deploy send failed: %w", err)
	}

	idx.containers[id] = c
	idx.order = append(idx.order, id)
	idx.reg.AddContainer(workerID, id)
	metrics.ContainersDeployed.Inc()

	return *c, nil
}

// Start sends a START command for an existing container (spec.md §4.5,
// grounded on coordinator.c's start_container). Local state flips to
// Starting as soon as the command is written, before the worker's ACK or
// status report arrives; a failed send leaves the record unchanged.
func (idx *Index) Start(containerID string) (models.Container, error) {
	return idx.transition(containerID, protocol.TagStart, models.ContainerStarting, true)
}

// Stop sends a STOP command (spec.md §4.5, grounded on stop_container).
func (idx *Index) Stop(containerID string) (models.Container, error) {
	return idx.transition(containerID, protocol.TagStop, models.ContainerStopping, false)
}

func (idx *Index) transition(containerID string, tag protocol.Tag, next models.ContainerState, setStartedAt bool) (models.Container, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.containers[containerID]
	if !ok {
		return models.Container{}, ErrNotFound
	}

	conn, ok := idx.reg.Connection(c.WorkerID)
	if !ok {
		return models.Container{}, fmt.Errorf("%w: %s", ErrWorkerGone, c.WorkerID)
	}

	rec := protocol.NewRecord(tag, "coordinator", c.WorkerID, []byte(c.Name))
	if err := protocol.WriteMessage(conn, rec); err != nil {
		return models.Container{}, fmt.Errorf("containerindex: send failed: %w", err)
	}

	c.State = next
	if setStartedAt {
		c.StartedAt = time.Now()
	}

	return *c, nil
}

// Delete sends a DELETE command and removes the container from the index
// regardless of whether the send succeeds (spec.md §4.5, grounded on
// delete_container — the original logs a warning on send failure but still
// removes the local record).
func (idx *Index) Delete(containerID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	c, ok := idx.containers[containerID]
	if !ok {
		return ErrNotFound
	}

	if conn, ok := idx.reg.Connection(c.WorkerID); ok {
		rec := protocol.NewRecord(protocol.TagDelete, "coordinator", c.WorkerID, []byte(c.Name))
		_ = protocol.WriteMessage(conn, rec) // best-effort; local record is removed regardless
	}

	delete(idx.containers, containerID)
	for i, id := range idx.order {
		if id == containerID {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	idx.reg.RemoveContainer(c.WorkerID, containerID)
	metrics.ContainersDeployed.Dec()

	return nil
}

// UpdateState applies a state report received from a worker's
// CONTAINER_STATUS message (spec.md §4.5, grounded on network.c's
// handle_client_connection CONTAINER_STATUS branch).
func (idx *Index) UpdateState(containerID string, state models.ContainerState) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.containers[containerID]
	if !ok {
		return false
	}
	c.State = state
	return true
}

// Status returns a by-value copy of one container record.
func (idx *Index) Status(containerID string) (models.Container, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.containers[containerID]
	if !ok {
		return models.Container{}, ErrNotFound
	}
	return *c, nil
}

// Snapshot returns every container in deployment order.
func (idx *Index) Snapshot() []models.Container {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]models.Container, 0, len(idx.order))
	for _, id := range idx.order {
		if c, ok := idx.containers[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Len reports the current number of tracked containers.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.containers)
}
