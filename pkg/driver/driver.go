// Package driver implements the worker-side operations that actually
// create, start, stop, and destroy LXC containers (spec.md §4.6, grounded
// on the original's lxc_manager.c, which shells out to the `lxc` CLI via
// popen rather than linking liblxc).
package driver

import (
	"context"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// Driver is the worker's interface to the local container runtime. Every
// method is keyed by container name, matching the `lxc <verb> <name>`
// shape of the commands the original shelled out to.
type Driver interface {
	// Create provisions a new container from cfg. It is a no-op (not an
	// error) if a container with cfg.Name already exists, matching
	// lxc_create_container's idempotent check.
	Create(ctx context.Context, cfg models.ContainerConfig) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	// Destroy stops the container first if needed, then removes it. A
	// missing container is not an error.
	Destroy(ctx context.Context, name string) error
	// State queries the runtime directly for a container's current state.
	State(ctx context.Context, name string) (models.ContainerState, error)
}
