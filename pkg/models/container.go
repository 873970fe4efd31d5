package models

import "time"

// ContainerState is the coordinator's authoritative lifecycle state for a
// deployed container.
type ContainerState string

const (
	ContainerStopped  ContainerState = "Stopped"
	ContainerStarting ContainerState = "Starting"
	ContainerRunning  ContainerState = "Running"
	ContainerStopping ContainerState = "Stopping"
	ContainerError    ContainerState = "Error"
)

// ContainerConfig is the parsed form of a declarative container
// description. Environment, Mounts, and Network are opaque blobs as far as
// the core is concerned — pkg/config decides how to populate them and
// pkg/driver decides how to interpret them.
type ContainerConfig struct {
	Name       string `json:"name"`
	Image      string `json:"image"`
	ConfigFile string `json:"config_file"` // read by the parser, never applied — see DESIGN.md
	CPULimit   int    `json:"cpu_limit"`
	MemLimit   int    `json:"memory_limit"` // MiB
	Privileged bool   `json:"privileged"`

	Environment string `json:"environment"`
	Mounts      string `json:"mounts"`
	Network     string `json:"network"`
}

// Container is the coordinator's (or worker's) record for one deployed
// container. ID is always "<workerID>_<name>".
type Container struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	WorkerID   string          `json:"worker_id"`
	State      ContainerState  `json:"state"`
	Config     ContainerConfig `json:"config"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  time.Time       `json:"started_at"`
}

// ContainerID builds the globally unique id for a container on a worker.
func ContainerID(workerID, name string) string {
	return workerID + "_" + name
}
