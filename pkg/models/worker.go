package models

import "time"

// WorkerState is the coordinator's view of a worker's connection lifecycle.
type WorkerState string

const (
	WorkerDisconnected WorkerState = "Disconnected"
	WorkerConnecting   WorkerState = "Connecting"
	WorkerConnected    WorkerState = "Connected"
	WorkerBusy         WorkerState = "Busy"
	WorkerError        WorkerState = "Error"
)

// ResourceSample is one worker's self-reported utilization snapshot.
type ResourceSample struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemPercent     float64 `json:"mem_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	ContainerCount int     `json:"container_count"`
	Capacity       int     `json:"capacity"`
}

// WriterCloser is the minimal surface the registry needs from a connection
// handle; pkg/session supplies the real net.Conn-backed implementation.
type WriterCloser interface {
	Write([]byte) (int, error)
	Close() error
}

// Worker is the coordinator's authoritative record for one worker node.
//
// Conn, not a separate flag, is what tells the rest of the coordinator
// whether a handler currently owns this record: it is nil for a worker
// that has never connected or has disconnected.
type Worker struct {
	ID            string         `json:"id"`
	Hostname      string         `json:"hostname"`
	IP            string         `json:"ip"`
	Port          int            `json:"port"`
	State         WorkerState    `json:"state"`
	Resources     ResourceSample `json:"resources"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
	RegisteredAt  time.Time      `json:"registered_at"`
	Containers    []string       `json:"containers"` // container ids local to this worker

	Conn WriterCloser `json:"-"`
}

// Clone returns a by-value copy suitable for a registry snapshot: the
// connection handle is dropped so decision-making code never writes to a
// socket out from under the owning session handler.
func (w Worker) Clone() Worker {
	c := w
	c.Conn = nil
	c.Containers = append([]string(nil), w.Containers...)
	return c
}
