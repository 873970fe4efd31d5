// Package agent is the worker-side process: it connects to the
// coordinator, registers, then runs a heartbeat loop and a command loop
// over the same connection (spec.md §4.6, grounded on the original's
// worker.c — generate_node_id, register_with_coordinator,
// heartbeat_thread, message_handler_thread — and structurally on the
// teacher's pkg/worker ticker-loop/context-cancel pattern).
package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/driver"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/protocol"
)

// HeartbeatInterval matches the original's 10-second sleep in
// heartbeat_thread.
const HeartbeatInterval = 10 * time.Second

// Agent is one worker node's runtime.
type Agent struct {
	ID       string
	Hostname string
	IP       string

	CoordinatorAddr string
	Capacity        int

	Driver  driver.Driver
	Sampler *driver.Sampler
	Logger  *zap.Logger

	mu   sync.Mutex // protects writes to conn
	conn net.Conn

	containersMu sync.Mutex
	containers   map[string]*models.Container // keyed by container name
}

// New builds an Agent with a freshly generated node id ("<hostname>_<pid>",
// mirroring generate_node_id).
func New(coordinatorAddr string, capacity int, drv driver.Driver, logger *zap.Logger) *Agent {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	id := fmt.Sprintf("%s_%d", hostname, os.Getpid())

	return &Agent{
		ID:              id,
		Hostname:        hostname,
		IP:              localIP(),
		CoordinatorAddr: coordinatorAddr,
		Capacity:        capacity,
		Driver:          drv,
		Sampler:         driver.NewSampler(capacity),
		Logger:          logger,
		containers:      make(map[string]*models.Container),
	}
}

// localIP makes a best-effort guess at a routable local address, the Go
// equivalent of the original's `hostname -I | awk '{print $1}'` popen call.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// Run connects, registers, and blocks running the heartbeat and command
// loops until ctx is canceled or the connection is lost.
func (a *Agent) Run(ctx context.Context) error {
	conn, err := net.Dial("tcp", a.CoordinatorAddr)
	if err != nil {
		return fmt.Errorf("agent: dial coordinator: %w", err)
	}
	a.conn = conn
	defer conn.Close()

	a.Logger.Info("connected to coordinator", zap.String("addr", a.CoordinatorAddr), zap.String("worker_id", a.ID))

	if err := a.register(); err != nil {
		return err
	}
	a.Logger.Info("✅ registered with coordinator", zap.String("worker_id", a.ID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// commandLoop blocks in a deadline-less protocol.ReadMessage, so
	// canceling ctx alone can't unblock it; closing the socket is what
	// makes the read return (spec.md §9).
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		a.heartbeatLoop(ctx)
	}()

	var commandErr error
	go func() {
		defer wg.Done()
		defer cancel()
		commandErr = a.commandLoop(ctx)
	}()

	wg.Wait()
	return commandErr
}

func (a *Agent) register() error {
	payload := protocol.EncodeRegister(a.Hostname, a.IP, 0)
	rec := protocol.NewRecord(protocol.TagRegister, a.ID, "coordinator", payload)
	if err := a.writeMessage(rec); err != nil {
		return fmt.Errorf("agent: send REGISTER: %w", err)
	}

	ack, err := protocol.ReadMessage(a.conn)
	if err != nil {
		return fmt.Errorf("agent: read registration ack: %w", err)
	}
	if ack.Tag != protocol.TagAck {
		return fmt.Errorf("agent: registration rejected: %s", ack.Data)
	}
	return nil
}

func (a *Agent) writeMessage(rec protocol.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return protocol.WriteMessage(a.conn, rec)
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.sendHeartbeat(ctx); err != nil {
				a.Logger.Warn("failed to send heartbeat", zap.Error(err))
			}
		}
	}
}

func (a *Agent) sendHeartbeat(ctx context.Context) error {
	sample, err := a.Sampler.Sample(ctx, a.containerCount())
	if err != nil {
		return err
	}
	rec := protocol.NewRecord(protocol.TagHeartbeat, a.ID, "coordinator", protocol.EncodeResourceSample(sample))
	return a.writeMessage(rec)
}

func (a *Agent) containerCount() int {
	a.containersMu.Lock()
	defer a.containersMu.Unlock()
	return len(a.containers)
}

// commandLoop reads records off the connection until it errors or ctx is
// canceled, dispatching DEPLOY/START/STOP/DELETE (spec.md §4.6, grounded
// on message_handler_thread).
func (a *Agent) commandLoop(ctx context.Context) error {
	for {
		rec, err := protocol.ReadMessage(a.conn)
		if err != nil {
			return fmt.Errorf("agent: connection to coordinator lost: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch rec.Tag {
		case protocol.TagDeploy:
			a.handleDeploy(ctx, rec)
		case protocol.TagStart:
			a.handleStart(ctx, rec)
		case protocol.TagStop:
			a.handleStop(ctx, rec)
		case protocol.TagDelete:
			a.handleDelete(ctx, rec)
		default:
			a.Logger.Warn("unexpected message tag from coordinator", zap.String("tag", rec.Tag.String()))
		}
	}
}

func (a *Agent) ack(reason string) {
	rec := protocol.NewRecord(protocol.TagAck, a.ID, "coordinator", []byte(reason))
	if err := a.writeMessage(rec); err != nil {
		a.Logger.Warn("failed to send ack", zap.Error(err))
	}
}

func (a *Agent) fail(reason string) {
	rec := protocol.NewRecord(protocol.TagError, a.ID, "coordinator", []byte(reason))
	if err := a.writeMessage(rec); err != nil {
		a.Logger.Warn("failed to send error reply", zap.Error(err))
	}
}

func (a *Agent) reportContainer(c models.Container) {
	rec := protocol.NewRecord(protocol.TagContainerStatus, a.ID, "coordinator", protocol.EncodeContainer(c))
	if err := a.writeMessage(rec); err != nil {
		a.Logger.Warn("failed to report container status", zap.String("container", c.Name), zap.Error(err))
	}
}

func (a *Agent) handleDeploy(ctx context.Context, rec protocol.Record) {
	cfg, err := protocol.DecodeContainerConfig(rec.Data)
	if err != nil {
		a.Logger.Warn("malformed DEPLOY payload", zap.Error(err))
		a.fail("deployment failed")
		return
	}

	a.Logger.Info("📦 deploying container", zap.String("container", cfg.Name))
	if err := a.Driver.Create(ctx, cfg); err != nil {
		a.Logger.Warn("deploy failed", zap.String("container", cfg.Name), zap.Error(err))
		a.fail("deployment failed")
		return
	}

	c := &models.Container{
		ID:        models.ContainerID(a.ID, cfg.Name),
		Name:      cfg.Name,
		WorkerID:  a.ID,
		State:     models.ContainerStopped,
		Config:    cfg,
		CreatedAt: time.Now(),
	}

	a.containersMu.Lock()
	a.containers[cfg.Name] = c
	a.containersMu.Unlock()

	a.ack("deployed")
}

func (a *Agent) handleStart(ctx context.Context, rec protocol.Record) {
	name := string(rec.Data)

	c, ok := a.lookupContainer(name)
	if !ok {
		a.Logger.Warn("start requested for unknown container", zap.String("container", name))
		a.fail("start failed")
		return
	}

	a.setContainerState(name, models.ContainerStarting)

	if err := a.Driver.Start(ctx, name); err != nil {
		a.Logger.Warn("start failed", zap.String("container", name), zap.Error(err))
		a.setContainerState(name, models.ContainerError)
		a.fail("start failed")
		return
	}

	a.setContainerState(name, models.ContainerRunning)
	c, _ = a.markStarted(name)
	a.reportContainer(c)
	a.ack("started")
}

func (a *Agent) handleStop(ctx context.Context, rec protocol.Record) {
	name := string(rec.Data)

	if _, ok := a.lookupContainer(name); !ok {
		a.Logger.Warn("stop requested for unknown container", zap.String("container", name))
		a.fail("stop failed")
		return
	}

	a.setContainerState(name, models.ContainerStopping)

	if err := a.Driver.Stop(ctx, name); err != nil {
		a.Logger.Warn("stop failed", zap.String("container", name), zap.Error(err))
		a.setContainerState(name, models.ContainerError)
		a.fail("stop failed")
		return
	}

	a.setContainerState(name, models.ContainerStopped)
	c, _ := a.lookupContainer(name)
	a.reportContainer(c)
	a.ack("stopped")
}

func (a *Agent) handleDelete(ctx context.Context, rec protocol.Record) {
	name := string(rec.Data)

	a.containersMu.Lock()
	_, ok := a.containers[name]
	delete(a.containers, name)
	a.containersMu.Unlock()

	if !ok {
		a.Logger.Warn("delete requested for unknown container", zap.String("container", name))
		a.fail("delete failed")
		return
	}

	if err := a.Driver.Destroy(ctx, name); err != nil {
		a.Logger.Warn("delete failed", zap.String("container", name), zap.Error(err))
		a.fail("delete failed")
		return
	}

	a.ack("deleted")
}

func (a *Agent) lookupContainer(name string) (models.Container, bool) {
	a.containersMu.Lock()
	defer a.containersMu.Unlock()
	c, ok := a.containers[name]
	if !ok {
		return models.Container{}, false
	}
	return *c, true
}

func (a *Agent) setContainerState(name string, state models.ContainerState) {
	a.containersMu.Lock()
	defer a.containersMu.Unlock()
	if c, ok := a.containers[name]; ok {
		c.State = state
	}
}

// markStarted stamps the stored record's StartedAt, not just a local copy,
// so the worker's own table reflects it too (spec.md §4.6).
func (a *Agent) markStarted(name string) (models.Container, bool) {
	a.containersMu.Lock()
	defer a.containersMu.Unlock()
	c, ok := a.containers[name]
	if !ok {
		return models.Container{}, false
	}
	c.StartedAt = time.Now()
	return *c, true
}
