// Package cli is the coordinator's interactive command shell: deploy,
// start, stop, delete, list containers, list nodes, quit (spec.md §4.6,
// §6, grounded on the original's coordinator_command_loop/list_containers
// /list_nodes, tabular formatting included).
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/config"
	"github.com/athulya-anil/distributed-lxc/pkg/containerindex"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

// Shell runs the interactive coordinator command loop.
type Shell struct {
	Registry *registry.Registry
	Index    *containerindex.Index
	Logger   *zap.Logger

	in  *bufio.Reader
	out io.Writer
}

// New builds a Shell reading commands from in and writing output to out.
func New(reg *registry.Registry, idx *containerindex.Index, logger *zap.Logger, in io.Reader, out io.Writer) *Shell {
	return &Shell{Registry: reg, Index: idx, Logger: logger, in: bufio.NewReader(in), out: out}
}

// Run prints the banner and processes commands until "quit" or EOF.
func (s *Shell) Run() error {
	fmt.Fprintln(s.out, "\n=== Distributed LXC Coordinator ===")
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  deploy <config_file>  - Deploy container from a declarative description")
	fmt.Fprintln(s.out, "  start <container_id>  - Start container")
	fmt.Fprintln(s.out, "  stop <container_id>   - Stop container")
	fmt.Fprintln(s.out, "  delete <container_id> - Delete container")
	fmt.Fprintln(s.out, "  list containers       - List all containers")
	fmt.Fprintln(s.out, "  list nodes            - List all nodes")
	fmt.Fprintln(s.out, "  quit                  - Exit coordinator")
	fmt.Fprintln(s.out)

	for {
		fmt.Fprint(s.out, "coordinator> ")
		line, err := s.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}
		if s.dispatch(cmd) {
			return nil
		}
	}
}

// dispatch runs one command line; it returns true on "quit".
func (s *Shell) dispatch(cmd string) bool {
	switch {
	case strings.HasPrefix(cmd, "deploy "):
		s.deploy(strings.TrimSpace(cmd[len("deploy "):]))

	case strings.HasPrefix(cmd, "start "):
		s.start(strings.TrimSpace(cmd[len("start "):]))

	case strings.HasPrefix(cmd, "stop "):
		s.stop(strings.TrimSpace(cmd[len("stop "):]))

	case strings.HasPrefix(cmd, "delete "):
		s.delete(strings.TrimSpace(cmd[len("delete "):]))

	case cmd == "list containers":
		s.listContainers()

	case cmd == "list nodes":
		s.listNodes()

	case cmd == "quit":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", cmd)
	}
	return false
}

func (s *Shell) deploy(path string) {
	cfg, err := config.ParseContainerFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "Error: Failed to parse config file %s: %v\n", path, err)
		return
	}

	c, err := s.Index.DeployAuto(cfg)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Container %s deployed to node %s\n", c.Name, c.WorkerID)
}

func (s *Shell) start(containerID string) {
	if _, err := s.Index.Start(containerID); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Start command sent for container %s\n", containerID)
}

func (s *Shell) stop(containerID string) {
	if _, err := s.Index.Stop(containerID); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Stop command sent for container %s\n", containerID)
}

func (s *Shell) delete(containerID string) {
	if err := s.Index.Delete(containerID); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Container %s deleted\n", containerID)
}

func (s *Shell) listContainers() {
	fmt.Fprintln(s.out, "\n=== Deployed Containers ===")
	fmt.Fprintf(s.out, "%-20s %-20s %-15s %-10s\n", "ID", "Name", "Node", "State")
	fmt.Fprintln(s.out, strings.Repeat("-", 60))

	for _, c := range s.Index.Snapshot() {
		fmt.Fprintf(s.out, "%-20s %-20s %-15s %-10s\n", c.ID, c.Name, c.WorkerID, strings.ToUpper(string(c.State)))
	}
}

func (s *Shell) listNodes() {
	fmt.Fprintln(s.out, "\n=== Connected Nodes ===")
	fmt.Fprintf(s.out, "%-15s %-20s %-15s %-10s %-10s %-10s\n", "ID", "Hostname", "IP", "State", "CPU%", "Mem%")
	fmt.Fprintln(s.out, strings.Repeat("-", 72))

	now := time.Now()
	for _, w := range s.Registry.Snapshot() {
		state := string(w.State)
		if w.State == models.WorkerConnected && now.Sub(w.LastHeartbeat) > registry.LivenessWindow {
			state = "STALE"
		}
		fmt.Fprintf(s.out, "%-15s %-20s %-15s %-10s %-10.1f %-10.1f\n",
			w.ID, w.Hostname, w.IP, strings.ToUpper(state), w.Resources.CPUPercent, w.Resources.MemPercent)
	}
}
