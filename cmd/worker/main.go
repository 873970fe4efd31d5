// Command worker runs one worker node's agent: it connects to a
// coordinator, registers, then heartbeats and executes deploy/start/stop
// /delete commands against a local LXC driver (spec.md §4.6, §6, grounded
// on the original's worker.c).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/agent"
	"github.com/athulya-anil/distributed-lxc/pkg/driver"
	"github.com/athulya-anil/distributed-lxc/pkg/logging"
)

const defaultCapacity = 32

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <coordinator_ip> <coordinator_port>\n", os.Args[0])
		return 1
	}

	coordinatorIP := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "Error: Invalid port number %s\n", os.Args[2])
		return 1
	}

	debug := os.Getenv("LXC_WORKER_DEBUG") != ""
	logger, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	capacity := defaultCapacity
	if v := os.Getenv("LXC_WORKER_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			capacity = n
		}
	}

	configDir := os.Getenv("LXC_WORKER_CONFIG_DIR")
	if configDir == "" {
		configDir = "/var/lib/distributed-lxc/configs"
	}

	drv := driver.NewLXCDriver(configDir, logger)
	coordinatorAddr := fmt.Sprintf("%s:%d", coordinatorIP, port)
	a := agent.New(coordinatorAddr, capacity, drv, logger)

	logger.Info("🚀 starting LXC worker node", zap.String("worker_id", a.ID), zap.String("coordinator", coordinatorAddr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("👋 worker stopped")
			return 0
		}
		logger.Error("worker exited with error", zap.Error(err))
		return 1
	}
	return 0
}
