// Command coordinator runs the distributed LXC control plane's
// coordinator process: it accepts worker connections on a TCP port,
// tracks worker and container state, places containers automatically by
// resource availability, exposes a read-only HTTP status surface, and
// drives an interactive command shell (spec.md §4, §6).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/cli"
	"github.com/athulya-anil/distributed-lxc/pkg/containerindex"
	"github.com/athulya-anil/distributed-lxc/pkg/logging"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
	"github.com/athulya-anil/distributed-lxc/pkg/session"
	"github.com/athulya-anil/distributed-lxc/pkg/statusapi"
)

// DefaultPort matches the original's DEFAULT_PORT.
const DefaultPort = 8888

func main() {
	os.Exit(run())
}

func run() int {
	port := DefaultPort
	if len(os.Args) > 1 {
		p, err := strconv.Atoi(os.Args[1])
		if err != nil || p <= 0 || p > 65535 {
			fmt.Fprintf(os.Stderr, "Error: Invalid port number %s\n", os.Args[1])
			return 1
		}
		port = p
	}

	debug := os.Getenv("LXC_COORDINATOR_DEBUG") != ""
	logger, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	reg := registry.New()
	idx := containerindex.New(reg)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error("failed to bind coordinator port", zap.Int("port", port), zap.Error(err))
		return 1
	}
	logger.Info("🚀 starting distributed LXC coordinator", zap.Int("port", port))

	srv := session.New(reg, idx, logger)
	go func() {
		if err := srv.Serve(ln); err != nil {
			logger.Info("worker listener stopped", zap.Error(err))
		}
	}()

	httpAddr := fmt.Sprintf(":%d", port+1)
	httpSrv := startStatusAPI(httpAddr, reg, idx, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("🛑 shutting down coordinator")
		ln.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	shell := cli.New(reg, idx, logger, os.Stdin, os.Stdout)
	if err := shell.Run(); err != nil {
		logger.Warn("command shell exited with error", zap.Error(err))
	}

	stop()
	logger.Info("👋 coordinator stopped")
	return 0
}

func startStatusAPI(addr string, reg *registry.Registry, idx *containerindex.Index, logger *zap.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := statusapi.New(reg, idx)
	api.SetupRoutes(router)

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.Info("📡 status API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("status API stopped", zap.Error(err))
		}
	}()
	return srv
}
