// Package session runs the coordinator's per-connection handlers: one
// goroutine per worker socket, dispatching wire messages by tag (spec.md
// §4.1, §4.3, grounded on the original's handle_client_connection and
// init_coordinator accept loop).
package session

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/containerindex"
	"github.com/athulya-anil/distributed-lxc/pkg/metrics"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/protocol"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

// conn wraps a net.Conn with a write mutex so ACK/ERROR replies from the
// handler goroutine never interleave with coordinator-initiated command
// writes (deploy/start/stop/delete) issued from pkg/cli against the same
// socket.
type conn struct {
	net.Conn
	mu sync.Mutex
}

func (c *conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(p)
}

// Server accepts worker connections and dispatches their messages.
type Server struct {
	Registry *registry.Registry
	Index    *containerindex.Index
	Logger   *zap.Logger
}

// New builds a Server bound to the given registry and container index.
func New(reg *registry.Registry, idx *containerindex.Index, logger *zap.Logger) *Server {
	return &Server{Registry: reg, Index: idx, Logger: logger}
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed during shutdown).
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(&conn{Conn: c})
	}
}

// handle runs for the lifetime of one worker connection (spec.md §4.3). A
// connection gets a short-lived correlation id immediately so accept-time
// and pre-REGISTER log lines can be tied together before a worker id is
// known.
func (s *Server) handle(c *conn) {
	connID := uuid.NewString()
	var workerID string
	s.Logger.Debug("connection accepted", zap.String("conn_id", connID))
	defer func() {
		c.Close()
		if workerID != "" {
			s.Registry.CloseConnection(workerID)
			metrics.WorkersConnected.Dec()
			s.Logger.Info("👋 worker disconnected", zap.String("worker_id", workerID), zap.String("conn_id", connID))
		}
	}()

	for {
		rec, err := protocol.ReadMessage(c)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Warn("transport error reading from worker", zap.String("worker_id", workerID), zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}

		switch rec.Tag {
		case protocol.TagRegister:
			workerID = s.handleRegister(c, rec)

		case protocol.TagHeartbeat:
			s.handleHeartbeat(rec)

		case protocol.TagContainerStatus:
			s.handleContainerStatus(rec)

		case protocol.TagError:
			s.Logger.Warn("⚠️ error reported by worker", zap.String("worker_id", rec.SenderID), zap.ByteString("detail", rec.Data))

		default:
			s.Logger.Warn("unexpected message tag from worker", zap.String("worker_id", rec.SenderID), zap.String("tag", rec.Tag.String()))
		}
	}
}

func (s *Server) handleRegister(c *conn, rec protocol.Record) string {
	hostname, ip, port, err := protocol.DecodeRegister(rec.Data)
	if err != nil {
		s.Logger.Warn("malformed REGISTER payload", zap.String("sender", rec.SenderID), zap.Error(err))
		return ""
	}

	id := rec.SenderID
	if err := s.Registry.Upsert(id, hostname, ip, port); err != nil {
		s.Logger.Warn("registration rejected", zap.String("worker_id", id), zap.Error(err))
		ack := protocol.NewRecord(protocol.TagError, "coordinator", id, []byte(err.Error()))
		_ = protocol.WriteMessage(c, ack)
		return ""
	}
	s.Registry.BindConnection(id, c)
	metrics.WorkersConnected.Inc()

	s.Logger.Info("🧩 worker registered", zap.String("worker_id", id), zap.String("hostname", hostname), zap.String("ip", ip), zap.Int("port", port))

	ack := protocol.NewRecord(protocol.TagAck, "coordinator", id, []byte("registered"))
	if err := protocol.WriteMessage(c, ack); err != nil {
		s.Logger.Warn("failed to ack registration", zap.String("worker_id", id), zap.Error(err))
	}
	return id
}

func (s *Server) handleHeartbeat(rec protocol.Record) {
	if len(rec.Data) == 0 {
		// bare liveness ping with no resource sample still refreshes last_heartbeat
		s.Registry.Touch(rec.SenderID, models.ResourceSample{})
		return
	}
	sample, err := protocol.DecodeResourceSample(rec.Data)
	if err != nil {
		s.Logger.Warn("malformed HEARTBEAT payload", zap.String("worker_id", rec.SenderID), zap.Error(err))
		return
	}
	if !s.Registry.Touch(rec.SenderID, sample) {
		s.Logger.Warn("heartbeat from unregistered worker", zap.String("worker_id", rec.SenderID))
	}
}

func (s *Server) handleContainerStatus(rec protocol.Record) {
	c, err := protocol.DecodeContainer(rec.Data)
	if err != nil {
		s.Logger.Warn("malformed CONTAINER_STATUS payload", zap.String("worker_id", rec.SenderID), zap.Error(err))
		return
	}
	if !s.Index.UpdateState(c.ID, c.State) {
		s.Logger.Warn("status report for unknown container", zap.String("container_id", c.ID), zap.String("worker_id", rec.SenderID))
		return
	}
	metrics.ContainerStateTransitions.WithLabelValues(string(c.State)).Inc()
}
