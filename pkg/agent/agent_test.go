package agent

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/driver"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/protocol"
)

// newTestListener starts a bare TCP listener standing in for the
// coordinator, so Agent.Run can be exercised over a real socket without
// pulling in pkg/session.
func newTestListener(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, ln.Addr().String()
}

func TestAgentRegistersOnConnect(t *testing.T) {
	ln, addr := newTestListener(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	a := New(addr, 32, driver.NewMockDriver(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never accepted a connection")
	}
	defer serverConn.Close()

	rec, err := protocol.ReadMessage(serverConn)
	if err != nil {
		t.Fatalf("ReadMessage (register): %v", err)
	}
	if rec.Tag != protocol.TagRegister {
		t.Fatalf("got tag %v, want REGISTER", rec.Tag)
	}
	if rec.SenderID != a.ID {
		t.Fatalf("sender_id = %q, want %q", rec.SenderID, a.ID)
	}

	ack := protocol.NewRecord(protocol.TagAck, "coordinator", a.ID, []byte("registered"))
	if err := protocol.WriteMessage(serverConn, ack); err != nil {
		t.Fatalf("WriteMessage (ack): %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent.Run did not return after cancel")
	}
}

func TestAgentDeployStartStopRoundTrip(t *testing.T) {
	ln, addr := newTestListener(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	drv := driver.NewMockDriver()
	a := New(addr, 32, drv, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never accepted a connection")
	}
	defer serverConn.Close()

	if _, err := protocol.ReadMessage(serverConn); err != nil {
		t.Fatalf("ReadMessage (register): %v", err)
	}
	ack := protocol.NewRecord(protocol.TagAck, "coordinator", a.ID, []byte("registered"))
	if err := protocol.WriteMessage(serverConn, ack); err != nil {
		t.Fatalf("WriteMessage (ack): %v", err)
	}

	cfg := protocol.EncodeContainerConfig(models.ContainerConfig{Name: "app"})
	deploy := protocol.NewRecord(protocol.TagDeploy, "coordinator", a.ID, cfg)
	if err := protocol.WriteMessage(serverConn, deploy); err != nil {
		t.Fatalf("WriteMessage (deploy): %v", err)
	}

	deployAck, err := protocol.ReadMessage(serverConn)
	if err != nil {
		t.Fatalf("ReadMessage (deploy ack): %v", err)
	}
	if deployAck.Tag != protocol.TagAck {
		t.Fatalf("deploy ack tag = %v, want ACK", deployAck.Tag)
	}

	start := protocol.NewRecord(protocol.TagStart, "coordinator", a.ID, []byte("app"))
	if err := protocol.WriteMessage(serverConn, start); err != nil {
		t.Fatalf("WriteMessage (start): %v", err)
	}

	// Start triggers a CONTAINER_STATUS report followed by an ACK.
	status, err := protocol.ReadMessage(serverConn)
	if err != nil {
		t.Fatalf("ReadMessage (status): %v", err)
	}
	if status.Tag != protocol.TagContainerStatus {
		t.Fatalf("got tag %v, want CONTAINER_STATUS", status.Tag)
	}
	startAck, err := protocol.ReadMessage(serverConn)
	if err != nil {
		t.Fatalf("ReadMessage (start ack): %v", err)
	}
	if startAck.Tag != protocol.TagAck {
		t.Fatalf("start ack tag = %v, want ACK", startAck.Tag)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent.Run did not return after cancel")
	}
}
