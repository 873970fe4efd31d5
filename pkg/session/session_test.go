package session

import (
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/containerindex"
	"github.com/athulya-anil/distributed-lxc/pkg/models"
	"github.com/athulya-anil/distributed-lxc/pkg/protocol"
	"github.com/athulya-anil/distributed-lxc/pkg/registry"
)

func newTestServer() (*Server, net.Conn) {
	reg := registry.New()
	idx := containerindex.New(reg)
	srv := New(reg, idx, zap.NewNop())

	serverSide, clientSide := net.Pipe()
	go srv.handle(&conn{Conn: serverSide})

	return srv, clientSide
}

func TestHandleRegisterAcksAndUpdatesRegistry(t *testing.T) {
	srv, client := newTestServer()
	defer client.Close()

	rec := protocol.NewRecord(protocol.TagRegister, "worker-1_100", "coordinator", protocol.EncodeRegister("host-a", "10.0.0.5", 0))
	if err := protocol.WriteMessage(client, rec); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	ack, err := protocol.ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage (ack): %v", err)
	}
	if ack.Tag != protocol.TagAck {
		t.Fatalf("got tag %v, want ACK", ack.Tag)
	}

	w, ok := srv.Registry.Find("worker-1_100")
	if !ok {
		t.Fatal("worker not registered")
	}
	if w.Hostname != "host-a" || w.IP != "10.0.0.5" {
		t.Fatalf("got %+v", w)
	}
}

func TestHandleRegisterRejectsMalformedPayload(t *testing.T) {
	srv, client := newTestServer()
	defer client.Close()

	rec := protocol.NewRecord(protocol.TagRegister, "worker-1_100", "coordinator", []byte("garbage"))
	if err := protocol.WriteMessage(client, rec); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if _, ok := srv.Registry.Find("worker-1_100"); ok {
		t.Fatal("malformed registration should not have created a worker record")
	}
}

func TestHandleHeartbeatUpdatesResourceSample(t *testing.T) {
	srv, client := newTestServer()
	defer client.Close()

	reg := protocol.NewRecord(protocol.TagRegister, "worker-1_100", "coordinator", protocol.EncodeRegister("host-a", "10.0.0.5", 0))
	if err := protocol.WriteMessage(client, reg); err != nil {
		t.Fatalf("WriteMessage (register): %v", err)
	}
	if _, err := protocol.ReadMessage(client); err != nil {
		t.Fatalf("ReadMessage (ack): %v", err)
	}

	sample := models.ResourceSample{CPUPercent: 42, MemPercent: 10, DiskPercent: 5, ContainerCount: 2, Capacity: 32}
	hb := protocol.NewRecord(protocol.TagHeartbeat, "worker-1_100", "coordinator", protocol.EncodeResourceSample(sample))
	if err := protocol.WriteMessage(client, hb); err != nil {
		t.Fatalf("WriteMessage (heartbeat): %v", err)
	}

	// handle() has no reply to wait on for a heartbeat, so poll the
	// registry until Touch has had a chance to run.
	deadline := make(chan struct{})
	go func() {
		for {
			if w, ok := srv.Registry.Find("worker-1_100"); ok && w.Resources.CPUPercent == 42 {
				close(deadline)
				return
			}
		}
	}()
	<-deadline

	w, _ := srv.Registry.Find("worker-1_100")
	if w.Resources.MemPercent != 10 || w.Resources.ContainerCount != 2 {
		t.Fatalf("got %+v", w.Resources)
	}
}

func TestHandleContainerStatusUpdatesIndex(t *testing.T) {
	reg := registry.New()
	idx := containerindex.New(reg)
	srv := New(reg, idx, zap.NewNop())

	serverSide, clientSide := net.Pipe()
	go srv.handle(&conn{Conn: serverSide})
	defer clientSide.Close()

	if err := reg.Upsert("w1", "host", "10.0.0.1", 9000); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	fc := &fakeWriterCloser{}
	reg.BindConnection("w1", fc)
	if _, err := idx.Deploy("w1", models.ContainerConfig{Name: "app"}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	reportRec := protocol.NewRecord(protocol.TagRegister, "w1", "coordinator", protocol.EncodeRegister("host", "10.0.0.1", 9000))
	if err := protocol.WriteMessage(clientSide, reportRec); err != nil {
		t.Fatalf("WriteMessage (register): %v", err)
	}
	if _, err := protocol.ReadMessage(clientSide); err != nil {
		t.Fatalf("ReadMessage (ack): %v", err)
	}

	statusRec := protocol.NewRecord(protocol.TagContainerStatus, "w1", "coordinator",
		protocol.EncodeContainer(models.Container{ID: "w1_app", WorkerID: "w1", State: models.ContainerRunning}))
	if err := protocol.WriteMessage(clientSide, statusRec); err != nil {
		t.Fatalf("WriteMessage (status): %v", err)
	}

	deadline := make(chan struct{})
	go func() {
		for {
			if c, err := idx.Status("w1_app"); err == nil && c.State == models.ContainerRunning {
				close(deadline)
				return
			}
		}
	}()
	<-deadline
}

type fakeWriterCloser struct{}

func (fakeWriterCloser) Write(p []byte) (int, error) { return len(p), nil }
func (fakeWriterCloser) Close() error                { return nil }
