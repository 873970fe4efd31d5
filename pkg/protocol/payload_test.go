package protocol

import (
	"testing"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

func TestRegisterRoundTrip(t *testing.T) {
	payload := EncodeRegister("node-a", "10.0.0.5", 8001)

	hostname, ip, port, err := DecodeRegister(payload)
	if err != nil {
		t.Fatalf("DecodeRegister: %v", err)
	}
	if hostname != "node-a" || ip != "10.0.0.5" || port != 8001 {
		t.Fatalf("got (%q, %q, %d)", hostname, ip, port)
	}
}

func TestDecodeRegisterRejectsMalformed(t *testing.T) {
	if _, _, _, err := DecodeRegister([]byte("not enough fields")); err == nil {
		t.Fatal("expected error for malformed REGISTER payload")
	}
}

func TestResourceSampleRoundTrip(t *testing.T) {
	want := models.ResourceSample{
		CPUPercent:     42.5,
		MemPercent:     10.25,
		DiskPercent:    99.9,
		ContainerCount: 3,
		Capacity:       32,
	}

	got, err := DecodeResourceSample(EncodeResourceSample(want))
	if err != nil {
		t.Fatalf("DecodeResourceSample: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeResourceSampleRejectsShortPayload(t *testing.T) {
	if _, err := DecodeResourceSample(make([]byte, sampleSize-1)); err == nil {
		t.Fatal("expected error for short resource sample payload")
	}
}

func TestContainerConfigRoundTrip(t *testing.T) {
	want := models.ContainerConfig{
		Name:        "web-1",
		Image:       "ubuntu:22.04",
		ConfigFile:  "/etc/lxc/web-1.conf",
		CPULimit:    200,
		MemLimit:    512,
		Privileged:  true,
		Environment: "FOO=bar,BAZ=qux",
		Mounts:      "/data:/mnt/data",
		Network:     "bridge=lxcbr0",
	}

	got, err := DecodeContainerConfig(EncodeContainerConfig(want))
	if err != nil {
		t.Fatalf("DecodeContainerConfig: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestContainerConfigRoundTripEmptyDynamicFields(t *testing.T) {
	want := models.ContainerConfig{Name: "bare"}

	got, err := DecodeContainerConfig(EncodeContainerConfig(want))
	if err != nil {
		t.Fatalf("DecodeContainerConfig: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestContainerRoundTrip(t *testing.T) {
	want := models.Container{
		ID:       "worker-1_1_web-1",
		Name:     "web-1",
		WorkerID: "worker-1_1",
		State:    models.ContainerRunning,
		Config: models.ContainerConfig{
			Name:  "web-1",
			Image: "ubuntu:22.04",
		},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		StartedAt: time.Unix(1700000100, 0).UTC(),
	}

	got, err := DecodeContainer(EncodeContainer(want))
	if err != nil {
		t.Fatalf("DecodeContainer: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestContainerStateRoundTripAllStates(t *testing.T) {
	for _, s := range containerStateOrder {
		if got := decodeContainerState(encodeContainerState(s)); got != s {
			t.Fatalf("state round trip: got %v, want %v", got, s)
		}
	}
}

func TestDecodeContainerStateUnknownByteIsError(t *testing.T) {
	if got := decodeContainerState(255); got != models.ContainerError {
		t.Fatalf("got %v, want ContainerError", got)
	}
}
