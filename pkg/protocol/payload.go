package protocol

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// EncodeRegister builds the REGISTER payload: ASCII "<hostname> <ip> <port>".
func EncodeRegister(hostname, ip string, port int) []byte {
	return []byte(fmt.Sprintf("%s %s %d", hostname, ip, port))
}

// DecodeRegister parses a REGISTER payload. Malformed payloads are a
// Malformed error (spec.md §7); the connection is left open by the caller.
func DecodeRegister(data []byte) (hostname, ip string, port int, err error) {
	fields := strings.Fields(string(data))
	if len(fields) != 3 {
		return "", "", 0, fmt.Errorf("protocol: malformed REGISTER payload %q", data)
	}
	port, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("protocol: malformed REGISTER port %q: %w", fields[2], err)
	}
	return fields[0], fields[1], port, nil
}

// sampleSize is the fixed on-wire size of a ResourceSample: 3 float64 +
// 2 int32.
const sampleSize = 3*8 + 2*4

// EncodeResourceSample serializes a heartbeat payload.
func EncodeResourceSample(s models.ResourceSample) []byte {
	buf := make([]byte, sampleSize)
	byteOrder.PutUint64(buf[0:8], math.Float64bits(s.CPUPercent))
	byteOrder.PutUint64(buf[8:16], math.Float64bits(s.MemPercent))
	byteOrder.PutUint64(buf[16:24], math.Float64bits(s.DiskPercent))
	byteOrder.PutUint32(buf[24:28], uint32(int32(s.ContainerCount)))
	byteOrder.PutUint32(buf[28:32], uint32(int32(s.Capacity)))
	return buf
}

// DecodeResourceSample parses a heartbeat payload. The session handler
// calls this for every non-empty HEARTBEAT payload; a payload shorter than
// sampleSize is rejected here with an error and no heartbeat is recorded.
func DecodeResourceSample(data []byte) (models.ResourceSample, error) {
	if len(data) < sampleSize {
		return models.ResourceSample{}, fmt.Errorf("protocol: resource sample payload too short (%d < %d)", len(data), sampleSize)
	}
	return models.ResourceSample{
		CPUPercent:     math.Float64frombits(byteOrder.Uint64(data[0:8])),
		MemPercent:     math.Float64frombits(byteOrder.Uint64(data[8:16])),
		DiskPercent:    math.Float64frombits(byteOrder.Uint64(data[16:24])),
		ContainerCount: int(int32(byteOrder.Uint32(data[24:28]))),
		Capacity:       int(int32(byteOrder.Uint32(data[28:32]))),
	}, nil
}

// --- ContainerConfig ---

const nameFieldSize = 256

// EncodeContainerConfig serializes a container configuration. Name and
// Image use the same fixed NUL-padded layout as the message header's ids;
// Environment/Mounts/Network are dynamic-length and carried as
// uint16-length-prefixed byte strings, per the REDESIGN note in spec.md §9
// (re-architected from the original's deep struct-by-value copy).
func EncodeContainerConfig(c models.ContainerConfig) []byte {
	var buf bytes.Buffer

	fixed := make([]byte, nameFieldSize)
	putID(fixed, c.Name)
	buf.Write(fixed)

	fixed = make([]byte, nameFieldSize)
	putID(fixed, c.Image)
	buf.Write(fixed)

	fixed = make([]byte, nameFieldSize)
	putID(fixed, c.ConfigFile)
	buf.Write(fixed)

	var intBuf [4]byte
	byteOrder.PutUint32(intBuf[:], uint32(int32(c.CPULimit)))
	buf.Write(intBuf[:])
	byteOrder.PutUint32(intBuf[:], uint32(int32(c.MemLimit)))
	buf.Write(intBuf[:])

	if c.Privileged {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	writeLenPrefixed(&buf, c.Environment)
	writeLenPrefixed(&buf, c.Mounts)
	writeLenPrefixed(&buf, c.Network)

	return buf.Bytes()
}

// DecodeContainerConfig is the inverse of EncodeContainerConfig.
func DecodeContainerConfig(data []byte) (models.ContainerConfig, error) {
	r := bytes.NewReader(data)

	name, err := readID(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}
	image, err := readID(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}
	configFile, err := readID(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}

	var intBuf [4]byte
	if _, err := readFull(r, intBuf[:]); err != nil {
		return models.ContainerConfig{}, err
	}
	cpuLimit := int(int32(byteOrder.Uint32(intBuf[:])))
	if _, err := readFull(r, intBuf[:]); err != nil {
		return models.ContainerConfig{}, err
	}
	memLimit := int(int32(byteOrder.Uint32(intBuf[:])))

	privByte, err := r.ReadByte()
	if err != nil {
		return models.ContainerConfig{}, fmt.Errorf("protocol: malformed container config: %w", err)
	}

	env, err := readLenPrefixed(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}
	mounts, err := readLenPrefixed(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}
	network, err := readLenPrefixed(r)
	if err != nil {
		return models.ContainerConfig{}, err
	}

	return models.ContainerConfig{
		Name:        name,
		Image:       image,
		ConfigFile:  configFile,
		CPULimit:    cpuLimit,
		MemLimit:    memLimit,
		Privileged:  privByte != 0,
		Environment: env,
		Mounts:      mounts,
		Network:     network,
	}, nil
}

// --- Container (CONTAINER_STATUS payload) ---

var containerStateOrder = []models.ContainerState{
	models.ContainerStopped,
	models.ContainerStarting,
	models.ContainerRunning,
	models.ContainerStopping,
	models.ContainerError,
}

func encodeContainerState(s models.ContainerState) byte {
	for i, st := range containerStateOrder {
		if st == s {
			return byte(i)
		}
	}
	return byte(len(containerStateOrder) - 1) // Error
}

func decodeContainerState(b byte) models.ContainerState {
	if int(b) < len(containerStateOrder) {
		return containerStateOrder[b]
	}
	return models.ContainerError
}

// EncodeContainer serializes a full container record for CONTAINER_STATUS.
func EncodeContainer(c models.Container) []byte {
	var buf bytes.Buffer

	fixed := make([]byte, nameFieldSize)
	putID(fixed, c.ID)
	buf.Write(fixed)

	fixed = make([]byte, nameFieldSize)
	putID(fixed, c.Name)
	buf.Write(fixed)

	fixed = make([]byte, nameFieldSize)
	putID(fixed, c.WorkerID)
	buf.Write(fixed)

	buf.WriteByte(encodeContainerState(c.State))

	buf.Write(EncodeContainerConfig(c.Config))

	var ts [8]byte
	byteOrder.PutUint64(ts[:], uint64(c.CreatedAt.Unix()))
	buf.Write(ts[:])
	byteOrder.PutUint64(ts[:], uint64(c.StartedAt.Unix()))
	buf.Write(ts[:])

	return buf.Bytes()
}

// DecodeContainer is the inverse of EncodeContainer.
func DecodeContainer(data []byte) (models.Container, error) {
	r := bytes.NewReader(data)

	id, err := readID(r)
	if err != nil {
		return models.Container{}, err
	}
	name, err := readID(r)
	if err != nil {
		return models.Container{}, err
	}
	workerID, err := readID(r)
	if err != nil {
		return models.Container{}, err
	}

	stateByte, err := r.ReadByte()
	if err != nil {
		return models.Container{}, fmt.Errorf("protocol: malformed container record: %w", err)
	}

	// The remainder of the reader holds the nested ContainerConfig followed
	// by two int64 timestamps; DecodeContainerConfig needs a plain []byte.
	rest := data[len(data)-r.Len():]
	configLen := len(rest) - 16
	if configLen < 0 {
		return models.Container{}, fmt.Errorf("protocol: malformed container record: too short")
	}
	config, err := DecodeContainerConfig(rest[:configLen])
	if err != nil {
		return models.Container{}, err
	}

	createdAt := int64(byteOrder.Uint64(rest[configLen : configLen+8]))
	startedAt := int64(byteOrder.Uint64(rest[configLen+8 : configLen+16]))

	return models.Container{
		ID:        id,
		Name:      name,
		WorkerID:  workerID,
		State:     decodeContainerState(stateByte),
		Config:    config,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		StartedAt: time.Unix(startedAt, 0).UTC(),
	}, nil
}

// --- shared helpers ---

func writeLenPrefixed(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	byteOrder.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readLenPrefixed(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := byteOrder.Uint16(lenBuf[:])
	s := make([]byte, n)
	if _, err := readFull(r, s); err != nil {
		return "", err
	}
	return string(s), nil
}

func readID(r *bytes.Reader) (string, error) {
	field := make([]byte, nameFieldSize)
	if _, err := readFull(r, field); err != nil {
		return "", err
	}
	return getID(field), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err != nil {
		return n, fmt.Errorf("protocol: malformed payload: %w", err)
	}
	if n != len(buf) {
		return n, fmt.Errorf("protocol: malformed payload: short read (%d of %d)", n, len(buf))
	}
	return n, nil
}

