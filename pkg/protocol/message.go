// Package protocol implements the coordinator↔worker wire format: a
// fixed-layout 8192-byte binary record per message, one record per
// read/write. There is no negotiated serializer — that is deliberate (see
// spec.md §4.1): the record layout is the protocol.
package protocol

import "fmt"

// Tag identifies the kind of message a Record carries.
type Tag uint32

const (
	TagRegister Tag = iota
	TagHeartbeat
	TagDeploy
	TagStart
	TagStop
	TagDelete
	TagContainerStatus
	TagNodeStatus
	TagError
	TagAck
)

func (t Tag) String() string {
	switch t {
	case TagRegister:
		return "REGISTER"
	case TagHeartbeat:
		return "HEARTBEAT"
	case TagDeploy:
		return "DEPLOY"
	case TagStart:
		return "START"
	case TagStop:
		return "STOP"
	case TagDelete:
		return "DELETE"
	case TagContainerStatus:
		return "CONTAINER_STATUS"
	case TagNodeStatus:
		return "NODE_STATUS"
	case TagError:
		return "ERROR"
	case TagAck:
		return "ACK"
	default:
		return fmt.Sprintf("Tag(%d)", uint32(t))
	}
}

const (
	// RecordSize is the exact size of every wire record, header and payload
	// combined. Partial records are always fatal to the connection.
	RecordSize = 8192

	idFieldSize = 256 // sender_id / recipient_id, NUL-terminated/padded

	// headerSize = tag(4) + sender_id(256) + recipient_id(256) + data_length(4)
	headerSize = 4 + idFieldSize + idFieldSize + 4

	// MaxPayload is the largest data section a record can carry.
	MaxPayload = RecordSize - headerSize
)

// Record is one wire message. Data must fit within MaxPayload; WriteMessage
// truncates silently past that bound (per spec.md §4.1 — truncation on
// send is silent, the receiver honors the declared length it was given).
type Record struct {
	Tag       Tag
	SenderID  string
	RecipientID string
	Data      []byte
}

// NewRecord builds a Record, truncating Data to MaxPayload if needed.
func NewRecord(tag Tag, sender, recipient string, data []byte) Record {
	if len(data) > MaxPayload {
		data = data[:MaxPayload]
	}
	return Record{Tag: tag, SenderID: sender, RecipientID: recipient, Data: data}
}
