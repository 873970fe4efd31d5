package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var byteOrder = binary.LittleEndian // host order; homogeneous-deployment protocol (spec.md §6)

// Marshal encodes a Record into exactly RecordSize bytes.
func Marshal(r Record) []byte {
	buf := make([]byte, RecordSize)

	byteOrder.PutUint32(buf[0:4], uint32(r.Tag))
	putID(buf[4:4+idFieldSize], r.SenderID)
	putID(buf[4+idFieldSize:4+2*idFieldSize], r.RecipientID)

	data := r.Data
	if len(data) > MaxPayload {
		data = data[:MaxPayload]
	}
	byteOrder.PutUint32(buf[4+2*idFieldSize:headerSize], uint32(len(data)))
	copy(buf[headerSize:], data)

	return buf
}

// Unmarshal decodes exactly RecordSize bytes into a Record. The returned
// Record's Data is sliced to the declared data_length (honoring it even if
// it's larger than what the sender actually wrote is the receiver's
// contract per spec.md §4.1 — we still bound it to MaxPayload for safety).
func Unmarshal(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, fmt.Errorf("protocol: record must be %d bytes, got %d", RecordSize, len(buf))
	}

	tag := Tag(byteOrder.Uint32(buf[0:4]))
	sender := getID(buf[4 : 4+idFieldSize])
	recipient := getID(buf[4+idFieldSize : 4+2*idFieldSize])
	dataLen := byteOrder.Uint32(buf[4+2*idFieldSize : headerSize])

	if dataLen > uint32(MaxPayload) {
		return Record{}, fmt.Errorf("protocol: declared data_length %d exceeds payload bound %d", dataLen, MaxPayload)
	}

	data := make([]byte, dataLen)
	copy(data, buf[headerSize:headerSize+int(dataLen)])

	return Record{Tag: tag, SenderID: sender, RecipientID: recipient, Data: data}, nil
}

func putID(field []byte, id string) {
	for i := range field {
		field[i] = 0
	}
	if len(id) > len(field)-1 {
		id = id[:len(field)-1]
	}
	copy(field, id)
}

func getID(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// WriteMessage writes one full record. A short write is a transport error.
func WriteMessage(w io.Writer, r Record) error {
	buf := Marshal(r)
	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("protocol: write failed: %w", err)
	}
	if n != RecordSize {
		return fmt.Errorf("protocol: short write (%d of %d bytes)", n, RecordSize)
	}
	return nil
}

// ReadMessage reads one full record. io.EOF is returned verbatim so callers
// can distinguish "peer closed cleanly between messages" from a genuine
// short/partial read mid-record (io.ErrUnexpectedEOF), both of which are
// transport errors per spec.md §7 but the former is the common end-of-
// session case the session handler doesn't need to warn about.
func ReadMessage(r io.Reader) (Record, error) {
	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, err
	}
	return Unmarshal(buf)
}
