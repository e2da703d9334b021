// Package protocol defines the wire format for the Parley control
// connection: 4-byte big-endian length-prefixed JSON envelopes over TCP.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrame is the maximum envelope size on the wire (64KB).
const MaxFrame = 65536

// WriteEnvelope writes a length-prefixed JSON envelope to a writer.
// Format: [4-byte big-endian length][JSON payload]
func WriteEnvelope(w io.Writer, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxFrame {
		return fmt.Errorf("protocol: frame too large: %d bytes", len(data))
	}

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data))) //nolint:gosec // length bounds-checked above
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("protocol: write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadEnvelope reads a length-prefixed JSON envelope from a reader.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrame {
		return nil, fmt.Errorf("protocol: frame too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}

	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	return env, nil
}
