package unity

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	// HeaderSize is the size of the big-endian length prefix of a framed message.
	HeaderSize = 8

	// MaxFrameSize is the largest payload accepted in either direction (64 MiB).
	MaxFrameSize = 64 * 1024 * 1024

	// framingToken marks a bridge greeting that announces length-prefixed framing.
	framingToken = "FRAMING=1"
)

// ProtocolError reports a malformed exchange with the bridge.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "unity bridge protocol error: " + e.Message
}

// supportsFraming reports whether the greeting line announces framing.
func supportsFraming(greeting string) bool {
	for _, field := range strings.Fields(greeting) {
		if strings.EqualFold(field, framingToken) {
			return true
		}
	}
	return false
}

// writeFrame writes payload with an 8-byte big-endian length header.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return &ProtocolError{Message: "refusing to send empty frame"}
	}
	if len(payload) > MaxFrameSize {
		return &ProtocolError{Message: fmt.Sprintf("frame too large: %d bytes", len(payload))}
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[:HeaderSize], uint64(len(payload)))
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed message.
func readFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint64(header[:])
	if size == 0 {
		return nil, &ProtocolError{Message: "received empty frame"}
	}
	if size > MaxFrameSize {
		return nil, &ProtocolError{Message: fmt.Sprintf("frame too large: %d bytes", size)}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// readLegacy reads a single JSON value from an unframed connection.
func readLegacy(r *bufio.Reader) ([]byte, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxFrameSize))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
