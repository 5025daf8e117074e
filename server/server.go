// Package server defines the request/response surface spec.md §6
// describes (newline- or length-framed JSON over a localhost TCP
// stream) without implementing the socket itself: Handler/Dispatcher
// route a decoded Request to the right project/data-frame/pipeline
// operation, and LineFramer/LengthFramer implement the two named
// framing strategies against any io.ReadWriter, so the framing logic
// is unit-testable without opening a real connection. Modeled on
// driver.Provider's "resolve a name to a backing catalog" shape: a
// Dispatcher resolves {type_, name_} to a registered Handler the same
// way Provider.Resolve resolves a DSN to a *sql.Catalog.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"sync"

	"github.com/relfeat/engine/relerr"
)

// Status strings a Handler may return in a Response's Status field,
// mirroring spec.md §6's "Success!"/"Found!"/error-message triad.
const (
	StatusSuccess = "Success!"
	StatusFound   = "Found!"
)

// Request is one decoded {type_, name_} command plus its JSON payload.
type Request struct {
	Type    string          `json:"type_"`
	Name    string          `json:"name_"`
	Payload json.RawMessage `json:"payload_,omitempty"`
}

// Response is a status string plus, for bulk results, a binary payload
// in Frame (the project-management handlers in package relfeat put a
// JSON-encoded list of names there).
type Response struct {
	Status string `json:"status_"`
	Frame  []byte `json:"frame_,omitempty"`
}

// Handler handles one Request type.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Dispatcher routes a Request to the Handler registered for its Type.
// Safe for concurrent Register and Handle calls.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds typ to h, replacing any handler previously registered
// for that type.
func (d *Dispatcher) Register(typ string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typ] = h
}

// Handle looks up req.Type and delegates to its Handler. Returns a
// validation error if no handler is registered for the type.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	d.mu.RLock()
	h, ok := d.handlers[req.Type]
	d.mu.RUnlock()
	if !ok {
		return Response{}, relerr.Validation("no handler registered for request type %q", req.Type)
	}
	return h.Handle(ctx, req)
}

// Framer reads and writes one length-delimited message at a time over
// a shared stream, independent of the message's own JSON structure.
type Framer interface {
	ReadFrame(r io.Reader) ([]byte, error)
	WriteFrame(w io.Writer, payload []byte) error
}

// LineFramer frames messages as one JSON document per line, matching
// the "newline-framed" option spec.md §6 names. Payloads must not
// themselves contain an unescaped newline; json.Marshal never emits
// one.
type LineFramer struct{}

func (LineFramer) ReadFrame(r io.Reader) ([]byte, error) {
	// Read one byte at a time so nothing past the newline is consumed
	// and the next ReadFrame on the same stream starts at the next line.
	var line []byte
	var err error
	b := make([]byte, 1)
	for err == nil && (len(line) == 0 || line[len(line)-1] != '\n') {
		var n int
		n, err = r.Read(b)
		line = append(line, b[:n]...)
	}
	if err != nil && err != io.EOF {
		return nil, relerr.WrapResource(err)
	}
	if len(line) == 0 {
		return nil, io.EOF
	}
	return trimNewline(line), nil
}

func (LineFramer) WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return relerr.WrapResource(err)
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return relerr.WrapResource(err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// LengthFramer frames each message with a 4-byte little-endian length
// prefix, matching the "length-framed" option spec.md §6 names. The
// little-endian choice follows the project's unconditional
// little-endian persistence convention (DESIGN.md, Open Questions §3).
type LengthFramer struct{}

func (LengthFramer) ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, relerr.WrapResource(err)
	}
	return payload, nil
}

func (LengthFramer) WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return relerr.WrapResource(err)
	}
	if _, err := w.Write(payload); err != nil {
		return relerr.WrapResource(err)
	}
	return nil
}
