package authenticator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
)

// Bridge speaks a JSON-line protocol with the host that embeds the widget:
// one request object out, one response object back. The dev command wires it
// to stdio; an embedder wires it to whatever channel reaches its WebAuthn
// surface.
//
// Request:  {"id": n, "op": "create"|"get", "conditional": bool, "options": {...}}
// Response: {"id": n, "response": {...}} or {"id": n, "error": "NotAllowedError"|...}
//
// Requests carry an id the host echoes back. A late answer to a cancelled
// request is discarded by id instead of being consumed as the next
// ceremony's response. Hosts that omit the id still work as long as they
// answer every request.
type Bridge struct {
	mu        sync.Mutex
	out       io.Writer
	in        *bufio.Reader
	available bool

	readOnce sync.Once
	lines    chan readResult
	lastID   int64
}

type readResult struct {
	line []byte
	err  error
}

// NewBridge builds a bridge over the given channel. available mirrors the
// host's capability report and is checked before any ceremony starts.
func NewBridge(in io.Reader, out io.Writer, available bool) *Bridge {
	return &Bridge{
		in:        bufio.NewReader(in),
		out:       out,
		available: available,
	}
}

// Available reports the host's WebAuthn capability.
func (b *Bridge) Available() bool {
	return b != nil && b.available
}

// Create runs a registration ceremony through the host.
func (b *Bridge) Create(ctx context.Context, options *protocol.CredentialCreation) (json.RawMessage, error) {
	return b.roundTrip(ctx, "create", options, false)
}

// Get runs an authentication ceremony through the host.
func (b *Bridge) Get(ctx context.Context, options *protocol.CredentialAssertion, conditional bool) (json.RawMessage, error) {
	return b.roundTrip(ctx, "get", options, conditional)
}

type bridgeRequest struct {
	ID          int64  `json:"id"`
	Op          string `json:"op"`
	Conditional bool   `json:"conditional,omitempty"`
	Options     any    `json:"options"`
}

type bridgeResponse struct {
	ID       int64           `json:"id"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

// roundTrip writes one request line and blocks for the matching response
// line, honoring ctx cancellation. A cancelled ceremony surfaces as
// ErrAborted; its response, if the host ever sends one, is dropped by the
// next round trip.
func (b *Bridge) roundTrip(ctx context.Context, op string, options any, conditional bool) (json.RawMessage, error) {
	if !b.Available() {
		return nil, ErrUnsupported
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.readOnce.Do(b.startReader)

	b.lastID++
	id := b.lastID
	payload, err := json.Marshal(bridgeRequest{ID: id, Op: op, Conditional: conditional, Options: options})
	if err != nil {
		return nil, fmt.Errorf("encode bridge request: %w", err)
	}
	if _, err := b.out.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write bridge request: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		case result := <-b.lines:
			if result.err != nil {
				return nil, fmt.Errorf("read bridge response: %w", result.err)
			}
			var response bridgeResponse
			if err := json.Unmarshal(result.line, &response); err != nil {
				return nil, fmt.Errorf("decode bridge response: %w", err)
			}
			if response.ID != 0 && response.ID != id {
				// Answer to an earlier, cancelled request.
				continue
			}
			return decodeBridgeResponse(response)
		}
	}
}

// startReader pumps response lines into a buffered channel so a line that
// arrives after its request was cancelled waits there instead of blocking
// the host.
func (b *Bridge) startReader() {
	b.lines = make(chan readResult, 4)
	go func() {
		for {
			line, err := b.in.ReadBytes('\n')
			if len(line) > 0 {
				b.lines <- readResult{line: line}
			}
			if err != nil {
				b.lines <- readResult{err: err}
				return
			}
		}
	}()
}

func decodeBridgeResponse(response bridgeResponse) (json.RawMessage, error) {
	if response.Error != "" {
		return nil, mapPlatformError(response.Error)
	}
	if len(response.Response) == 0 {
		return nil, fmt.Errorf("bridge response is empty")
	}
	return response.Response, nil
}

// mapPlatformError folds the host's named error onto the tagged set.
func mapPlatformError(name string) error {
	switch name {
	case "InvalidStateError":
		return ErrAlreadyRegistered
	case "NotAllowedError", "AbortError":
		return ErrAborted
	case "NotSupportedError":
		return ErrUnsupported
	default:
		return fmt.Errorf("%w: %s", ErrAborted, name)
	}
}
