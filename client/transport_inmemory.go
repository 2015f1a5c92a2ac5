package client

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/cerekinorg/toolhost/protocol"
)

// ServerRequestHandler produces the response an in-memory peer sends back
// for a request. Returning nil leaves the request unanswered.
type ServerRequestHandler func(req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse

// InMemoryTransport is a Transport backed by channels, used to exercise a
// client against a scripted peer without spawning a process.
type InMemoryTransport struct {
	incoming chan []byte // peer -> client
	outgoing chan []byte // client -> peer

	closed    bool
	closeMu   sync.Mutex
	closeDone chan struct{}
}

// NewInMemoryTransport creates an unconnected in-memory transport. The test
// drives the peer side through PeerSend/PeerReceive or Serve.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{
		incoming:  make(chan []byte, 64),
		outgoing:  make(chan []byte, 64),
		closeDone: make(chan struct{}),
	}
}

// Send queues one frame for the peer.
func (t *InMemoryTransport) Send(data []byte) error {
	if t.IsClosed() {
		return NewTransportError("send", ErrTransportClosed)
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	select {
	case t.outgoing <- frame:
		return nil
	case <-t.closeDone:
		return NewTransportError("send", ErrTransportClosed)
	}
}

// Receive blocks until the peer sends a frame or the transport closes.
func (t *InMemoryTransport) Receive() ([]byte, error) {
	select {
	case data := <-t.incoming:
		return data, nil
	case <-t.closeDone:
		return nil, io.EOF
	}
}

// Close unblocks both sides. Safe to call more than once.
func (t *InMemoryTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeDone)
	return nil
}

// IsClosed reports whether Close has been called.
func (t *InMemoryTransport) IsClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}

// PeerSend injects a raw frame as if the server had written it to stdout.
func (t *InMemoryTransport) PeerSend(data []byte) {
	select {
	case t.incoming <- data:
	case <-t.closeDone:
	}
}

// PeerReceive returns the next frame the client sent, or io.EOF once the
// transport is closed.
func (t *InMemoryTransport) PeerReceive() ([]byte, error) {
	select {
	case data := <-t.outgoing:
		return data, nil
	case <-t.closeDone:
		return nil, io.EOF
	}
}

// Serve runs a scripted peer: every request frame the client sends is parsed
// and answered through handler until the transport closes. Notifications are
// consumed silently. Run it on its own goroutine.
func (t *InMemoryTransport) Serve(handler ServerRequestHandler) {
	for {
		data, err := t.PeerReceive()
		if err != nil {
			return
		}
		var req protocol.JSONRPCRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		if req.Method == "" {
			continue
		}
		var head struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.ID == nil {
			// Notification; nothing to answer.
			continue
		}
		resp := handler(&req)
		if resp == nil {
			continue
		}
		out, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		t.PeerSend(out)
	}
}

var _ Transport = (*InMemoryTransport)(nil)
