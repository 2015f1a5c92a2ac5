// Package client implements the client side of the tool server protocol:
// newline-delimited JSON-RPC 2.0 frames over a Transport, with concurrent
// request/response correlation, the initialize handshake, and the tools/list
// and tools/call operations.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cerekinorg/toolhost/logx"
	"github.com/cerekinorg/toolhost/protocol"
)

// NotificationHandler is invoked for incoming server notifications. It runs
// on the reader goroutine and must not block.
type NotificationHandler func(n *protocol.JSONRPCNotification)

// Client speaks JSON-RPC with a single tool server over a Transport. A
// dedicated reader goroutine owns the receive side for the client's entire
// lifetime; any number of goroutines may issue requests concurrently, each
// blocking only on its own response slot.
type Client struct {
	name    string
	version string

	transport Transport
	logger    logx.Logger

	requestTimeout time.Duration

	nextID    atomic.Int64
	pending   map[int64]chan *protocol.JSONRPCResponse
	pendingMu sync.Mutex

	notifyHandler NotificationHandler
	notifyBuffer  chan *protocol.JSONRPCNotification

	initialized atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
}

// NewClient creates a client over the given transport and starts its reader
// goroutine. The name identifies this client in the initialize handshake and
// in log output.
func NewClient(name string, transport Transport, options ...Option) *Client {
	c := &Client{
		name:           name,
		version:        "0.1.0",
		transport:      transport,
		logger:         logx.NewNopLogger(),
		requestTimeout: DefaultRequestTimeout,
		pending:        make(map[int64]chan *protocol.JSONRPCResponse),
		notifyBuffer:   make(chan *protocol.JSONRPCNotification, 100),
		done:           make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}

	go c.readLoop()

	return c
}

// Initialize performs the protocol handshake: an initialize request followed
// by the one-way initialized notification. The handshake is deliberately
// best-effort; some tool servers never acknowledge initialize, so an error
// here leaves the client usable and later calls surface their own errors.
// Callers can check Initialized to decide whether to warn.
func (c *Client) Initialize() error {
	params := protocol.InitializeRequestParams{
		ProtocolVersion: protocol.CurrentProtocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo: protocol.Implementation{
			Name:    c.name,
			Version: c.version,
		},
	}

	if _, err := c.Request(protocol.MethodInitialize, params); err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}
	c.initialized.Store(true)

	if err := c.Notify(protocol.MethodInitialized, nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Initialized reports whether the initialize handshake completed.
func (c *Client) Initialized() bool {
	return c.initialized.Load()
}

// ListTools issues a tools/list request and returns the advertised tools.
// A server that reports none yields an empty slice.
func (c *Client) ListTools() ([]protocol.Tool, error) {
	result, err := c.Request(protocol.MethodListTools, struct{}{})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	var list protocol.ListToolsResult
	if err := protocol.DecodeResult(result, &list); err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	return list.Tools, nil
}

// CallTool issues a tools/call request and returns the raw result payload.
func (c *Client) CallTool(name string, arguments map[string]interface{}) (interface{}, error) {
	return c.Request(protocol.MethodCallTool, protocol.CallToolRequestParams{
		Name:      name,
		Arguments: arguments,
	})
}

// Request sends a request frame and blocks the calling goroutine until the
// matching response arrives or the request timeout elapses. Responses are
// matched purely by id, so they may arrive in any order.
func (c *Client) Request(method string, params interface{}) (interface{}, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	id := c.nextID.Add(1)
	slot := make(chan *protocol.JSONRPCResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = slot
	c.pendingMu.Unlock()

	// A timed-out or failed request abandons its pending entry so a late
	// response is discarded harmlessly by the reader.
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(protocol.NewRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request %q: %w", method, err)
	}
	if err := c.transport.Send(data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-slot:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Error != nil {
			return nil, NewServerError(method, resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		return nil, NewTimeoutError(method, c.requestTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	}
}

// Notify sends a one-way frame with no id and returns without waiting.
func (c *Client) Notify(method string, params interface{}) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	data, err := json.Marshal(protocol.NewNotification(method, params))
	if err != nil {
		return fmt.Errorf("failed to marshal notification %q: %w", method, err)
	}
	return c.transport.Send(data)
}

// Notifications returns the buffer of server notifications received while no
// NotificationHandler was registered. The channel is closed when the client
// shuts down, so ranging over it terminates on Close.
func (c *Client) Notifications() <-chan *protocol.JSONRPCNotification {
	return c.notifyBuffer
}

// Close tears down the transport, stops the reader goroutine, and fails
// every pending request with ErrClientClosed. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.transport.Close()

		c.pendingMu.Lock()
		for id, slot := range c.pending {
			delete(c.pending, id)
			close(slot)
		}
		c.pendingMu.Unlock()

		c.logger.Debug("client %q closed", c.name)
	})
	return err
}

// maxReceiveFailures bounds consecutive transport read errors before the
// reader gives up and closes the client.
const maxReceiveFailures = 5

// readLoop continuously reads frames from the transport for the client's
// entire lifetime and dispatches them to pending requests or the
// notification path. The reader is the sole sender on notifyBuffer, so it
// closes the buffer on exit.
func (c *Client) readLoop() {
	defer close(c.notifyBuffer)

	failures := 0
	for {
		data, err := c.transport.Receive()
		if err != nil {
			if c.closed.Load() || c.transport.IsClosed() {
				return
			}
			if err == io.EOF {
				c.logger.Warn("client %q: server closed stdout, shutting down", c.name)
				_ = c.Close()
				return
			}
			failures++
			if failures >= maxReceiveFailures {
				c.logger.Error("client %q: %d consecutive receive errors, shutting down: %v", c.name, failures, err)
				_ = c.Close()
				return
			}
			c.logger.Debug("client %q: receive error: %v", c.name, err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		failures = 0
		if len(data) == 0 {
			continue
		}
		c.dispatch(data)
	}
}

// dispatch routes one raw frame. Frames that fail to parse, or whose id
// matches no pending request, are dropped without surfacing an error: noisy
// servers emit log-like lines on stdout and partially-compliant ones send
// unsolicited responses.
func (c *Client) dispatch(data []byte) {
	var head struct {
		ID     *int64 `json:"id"`
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.logger.Debug("client %q: dropping non-frame line: %s", c.name, data)
		return
	}

	switch {
	case head.ID != nil && head.Method == "":
		var resp protocol.JSONRPCResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("client %q: dropping malformed response: %v", c.name, err)
			return
		}
		c.deliver(&resp)

	case head.ID == nil && head.Method != "":
		var notification protocol.JSONRPCNotification
		if err := json.Unmarshal(data, &notification); err != nil {
			c.logger.Debug("client %q: dropping malformed notification: %v", c.name, err)
			return
		}
		if c.notifyHandler != nil {
			c.notifyHandler(&notification)
			return
		}
		select {
		case c.notifyBuffer <- &notification:
		default:
			c.logger.Warn("client %q: notification buffer full, dropping %q", c.name, notification.Method)
		}

	default:
		// Server-initiated requests are not part of this protocol.
		c.logger.Debug("client %q: dropping unexpected frame: %s", c.name, data)
	}
}

// deliver hands a response to the pending request with the matching id. The
// send is non-blocking: a slot that cannot accept immediately must not stall
// frame intake for other pending requests.
func (c *Client) deliver(resp *protocol.JSONRPCResponse) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	slot, ok := c.pending[*resp.ID]
	if !ok {
		c.logger.Debug("client %q: no pending request for response id %d", c.name, *resp.ID)
		return
	}
	delete(c.pending, *resp.ID)

	select {
	case slot <- resp:
	default:
		c.logger.Warn("client %q: response slot for id %d unavailable, dropping", c.name, *resp.ID)
	}
}
