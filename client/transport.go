package client

// Transport moves raw newline-delimited JSON-RPC frames between a client and
// exactly one tool server. Send may be called from multiple goroutines and
// must never interleave partial frames; Receive is called only by the
// client's reader goroutine and blocks until the next frame or an error.
type Transport interface {
	// Send writes one frame. The transport appends the trailing newline.
	Send(data []byte) error

	// Receive returns the next frame with framing stripped. It returns
	// io.EOF when the peer closes its end.
	Receive() ([]byte, error)

	// Close tears the transport down and unblocks any pending Receive.
	// Closing an already-closed transport is a no-op.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}
