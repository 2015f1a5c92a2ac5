package client

import (
	"time"

	"github.com/cerekinorg/toolhost/logx"
)

// DefaultRequestTimeout is how long a request waits for its response before
// failing with a TimeoutError.
const DefaultRequestTimeout = 30 * time.Second

// Option configures a Client during construction.
type Option func(*Client)

// WithLogger sets the logger used by the client and its reader goroutine.
func WithLogger(logger logx.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithClientVersion sets the version string announced during the initialize
// handshake.
func WithClientVersion(version string) Option {
	return func(c *Client) {
		c.version = version
	}
}

// WithNotificationHandler registers a handler invoked from the reader
// goroutine for every server notification. Without a handler, notifications
// are buffered on the channel returned by Notifications and dropped once the
// buffer fills.
func WithNotificationHandler(handler NotificationHandler) Option {
	return func(c *Client) {
		c.notifyHandler = handler
	}
}
