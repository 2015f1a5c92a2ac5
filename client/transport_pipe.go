package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cerekinorg/toolhost/logx"
)

// PipeTransport implements Transport over a pair of byte streams, typically
// the stdout/stdin pipes of a spawned tool server process.
type PipeTransport struct {
	reader *bufio.Reader
	writer io.Writer
	logger logx.Logger

	writeMutex sync.Mutex

	closed     bool
	closeMutex sync.Mutex

	// Originals kept so Close can release the pipe handles.
	rawReader io.Reader
	rawWriter io.Writer
}

// NewPipeTransport creates a transport reading frames from r and writing
// frames to w. If either implements io.Closer it is closed by Close.
func NewPipeTransport(r io.Reader, w io.Writer, logger logx.Logger) *PipeTransport {
	if logger == nil {
		logger = logx.NewNopLogger()
	}
	return &PipeTransport{
		reader:    bufio.NewReader(r),
		writer:    w,
		logger:    logger,
		rawReader: r,
		rawWriter: w,
	}
}

// Send writes one frame followed by a newline. Writes are serialized so
// concurrent callers never interleave partial JSON.
func (t *PipeTransport) Send(data []byte) error {
	if t.IsClosed() {
		return NewTransportError("send", ErrTransportClosed)
	}
	if len(data) == 0 {
		return NewTransportError("send", errors.New("cannot send empty frame"))
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	// Ensure the frame ends with exactly one newline.
	data = bytes.TrimRight(data, "\n")
	data = append(data, '\n')

	if _, err := t.writer.Write(data); err != nil {
		if isClosedPipe(err) {
			// The peer went away; close our end so callers see a consistent
			// state on the next operation.
			_ = t.Close()
			return NewTransportError("send", err)
		}
		return NewTransportError("send", fmt.Errorf("failed to write frame: %w", err))
	}
	return nil
}

// Receive blocks until the next newline-delimited frame arrives and returns
// it without the delimiter. On EOF with a partial line buffered, the partial
// line is returned first and the following call reports io.EOF.
func (t *PipeTransport) Receive() ([]byte, error) {
	if t.IsClosed() {
		return nil, NewTransportError("receive", ErrTransportClosed)
	}

	line, err := t.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			t.logger.Debug("pipe transport: EOF with partial line, delivering %d bytes", len(line))
			return bytes.TrimSpace(line), nil
		}
		if err == io.EOF || isClosedPipe(err) {
			return nil, io.EOF
		}
		return nil, NewTransportError("receive", fmt.Errorf("failed to read frame: %w", err))
	}
	return bytes.TrimSpace(line), nil
}

// Close releases the underlying pipe handles. Safe to call more than once.
func (t *PipeTransport) Close() error {
	t.closeMutex.Lock()
	defer t.closeMutex.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	if closer, ok := t.rawWriter.(io.Closer); ok {
		if err := closer.Close(); err != nil && !isClosedPipe(err) {
			t.logger.Debug("pipe transport: error closing writer: %v", err)
			firstErr = err
		}
	}
	if closer, ok := t.rawReader.(io.Closer); ok {
		if err := closer.Close(); err != nil && !isClosedPipe(err) {
			t.logger.Debug("pipe transport: error closing reader: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// IsClosed reports whether the transport has been closed.
func (t *PipeTransport) IsClosed() bool {
	t.closeMutex.Lock()
	defer t.closeMutex.Unlock()
	return t.closed
}

// isClosedPipe reports whether err looks like a closed-pipe condition, which
// is expected during shutdown and not worth surfacing loudly.
func isClosedPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		strings.Contains(err.Error(), "pipe closed") ||
		strings.Contains(err.Error(), "file already closed") ||
		strings.Contains(err.Error(), "broken pipe")
}

var _ Transport = (*PipeTransport)(nil)
