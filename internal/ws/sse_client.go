package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	event   string
	log     *slog.Logger
	closed  bool
	last    time.Time
	done    chan struct{}

	writeTimeout time.Duration
	setDeadline  func(time.Time) error
}

// NewSSEClient builds an SSE client that tags every frame with event. An
// empty event name produces unnamed "message" frames.
func NewSSEClient(writer io.Writer, flusher http.Flusher, event string, logger *slog.Logger) *SSEClient {
	return &SSEClient{
		writer:  writer,
		flusher: flusher,
		event:   strings.TrimSpace(event),
		log:     logger,
		last:    time.Now().UTC(),
		done:    make(chan struct{}),
	}
}

// SetWriteTimeout bounds every later write by d using set, typically
// http.ResponseController.SetWriteDeadline. A write that misses the deadline
// fails and closes the stream.
func (c *SSEClient) SetWriteTimeout(d time.Duration, set func(time.Time) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = d
	c.setDeadline = set
}

func (c *SSEClient) armDeadline() {
	if c.setDeadline == nil || c.writeTimeout <= 0 {
		return
	}
	if err := c.setDeadline(time.Now().Add(c.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.log.Debug("sse write deadline unavailable", "error", err)
	}
}

// Send emits a data event to the SSE stream.
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	var b strings.Builder
	if c.event != "" {
		fmt.Fprintf(&b, "event: %s\n", c.event)
	}
	for _, line := range strings.Split(string(payload), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	c.armDeadline()
	if _, err := io.WriteString(c.writer, b.String()); err != nil {
		c.closeLocked()
		c.log.Warn("sse send failed", "error", err)
		return err
	}
	c.flusher.Flush()
	c.last = time.Now().UTC()
	return nil
}

// Heartbeat emits a comment frame to keep the connection alive.
func (c *SSEClient) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	c.armDeadline()
	if _, err := fmt.Fprint(c.writer, ": ping\n\n"); err != nil {
		c.closeLocked()
		c.log.Warn("sse heartbeat failed", "error", err)
		return err
	}
	c.flusher.Flush()
	c.last = time.Now().UTC()
	return nil
}

// Close marks the stream as closed.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *SSEClient) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Done is closed once the stream is closed, by the client or the hub.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
