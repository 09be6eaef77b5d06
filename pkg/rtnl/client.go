// Package rtnl is an rtnetlink client for IPv4 interfaces, addresses and routes.
//
// Requests are built and replies decoded by this package. Sockets, sequence
// numbers and acknowledgments are handled by a Transport.
//
// The kernel ignores per-object selectors on dump requests (asking for the
// addresses of a single interface still returns every address), so all
// filtering happens client-side after a full dump.
package rtnl

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sys/unix"
)

// Observer is notified about every request the client completes and every
// reply message it decodes.
type Observer interface {
	ObserveRequest(operation string, duration time.Duration, err error)
	ObserveMessage(msgType uint16)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, time.Duration, error) {}
func (noopObserver) ObserveMessage(uint16)                       {}

// Client issues rtnetlink requests over a Transport. It is not safe for
// concurrent use.
type Client struct {
	transport Transport
	observer  Observer
}

// NewClient creates a client. observer may be nil.
func NewClient(transport Transport, observer Observer) *Client {
	if observer == nil {
		observer = noopObserver{}
	}

	return &Client{
		transport: transport,
		observer:  observer,
	}
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// newestFirst reverses records collected in arrival order, matching a list
// built by prepending each record as it arrives.
func newestFirst[T any](items []T) []T {
	slices.Reverse(items)
	return items
}

// dump sends a dump request and passes every reply of replyType to fn. fn
// returns an error to latch the dump as failed: later replies are drained
// without being decoded so the session stays in sync, and the caller discards
// whatever it collected.
func (c *Client) dump(operation string, msgType, replyType uint16, payload []byte, fn func(Message) error) (err error) {
	start := time.Now()
	defer func() {
		c.observer.ObserveRequest(operation, time.Since(start), err)
	}()

	var buf [RequestBufferSize]byte
	req := BuildMessage(buf[:], c.transport.NextHeader(msgType, unix.NLM_F_DUMP), payload)

	if err := c.transport.Send(req); err != nil {
		return fmt.Errorf("failed to send %s request: %w", operation, err)
	}

	var latched error
	err = c.transport.ReceiveUntil(replyType, func(m Message) error {
		if latched != nil {
			return nil
		}

		c.observer.ObserveMessage(m.Header.Type)
		if err := fn(m); err != nil {
			slog.Debug("Dump decode failed, ignoring remaining replies", "operation", operation, "error", err)
			latched = err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to receive %s replies: %w", operation, err)
	}

	if latched != nil {
		return fmt.Errorf("failed to decode %s reply: %w", operation, latched)
	}

	return nil
}

// execute sends a mutation request and waits for the kernel's acknowledgment.
func (c *Client) execute(operation string, msgType, flags uint16, payload []byte, attrs ...Attribute) (err error) {
	start := time.Now()
	defer func() {
		c.observer.ObserveRequest(operation, time.Since(start), err)
	}()

	var buf [RequestBufferSize]byte
	req := BuildMessage(buf[:], c.transport.NextHeader(msgType, flags|unix.NLM_F_ACK), payload, attrs...)

	if err := c.transport.Send(req); err != nil {
		return fmt.Errorf("failed to send %s request: %w", operation, err)
	}

	if err := c.transport.WaitAck(); err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}

	return nil
}
