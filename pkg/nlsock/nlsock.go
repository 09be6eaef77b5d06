// Package nlsock provides NETLINK_ROUTE sessions for the rtnl client.
package nlsock

import (
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
	"github.com/vishvananda/netlink/nl"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// socket is the subset of a netlink socket used by a session.
type socket interface {
	Send(b []byte) error
	Receive() ([]syscall.NetlinkMessage, error)
	Close() error
}

type nlSocket struct {
	sock *nl.NetlinkSocket
}

var _ socket = (*nlSocket)(nil)

func (s *nlSocket) Send(b []byte) error {
	return unix.Sendto(s.sock.GetFd(), b, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
}

func (s *nlSocket) Receive() ([]syscall.NetlinkMessage, error) {
	msgs, _, err := s.sock.Receive()
	return msgs, err
}

func (s *nlSocket) Close() error {
	s.sock.Close()
	return nil
}

type options struct {
	namespace      string
	receiveTimeout time.Duration
	logger         *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithNamespace opens the socket inside the named network namespace, as
// created by `ip netns add`.
func WithNamespace(name string) Option {
	return func(o *options) {
		o.namespace = name
	}
}

// WithReceiveTimeout bounds every blocking receive. Zero waits forever.
func WithReceiveTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.receiveTimeout = timeout
	}
}

// WithLogger sets the logger used for debug output. It defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Session is a NETLINK_ROUTE socket that implements rtnl.Transport. It tracks
// the sequence number of the last request so replies to earlier, abandoned
// requests are dropped.
type Session struct {
	sock   socket
	pid    uint32
	seq    uint32
	logger *slog.Logger
}

var _ rtnl.Transport = (*Session)(nil)

// Open creates a session bound to a kernel assigned port ID.
func Open(opts ...Option) (*Session, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	target := netns.None()
	if o.namespace != "" {
		handle, err := netns.GetFromName(o.namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to open network namespace %q: %w", o.namespace, err)
		}
		defer handle.Close()

		target = handle
	}

	sock, err := nl.GetNetlinkSocketAt(target, netns.None(), unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink socket: %w", err)
	}

	pid, err := sock.GetPid()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to get netlink port ID: %w", err)
	}

	if o.receiveTimeout > 0 {
		tv := unix.NsecToTimeval(o.receiveTimeout.Nanoseconds())
		if err := sock.SetReceiveTimeout(&tv); err != nil {
			sock.Close()
			return nil, fmt.Errorf("failed to set netlink receive timeout: %w", err)
		}
	}

	o.logger.Debug("Opened netlink session", "pid", pid, "namespace", o.namespace)
	return newSession(&nlSocket{sock: sock}, pid, o.logger), nil
}

func newSession(sock socket, pid uint32, logger *slog.Logger) *Session {
	return &Session{
		sock:   sock,
		pid:    pid,
		seq:    uint32(time.Now().Unix()),
		logger: logger,
	}
}

// NextHeader advances the sequence number and returns a request header stamped with it.
func (s *Session) NextHeader(msgType, flags uint16) rtnl.Header {
	s.seq++
	return rtnl.Header{
		Type:   msgType,
		Flags:  flags | unix.NLM_F_REQUEST,
		Seq:    s.seq,
		PortID: s.pid,
	}
}

// Send writes a request to the kernel.
func (s *Session) Send(b []byte) error {
	if err := s.sock.Send(b); err != nil {
		return fmt.Errorf("failed to send netlink message: %w", err)
	}

	return nil
}

// ReceiveUntil reads the replies to the last request until NLMSG_DONE or an
// NLMSG_ERROR arrives.
func (s *Session) ReceiveUntil(msgType uint16, fn func(rtnl.Message) error) error {
	for {
		msgs, err := s.sock.Receive()
		if err != nil {
			return fmt.Errorf("failed to receive netlink messages: %w", err)
		}

		for _, msg := range msgs {
			if !s.current(msg.Header) {
				continue
			}

			switch msg.Header.Type {
			case unix.NLMSG_DONE:
				// Kernels with extended acks append an errno to the terminator
				if len(msg.Data) >= 4 {
					return s.kernelError(msg.Data)
				}
				return nil
			case unix.NLMSG_ERROR:
				return s.kernelError(msg.Data)
			case msgType:
				if err := fn(rtnl.Message{Header: header(msg.Header), Data: msg.Data}); err != nil {
					return err
				}
			default:
				s.logger.Debug("Ignoring unexpected reply type", "type", msg.Header.Type, "expected", msgType)
			}
		}
	}
}

// WaitAck reads until the acknowledgment of the last request arrives.
func (s *Session) WaitAck() error {
	for {
		msgs, err := s.sock.Receive()
		if err != nil {
			return fmt.Errorf("failed to receive netlink acknowledgment: %w", err)
		}

		for _, msg := range msgs {
			if !s.current(msg.Header) || msg.Header.Type != unix.NLMSG_ERROR {
				continue
			}

			return s.kernelError(msg.Data)
		}
	}
}

// Close releases the socket.
func (s *Session) Close() error {
	return s.sock.Close()
}

// current reports whether a reply answers the last request of this session.
func (s *Session) current(h syscall.NlMsghdr) bool {
	if h.Seq == s.seq && h.Pid == s.pid {
		return true
	}

	s.logger.Debug("Dropping stale netlink reply", "seq", h.Seq, "pid", h.Pid, "expectedSeq", s.seq)
	return false
}

// kernelError decodes the errno that leads an NLMSG_ERROR payload. Zero is a
// positive acknowledgment.
func (s *Session) kernelError(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("netlink error payload is %d bytes: %w", len(data), rtnl.ErrMalformedMessage)
	}

	errno := -int32(nl.NativeEndian().Uint32(data))
	if errno == 0 {
		return nil
	}

	s.logger.Debug("Kernel rejected request", "seq", s.seq, "errno", syscall.Errno(errno))
	return &rtnl.KernelError{Errno: syscall.Errno(errno)}
}

func header(h syscall.NlMsghdr) rtnl.Header {
	return rtnl.Header{
		Len:    h.Len,
		Type:   h.Type,
		Flags:  h.Flags,
		Seq:    h.Seq,
		PortID: h.Pid,
	}
}
