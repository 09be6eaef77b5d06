package rtnl

// Transport is the netlink session the directories talk through. Only one
// request may be outstanding at a time: a dump must be fully received, or an
// acknowledgment consumed, before the next header is requested.
type Transport interface {
	// NextHeader returns a request header carrying a fresh sequence number and
	// the session's port ID. NLM_F_REQUEST is added to flags.
	NextHeader(msgType, flags uint16) Header

	// Send writes a complete request to the kernel.
	Send(b []byte) error

	// ReceiveUntil reads replies to the last request until the dump terminator,
	// calling fn once for every message of type msgType. Receiving stops early if
	// fn returns an error, and that error is returned.
	ReceiveUntil(msgType uint16, fn func(Message) error) error

	// WaitAck consumes the acknowledgment of the last request. A negative
	// acknowledgment is returned as a *KernelError.
	WaitAck() error

	Close() error
}
