package rtnl

import (
	"fmt"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// RequestBufferSize is the size of the scratch buffer every request is built in.
// No request sent by this package comes close to it.
const RequestBufferSize = 128

// Header is a netlink message header (struct nlmsghdr).
type Header struct {
	Len    uint32
	Type   uint16
	Flags  uint16
	Seq    uint32
	PortID uint32
}

func (h Header) put(b []byte) {
	native := nl.NativeEndian()
	native.PutUint32(b[0:], h.Len)
	native.PutUint16(b[4:], h.Type)
	native.PutUint16(b[6:], h.Flags)
	native.PutUint32(b[8:], h.Seq)
	native.PutUint32(b[12:], h.PortID)
}

// ParseHeader decodes the netlink message header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < unix.SizeofNlMsghdr {
		return Header{}, fmt.Errorf("%w: %d byte header", ErrMalformedMessage, len(b))
	}

	native := nl.NativeEndian()
	return Header{
		Len:    native.Uint32(b[0:]),
		Type:   native.Uint16(b[4:]),
		Flags:  native.Uint16(b[6:]),
		Seq:    native.Uint32(b[8:]),
		PortID: native.Uint32(b[12:]),
	}, nil
}

// Message is a single reply message with its header already stripped from Data.
type Message struct {
	Header Header
	Data   []byte
}

// BuildMessage composes a request in buf: the header, the family specific
// payload and the attributes, each padded to a 4 byte boundary. The header's
// length field is set to the final message length. The returned slice aliases buf.
//
// BuildMessage panics if buf is too small to hold the request.
func BuildMessage(buf []byte, h Header, payload []byte, attrs ...Attribute) []byte {
	off := align(unix.SizeofNlMsghdr)
	end := off + align(len(payload))
	if end > len(buf) {
		panic("rtnl: payload overflows request buffer")
	}

	n := copy(buf[off:], payload)
	clear(buf[off+n : end])
	off = end

	for _, attr := range attrs {
		off = PutAttribute(buf, off, attr.Type, attr.Data)
	}

	h.Len = uint32(off)
	h.put(buf)

	return buf[:off]
}

// ifInfoMsg is struct ifinfomsg.
type ifInfoMsg struct {
	Family uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

func (m ifInfoMsg) marshal() []byte {
	b := make([]byte, unix.SizeofIfInfomsg)
	native := nl.NativeEndian()
	b[0] = m.Family
	native.PutUint16(b[2:], m.Type)
	native.PutUint32(b[4:], uint32(m.Index))
	native.PutUint32(b[8:], m.Flags)
	native.PutUint32(b[12:], m.Change)
	return b
}

func unmarshalIfInfoMsg(b []byte) (ifInfoMsg, error) {
	if len(b) < unix.SizeofIfInfomsg {
		return ifInfoMsg{}, fmt.Errorf("%w: %d byte link record", ErrMalformedMessage, len(b))
	}

	native := nl.NativeEndian()
	return ifInfoMsg{
		Family: b[0],
		Type:   native.Uint16(b[2:]),
		Index:  int32(native.Uint32(b[4:])),
		Flags:  native.Uint32(b[8:]),
		Change: native.Uint32(b[12:]),
	}, nil
}

// ifAddrMsg is struct ifaddrmsg.
type ifAddrMsg struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     uint32
}

func (m ifAddrMsg) marshal() []byte {
	b := make([]byte, unix.SizeofIfAddrmsg)
	b[0] = m.Family
	b[1] = m.PrefixLen
	b[2] = m.Flags
	b[3] = m.Scope
	nl.NativeEndian().PutUint32(b[4:], m.Index)
	return b
}

func unmarshalIfAddrMsg(b []byte) (ifAddrMsg, error) {
	if len(b) < unix.SizeofIfAddrmsg {
		return ifAddrMsg{}, fmt.Errorf("%w: %d byte address record", ErrMalformedMessage, len(b))
	}

	return ifAddrMsg{
		Family:    b[0],
		PrefixLen: b[1],
		Flags:     b[2],
		Scope:     b[3],
		Index:     nl.NativeEndian().Uint32(b[4:]),
	}, nil
}

// rtMsg is struct rtmsg.
type rtMsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	Tos      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func (m rtMsg) marshal() []byte {
	b := make([]byte, unix.SizeofRtMsg)
	b[0] = m.Family
	b[1] = m.DstLen
	b[2] = m.SrcLen
	b[3] = m.Tos
	b[4] = m.Table
	b[5] = m.Protocol
	b[6] = m.Scope
	b[7] = m.Type
	nl.NativeEndian().PutUint32(b[8:], m.Flags)
	return b
}

func unmarshalRtMsg(b []byte) (rtMsg, error) {
	if len(b) < unix.SizeofRtMsg {
		return rtMsg{}, fmt.Errorf("%w: %d byte route record", ErrMalformedMessage, len(b))
	}

	return rtMsg{
		Family:   b[0],
		DstLen:   b[1],
		SrcLen:   b[2],
		Tos:      b[3],
		Table:    b[4],
		Protocol: b[5],
		Scope:    b[6],
		Type:     b[7],
		Flags:    nl.NativeEndian().Uint32(b[8:]),
	}, nil
}
