package rtnl

import (
	"iter"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// alignTo is the alignment of every netlink message segment and attribute.
const alignTo = unix.NLMSG_ALIGNTO

// align rounds n up to the next 4 byte boundary.
func align(n int) int {
	return (n + alignTo - 1) &^ (alignTo - 1)
}

// Attribute is a single route attribute (struct rtattr) and its value.
type Attribute struct {
	Type uint16
	Data []byte
}

// AttributeLen returns the number of bytes an attribute carrying a value of
// valueLen bytes occupies on the wire, including trailing padding.
func AttributeLen(valueLen int) int {
	return align(unix.SizeofRtAttr + valueLen)
}

// PutAttribute encodes a type-length-value attribute into b at off and returns
// the offset immediately after it. The declared length covers the header and
// the value but not the padding. Padding bytes are zeroed.
//
// PutAttribute panics if b cannot hold the attribute.
func PutAttribute(b []byte, off int, typ uint16, value []byte) int {
	end := off + AttributeLen(len(value))
	if end > len(b) {
		panic("rtnl: attribute overflows request buffer")
	}

	native := nl.NativeEndian()
	native.PutUint16(b[off:], uint16(unix.SizeofRtAttr+len(value)))
	native.PutUint16(b[off+2:], typ)
	n := copy(b[off+unix.SizeofRtAttr:], value)
	clear(b[off+unix.SizeofRtAttr+n : end])

	return end
}

// Attributes returns a sequence over the attributes encoded in b. The sequence
// ends at the first record that is truncated, declares a length shorter than an
// attribute header, or runs past the end of b. This tolerates trailing padding
// and never reads out of bounds. The yielded values alias b.
func Attributes(b []byte) iter.Seq2[uint16, []byte] {
	return func(yield func(uint16, []byte) bool) {
		native := nl.NativeEndian()
		for off := 0; len(b)-off >= unix.SizeofRtAttr; {
			length := int(native.Uint16(b[off:]))
			if length < unix.SizeofRtAttr || length > len(b)-off {
				return
			}

			typ := native.Uint16(b[off+2:])
			if !yield(typ, b[off+unix.SizeofRtAttr:off+length]) {
				return
			}

			off += align(length)
		}
	}
}
