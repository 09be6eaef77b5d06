package rtnl

import (
	"net"
	"slices"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

var hostEndian = nl.NativeEndian()

// mockTransport is a mock implementation of the Transport interface. Header
// allocation is deterministic rather than mocked so tests only describe I/O.
type mockTransport struct {
	mock.Mock
	seq uint32
}

var _ Transport = (*mockTransport)(nil)

func (m *mockTransport) NextHeader(msgType, flags uint16) Header {
	m.seq++
	return Header{
		Type:   msgType,
		Flags:  flags | unix.NLM_F_REQUEST,
		Seq:    m.seq,
		PortID: 4242,
	}
}

func (m *mockTransport) Send(b []byte) error {
	args := m.Called(slices.Clone(b))
	return args.Error(0)
}

func (m *mockTransport) ReceiveUntil(msgType uint16, fn func(Message) error) error {
	args := m.Called(msgType)

	// Replay the canned replies through the callback
	if len(args) > 1 && args.Get(1) != nil {
		for _, msg := range args.Get(1).([]Message) {
			if err := fn(msg); err != nil {
				return err
			}
		}
	}

	return args.Error(0)
}

func (m *mockTransport) WaitAck() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

// newTestClient creates a Client backed by a fresh mockTransport.
func newTestClient() (*Client, *mockTransport) {
	transport := &mockTransport{}
	return NewClient(transport, nil), transport
}

// reply encodes a kernel reply the same way a request is encoded and strips the
// header, as the transport does before handing messages to a callback.
func reply(t *testing.T, msgType uint16, payload []byte, attrs ...Attribute) Message {
	t.Helper()

	b := BuildMessage(make([]byte, 1024), Header{Type: msgType, Flags: unix.NLM_F_MULTI}, payload, attrs...)
	h, err := ParseHeader(b)
	require.NoError(t, err)

	return Message{Header: h, Data: b[unix.SizeofNlMsghdr:]}
}

func linkReply(t *testing.T, index int32, name string, flags uint32, attrs ...Attribute) Message {
	t.Helper()

	attrs = append([]Attribute{{Type: unix.IFLA_IFNAME, Data: append([]byte(name), 0)}}, attrs...)
	ifi := ifInfoMsg{Index: index, Type: unix.ARPHRD_ETHER, Flags: flags}
	return reply(t, unix.RTM_NEWLINK, ifi.marshal(), attrs...)
}

func addrReply(t *testing.T, family uint8, index uint32, ip []byte, prefixLen uint8) Message {
	t.Helper()

	ifa := ifAddrMsg{Family: family, PrefixLen: prefixLen, Index: index}
	return reply(t, unix.RTM_NEWADDR, ifa.marshal(),
		Attribute{Type: unix.IFA_ADDRESS, Data: ip},
		Attribute{Type: unix.IFA_LOCAL, Data: ip},
	)
}

// routeFixture describes a route reply in test tables.
type routeFixture struct {
	table    uint8
	protocol uint8
	scope    uint8
	typ      uint8
	dst      string
	dstLen   uint8
	gateway  string
	oif      uint32
}

func routeReply(t *testing.T, fx routeFixture) Message {
	t.Helper()

	rtm := rtMsg{
		Family:   unix.AF_INET,
		DstLen:   fx.dstLen,
		Table:    fx.table,
		Protocol: fx.protocol,
		Scope:    fx.scope,
		Type:     fx.typ,
	}

	var attrs []Attribute
	if fx.dst != "" {
		attrs = append(attrs, Attribute{Type: unix.RTA_DST, Data: mustIPv4(t, fx.dst)})
	}
	if fx.gateway != "" {
		attrs = append(attrs, Attribute{Type: unix.RTA_GATEWAY, Data: mustIPv4(t, fx.gateway)})
	}
	if fx.oif != 0 {
		oif := make([]byte, 4)
		hostEndian.PutUint32(oif, fx.oif)
		attrs = append(attrs, Attribute{Type: unix.RTA_OIF, Data: oif})
	}

	return reply(t, unix.RTM_NEWROUTE, rtm.marshal(), attrs...)
}

// request is a decoded outgoing request.
type request struct {
	header  Header
	payload []byte
	attrs   map[uint16][]byte
}

// parseRequest splits a request built by the client into its parts. payloadLen
// is the size of the family specific record.
func parseRequest(t *testing.T, b []byte, payloadLen int) request {
	t.Helper()

	h, err := ParseHeader(b)
	require.NoError(t, err)
	require.EqualValues(t, len(b), h.Len, "header length should match the buffer length")

	body := b[unix.SizeofNlMsghdr:]
	require.GreaterOrEqual(t, len(body), payloadLen)

	attrs := make(map[uint16][]byte)
	for typ, value := range Attributes(body[align(payloadLen):]) {
		attrs[typ] = value
	}

	return request{
		header:  h,
		payload: body[:payloadLen],
		attrs:   attrs,
	}
}

func mustIPv4(t *testing.T, s string) net.IP {
	t.Helper()

	ip := net.ParseIP(s).To4()
	require.NotNil(t, ip, "Failed to parse IPv4 address: %s", s)

	return ip
}
