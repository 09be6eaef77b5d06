package rtnl

import (
	"encoding/binary"
	"net"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// Route is an IPv4 route as reported by the kernel. A nil Dst with DstLen 0 is
// the default route.
type Route struct {
	Table    Table
	Type     RouteType
	Scope    Scope
	Protocol Protocol
	Dst      net.IP
	DstLen   int
	Gateway  net.IP
	OutIndex int
	PrefSrc  net.IP
	Flags    uint32
}

// LinkDown reports whether the kernel marked the route's next hop link as down.
func (r Route) LinkDown() bool {
	return r.Flags&unix.RTNH_F_LINKDOWN != 0
}

// Printable reports whether the route has a destination or a gateway. Routes
// with neither carry nothing worth showing or resolving through.
func (r Route) Printable() bool {
	return r.Dst != nil || r.Gateway != nil
}

// IsMainView reports whether a route would be shown by a plain `ip route`:
// unicast or local routes from the main or local table, with universe or link
// scope.
func IsMainView(r Route) bool {
	if r.Table != unix.RT_TABLE_MAIN && r.Table != unix.RT_TABLE_LOCAL {
		return false
	}

	if r.Type != unix.RTN_UNICAST && r.Type != unix.RTN_LOCAL {
		return false
	}

	return r.Scope == unix.RT_SCOPE_UNIVERSE || r.Scope == unix.RT_SCOPE_LINK
}

// Wildcard marks an integer RouteFilter field as unconstrained. Address fields
// are unconstrained when nil.
const Wildcard = -1

// RouteFilter selects routes by exact field match. It is applied to the dump
// on the client, since the kernel returns every route regardless.
type RouteFilter struct {
	Table    int
	Type     int
	Scope    int
	Protocol int
	Dst      net.IP
	DstLen   int
	Gateway  net.IP
	OutIndex int
}

// NewRouteFilter returns a filter that matches every route.
func NewRouteFilter() *RouteFilter {
	return &RouteFilter{
		Table:    Wildcard,
		Type:     Wildcard,
		Scope:    Wildcard,
		Protocol: Wildcard,
		DstLen:   Wildcard,
		OutIndex: Wildcard,
	}
}

// Match reports whether every constrained field of the filter equals the
// route's. A nil filter matches everything. Absent route addresses compare as
// 0.0.0.0.
func (f *RouteFilter) Match(r Route) bool {
	if f == nil {
		return true
	}

	switch {
	case f.Table >= 0 && Table(f.Table) != r.Table:
		return false
	case f.Type >= 0 && RouteType(f.Type) != r.Type:
		return false
	case f.Scope >= 0 && Scope(f.Scope) != r.Scope:
		return false
	case f.Protocol >= 0 && Protocol(f.Protocol) != r.Protocol:
		return false
	case f.DstLen >= 0 && f.DstLen != r.DstLen:
		return false
	case f.OutIndex >= 0 && f.OutIndex != r.OutIndex:
		return false
	case f.Dst != nil && ipv4Bits(f.Dst) != ipv4Bits(r.Dst):
		return false
	case f.Gateway != nil && ipv4Bits(f.Gateway) != ipv4Bits(r.Gateway):
		return false
	}

	return true
}

// Routes dumps the IPv4 routing tables and returns the routes matching filter.
// Results are ordered newest first relative to the kernel's dump order.
func (c *Client) Routes(filter *RouteFilter) ([]Route, error) {
	var routes []Route
	req := rtMsg{Family: unix.AF_INET}
	err := c.dump("list routes", unix.RTM_GETROUTE, unix.RTM_NEWROUTE, req.marshal(), func(m Message) error {
		route, ok, err := decodeRoute(m)
		if err != nil {
			return err
		}

		if ok && filter.Match(route) {
			routes = append(routes, route)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(routes), nil
}

// decodeRoute returns false for routes outside the IPv4 family.
func decodeRoute(m Message) (Route, bool, error) {
	rtm, err := unmarshalRtMsg(m.Data)
	if err != nil {
		return Route{}, false, err
	}

	if rtm.Family != unix.AF_INET {
		return Route{}, false, nil
	}

	route := Route{
		Table:    Table(rtm.Table),
		Type:     RouteType(rtm.Type),
		Scope:    Scope(rtm.Scope),
		Protocol: Protocol(rtm.Protocol),
		DstLen:   int(rtm.DstLen),
		Flags:    rtm.Flags,
	}

	native := nl.NativeEndian()
	for typ, value := range Attributes(m.Data[align(unix.SizeofRtMsg):]) {
		switch typ {
		case unix.RTA_TABLE:
			if len(value) >= 4 {
				route.Table = Table(native.Uint32(value))
			}
		case unix.RTA_DST:
			route.Dst = attrIPv4(value)
		case unix.RTA_GATEWAY:
			route.Gateway = attrIPv4(value)
		case unix.RTA_PREFSRC:
			route.PrefSrc = attrIPv4(value)
		case unix.RTA_OIF:
			if len(value) >= 4 {
				route.OutIndex = int(native.Uint32(value))
			}
		}
	}

	return route, true, nil
}

// AddRoute installs dst/prefixLen via gateway in the main table. The kernel
// rejects the request with EEXIST if the route already exists.
func (c *Client) AddRoute(dst net.IP, prefixLen int, gateway net.IP) error {
	rtm := rtMsg{
		Table:    unix.RT_TABLE_MAIN,
		Protocol: unix.RTPROT_BOOT,
		Scope:    unix.RT_SCOPE_UNIVERSE,
		Type:     unix.RTN_UNICAST,
	}

	return c.manageRoute("add route", unix.RTM_NEWROUTE, unix.NLM_F_CREATE|unix.NLM_F_EXCL, rtm, dst, prefixLen, gateway)
}

// DeleteRoute removes dst/prefixLen via gateway from the main table.
func (c *Client) DeleteRoute(dst net.IP, prefixLen int, gateway net.IP) error {
	rtm := rtMsg{
		Table: unix.RT_TABLE_MAIN,
		Scope: unix.RT_SCOPE_NOWHERE,
	}

	return c.manageRoute("delete route", unix.RTM_DELROUTE, 0, rtm, dst, prefixLen, gateway)
}

func (c *Client) manageRoute(operation string, msgType, flags uint16, rtm rtMsg, dst net.IP, prefixLen int, gateway net.IP) error {
	dst4 := dst.To4()
	if dst4 == nil {
		return malformedInput("destination %q is not an IPv4 address", dst.String())
	}

	if prefixLen < 0 || prefixLen > 32 {
		return malformedInput("prefix length %d is outside [0, 32]", prefixLen)
	}

	gw4 := gateway.To4()
	if gw4 == nil {
		return malformedInput("gateway %q is not an IPv4 address", gateway.String())
	}

	rtm.Family = unix.AF_INET
	rtm.DstLen = uint8(prefixLen)

	attrs := make([]Attribute, 0, 2)
	if prefixLen > 0 {
		attrs = append(attrs, Attribute{Type: unix.RTA_DST, Data: dst4})
	}
	attrs = append(attrs, Attribute{Type: unix.RTA_GATEWAY, Data: gw4})

	return c.execute(operation, msgType, flags, rtm.marshal(), attrs...)
}

// Resolve returns the route the kernel tables would pick for addr by longest
// prefix match, or nil if no route covers it. When several routes share the
// longest prefix the first one in Routes order wins.
func (c *Client) Resolve(addr net.IP) (*Route, error) {
	addr4 := addr.To4()
	if addr4 == nil || addr4.IsUnspecified() {
		return nil, malformedInput("%q is not a routable IPv4 address", addr.String())
	}

	routes, err := c.Routes(nil)
	if err != nil {
		return nil, err
	}

	target := ipv4Bits(addr4)
	var best *Route
	for i := range routes {
		route := &routes[i]
		if !route.Printable() || target&Netmask(route.DstLen) != ipv4Bits(route.Dst) {
			continue
		}

		if best == nil || route.DstLen > best.DstLen {
			best = route
		}
	}

	return best, nil
}

// Netmask returns the mask with the top prefixLen bits set, e.g. 24 is
// 255.255.255.0. Lengths outside [0, 32] are clamped.
func Netmask(prefixLen int) uint32 {
	prefixLen = min(max(prefixLen, 0), 32)
	return ^uint32(0) << (32 - prefixLen)
}

// ipv4Bits returns ip as a big endian integer. nil and non IPv4 addresses are 0.
func ipv4Bits(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}

	return binary.BigEndian.Uint32(ip4)
}

func attrIPv4(b []byte) net.IP {
	if len(b) != net.IPv4len {
		return nil
	}

	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}
