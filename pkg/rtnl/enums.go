package rtnl

import (
	"slices"
	"strconv"

	"golang.org/x/sys/unix"
)

// LinkType is the ARPHRD_* hardware type of an interface.
type LinkType uint16

func (t LinkType) String() string {
	switch t {
	case unix.ARPHRD_ETHER:
		return "Ethernet"
	case unix.ARPHRD_LOOPBACK:
		return "Loopback"
	case unix.ARPHRD_IEEE80211, unix.ARPHRD_IEEE80211_PRISM, unix.ARPHRD_IEEE80211_RADIOTAP:
		return "Wireless"
	default:
		return "Unknown"
	}
}

// Table is a routing table ID.
type Table uint32

// RouteType is the rtm_type of a route.
type RouteType uint8

// Scope is the rtm_scope of a route.
type Scope uint8

// Protocol is the rtm_protocol of a route: who installed it.
type Protocol uint8

var tableNames = map[Table]string{
	unix.RT_TABLE_MAIN:  "main",
	unix.RT_TABLE_LOCAL: "local",
}

var routeTypeNames = map[RouteType]string{
	unix.RTN_UNICAST:     "unicast",
	unix.RTN_BROADCAST:   "broadcast",
	unix.RTN_LOCAL:       "local",
	unix.RTN_UNREACHABLE: "unreachable",
	unix.RTN_BLACKHOLE:   "blackhole",
	unix.RTN_PROHIBIT:    "prohibit",
}

var scopeNames = map[Scope]string{
	unix.RT_SCOPE_HOST:     "host",
	unix.RT_SCOPE_LINK:     "link",
	unix.RT_SCOPE_UNIVERSE: "universe",
	unix.RT_SCOPE_NOWHERE:  "nowhere",
}

var protocolNames = map[Protocol]string{
	unix.RTPROT_KERNEL: "kernel",
	unix.RTPROT_STATIC: "static",
	unix.RTPROT_BOOT:   "boot",
	unix.RTPROT_DHCP:   "dhcp",
	unix.RTPROT_BGP:    "bgp",
	unix.RTPROT_ISIS:   "isis",
	unix.RTPROT_OSPF:   "ospf",
}

func (t Table) String() string     { return enumString(tableNames, t) }
func (t RouteType) String() string { return enumString(routeTypeNames, t) }
func (s Scope) String() string     { return enumString(scopeNames, s) }
func (p Protocol) String() string  { return enumString(protocolNames, p) }

// ParseTable accepts a table name or its numeric ID.
func ParseTable(s string) (Table, error) { return parseEnum(tableNames, s, 32, "route table") }

// ParseRouteType accepts a route type name or its numeric code.
func ParseRouteType(s string) (RouteType, error) {
	return parseEnum(routeTypeNames, s, 8, "route type")
}

// ParseScope accepts a scope name or its numeric code.
func ParseScope(s string) (Scope, error) { return parseEnum(scopeNames, s, 8, "route scope") }

// ParseProtocol accepts a protocol name or its numeric code.
func ParseProtocol(s string) (Protocol, error) {
	return parseEnum(protocolNames, s, 8, "route protocol")
}

// TableNames returns the known table names, sorted.
func TableNames() []string { return enumNames(tableNames) }

// RouteTypeNames returns the known route type names, sorted.
func RouteTypeNames() []string { return enumNames(routeTypeNames) }

// ScopeNames returns the known scope names, sorted.
func ScopeNames() []string { return enumNames(scopeNames) }

// ProtocolNames returns the known protocol names, sorted.
func ProtocolNames() []string { return enumNames(protocolNames) }

type enum interface {
	~uint8 | ~uint16 | ~uint32
}

// enumString falls back to the decimal code for values without a name.
func enumString[E enum](names map[E]string, v E) string {
	if name, ok := names[v]; ok {
		return name
	}

	return strconv.FormatUint(uint64(v), 10)
}

func parseEnum[E enum](names map[E]string, s string, bitSize int, kind string) (E, error) {
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}

	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, malformedInput("unknown %s %q", kind, s)
	}

	return E(n), nil
}

func enumNames[E enum](names map[E]string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name)
	}

	slices.Sort(out)
	return out
}
