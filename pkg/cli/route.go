package cli

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/iputil"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
	"golang.org/x/sys/unix"
)

// showRoutes prints the routes selected by the filter words. Unless the only
// word is "all", the output is narrowed to what `ip route` shows.
func (r *Runner) showRoutes(words []string) error {
	filter := rtnl.NewRouteFilter()
	mainView := true

	if len(words) > 0 && words[0] == "all" {
		if len(words) > 1 {
			return fail(nil, `Expecting nothing after "all"`)
		}
		mainView = false
	} else if err := parseRouteFilter(filter, words); err != nil {
		return err
	}

	routes, err := r.client.Routes(filter)
	if err != nil {
		return err
	}

	for _, route := range routes {
		if !route.Printable() || (mainView && !rtnl.IsMainView(route)) {
			continue
		}

		r.printRoute(route)
	}

	return nil
}

func parseRouteFilter(filter *rtnl.RouteFilter, words []string) error {
	for i := 0; i < len(words); i += 2 {
		option := words[i]
		if i+1 >= len(words) {
			return fail(nil, "Option %q expected value!", option)
		}
		value := words[i+1]

		switch option {
		case "dest":
			dst, prefixLen, err := iputil.ParsePrefix(value)
			if err != nil {
				return fail(err, "Invalid format of destination address")
			}
			filter.Dst, filter.DstLen = dst, prefixLen
		case "gw":
			gw, err := iputil.ParseIPv4(value)
			if err != nil {
				return fail(err, "Invalid format of gateway address")
			}
			filter.Gateway = gw
		case "type":
			routeType, err := rtnl.ParseRouteType(value)
			if err != nil {
				return unknownValue(err, "type", rtnl.RouteTypeNames())
			}
			filter.Type = int(routeType)
		case "scope":
			scope, err := rtnl.ParseScope(value)
			if err != nil {
				return unknownValue(err, "scope", rtnl.ScopeNames())
			}
			filter.Scope = int(scope)
		case "proto":
			protocol, err := rtnl.ParseProtocol(value)
			if err != nil {
				return unknownValue(err, "protocol", rtnl.ProtocolNames())
			}
			filter.Protocol = int(protocol)
		case "table":
			table, err := rtnl.ParseTable(value)
			if err != nil {
				return unknownValue(err, "table", rtnl.TableNames())
			}
			filter.Table = int(table)
		default:
			return fail(nil, "Unknown option: %q", option)
		}
	}

	return nil
}

func unknownValue(err error, kind string, names []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Unknown route %s. Use numeric value or one of:\n", kind)
	for _, name := range names {
		fmt.Fprintf(&b, " * %s\n", name)
	}

	return fail(err, "%s", b.String())
}

func (r *Runner) getRoute(addr string) error {
	ip, err := iputil.ParseIPv4(addr)
	if err != nil {
		return fail(err, "Invalid address format")
	}

	route, err := r.client.Resolve(ip)
	if errors.Is(err, rtnl.ErrMalformedInput) {
		return fail(err, "Invalid address format")
	}
	if err != nil {
		return err
	}

	if route != nil {
		r.printRoute(*route)
	}

	return nil
}

func (r *Runner) manageRoute(dst, gw string, f func(net.IP, int, net.IP) error) error {
	dstIP, prefixLen, err := iputil.ParsePrefix(dst)
	if err != nil {
		return fail(err, "Invalid format of dest addr")
	}

	gwIP, err := iputil.ParseIPv4(gw)
	if err != nil {
		return fail(err, "Invalid gw addr")
	}

	return f(dstIP, prefixLen, gwIP)
}

// printRoute writes a route in `ip route` format, e.g.
// "10.1.0.0/16 via 192.168.1.254 dev eth0 proto static". The route must be
// printable.
func (r *Runner) printRoute(route rtnl.Route) {
	var b strings.Builder

	if route.Dst != nil {
		b.WriteString(route.Dst.String())
		if route.DstLen != 32 {
			fmt.Fprintf(&b, "/%d", route.DstLen)
		}
		if route.Gateway != nil {
			fmt.Fprintf(&b, " via %s", route.Gateway)
		}
	} else {
		fmt.Fprintf(&b, "default via %s", formatIP(route.Gateway))
	}

	dev, err := r.nameOf(route.OutIndex)
	if err != nil {
		dev = fmt.Sprintf("if%d", route.OutIndex)
	}
	fmt.Fprintf(&b, " dev %s proto %s", dev, route.Protocol)

	if route.Scope != unix.RT_SCOPE_UNIVERSE {
		fmt.Fprintf(&b, " scope %s", route.Scope)
	}

	if route.PrefSrc != nil {
		fmt.Fprintf(&b, " src %s", route.PrefSrc)
	}

	if route.LinkDown() {
		b.WriteString(" linkdown")
	}

	fmt.Fprintln(r.out, b.String())
}

// formatIP prints an absent address as 0.0.0.0.
func formatIP(ip net.IP) string {
	if ip == nil {
		return net.IPv4zero.String()
	}

	return ip.String()
}
