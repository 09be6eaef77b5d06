package rtnl

import (
	"log/slog"
	"net"

	"golang.org/x/sys/unix"
)

// Address is an IPv4 address bound to an interface.
type Address struct {
	Index     int
	IP        net.IP
	PrefixLen int
}

func (a Address) String() string {
	return (&net.IPNet{IP: a.IP, Mask: net.CIDRMask(a.PrefixLen, 32)}).String()
}

// Addresses returns the IPv4 addresses bound to the interface with the given
// index, or to every interface when index is negative. Results are ordered
// newest first relative to the kernel's dump order.
func (c *Client) Addresses(index int) ([]Address, error) {
	var addrs []Address
	req := ifAddrMsg{Family: unix.AF_INET}
	err := c.dump("list addresses", unix.RTM_GETADDR, unix.RTM_NEWADDR, req.marshal(), func(m Message) error {
		ifa, err := unmarshalIfAddrMsg(m.Data)
		if err != nil {
			return err
		}

		if ifa.Family != unix.AF_INET {
			return nil
		}

		if index >= 0 && int(ifa.Index) != index {
			return nil
		}

		for typ, value := range Attributes(m.Data[align(unix.SizeofIfAddrmsg):]) {
			if typ != unix.IFA_ADDRESS || len(value) != net.IPv4len {
				continue
			}

			addr := Address{
				Index:     int(ifa.Index),
				IP:        net.IPv4(value[0], value[1], value[2], value[3]).To4(),
				PrefixLen: int(ifa.PrefixLen),
			}
			slog.Debug("Decoded address", "index", addr.Index, "address", addr.String())
			addrs = append(addrs, addr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(addrs), nil
}

// AddAddress binds ip/prefixLen to an interface. The kernel rejects the request
// with EEXIST if the binding already exists.
func (c *Client) AddAddress(index int, ip net.IP, prefixLen int) error {
	return c.manageAddress("add address", unix.RTM_NEWADDR, unix.NLM_F_CREATE|unix.NLM_F_EXCL, index, ip, prefixLen)
}

// DeleteAddress removes the binding of ip/prefixLen from an interface.
func (c *Client) DeleteAddress(index int, ip net.IP, prefixLen int) error {
	return c.manageAddress("delete address", unix.RTM_DELADDR, 0, index, ip, prefixLen)
}

func (c *Client) manageAddress(operation string, msgType, flags uint16, index int, ip net.IP, prefixLen int) error {
	ip4 := ip.To4()
	if ip4 == nil {
		return malformedInput("%q is not an IPv4 address", ip.String())
	}

	if prefixLen < 0 || prefixLen > 32 {
		return malformedInput("prefix length %d is outside [0, 32]", prefixLen)
	}

	ifa := ifAddrMsg{
		Family:    unix.AF_INET,
		PrefixLen: uint8(prefixLen),
		Scope:     unix.RT_SCOPE_UNIVERSE,
		Index:     uint32(index),
	}

	return c.execute(operation, msgType, flags, ifa.marshal(), Attribute{Type: unix.IFA_LOCAL, Data: ip4})
}
