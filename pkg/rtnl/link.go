package rtnl

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// MTUUnknown is reported when the kernel did not include an MTU for a link.
const MTUUnknown = -1

// LinkStats holds the traffic counters of an interface.
type LinkStats struct {
	TxBytes   uint64
	TxPackets uint64
	RxBytes   uint64
	RxPackets uint64
}

// Interface describes a network interface as reported by the kernel.
type Interface struct {
	Index        int
	Name         string
	Type         LinkType
	HardwareAddr net.HardwareAddr
	MTU          int
	Up           bool
	Carrier      bool
	Stats        LinkStats
}

// IndexOf returns the index of the interface called name. The comparison is
// case-sensitive. ErrNotFound is returned when no interface matches.
func (c *Client) IndexOf(name string) (int, error) {
	index := -1
	err := c.dump("look up link index", unix.RTM_GETLINK, unix.RTM_NEWLINK, ifInfoMsg{}.marshal(), func(m Message) error {
		if index >= 0 {
			return nil
		}

		ifi, err := unmarshalIfInfoMsg(m.Data)
		if err != nil {
			return err
		}

		for typ, value := range Attributes(m.Data[align(unix.SizeofIfInfomsg):]) {
			if typ != unix.IFLA_IFNAME {
				continue
			}

			linkName := cString(value)
			slog.Debug("Decoded link name", "name", linkName, "index", ifi.Index)
			if linkName == name {
				index = int(ifi.Index)
			}
			break
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if index < 0 {
		return 0, fmt.Errorf("interface %q: %w", name, ErrNotFound)
	}

	return index, nil
}

// NameOf returns the name of the interface with the given index. ErrNotFound is
// returned when no interface has that index.
func (c *Client) NameOf(index int) (string, error) {
	var name string
	found := false
	err := c.dump("look up link name", unix.RTM_GETLINK, unix.RTM_NEWLINK, ifInfoMsg{Index: int32(index)}.marshal(), func(m Message) error {
		if found {
			return nil
		}

		ifi, err := unmarshalIfInfoMsg(m.Data)
		if err != nil {
			return err
		}

		if int(ifi.Index) != index {
			return nil
		}

		for typ, value := range Attributes(m.Data[align(unix.SizeofIfInfomsg):]) {
			if typ == unix.IFLA_IFNAME {
				name = cString(value)
				found = true
				break
			}
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if !found {
		return "", fmt.Errorf("interface index %d: %w", index, ErrNotFound)
	}

	return name, nil
}

// Links returns the interface with the given index, or every interface when
// index is negative. Results are ordered newest first relative to the kernel's
// dump order.
func (c *Client) Links(index int) ([]Interface, error) {
	var links []Interface
	err := c.dump("list links", unix.RTM_GETLINK, unix.RTM_NEWLINK, ifInfoMsg{}.marshal(), func(m Message) error {
		iface, err := decodeLink(m)
		if err != nil {
			return err
		}

		if index >= 0 && iface.Index != index {
			return nil
		}

		links = append(links, iface)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(links), nil
}

func decodeLink(m Message) (Interface, error) {
	ifi, err := unmarshalIfInfoMsg(m.Data)
	if err != nil {
		return Interface{}, err
	}

	iface := Interface{
		Index:   int(ifi.Index),
		Type:    LinkType(ifi.Type),
		MTU:     MTUUnknown,
		Up:      ifi.Flags&unix.IFF_UP != 0,
		Carrier: ifi.Flags&unix.IFF_LOWER_UP != 0,
	}

	native := nl.NativeEndian()
	haveStats64 := false
	for typ, value := range Attributes(m.Data[align(unix.SizeofIfInfomsg):]) {
		switch typ {
		case unix.IFLA_IFNAME:
			iface.Name = cString(value)
		case unix.IFLA_MTU:
			if len(value) >= 4 {
				iface.MTU = int(native.Uint32(value))
			}
		case unix.IFLA_ADDRESS:
			iface.HardwareAddr = bytes.Clone(value)
		case unix.IFLA_STATS64:
			// struct rtnl_link_stats64 starts with rx_packets, tx_packets, rx_bytes, tx_bytes.
			if len(value) >= 32 {
				iface.Stats = LinkStats{
					RxPackets: native.Uint64(value[0:]),
					TxPackets: native.Uint64(value[8:]),
					RxBytes:   native.Uint64(value[16:]),
					TxBytes:   native.Uint64(value[24:]),
				}
				haveStats64 = true
			}
		case unix.IFLA_STATS:
			if len(value) >= 16 && !haveStats64 {
				iface.Stats = LinkStats{
					RxPackets: uint64(native.Uint32(value[0:])),
					TxPackets: uint64(native.Uint32(value[4:])),
					RxBytes:   uint64(native.Uint32(value[8:])),
					TxBytes:   uint64(native.Uint32(value[12:])),
				}
			}
		}
	}

	return iface, nil
}

// SetLinkState brings an interface administratively up or down. The change
// mask covers every flag, so the interface is left with IFF_UP or no flags set.
func (c *Client) SetLinkState(index int, up bool) error {
	ifi := ifInfoMsg{
		Family: unix.AF_UNSPEC,
		Index:  int32(index),
		Change: 0xffffffff,
	}
	if up {
		ifi.Flags = unix.IFF_UP
	}

	return c.execute("set link state", unix.RTM_NEWLINK, 0, ifi.marshal())
}

// SetHardwareAddr changes the hardware address of an interface. Only 6 byte
// addresses are accepted.
func (c *Client) SetHardwareAddr(index int, addr net.HardwareAddr) error {
	if len(addr) != 6 {
		return malformedInput("hardware address %q must be 6 bytes", addr.String())
	}

	ifi := ifInfoMsg{
		Family: unix.AF_UNSPEC,
		Index:  int32(index),
	}

	return c.execute("set link address", unix.RTM_NEWLINK, 0, ifi.marshal(), Attribute{Type: unix.IFLA_ADDRESS, Data: addr})
}

// cString returns the string stored in a NUL terminated attribute value.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
