package cli

import (
	"fmt"
	"net"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/iputil"
)

func (r *Runner) showLinks(name string) error {
	index := -1
	if name != "" {
		var err error
		if index, err = r.indexOf(name); err != nil {
			return err
		}
	}

	links, err := r.client.Links(index)
	if err != nil {
		return err
	}

	for _, link := range links {
		state := "Down"
		if link.Up {
			state = "Up"
		}

		carrier := "No"
		if link.Carrier {
			carrier = "Yes"
		}

		fmt.Fprintf(r.out, "\niface %s\n"+
			"         idx: %d\n"+
			"        type: %s\n"+
			"         mtu: %d\n"+
			"       state: %s\n"+
			"     carrier: %s\n"+
			"        addr: %s\n"+
			"    tx_bytes: %d\n"+
			"  tx_packets: %d\n"+
			"    rx_bytes: %d\n"+
			"  rx_packets: %d\n",
			link.Name, link.Index, link.Type, link.MTU, state, carrier, formatHardwareAddr(link.HardwareAddr),
			link.Stats.TxBytes, link.Stats.TxPackets, link.Stats.RxBytes, link.Stats.RxPackets,
		)
	}

	return nil
}

func formatHardwareAddr(addr net.HardwareAddr) string {
	if len(addr) == 0 {
		return "00:00:00:00:00:00"
	}

	return addr.String()
}

func (r *Runner) setLinkState(name string, up bool) error {
	index, err := r.indexOf(name)
	if err != nil {
		return err
	}

	return r.client.SetLinkState(index, up)
}

func (r *Runner) setHardwareAddr(name, addr string) error {
	index, err := r.indexOf(name)
	if err != nil {
		return err
	}

	hwAddr, err := iputil.ParseHardwareAddr(addr)
	if err != nil {
		return fail(err, "Invalid format of MAC addr")
	}

	return r.client.SetHardwareAddr(index, hwAddr)
}
