package cli

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/iputil"
)

func (r *Runner) showAddresses(name string) error {
	index := -1
	if name != "" {
		var err error
		if index, err = r.indexOf(name); err != nil {
			return err
		}
	}

	addrs, err := r.client.Addresses(index)
	if err != nil {
		return err
	}

	for _, addr := range addrs {
		ifaceName, err := r.nameOf(addr.Index)
		if err != nil {
			slog.Debug("Failed to look up interface name", "index", addr.Index, "error", err)
			fmt.Fprintf(r.out, "Failed to determine name of iface #%d\n", addr.Index)
			continue
		}

		fmt.Fprintf(r.out, "%s %s\n", ifaceName, addr)
	}

	return nil
}

func (r *Runner) manageAddress(name, addr string, f func(int, net.IP, int) error) error {
	index, err := r.indexOf(name)
	if err != nil {
		return err
	}

	ip, prefixLen, err := iputil.ParsePrefix(addr)
	if err != nil {
		return fail(err, "Invalid address format")
	}

	return f(index, ip, prefixLen)
}
