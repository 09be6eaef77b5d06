// Package cli implements the ip(8)-style command grammar on top of an rtnl client.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
)

// ErrUsage is returned when the arguments do not form a known command.
var ErrUsage = errors.New("unknown command")

// Client is the subset of rtnl.Client methods used by the commands.
type Client interface {
	IndexOf(name string) (int, error)
	NameOf(index int) (string, error)
	Links(index int) ([]rtnl.Interface, error)
	SetLinkState(index int, up bool) error
	SetHardwareAddr(index int, addr net.HardwareAddr) error

	Addresses(index int) ([]rtnl.Address, error)
	AddAddress(index int, ip net.IP, prefixLen int) error
	DeleteAddress(index int, ip net.IP, prefixLen int) error

	Routes(filter *rtnl.RouteFilter) ([]rtnl.Route, error)
	Resolve(addr net.IP) (*rtnl.Route, error)
	AddRoute(dst net.IP, prefixLen int, gateway net.IP) error
	DeleteRoute(dst net.IP, prefixLen int, gateway net.IP) error
}

var _ Client = (*rtnl.Client)(nil)

// Runner executes one command per call and writes its output to out.
type Runner struct {
	client Client
	out    io.Writer
	names  map[int]string
}

// New creates a runner that writes command output to out.
func New(client Client, out io.Writer) *Runner {
	return &Runner{
		client: client,
		out:    out,
		names:  make(map[int]string),
	}
}

// failure is an error whose message is shown to the user as is.
type failure struct {
	msg string
	err error
}

func (f *failure) Error() string {
	if f.err == nil {
		return f.msg
	}

	return fmt.Sprintf("%s: %v", f.msg, f.err)
}

func (f *failure) Unwrap() error {
	return f.err
}

func fail(err error, format string, args ...any) error {
	return &failure{msg: fmt.Sprintf(format, args...), err: err}
}

// Execute runs a command and reports its outcome: the help text for unknown
// commands, otherwise "Done" or "Failed". The process exit code is returned.
func (r *Runner) Execute(args []string) int {
	err := r.Run(args)
	if errors.Is(err, ErrUsage) {
		PrintHelp(r.out)
		return 1
	}

	if err != nil {
		var f *failure
		if errors.As(err, &f) {
			fmt.Fprintln(r.out, f.msg)
		}
		slog.Error("Command failed", "command", strings.Join(args, " "), "error", err)

		fmt.Fprintln(r.out, "Failed")
		return 1
	}

	fmt.Fprintln(r.out, "Done")
	return 0
}

// Run dispatches args, starting with the object word, to a command.
func (r *Runner) Run(args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	object, words := args[0], args[1:]
	switch object {
	case "link":
		return r.link(words)
	case "addr":
		return r.addr(words)
	case "route":
		return r.route(words)
	}

	return ErrUsage
}

func (r *Runner) link(words []string) error {
	switch {
	case len(words) == 0:
		return r.showLinks("")
	case words[0] == "show" && len(words) <= 2:
		return r.showLinks(wordAt(words, 1))
	case words[0] == "set" && len(words) == 3 && words[2] == "up":
		return r.setLinkState(words[1], true)
	case words[0] == "set" && len(words) == 3 && words[2] == "down":
		return r.setLinkState(words[1], false)
	case words[0] == "set" && len(words) == 4 && words[2] == "addr":
		return r.setHardwareAddr(words[1], words[3])
	}

	return ErrUsage
}

func (r *Runner) addr(words []string) error {
	switch {
	case len(words) == 0:
		return r.showAddresses("")
	case words[0] == "show" && len(words) <= 2:
		return r.showAddresses(wordAt(words, 1))
	case words[0] == "add" && len(words) == 3:
		return r.manageAddress(words[1], words[2], r.client.AddAddress)
	case words[0] == "del" && len(words) == 3:
		return r.manageAddress(words[1], words[2], r.client.DeleteAddress)
	}

	return ErrUsage
}

func (r *Runner) route(words []string) error {
	switch {
	case len(words) == 0:
		return r.showRoutes(nil)
	case words[0] == "show":
		return r.showRoutes(words[1:])
	case words[0] == "get" && len(words) == 2:
		return r.getRoute(words[1])
	case words[0] == "add" && len(words) == 4 && words[2] == "via":
		return r.manageRoute(words[1], words[3], r.client.AddRoute)
	case words[0] == "del" && len(words) == 4 && words[2] == "via":
		return r.manageRoute(words[1], words[3], r.client.DeleteRoute)
	}

	return ErrUsage
}

// indexOf resolves an interface name, reporting a failed lookup to the user.
func (r *Runner) indexOf(name string) (int, error) {
	index, err := r.client.IndexOf(name)
	if err != nil {
		return 0, fail(err, "Failed to determine index of %q iface", name)
	}

	r.names[index] = name
	return index, nil
}

// nameOf resolves an interface index, remembering earlier answers so a long
// listing costs one dump per distinct interface.
func (r *Runner) nameOf(index int) (string, error) {
	if name, ok := r.names[index]; ok {
		return name, nil
	}

	name, err := r.client.NameOf(index)
	if err != nil {
		return "", err
	}

	r.names[index] = name
	return name, nil
}

func wordAt(words []string, i int) string {
	if i < len(words) {
		return words[i]
	}

	return ""
}

// PrintHelp writes the command summary.
func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `
Usage: nlroute [OPTIONS] OBJECT CMD [CMD_OPTIONS]
Options: -d -- log level info, -d2 -- debug, -h -- help
         -log-level LEVEL, -netns NAME, -timeout DURATION, -metrics-file PATH
$ nlroute link [show [IFACE]]
$ nlroute link set IFACE up|down
$ nlroute link set IFACE addr hh:hh:hh:hh:hh:hh
$ nlroute addr [show [IFACE]]
$ nlroute addr add|del IFACE ADDR/BITS
$ nlroute route [show [dest ADDR/BITS] [proto PROTO] [type TYPE] [scope SCOPE] [table TABLE] [gw ADDR]]
$ nlroute route show all
$ nlroute route get ADDR
$ nlroute route add|del DEST/BITS via GW
`)
}
