package e2e

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/nlsock"
	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("The rtnl client", Ordered, func() {
	var (
		client *rtnl.Client
		index  int
	)

	BeforeAll(func() {
		session, err := nlsock.Open(nlsock.WithNamespace(testNetNSName), nlsock.WithReceiveTimeout(2*time.Second))
		Expect(err).NotTo(HaveOccurred(), "Failed to open netlink session in test network namespace")

		client = rtnl.NewClient(session, nil)
		DeferCleanup(func() {
			Expect(client.Close()).To(Succeed(), "Failed to close netlink session")
		})

		index = testLink().Attrs().Index
	})

	It("should look up interfaces by name and index", func() {
		Expect(client.IndexOf(testLinkName)).To(Equal(index))
		Expect(client.NameOf(index)).To(Equal(testLinkName))
		Expect(client.IndexOf("lo")).To(Equal(1))

		_, err := client.IndexOf("nonexistent0")
		Expect(err).To(MatchError(rtnl.ErrNotFound))
	})

	It("should list interfaces", func() {
		links, err := client.Links(-1)
		Expect(err).NotTo(HaveOccurred(), "Failed to list links")

		names := make([]string, 0, len(links))
		for _, link := range links {
			names = append(names, link.Name)
		}
		Expect(names).To(ContainElements("lo", testLinkName))

		links, err = client.Links(index)
		Expect(err).NotTo(HaveOccurred(), "Failed to list dummy link")
		Expect(links).To(HaveLen(1))

		attrs := testLink().Attrs()
		Expect(links[0].Name).To(Equal(attrs.Name))
		Expect(links[0].MTU).To(Equal(attrs.MTU))
		Expect(links[0].HardwareAddr).To(Equal(attrs.HardwareAddr))
		Expect(links[0].Type).To(Equal(rtnl.LinkType(unix.ARPHRD_ETHER)))
	})

	It("should change the link state", func() {
		Expect(client.SetLinkState(index, false)).To(Succeed())
		Expect(testLink().Attrs().Flags & net.FlagUp).To(BeZero())

		Expect(client.SetLinkState(index, true)).To(Succeed())
		Expect(testLink().Attrs().Flags & net.FlagUp).NotTo(BeZero())

		links, err := client.Links(index)
		Expect(err).NotTo(HaveOccurred(), "Failed to list dummy link")
		Expect(links).To(HaveLen(1))
		Expect(links[0].Up).To(BeTrue())
	})

	It("should change the hardware address", func() {
		addr, err := net.ParseMAC("02:00:5e:10:00:01")
		Expect(err).NotTo(HaveOccurred(), "Failed to parse MAC address (test bug)")

		Expect(client.SetHardwareAddr(index, addr)).To(Succeed())
		Expect(testLink().Attrs().HardwareAddr).To(Equal(addr))
	})

	It("should add, list and delete addresses", func() {
		ip := net.IPv4(10, 20, 0, 1).To4()
		Expect(client.AddAddress(index, ip, 24)).To(Succeed())
		Expect(client.AddAddress(index, ip, 24)).To(MatchError(unix.EEXIST))

		addrs, err := testHandle.AddrList(testLink(), netlink.FAMILY_V4)
		Expect(err).NotTo(HaveOccurred(), "Failed to list addresses with netlink")
		Expect(addrs).To(ContainElement(WithTransform(func(a netlink.Addr) string { return a.IPNet.String() }, Equal("10.20.0.1/24"))))

		listed, err := client.Addresses(index)
		Expect(err).NotTo(HaveOccurred(), "Failed to list addresses")
		Expect(listed).To(ContainElement(rtnl.Address{Index: index, IP: ip, PrefixLen: 24}))
	})

	It("should add, resolve and delete routes", func() {
		dst := net.IPv4(10, 30, 0, 0).To4()
		gw := net.IPv4(10, 20, 0, 254).To4()
		Expect(client.AddRoute(dst, 16, gw)).To(Succeed())

		routes, err := testHandle.RouteList(testLink(), netlink.FAMILY_V4)
		Expect(err).NotTo(HaveOccurred(), "Failed to list routes with netlink")
		Expect(routes).To(ContainElement(WithTransform(func(r netlink.Route) string {
			return fmt.Sprintf("%s via %s", r.Dst, r.Gw)
		}, Equal("10.30.0.0/16 via 10.20.0.254"))))

		By("Resolving an address covered by the new route")
		route, err := client.Resolve(net.IPv4(10, 30, 1, 2))
		Expect(err).NotTo(HaveOccurred(), "Failed to resolve route")
		Expect(route).NotTo(BeNil())
		Expect(route.Dst.String()).To(Equal("10.30.0.0"))
		Expect(route.DstLen).To(Equal(16))
		Expect(route.Gateway.String()).To(Equal("10.20.0.254"))
		Expect(route.OutIndex).To(Equal(index))

		By("Resolving an address covered by the address prefix route")
		route, err = client.Resolve(net.IPv4(10, 20, 0, 9))
		Expect(err).NotTo(HaveOccurred(), "Failed to resolve route")
		Expect(route).NotTo(BeNil())
		Expect(route.DstLen).To(Equal(24))
		Expect(route.Protocol).To(Equal(rtnl.Protocol(unix.RTPROT_KERNEL)))

		By("Resolving an address that no route covers")
		Expect(client.Resolve(net.IPv4(8, 8, 8, 8))).To(BeNil())

		By("Filtering the route dump")
		filter := rtnl.NewRouteFilter()
		filter.Protocol = unix.RTPROT_BOOT
		filter.OutIndex = index
		filtered, err := client.Routes(filter)
		Expect(err).NotTo(HaveOccurred(), "Failed to list routes")
		Expect(filtered).To(HaveLen(1))
		Expect(filtered[0].DstLen).To(Equal(16))

		By("Deleting the route")
		Expect(client.DeleteRoute(dst, 16, gw)).To(Succeed())
		Expect(client.DeleteRoute(dst, 16, gw)).To(MatchError(unix.ESRCH))
		Expect(client.Resolve(net.IPv4(10, 30, 1, 2))).To(BeNil())
	})

	It("should delete addresses", func() {
		ip := net.IPv4(10, 20, 0, 1).To4()
		Expect(client.DeleteAddress(index, ip, 24)).To(Succeed())

		listed, err := client.Addresses(index)
		Expect(err).NotTo(HaveOccurred(), "Failed to list addresses")
		Expect(listed).NotTo(ContainElement(rtnl.Address{Index: index, IP: ip, PrefixLen: 24}))
	})
})

var _ = Describe("The built binary", Ordered, func() {
	It("should show the help message", func() {
		helpText, err := Run(exec.Command(binaryPath, "-h"))
		Expect(err).NotTo(HaveOccurred(), "Failed to run binary")
		Expect(helpText).To(ContainSubstring("Usage: nlroute"), "Help text should contain usage information")
	})

	It("should show a single interface", func() {
		output, err := runBinary("link", "show", testLinkName)
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("iface " + testLinkName))
		Expect(output).To(ContainSubstring(fmt.Sprintf("idx: %d", testLink().Attrs().Index)))
		Expect(output).To(HaveSuffix("Done\n"))
	})

	It("should report unknown interfaces", func() {
		output, err := runBinary("link", "show", "nonexistent0")
		Expect(err).To(HaveOccurred(), "Binary should exit non-zero")
		Expect(output).To(ContainSubstring(`Failed to determine index of "nonexistent0" iface`))
		Expect(output).To(ContainSubstring("Failed"))
	})

	It("should manage addresses and routes", func() {
		expectDone := func(args ...string) {
			GinkgoHelper()
			output, err := runBinary(args...)
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(HaveSuffix("Done\n"))
		}

		expectDone("link", "set", testLinkName, "up")
		expectDone("addr", "add", testLinkName, "10.40.0.1/24")
		DeferCleanup(func() { expectDone("addr", "del", testLinkName, "10.40.0.1/24") })

		output, err := runBinary("addr", "show", testLinkName)
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(testLinkName + " 10.40.0.1/24\n"))

		expectDone("route", "add", "10.50.0.0/16", "via", "10.40.0.254")
		DeferCleanup(func() { expectDone("route", "del", "10.50.0.0/16", "via", "10.40.0.254") })

		expectedRoute := fmt.Sprintf("10.50.0.0/16 via 10.40.0.254 dev %s proto boot\n", testLinkName)

		output, err = runBinary("route", "get", "10.50.3.4")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(expectedRoute))

		output, err = runBinary("route", "show", "proto", "boot")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring(expectedRoute))
	})

	It("should write a metrics file", func() {
		metricsFile := filepath.Join(GinkgoT().TempDir(), "nlroute.prom")
		output, err := Run(exec.Command(binaryPath, "-netns", testNetNSName, "-metrics-file", metricsFile, "link"))
		Expect(err).NotTo(HaveOccurred(), "Failed to run binary: %s", output)

		contents, err := os.ReadFile(metricsFile)
		Expect(err).NotTo(HaveOccurred(), "Failed to read metrics file")
		Expect(string(contents)).To(ContainSubstring(`nlroute_requests_total{operation="list links",status="success"} 1`))
	})
})

// runBinary runs the built binary against the test network namespace.
func runBinary(args ...string) (string, error) {
	return Run(exec.Command(binaryPath, append([]string{"-netns", testNetNSName}, args...)...))
}
