// Package netconf implements the network/DNS/route external collaborators
// named in spec.md §1 and wired through SETUPINTERFACE/SETUPROUTE (§4.G) and
// STARTPOD's network step (§4.F step 2). It generalises the teacher's
// hard-coded eth0/gvproxy assumptions (internal/harness/mount_linux.go's
// setupNetwork) into host-specified interface/CIDR/gateway/DNS parameters,
// and replaces its hand-rolled AF_NETLINK syscalls with vishvananda/netlink.
package netconf

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// InterfaceSpec is the decoded SETUPINTERFACE body.
type InterfaceSpec struct {
	Device  string   `json:"device"`
	IPAddr  string   `json:"ipAddress"`
	NetMask string   `json:"netMask"`
	DNS     []string `json:"dns,omitempty"`
}

// RouteSpec is one decoded SETUPROUTE entry.
type RouteSpec struct {
	Dest    string `json:"dest,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	Device  string `json:"device,omitempty"`
}

// PodNetworkSpec is the network portion of STARTPOD.
type PodNetworkSpec struct {
	Interfaces []InterfaceSpec `json:"interfaces,omitempty"`
	Routes     []RouteSpec     `json:"routes,omitempty"`
	DNS        []string        `json:"dns,omitempty"`
}

// Manager implements hyper.NetworkSetup.
type Manager struct{}

func New() *Manager { return &Manager{} }

func (m *Manager) ConfigurePod(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var spec PodNetworkSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("netconf: decode pod network spec: %w", err)
	}
	for _, ifc := range spec.Interfaces {
		if err := applyInterface(ifc); err != nil {
			return err
		}
	}
	for _, r := range spec.Routes {
		if err := applyRoute(r); err != nil {
			return err
		}
	}
	if len(spec.DNS) > 0 {
		return WriteResolvConf(spec.DNS)
	}
	return nil
}

func (m *Manager) SetupInterface(raw []byte) error {
	var ifc InterfaceSpec
	if err := json.Unmarshal(raw, &ifc); err != nil {
		return fmt.Errorf("netconf: decode interface spec: %w", err)
	}
	if err := applyInterface(ifc); err != nil {
		return err
	}
	if len(ifc.DNS) > 0 {
		return WriteResolvConf(ifc.DNS)
	}
	return nil
}

func (m *Manager) SetupRoute(raw []byte) error {
	var r RouteSpec
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("netconf: decode route spec: %w", err)
	}
	return applyRoute(r)
}

func applyInterface(ifc InterfaceSpec) error {
	link, err := netlink.LinkByName(ifc.Device)
	if err != nil {
		return fmt.Errorf("netconf: link %q: %w", ifc.Device, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("netconf: link up %q: %w", ifc.Device, err)
	}

	mask := net.CIDRMask(maskBits(ifc.NetMask), 32)
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: net.ParseIP(ifc.IPAddr), Mask: mask}}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("netconf: add addr %s/%s to %q: %w", ifc.IPAddr, ifc.NetMask, ifc.Device, err)
	}
	return nil
}

func applyRoute(r RouteSpec) error {
	var link netlink.Link
	var err error
	if r.Device != "" {
		link, err = netlink.LinkByName(r.Device)
		if err != nil {
			return fmt.Errorf("netconf: route link %q: %w", r.Device, err)
		}
	}

	route := &netlink.Route{}
	if link != nil {
		route.LinkIndex = link.Attrs().Index
	}
	if r.Gateway != "" {
		route.Gw = net.ParseIP(r.Gateway)
	}
	if r.Dest != "" {
		_, dst, err := net.ParseCIDR(r.Dest)
		if err != nil {
			return fmt.Errorf("netconf: route dest %q: %w", r.Dest, err)
		}
		route.Dst = dst
	}
	if err := netlink.RouteAdd(route); err != nil {
		return fmt.Errorf("netconf: add route %+v: %w", r, err)
	}
	return nil
}

// maskBits converts a dotted netmask to CIDR prefix bits; falls back to /24
// on parse failure rather than failing STARTPOD outright for a cosmetic
// default.
func maskBits(dotted string) int {
	ip := net.ParseIP(dotted)
	if ip == nil {
		return 24
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 24
	}
	mask := net.IPMask(ip4)
	bits, _ := mask.Size()
	return bits
}
