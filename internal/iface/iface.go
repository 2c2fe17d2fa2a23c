// Package iface is the interface discovery collaborator described in
// spec.md §6: it enumerates host network interfaces and hands the MTP core
// two filtered views — the compute interface (leaf only) and the set of
// control interfaces. It is grounded on setComputeInterfaces/
// setControlInterfaces in original_source/closnet/protocols/mtp/src/config.c,
// reimplemented against the standard net package the way meshage leans on
// net.Interfaces-style host introspection instead of a third-party netlink
// client (none appears anywhere in the example pack for this concern).
package iface

import (
	"fmt"
	"net"
	"strings"
)

// ControlPort describes one MTP-speaking interface discovered on the host.
type ControlPort struct {
	Name string
	MAC  net.HardwareAddr
}

// ComputePort describes the single IPv4-speaking interface on a leaf.
type ComputePort struct {
	Name string
	MAC  net.HardwareAddr
	IPv4 net.IP
}

// Discover enumerates the host's network interfaces and returns the
// control ports and, for a leaf, the compute port. nodeName filters
// interfaces to those named "<nodeName>-ethN", matching Mininet's naming
// convention used throughout the original implementation and tests.
func Discover(nodeName string, isLeaf bool) (compute *ComputePort, controls []ControlPort, err error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	prefix := nodeName + "-eth"

	for _, ifc := range ifs {
		if !strings.HasPrefix(ifc.Name, prefix) {
			continue
		}
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}

		if isLeaf && compute == nil {
			if ip := firstIPv4(ifc); ip != nil {
				compute = &ComputePort{Name: ifc.Name, MAC: ifc.HardwareAddr, IPv4: ip}
				continue
			}
		}
	}

	for _, ifc := range ifs {
		if !strings.HasPrefix(ifc.Name, prefix) {
			continue
		}
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		if isLeaf && compute != nil && ifc.Name == compute.Name {
			continue
		}

		controls = append(controls, ControlPort{Name: ifc.Name, MAC: ifc.HardwareAddr})
	}

	if isLeaf && compute == nil {
		return nil, nil, fmt.Errorf("no compute interface found for leaf node %q", nodeName)
	}

	return compute, controls, nil
}

func firstIPv4(ifc net.Interface) net.IP {
	addrs, err := ifc.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// LinkUpSet queries the OS for the current set of link-layer-up interface
// names whose name begins with nodeName, used by the liveness probe in
// spec.md §4.4 to detect DetectFail/recovery independent of keep-alives.
func LinkUpSet(nodeName string) (map[string]bool, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	up := make(map[string]bool)
	prefix := nodeName + "-eth"
	for _, ifc := range ifs {
		if !strings.HasPrefix(ifc.Name, prefix) {
			continue
		}
		if ifc.Flags&net.FlagUp != 0 {
			up[ifc.Name] = true
		}
	}
	return up, nil
}

// PortNumber extracts N from an interface name of the form
// "<node_name>-ethN", per spec.md §3 PortId.
func PortNumber(name string) (int, error) {
	idx := strings.LastIndex(name, "-eth")
	if idx < 0 {
		return 0, fmt.Errorf("malformed port name %q", name)
	}
	suffix := name[idx+len("-eth"):]
	var n int
	if _, err := fmt.Sscanf(suffix, "%d", &n); err != nil {
		return 0, fmt.Errorf("malformed port number in %q: %w", name, err)
	}
	return n, nil
}
