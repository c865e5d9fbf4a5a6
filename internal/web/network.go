package web

import (
	"net"
	"sort"
)

// NetworkInterface is an IPv4 address on an up, non-loopback interface
// together with its directed broadcast address, a candidate for
// xgps.broadcast when the limited broadcast does not leave the host.
type NetworkInterface struct {
	Name      string `json:"name"`
	Addr      string `json:"addr"`
	Broadcast string `json:"broadcast,omitempty"`
}

func localInterfaces() []NetworkInterface {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]NetworkInterface, 0, 4)
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ni, ok := interfaceAddr(iface.Name, ipnet)
			if ok {
				out = append(out, ni)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

func interfaceAddr(name string, ipnet *net.IPNet) (NetworkInterface, bool) {
	ip4 := ipnet.IP.To4()
	if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
		return NetworkInterface{}, false
	}
	ni := NetworkInterface{Name: name, Addr: ipnet.String()}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) == net.IPv4len {
		b := make(net.IP, net.IPv4len)
		for i := range b {
			b[i] = ip4[i] | ^mask[i]
		}
		ni.Broadcast = b.String()
	}
	return ni, true
}
