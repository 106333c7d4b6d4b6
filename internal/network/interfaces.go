// Package network carries datagrams between HID clients and the relay.
package network

import (
	"net"
	"strconv"
)

// LocalIPv4s returns the IPv4 addresses of all up, non-loopback interfaces.
func LocalIPv4s() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip = ip.To4(); ip != nil {
				ips = append(ips, ip.String())
			}
		}
	}
	return ips, nil
}

// ReachableAddrs lists the addresses clients can send to for a receiver
// bound at addr. A wildcard bind expands to every local IPv4 address.
func ReachableAddrs(addr net.Addr) []string {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}
	if !udpAddr.IP.IsUnspecified() && udpAddr.IP != nil {
		return []string{udpAddr.String()}
	}

	port := strconv.Itoa(udpAddr.Port)
	out := []string{net.JoinHostPort("127.0.0.1", port)}
	ips, err := LocalIPv4s()
	if err != nil {
		return out
	}
	for _, ip := range ips {
		out = append(out, net.JoinHostPort(ip, port))
	}
	return out
}
