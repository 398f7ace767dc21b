package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

func toSockaddr(addr *net.TCPAddr) (domain int, sa unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		inet4 := &unix.SockaddrInet4{Port: addr.Port}
		copy(inet4.Addr[:], ip4)

		return unix.AF_INET, inet4
	}

	inet6 := &unix.SockaddrInet6{Port: addr.Port}
	copy(inet6.Addr[:], addr.IP.To16())

	return unix.AF_INET6, inet6
}

func fromSockaddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3]), Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])

		return &net.TCPAddr{IP: ip, Port: v.Port}
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: v.Name, Net: "unix"}
	default:
		return nil
	}
}
