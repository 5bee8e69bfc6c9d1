//go:build linux

package tproxy

import (
	"encoding/binary"
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// IsSupported reports whether OriginalDst works on this platform.
const IsSupported = true

// From linux/netfilter_ipv4.h and linux/netfilter_ipv6/ip6_tables.h.
const (
	soOriginalDst     = 80
	ip6tSOOriginalDst = 80
)

// OriginalDst returns the destination c was addressed to before the
// firewall redirected it. The lookup matching the local address family is
// tried first.
func OriginalDst(c net.Conn) (*net.TCPAddr, error) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a TCP connection", ErrOriginalDst, c)
	}
	rc, err := tc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOriginalDst, err)
	}

	lookups := [2]func(int) (*net.TCPAddr, error){originalDst4, originalDst6}
	if la, ok := tc.LocalAddr().(*net.TCPAddr); ok && la.IP.To4() == nil {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	var (
		dst       *net.TCPAddr
		lookupErr error
	)
	if err := rc.Control(func(fd uintptr) {
		for _, lookup := range lookups {
			if dst, lookupErr = lookup(int(fd)); lookupErr == nil {
				return
			}
		}
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOriginalDst, err)
	}
	if lookupErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrOriginalDst, lookupErr)
	}
	return dst, nil
}

// originalDst4 reads a sockaddr_in. IPv6Mreq is just a buffer big enough
// to hold one: family, big-endian port, then the address.
func originalDst4(fd int) (*net.TCPAddr, error) {
	mreq, err := unix.GetsockoptIPv6Mreq(fd, unix.SOL_IP, soOriginalDst)
	if err != nil {
		return nil, fmt.Errorf("SO_ORIGINAL_DST: %w", err)
	}
	raw := mreq.Multiaddr
	return &net.TCPAddr{
		IP:   net.IPv4(raw[4], raw[5], raw[6], raw[7]),
		Port: int(binary.BigEndian.Uint16(raw[2:4])),
	}, nil
}

// originalDst6 reads a sockaddr_in6. IPv6MTUInfo starts with one.
func originalDst6(fd int) (*net.TCPAddr, error) {
	info, err := unix.GetsockoptIPv6MTUInfo(fd, unix.SOL_IPV6, ip6tSOOriginalDst)
	if err != nil {
		return nil, fmt.Errorf("IP6T_SO_ORIGINAL_DST: %w", err)
	}
	// Port is stored in network byte order.
	port := (*[2]byte)(unsafe.Pointer(&info.Addr.Port))
	ip := make(net.IP, net.IPv6len)
	copy(ip, info.Addr.Addr[:])
	return &net.TCPAddr{
		IP:   ip,
		Port: int(binary.BigEndian.Uint16(port[:])),
	}, nil
}
