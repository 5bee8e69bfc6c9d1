package tproxy

import (
	"errors"
	"net"
	"testing"
)

func TestCheckLoop(t *testing.T) {
	t.Parallel()

	local := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1080}
	tests := []struct {
		name  string
		local net.Addr
		dst   *net.TCPAddr
		want  bool
	}{
		{name: "same address", local: local, dst: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1080}, want: true},
		{name: "v4-mapped v6", local: local, dst: &net.TCPAddr{IP: net.ParseIP("::ffff:127.0.0.1"), Port: 1080}, want: true},
		{name: "other port", local: local, dst: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1081}},
		{name: "other host", local: local, dst: &net.TCPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 1080}},
		{name: "v6 same", local: &net.TCPAddr{IP: net.IPv6loopback, Port: 443}, dst: &net.TCPAddr{IP: net.IPv6loopback, Port: 443}, want: true},
		{name: "non-tcp local", local: &net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, dst: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1080}},
		{name: "nil dst", local: local},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckLoop(tt.local, tt.dst)
			if got := errors.Is(err, ErrLoop); got != tt.want {
				t.Fatalf("CheckLoop(%v, %v) = %v, want loop=%v", tt.local, tt.dst, err, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s := StateAccepted; s <= StateFailed; s++ {
		if s.String() == "unknown" {
			t.Fatalf("state %d has no name", s)
		}
	}
	if got := State(99).String(); got != "unknown" {
		t.Fatalf("State(99) = %q", got)
	}
}
