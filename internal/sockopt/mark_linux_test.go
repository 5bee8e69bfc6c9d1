//go:build linux

package sockopt

import (
	"context"
	"errors"
	"net"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/die-net/tcpredir/internal/testutil"
)

func TestMarkAbsentByDefault(t *testing.T) {
	t.Parallel()

	a, b := testutil.TCPPair(t, context.Background())
	for _, c := range []net.Conn{a, b} {
		if m, ok := Mark(c); ok {
			t.Fatalf("expected no mark, got %d", m)
		}
	}
}

func TestMarkControlAppliesBeforeConnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	var markErr error
	d := net.Dialer{Control: MarkControl(0x2a, func(err error) { markErr = err })}
	c, err := d.DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if markErr != nil {
		if errors.Is(markErr, unix.EPERM) {
			t.Skip("setting SO_MARK needs CAP_NET_ADMIN")
		}
		t.Fatalf("MarkControl: %v", markErr)
	}

	m, ok := Mark(c)
	if !ok || m != 0x2a {
		t.Fatalf("expected mark 0x2a, got %#x (ok=%v)", m, ok)
	}

	testutil.AssertEcho(t, c, c, []byte("marked"))
}
