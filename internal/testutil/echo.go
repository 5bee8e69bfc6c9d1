package testutil

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
)

// StartEchoTCPServer accepts connections on a loopback port and echoes
// everything it reads until the peer half-closes, then half-closes back.
func StartEchoTCPServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
				if tc, ok := c.(*net.TCPConn); ok {
					_ = tc.CloseWrite()
				}
			}()
		}
	}()

	return ln
}

func AssertEcho(t *testing.T, w io.Writer, r io.Reader, msg []byte) {
	t.Helper()

	if _, err := w.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, msg) {
		t.Fatalf("expected %q got %q", string(msg), string(buf))
	}
}
