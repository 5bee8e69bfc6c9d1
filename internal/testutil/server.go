package testutil

import (
	"context"
	"net"
	"sync"
	"testing"
)

func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	})

	wait := func() {
		_ = ln.Close()
		wg.Wait()
	}

	return ln, wait
}

// TCPPair returns both ends of an established loopback TCP connection.
// Both are closed when the test finishes.
func TCPPair(t *testing.T, ctx context.Context) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	d := net.Dialer{}
	dialed, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	peer, ok := <-accepted
	if !ok {
		_ = dialed.Close()
		t.Fatal("accept failed")
	}

	t.Cleanup(func() {
		_ = dialed.Close()
		_ = peer.Close()
	})
	return dialed.(*net.TCPConn), peer.(*net.TCPConn)
}

// UnusedAddr returns a loopback address that nothing is listening on.
func UnusedAddr(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}
