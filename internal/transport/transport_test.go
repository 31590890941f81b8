package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

// listenLocal starts a TCP listener on an ephemeral port and returns it
// along with the address to dial.
func listenLocal(t *testing.T) (net.Listener, string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().String()
}

func TestDial_ConnectsAndWrites(t *testing.T) {
	ln, addr := listenLocal(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	server := <-accepted
	defer server.Close()

	if err := tr.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 5)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("server received %q, want %q", buf, "hello")
	}
}

func TestNotify_FiresOnIncomingData(t *testing.T) {
	ln, addr := listenLocal(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	server := <-accepted
	defer server.Close()

	if _, err := server.Write([]byte("response bytes")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case <-tr.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Notify")
	}

	data, err := tr.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "response bytes" {
		t.Errorf("Read() = %q, want %q", data, "response bytes")
	}

	// a second Read with nothing pending returns (nil, nil), not an error.
	data, err = tr.Read()
	if err != nil || data != nil {
		t.Errorf("second Read() = (%v, %v), want (nil, nil)", data, err)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	ln, addr := listenLocal(t)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	ctx := context.Background()
	tr, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDial_FailsOnRefusedConnection(t *testing.T) {
	ln, addr := listenLocal(t)
	ln.Close() // nothing listening now

	ctx := context.Background()
	if _, err := Dial(ctx, addr); err == nil {
		t.Fatal("expected dial error for a closed listener")
	}
}
