package listener

import (
	"net"
	"path/filepath"
	"testing"
)

func TestListenTCP(t *testing.T) {
	ln, kind, err := Listen(Config{Bind: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if kind != KindTCP {
		t.Errorf("kind = %v, want tcp", kind)
	}
	if _, ok := ln.Addr().(*net.TCPAddr); !ok {
		t.Errorf("Addr() = %T, want *net.TCPAddr", ln.Addr())
	}
}

func TestListenUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hookpipe.sock")

	ln, kind, err := Listen(Config{Socket: path})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if kind != KindUnix {
		t.Errorf("kind = %v, want unix", kind)
	}

	// The socket must accept a connection.
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}

func TestListenUnixReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hookpipe.sock")

	first, _, err := Listen(Config{Socket: path})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	// Simulate an unclean shutdown: the file survives because the listener
	// is never closed through the normal path.
	first.(*net.UnixListener).SetUnlinkOnClose(false)
	first.Close()

	second, _, err := Listen(Config{Socket: path})
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	second.Close()
}

func TestListenMutuallyExclusive(t *testing.T) {
	_, _, err := Listen(Config{Bind: "127.0.0.1:0", Socket: "/tmp/x.sock"})
	if err == nil {
		t.Fatal("expected an error when both listen and socket are set")
	}
}

func TestListenNoSource(t *testing.T) {
	// No bind, no socket, and LISTEN_FDS unset in the test environment.
	t.Setenv("LISTEN_FDS", "")

	_, _, err := Listen(Config{})
	if err == nil {
		t.Fatal("expected an error when no listener source is available")
	}
}

func TestListenRejectsBadListenFDs(t *testing.T) {
	t.Setenv("LISTEN_FDS", "banana")

	_, _, err := Listen(Config{})
	if err == nil {
		t.Fatal("expected an error for a malformed LISTEN_FDS")
	}
}
