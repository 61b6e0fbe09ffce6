// Package listener builds the daemon's accepting socket.
//
// Three sources are supported, in precedence order: an explicit TCP bind
// address, a local-domain socket path, and a descriptor inherited from the
// supervising process via the LISTEN_FDS convention (descriptor 3). The
// variants form a closed set; whichever is selected is surfaced as a plain
// net.Listener.
package listener

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Kind identifies which listener source was selected.
type Kind int

const (
	KindTCP Kind = iota
	KindUnix
	KindInherited
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindUnix:
		return "unix"
	case KindInherited:
		return "inherited"
	default:
		return "unknown"
	}
}

// inheritedFD is the first descriptor passed under LISTEN_FDS, after
// stdin/stdout/stderr.
const inheritedFD = 3

// Config selects the listener source. Bind and Socket are mutually exclusive;
// when both are empty an inherited descriptor is required.
type Config struct {
	Bind   string
	Socket string
}

// Listen opens the accepting socket described by cfg.
func Listen(cfg Config) (net.Listener, Kind, error) {
	switch {
	case cfg.Bind != "" && cfg.Socket != "":
		return nil, 0, fmt.Errorf("listen and socket are mutually exclusive")
	case cfg.Bind != "":
		ln, err := net.Listen("tcp", cfg.Bind)
		if err != nil {
			return nil, 0, fmt.Errorf("listen on %s: %w", cfg.Bind, err)
		}
		return ln, KindTCP, nil
	case cfg.Socket != "":
		ln, err := listenUnix(cfg.Socket)
		if err != nil {
			return nil, 0, err
		}
		return ln, KindUnix, nil
	default:
		ln, err := inherited()
		if err != nil {
			return nil, 0, err
		}
		if ln == nil {
			return nil, 0, fmt.Errorf("no listener source: configure listen or socket, or inherit a descriptor via LISTEN_FDS")
		}
		return ln, KindInherited, nil
	}
}

func listenUnix(path string) (net.Listener, error) {
	// A previous unclean shutdown may have left the socket file behind.
	if info, err := os.Stat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket %s: %w", path, err)
	}
	return ln, nil
}

// inherited picks up descriptor 3 when the environment announces exactly one
// passed listener. Returns (nil, nil) when nothing was inherited.
func inherited() (net.Listener, error) {
	fds := os.Getenv("LISTEN_FDS")
	if fds == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(fds)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("invalid LISTEN_FDS value %q", fds)
	}
	if n > 1 {
		return nil, fmt.Errorf("LISTEN_FDS=%d: only one inherited listener is supported", n)
	}
	if pid := os.Getenv("LISTEN_PID"); pid != "" {
		p, err := strconv.Atoi(pid)
		if err != nil || p != os.Getpid() {
			return nil, fmt.Errorf("LISTEN_PID %q does not name this process", pid)
		}
	}

	f := os.NewFile(uintptr(inheritedFD), "inherited-listener")
	if f == nil {
		return nil, fmt.Errorf("descriptor %d is not open", inheritedFD)
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("inherited descriptor %d is not a listener: %w", inheritedFD, err)
	}
	return ln, nil
}
