// Package dispatch spawns hook programs and supervises their lifetime.
//
// Each accepted delivery gets its own subprocess with a pipe bound to its
// standard input. The request body is fed into the pipe (buffered first when
// the hook requires signature verification, streamed chunk by chunk
// otherwise) and the pipe's write side is closed exactly once on every path. A
// supervisor then races the process's natural exit against the configured
// timeout, preferring an exit that has already landed over a simultaneously
// fired timer.
//
// Timeout handling:
//   - A zero timeout waits indefinitely and never kills the child.
//   - When a non-zero timeout expires, SIGTERM is sent, followed after a
//     grace period by SIGKILL. The child is always reaped with Wait.
//
// The child's stdout and stderr are inherited from the daemon; nothing is
// captured or relayed to the HTTP client. A hook's process is spawned on
// every path match, before signature verification: a digest mismatch closes
// the child's stdin without writing any body bytes, but the already-running
// process is still supervised to completion. Operators exposing
// secret-protected paths to untrusted networks should rate-limit upstream if
// repeated spawns are a concern.
//
// No failure in this package propagates to the HTTP client; every outcome is
// logged and isolated to its own delivery.
package dispatch
