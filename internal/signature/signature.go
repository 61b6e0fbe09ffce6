// Package signature verifies webhook request bodies against the
// x-hub-signature header using a keyed hash over the raw body bytes.
//
// The header format is "<algorithm>=<hexdigest>", split at the first "=".
// Only the sha1 algorithm (HMAC-SHA1) is recognized. Digest comparison uses
// crypto/subtle to avoid timing side channels.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

// Header is the HTTP header carrying the client-supplied digest.
const Header = "x-hub-signature"

// Status is the outcome of parsing or verifying a signature header.
type Status int

const (
	Valid Status = iota
	Mismatch
	MalformedHeader
	UnsupportedAlgorithm
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Mismatch:
		return "mismatch"
	case MalformedHeader:
		return "malformed header"
	case UnsupportedAlgorithm:
		return "unsupported algorithm"
	default:
		return "unknown"
	}
}

// ParseHeader splits a header value into algorithm and digest. The returned
// status is Valid when the digest decoded to exactly sha1.Size bytes under a
// recognized algorithm. An unrecognized algorithm token yields
// UnsupportedAlgorithm even when the digest part is well-formed; every other
// parse failure yields MalformedHeader.
func ParseHeader(value string) ([]byte, Status) {
	algorithm, hexDigest, found := strings.Cut(value, "=")
	if !found {
		return nil, MalformedHeader
	}
	if algorithm != "sha1" {
		return nil, UnsupportedAlgorithm
	}

	digest, err := hex.DecodeString(hexDigest)
	if err != nil || len(digest) != sha1.Size {
		return nil, MalformedHeader
	}
	return digest, Valid
}

// Verifier accumulates body bytes into an HMAC-SHA1 and compares the result
// against the digest a client supplied in the signature header. It is created
// per request and discarded after one comparison.
type Verifier struct {
	mac      hash.Hash
	expected []byte
}

// NewVerifier returns a verifier keyed with the hook's secret, expecting the
// digest previously decoded by ParseHeader.
func NewVerifier(secret, expected []byte) *Verifier {
	return &Verifier{
		mac:      hmac.New(sha1.New, secret),
		expected: expected,
	}
}

// Write feeds raw body bytes into the accumulator. It never fails.
func (v *Verifier) Write(p []byte) (int, error) {
	return v.mac.Write(p)
}

// Result compares the accumulated digest against the expected one in constant
// time, returning Valid or Mismatch.
func (v *Verifier) Result() Status {
	if subtle.ConstantTimeCompare(v.mac.Sum(nil), v.expected) == 1 {
		return Valid
	}
	return Mismatch
}
