package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"
)

// sign computes the hex HMAC-SHA1 digest of body under secret.
func sign(secret, body []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseHeader(t *testing.T) {
	goodHex := strings.Repeat("ab", sha1.Size)

	tests := []struct {
		name  string
		value string
		want  Status
	}{
		{"valid sha1", "sha1=" + goodHex, Valid},
		{"uppercase hex accepted", "sha1=" + strings.ToUpper(goodHex), Valid},
		{"no equals sign", "sha1" + goodHex, MalformedHeader},
		{"empty value", "", MalformedHeader},
		{"empty digest", "sha1=", MalformedHeader},
		{"bad hex", "sha1=" + strings.Repeat("zz", sha1.Size), MalformedHeader},
		{"digest too short", "sha1=" + strings.Repeat("ab", sha1.Size-1), MalformedHeader},
		{"digest too long", "sha1=" + strings.Repeat("ab", sha1.Size+1), MalformedHeader},
		{"odd length hex", "sha1=" + goodHex[:len(goodHex)-1], MalformedHeader},
		{"unknown algorithm", "sha256=" + goodHex, UnsupportedAlgorithm},
		{"unknown algorithm with valid hex", "foo=abcd", UnsupportedAlgorithm},
		{"case-sensitive algorithm token", "SHA1=" + goodHex, UnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, status := ParseHeader(tt.value)
			if status != tt.want {
				t.Fatalf("ParseHeader(%q) status = %v, want %v", tt.value, status, tt.want)
			}
			if tt.want == Valid && len(digest) != sha1.Size {
				t.Errorf("digest length = %d, want %d", len(digest), sha1.Size)
			}
			if tt.want != Valid && digest != nil {
				t.Errorf("digest = %x, want nil on parse failure", digest)
			}
		})
	}
}

func TestVerifierResult(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte(`{"ref":"refs/heads/main"}`)

	tests := []struct {
		name   string
		secret []byte
		body   []byte
		header string
		want   Status
	}{
		{"correct digest", secret, body, "sha1=" + sign(secret, body), Valid},
		{"wrong digest", secret, body, "sha1=" + strings.Repeat("de", sha1.Size), Mismatch},
		{"tampered body", secret, []byte(`{"ref":"refs/heads/evil"}`), "sha1=" + sign(secret, body), Mismatch},
		{"wrong secret", []byte("other"), body, "sha1=" + sign(secret, body), Mismatch},
		{"empty body", secret, nil, "sha1=" + sign(secret, nil), Valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected, status := ParseHeader(tt.header)
			if status != Valid {
				t.Fatalf("ParseHeader status = %v, want valid", status)
			}

			v := NewVerifier(tt.secret, expected)
			if _, err := v.Write(tt.body); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if got := v.Result(); got != tt.want {
				t.Errorf("Result() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifierIncrementalWrites(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte("hello world")

	expected, status := ParseHeader("sha1=" + sign(secret, body))
	if status != Valid {
		t.Fatalf("ParseHeader status = %v", status)
	}

	v := NewVerifier(secret, expected)
	v.Write(body[:5])
	v.Write(body[5:])
	if got := v.Result(); got != Valid {
		t.Errorf("Result() = %v, want valid after chunked writes", got)
	}
}

func TestStatusString(t *testing.T) {
	for status, want := range map[Status]string{
		Valid:                "valid",
		Mismatch:             "mismatch",
		MalformedHeader:      "malformed header",
		UnsupportedAlgorithm: "unsupported algorithm",
	} {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
