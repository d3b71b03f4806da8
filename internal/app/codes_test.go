package app

import (
	"strings"
	"testing"
)

func TestNewJoinCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code := NewJoinCode()
		if !ValidCode(code) {
			t.Fatalf("generated invalid code %q", code)
		}
		if strings.ContainsAny(code, "IO01") {
			t.Fatalf("code %q uses an ambiguous character", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 490 {
		t.Fatalf("expected mostly distinct codes, got %d of 500", len(seen))
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab3k9z "); got != "AB3K9Z" {
		t.Fatalf("unexpected normalized code %q", got)
	}
	for _, code := range []string{"", "ABCDE", "ABCDEFG", "ABCDE0", "abcdef"} {
		if ValidCode(code) {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}
