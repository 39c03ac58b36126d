package store

import (
	"encoding/hex"
	"testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if computeDedupKey([]byte(`{"id":"  "}`)) == "  " {
		t.Fatalf("blank id must fall back to hash")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullIfEmpty("s"); v != "s" {
		t.Fatalf("non-empty passes through, got %v", v)
	}
}

func TestPageLimit(t *testing.T) {
	for in, want := range map[int]int{0: 100, -1: 100, 501: 100, 1: 1, 500: 500} {
		if got := pageLimit(in); got != want {
			t.Fatalf("pageLimit(%d)=%d want %d", in, got, want)
		}
	}
}
