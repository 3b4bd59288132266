package util

import (
	"strings"
	"testing"
)

func TestParseIntEnv(t *testing.T) {
	cases := []struct {
		value    string
		def      int
		expected int
	}{
		{"", 7, 7},
		{"12", 0, 12},
		{" 30 ", 0, 30},
		{"garbage", 5, 5},
		{"-3", 10, 10},
		{"0", 9, 9},
	}
	for _, c := range cases {
		t.Setenv("CLINIC_BOT_TEST_INT", c.value)
		if got := ParseIntEnv("CLINIC_BOT_TEST_INT", c.def); got != c.expected {
			t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", c.value, c.def, got, c.expected)
		}
	}
}

func TestGenerateBookingID(t *testing.T) {
	id := GenerateBookingID()
	if !strings.HasPrefix(id, "b_") {
		t.Errorf("expected b_ prefix, got %s", id)
	}
	if len(id) != 2+16 {
		t.Errorf("expected length 18, got %d", len(id))
	}

	// IDs should be unique in practice
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		next := GenerateBookingID()
		if seen[next] {
			t.Fatalf("duplicate ID generated: %s", next)
		}
		seen[next] = true
	}
}

func TestGenerateRandomHexZeroLength(t *testing.T) {
	if got := GenerateRandomHex(0); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
