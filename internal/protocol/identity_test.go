package protocol

import "testing"

func TestCanonicalUser(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase hex unchanged", input: "0xabcdef1234567890", expected: "0xabcdef1234567890"},
		{name: "mixed case hex lowered", input: "0xABcdEF1234567890", expected: "0xabcdef1234567890"},
		{name: "uppercase prefix normalised", input: "0XDEADBEEF", expected: "0xdeadbeef"},
		{name: "whitespace trimmed", input: "  0xAbC1  ", expected: "0xabc1"},
		{name: "bare hex preserved as-is", input: "ABCDEF1234", expected: "ABCDEF1234"},
		{name: "base58-style preserved", input: "5K4bK8mFQziw3aXnJJmKGYw", expected: "5K4bK8mFQziw3aXnJJmKGYw"},
		{name: "prefix with non-hex tail preserved", input: "0xNOTHEX", expected: "0xNOTHEX"},
		{name: "prefix only preserved", input: "0x", expected: "0x"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalUser(tt.input); got != tt.expected {
				t.Fatalf("CanonicalUser(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalAddressMatchesCanonicalUser(t *testing.T) {
	inputs := []string{"0xAbCd", "bc1qxyz", " 0XFF ", ""}
	for _, in := range inputs {
		if CanonicalAddress(in) != CanonicalUser(in) {
			t.Fatalf("CanonicalAddress(%q) diverged from CanonicalUser", in)
		}
	}
}

func TestIsHexString(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"abcdef", true},
		{"ABCDEF", true},
		{"0123456789", true},
		{"", true},
		{"xyz", false},
		{"abc xyz", false},
		{"0x12", false},
	}
	for _, tt := range tests {
		if got := IsHexString(tt.input); got != tt.expected {
			t.Fatalf("IsHexString(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
