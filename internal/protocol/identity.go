package protocol

import "strings"

// CanonicalUser normalises a user account identifier so that different
// spellings of the same account (mixed-case hex, 0x prefix casing) hash to
// the same transaction id and compare as equal in peer checks. Hex-style
// identifiers become lowercase with a 0x prefix; anything else is returned
// trimmed as-is, since non-hex account schemes are case-significant.
func CanonicalUser(user string) string {
	trimmed := strings.TrimSpace(user)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return trimmed
	}
	withoutPrefix := trimmed[2:]
	if withoutPrefix == "" || !IsHexString(withoutPrefix) {
		return trimmed
	}
	return "0x" + strings.ToLower(withoutPrefix)
}

// CanonicalAddress normalises a counterpart composer address with the same
// rules as CanonicalUser. Peer registration and inbound sender claims both
// pass through it, keeping the byte-for-byte trust comparison meaningful.
func CanonicalAddress(address string) string {
	return CanonicalUser(address)
}

// IsHexString reports whether v consists solely of hexadecimal characters.
func IsHexString(v string) bool {
	for _, ch := range v {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
