// Package auth provides the unforgeable capability tokens gating composer
// invocation and admin mutations. Checks are explicit token comparisons at
// call sites, never ambient permission lookups.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Capability is an opaque bearer token. The zero value authorizes nothing;
// tokens only come from Mint (process-local) or Parse (shared secrets from
// config).
type Capability struct {
	token [32]byte
	set   bool
}

// Mint creates a fresh random capability. Panics only if the platform CSPRNG
// is unusable, which is not a recoverable condition.
func Mint() Capability {
	var c Capability
	if _, err := rand.Read(c.token[:]); err != nil {
		panic(fmt.Sprintf("auth: mint capability: %v", err))
	}
	c.set = true
	return c
}

// Parse builds a capability from 64 hex characters, for tokens shared with
// external callers through config.
func Parse(s string) (Capability, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Capability{}, fmt.Errorf("auth: parse capability: %w", err)
	}
	var c Capability
	if len(raw) != len(c.token) {
		return Capability{}, fmt.Errorf("auth: parse capability: want %d bytes, got %d", len(c.token), len(raw))
	}
	copy(c.token[:], raw)
	c.set = true
	return c, nil
}

// Grants reports whether presented is this capability. Comparison is
// constant time; unset tokens on either side never match.
func (c Capability) Grants(presented Capability) bool {
	if !c.set || !presented.set {
		return false
	}
	return subtle.ConstantTimeCompare(c.token[:], presented.token[:]) == 1
}

// IsSet reports whether the capability holds a minted or parsed token.
func (c Capability) IsSet() bool {
	return c.set
}

// String renders a redacted form for logs. The token itself never leaves
// the process through logging.
func (c Capability) String() string {
	if !c.set {
		return "capability(unset)"
	}
	return fmt.Sprintf("capability(%s...)", hex.EncodeToString(c.token[:4]))
}
