package model

import "fmt"

// ChainRole distinguishes the single custody hub from its spokes.
type ChainRole string

const (
	RoleHub   ChainRole = "hub"
	RoleSpoke ChainRole = "spoke"
)

func (r ChainRole) String() string {
	return string(r)
}

// ChainIdentity identifies one chain in a vault topology. NumericID is the
// domain-specific chain id; EndpointID is the transport-level routing id.
// Identities are immutable after deployment.
type ChainIdentity struct {
	Name       string    `yaml:"name" json:"name"`
	NumericID  uint64    `yaml:"numeric_id" json:"numeric_id"`
	EndpointID uint32    `yaml:"endpoint_id" json:"endpoint_id"`
	Role       ChainRole `yaml:"role" json:"role"`
}

func (c ChainIdentity) IsHub() bool {
	return c.Role == RoleHub
}

func (c ChainIdentity) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("chain identity: name is empty")
	}
	if c.NumericID == 0 {
		return fmt.Errorf("chain identity %s: numeric id is zero", c.Name)
	}
	if c.EndpointID == 0 {
		return fmt.Errorf("chain identity %s: endpoint id is zero", c.Name)
	}
	switch c.Role {
	case RoleHub, RoleSpoke:
	default:
		return fmt.Errorf("chain identity %s: unknown role %q", c.Name, c.Role)
	}
	return nil
}

func (c ChainIdentity) String() string {
	return fmt.Sprintf("%s(eid=%d)", c.Name, c.EndpointID)
}
