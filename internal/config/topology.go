package config

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Topology is the deployment descriptor for one vault network: every chain
// identity, which of them this process operates, the initial peer wiring,
// the attestation keysets trusted per source endpoint, and the fee model
// per destination endpoint. Entries reference chains by name; endpoint ids
// are resolved during validation.
type Topology struct {
	LocalChains []string              `yaml:"local_chains"`
	Chains      []model.ChainIdentity `yaml:"chains"`
	Peers       []PeerEntry           `yaml:"peers"`
	Validators  []ValidatorSetEntry   `yaml:"validators"`
	FeeModels   []FeeModelEntry       `yaml:"fee_models"`

	byName     map[string]model.ChainIdentity
	byEid      map[uint32]model.ChainIdentity
	hub        model.ChainIdentity
	peers      []model.Peer
	keysets    map[uint32]Keyset
	costModels map[uint32]model.CostModel
}

// PeerEntry whitelists the composer at RemoteAddress on the Remote chain,
// as seen from the Local chain.
type PeerEntry struct {
	Local         string `yaml:"local"`
	Remote        string `yaml:"remote"`
	RemoteAddress string `yaml:"remote_address"`
	Whitelisted   bool   `yaml:"whitelisted"`
}

// ValidatorSetEntry lists the ed25519 public keys trusted to attest
// messages originating on the Source chain, hex encoded, and the number of
// distinct valid signatures required.
type ValidatorSetEntry struct {
	Source    string   `yaml:"source"`
	Threshold int      `yaml:"threshold"`
	Keys      []string `yaml:"keys"`
}

// FeeModelEntry prices deliveries toward the Destination chain.
type FeeModelEntry struct {
	Destination string          `yaml:"destination"`
	Model       model.CostModel `yaml:"model"`
}

// Keyset is a resolved validator set for one source endpoint.
type Keyset struct {
	Threshold int
	Keys      []ed25519.PublicKey
}

// LoadTopology reads, parses and validates a topology file. Unknown YAML
// fields are rejected so typos fail at startup instead of silently
// dropping configuration.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}

	var t Topology
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse topology file %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks structural invariants and resolves chain names to
// endpoint ids. It must succeed before any accessor is used.
func (t *Topology) Validate() error {
	if len(t.Chains) == 0 {
		return fmt.Errorf("topology: no chains defined")
	}

	byName := make(map[string]model.ChainIdentity, len(t.Chains))
	byEid := make(map[uint32]model.ChainIdentity, len(t.Chains))
	numericSeen := make(map[uint64]string, len(t.Chains))
	hubCount := 0
	var hub model.ChainIdentity

	for _, c := range t.Chains {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("topology: %w", err)
		}
		if _, dup := byName[c.Name]; dup {
			return fmt.Errorf("topology: duplicate chain name %q", c.Name)
		}
		if prev, dup := byEid[c.EndpointID]; dup {
			return fmt.Errorf("topology: endpoint id %d shared by %s and %s",
				c.EndpointID, prev.Name, c.Name)
		}
		if prev, dup := numericSeen[c.NumericID]; dup {
			return fmt.Errorf("topology: numeric id %d shared by %s and %s",
				c.NumericID, prev, c.Name)
		}
		if c.IsHub() {
			hubCount++
			hub = c
		}
		byName[c.Name] = c
		byEid[c.EndpointID] = c
		numericSeen[c.NumericID] = c.Name
	}
	if hubCount != 1 {
		return fmt.Errorf("topology: want exactly one hub chain, got %d", hubCount)
	}

	if len(t.LocalChains) == 0 {
		return fmt.Errorf("topology: local_chains is empty")
	}
	localSeen := make(map[string]bool, len(t.LocalChains))
	for _, name := range t.LocalChains {
		if _, ok := byName[name]; !ok {
			return fmt.Errorf("topology: local chain %q not defined in chains", name)
		}
		if localSeen[name] {
			return fmt.Errorf("topology: local chain %q listed twice", name)
		}
		localSeen[name] = true
	}

	peers := make([]model.Peer, 0, len(t.Peers))
	peerSeen := make(map[[2]uint32]bool, len(t.Peers))
	for _, p := range t.Peers {
		local, ok := byName[p.Local]
		if !ok {
			return fmt.Errorf("topology: peer references unknown local chain %q", p.Local)
		}
		remote, ok := byName[p.Remote]
		if !ok {
			return fmt.Errorf("topology: peer references unknown remote chain %q", p.Remote)
		}
		if local.EndpointID == remote.EndpointID {
			return fmt.Errorf("topology: chain %q peered with itself", p.Local)
		}
		if p.RemoteAddress == "" {
			return fmt.Errorf("topology: peer %s->%s has no remote address", p.Local, p.Remote)
		}
		key := [2]uint32{local.EndpointID, remote.EndpointID}
		if peerSeen[key] {
			return fmt.Errorf("topology: duplicate peer entry %s->%s", p.Local, p.Remote)
		}
		peerSeen[key] = true
		peers = append(peers, model.Peer{
			LocalEid:      local.EndpointID,
			RemoteEid:     remote.EndpointID,
			RemoteAddress: p.RemoteAddress,
			Whitelisted:   p.Whitelisted,
			Source:        model.PeerSourceTopology,
		})
	}

	keysets := make(map[uint32]Keyset, len(t.Validators))
	for _, v := range t.Validators {
		src, ok := byName[v.Source]
		if !ok {
			return fmt.Errorf("topology: validator set references unknown chain %q", v.Source)
		}
		if _, dup := keysets[src.EndpointID]; dup {
			return fmt.Errorf("topology: duplicate validator set for chain %q", v.Source)
		}
		if v.Threshold < 1 {
			return fmt.Errorf("topology: validator set for %q has threshold %d, want >= 1",
				v.Source, v.Threshold)
		}
		if v.Threshold > len(v.Keys) {
			return fmt.Errorf("topology: validator set for %q has threshold %d but only %d keys",
				v.Source, v.Threshold, len(v.Keys))
		}
		ks := Keyset{Threshold: v.Threshold, Keys: make([]ed25519.PublicKey, 0, len(v.Keys))}
		keySeen := make(map[string]bool, len(v.Keys))
		for i, hexKey := range v.Keys {
			raw, err := hex.DecodeString(hexKey)
			if err != nil {
				return fmt.Errorf("topology: validator set for %q key %d: %w", v.Source, i, err)
			}
			if len(raw) != ed25519.PublicKeySize {
				return fmt.Errorf("topology: validator set for %q key %d: got %d bytes, want %d",
					v.Source, i, len(raw), ed25519.PublicKeySize)
			}
			if keySeen[hexKey] {
				return fmt.Errorf("topology: validator set for %q key %d repeated", v.Source, i)
			}
			keySeen[hexKey] = true
			ks.Keys = append(ks.Keys, ed25519.PublicKey(raw))
		}
		keysets[src.EndpointID] = ks
	}

	costModels := make(map[uint32]model.CostModel, len(t.FeeModels))
	for _, f := range t.FeeModels {
		dst, ok := byName[f.Destination]
		if !ok {
			return fmt.Errorf("topology: fee model references unknown chain %q", f.Destination)
		}
		if _, dup := costModels[dst.EndpointID]; dup {
			return fmt.Errorf("topology: duplicate fee model for chain %q", f.Destination)
		}
		costModels[dst.EndpointID] = f.Model
	}

	t.byName = byName
	t.byEid = byEid
	t.hub = hub
	t.peers = peers
	t.keysets = keysets
	t.costModels = costModels
	return nil
}

func (t *Topology) ChainByName(name string) (model.ChainIdentity, bool) {
	c, ok := t.byName[name]
	return c, ok
}

func (t *Topology) ChainByEid(eid uint32) (model.ChainIdentity, bool) {
	c, ok := t.byEid[eid]
	return c, ok
}

// Hub returns the single hub chain.
func (t *Topology) Hub() model.ChainIdentity {
	return t.hub
}

// LocalIdentities returns the chains this process operates, in the order
// they were listed.
func (t *Topology) LocalIdentities() []model.ChainIdentity {
	out := make([]model.ChainIdentity, 0, len(t.LocalChains))
	for _, name := range t.LocalChains {
		out = append(out, t.byName[name])
	}
	return out
}

// ResolvedPeers returns the initial peer table with chain names resolved
// to endpoint ids. IDs and timestamps are assigned by the store on upsert.
func (t *Topology) ResolvedPeers() []model.Peer {
	out := make([]model.Peer, len(t.peers))
	copy(out, t.peers)
	return out
}

// Keysets returns the trusted validator set per source endpoint id.
func (t *Topology) Keysets() map[uint32]Keyset {
	return t.keysets
}

// CostModels returns the fee model per destination endpoint id.
func (t *Topology) CostModels() map[uint32]model.CostModel {
	return t.costModels
}
