package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

func genKeyHex(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(pub)
}

func writeTopologyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTopology_Valid(t *testing.T) {
	k1, k2, k3 := genKeyHex(t), genKeyHex(t), genKeyHex(t)
	content := fmt.Sprintf(`
local_chains:
  - hub-main
chains:
  - name: hub-main
    numeric_id: 101
    endpoint_id: 30100
    role: hub
  - name: spoke-alpha
    numeric_id: 102
    endpoint_id: 30101
    role: spoke
  - name: spoke-beta
    numeric_id: 103
    endpoint_id: 30102
    role: spoke
peers:
  - local: hub-main
    remote: spoke-alpha
    remote_address: "0x00000000000000000000000000000000000a11ce"
    whitelisted: true
  - local: hub-main
    remote: spoke-beta
    remote_address: "0x0000000000000000000000000000000000b0b0b0"
    whitelisted: false
validators:
  - source: spoke-alpha
    threshold: 2
    keys:
      - %s
      - %s
      - %s
fee_models:
  - destination: spoke-alpha
    model:
      base_fee: 1000
      per_byte_fee: 10
      gas_price_native: 2
      secondary_flat_fee: 500
      secondary_per_byte_fee: 5
`, k1, k2, k3)

	topo, err := LoadTopology(writeTopologyFile(t, content))
	require.NoError(t, err)

	assert.Equal(t, "hub-main", topo.Hub().Name)
	assert.True(t, topo.Hub().IsHub())

	locals := topo.LocalIdentities()
	require.Len(t, locals, 1)
	assert.Equal(t, uint32(30100), locals[0].EndpointID)

	alpha, ok := topo.ChainByName("spoke-alpha")
	require.True(t, ok)
	assert.Equal(t, uint32(30101), alpha.EndpointID)

	beta, ok := topo.ChainByEid(30102)
	require.True(t, ok)
	assert.Equal(t, "spoke-beta", beta.Name)

	peers := topo.ResolvedPeers()
	require.Len(t, peers, 2)
	assert.Equal(t, uint32(30100), peers[0].LocalEid)
	assert.Equal(t, uint32(30101), peers[0].RemoteEid)
	assert.True(t, peers[0].Whitelisted)
	assert.Equal(t, model.PeerSourceTopology, peers[0].Source)
	assert.False(t, peers[1].Whitelisted)

	ks, ok := topo.Keysets()[30101]
	require.True(t, ok)
	assert.Equal(t, 2, ks.Threshold)
	assert.Len(t, ks.Keys, 3)
	assert.Equal(t, k1, hex.EncodeToString(ks.Keys[0]))

	cm, ok := topo.CostModels()[30101]
	require.True(t, ok)
	assert.Equal(t, uint64(1000), cm.BaseFee)
	assert.Equal(t, uint64(10), cm.PerByteFee)
}

func TestLoadTopology_FileNotFound(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read topology file")
}

func TestLoadTopology_UnknownFieldRejected(t *testing.T) {
	content := `
local_chains:
  - hub-main
chians:
  - name: hub-main
`
	_, err := LoadTopology(writeTopologyFile(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chians")
}

func validTopology(t *testing.T) *Topology {
	t.Helper()
	return &Topology{
		LocalChains: []string{"hub-main"},
		Chains: []model.ChainIdentity{
			{Name: "hub-main", NumericID: 101, EndpointID: 30100, Role: model.RoleHub},
			{Name: "spoke-alpha", NumericID: 102, EndpointID: 30101, Role: model.RoleSpoke},
		},
		Peers: []PeerEntry{
			{Local: "hub-main", Remote: "spoke-alpha", RemoteAddress: "0xa11ce", Whitelisted: true},
		},
		Validators: []ValidatorSetEntry{
			{Source: "spoke-alpha", Threshold: 1, Keys: []string{genKeyHex(t)}},
		},
		FeeModels: []FeeModelEntry{
			{Destination: "spoke-alpha", Model: model.CostModel{BaseFee: 100}},
		},
	}
}

func TestTopologyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, topo *Topology)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(t *testing.T, topo *Topology) {},
		},
		{
			name: "no chains",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains = nil
			},
			wantErr: "no chains defined",
		},
		{
			name: "no hub",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains[0].Role = model.RoleSpoke
			},
			wantErr: "exactly one hub",
		},
		{
			name: "two hubs",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains[1].Role = model.RoleHub
			},
			wantErr: "exactly one hub",
		},
		{
			name: "duplicate chain name",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains = append(topo.Chains, model.ChainIdentity{
					Name: "spoke-alpha", NumericID: 104, EndpointID: 30103, Role: model.RoleSpoke,
				})
			},
			wantErr: "duplicate chain name",
		},
		{
			name: "duplicate endpoint id",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains = append(topo.Chains, model.ChainIdentity{
					Name: "spoke-beta", NumericID: 104, EndpointID: 30101, Role: model.RoleSpoke,
				})
			},
			wantErr: "endpoint id 30101 shared",
		},
		{
			name: "duplicate numeric id",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains = append(topo.Chains, model.ChainIdentity{
					Name: "spoke-beta", NumericID: 102, EndpointID: 30103, Role: model.RoleSpoke,
				})
			},
			wantErr: "numeric id 102 shared",
		},
		{
			name: "invalid chain identity",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Chains[1].EndpointID = 0
			},
			wantErr: "endpoint id is zero",
		},
		{
			name: "empty local chains",
			mutate: func(t *testing.T, topo *Topology) {
				topo.LocalChains = nil
			},
			wantErr: "local_chains is empty",
		},
		{
			name: "unknown local chain",
			mutate: func(t *testing.T, topo *Topology) {
				topo.LocalChains = []string{"hub-other"}
			},
			wantErr: `local chain "hub-other"`,
		},
		{
			name: "local chain listed twice",
			mutate: func(t *testing.T, topo *Topology) {
				topo.LocalChains = []string{"hub-main", "hub-main"}
			},
			wantErr: "listed twice",
		},
		{
			name: "peer unknown remote",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Peers[0].Remote = "spoke-gamma"
			},
			wantErr: "unknown remote chain",
		},
		{
			name: "self peer",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Peers[0].Remote = "hub-main"
			},
			wantErr: "peered with itself",
		},
		{
			name: "peer missing remote address",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Peers[0].RemoteAddress = ""
			},
			wantErr: "no remote address",
		},
		{
			name: "duplicate peer",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Peers = append(topo.Peers, topo.Peers[0])
			},
			wantErr: "duplicate peer entry",
		},
		{
			name: "validator unknown chain",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators[0].Source = "spoke-gamma"
			},
			wantErr: "unknown chain",
		},
		{
			name: "validator threshold zero",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators[0].Threshold = 0
			},
			wantErr: "want >= 1",
		},
		{
			name: "validator threshold above keyset size",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators[0].Threshold = 2
			},
			wantErr: "threshold 2 but only 1 keys",
		},
		{
			name: "validator bad hex key",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators[0].Keys = []string{"zzzz"}
			},
			wantErr: "key 0",
		},
		{
			name: "validator short key",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators[0].Keys = []string{"deadbeef"}
			},
			wantErr: "got 4 bytes",
		},
		{
			name: "validator repeated key",
			mutate: func(t *testing.T, topo *Topology) {
				k := genKeyHex(t)
				topo.Validators[0].Keys = []string{k, k}
			},
			wantErr: "repeated",
		},
		{
			name: "duplicate validator set",
			mutate: func(t *testing.T, topo *Topology) {
				topo.Validators = append(topo.Validators, topo.Validators[0])
			},
			wantErr: "duplicate validator set",
		},
		{
			name: "fee model unknown chain",
			mutate: func(t *testing.T, topo *Topology) {
				topo.FeeModels[0].Destination = "spoke-gamma"
			},
			wantErr: "unknown chain",
		},
		{
			name: "duplicate fee model",
			mutate: func(t *testing.T, topo *Topology) {
				topo.FeeModels = append(topo.FeeModels, topo.FeeModels[0])
			},
			wantErr: "duplicate fee model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := validTopology(t)
			tt.mutate(t, topo)
			err := topo.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
