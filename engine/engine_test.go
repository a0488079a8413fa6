// Copyright 2024 The EDB Authors
// This file is part of EDB.
//
// EDB is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EDB is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with EDB. If not, see <http://www.gnu.org/licenses/>.

package engine

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edb-rs/edb/replay"
	"github.com/edb-rs/edb/types"
)

var target = common.HexToAddress("0xdeadbeef")

// zeroDB is a types.CommittedDB with no deployed accounts: every Basic
// lookup reports non-existence, every call against it is a no-code call.
type zeroDB struct{}

func (zeroDB) Basic(common.Address) (bool, *uint256.Int, uint64, common.Hash, error) {
	return false, uint256.NewInt(0), 0, common.Hash{}, nil
}
func (zeroDB) Code(common.Address) ([]byte, error)                     { return nil, nil }
func (zeroDB) Storage(common.Address, common.Hash) (common.Hash, error) { return common.Hash{}, nil }
func (zeroDB) Clone() types.CommittedDB                                { return zeroDB{} }

func testBlock() *gethtypes.Block {
	header := &gethtypes.Header{Number: big.NewInt(1), Time: 1000}
	return gethtypes.NewBlockWithHeader(header)
}

func testTx() *gethtypes.Transaction {
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    0,
		To:       &target,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func testArtifact(t *testing.T, abiJSON string) *types.Artifact {
	t.Helper()
	return &types.Artifact{
		Metadata: types.ArtifactMetadata{ContractName: "Thing"},
		Output: types.CompilerOutput{
			Contracts: map[string]map[string]types.CompiledContract{
				"Thing.sol": {
					"Thing": {ABI: json.RawMessage(abiJSON)},
				},
			},
		},
	}
}

const getterABI = `[{"type":"function","name":"total","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"}]`

func TestBuildWiresFields(t *testing.T) {
	tx := testTx()
	block := testBlock()
	trace := &types.Trace{}
	snapshots := types.NewSnapshots(nil)
	artifacts := map[common.Address]*types.Artifact{target: testArtifact(t, getterABI)}

	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{ChainID: big.NewInt(1)}, block, tx, trace, snapshots, artifacts, nil, nil)

	require.Equal(t, tx.Hash(), ctx.TxHash)
	require.Same(t, trace, ctx.Trace)
	require.Same(t, snapshots, ctx.Snapshots)
	require.False(t, ctx.Finalized())
}

func TestAddressCodeAddressMapCachedOnce(t *testing.T) {
	trace := &types.Trace{Entries: []types.TraceEntry{
		{ID: 0, Target: target, CodeAddress: target},
	}}
	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{}, testBlock(), testTx(), trace, types.NewSnapshots(nil), nil, nil, nil)

	m1 := ctx.AddressCodeAddressMap()
	require.Contains(t, m1, target)

	// Mutate Trace after the first call; a second call must return the
	// cached map rather than recomputing.
	trace.Entries = nil
	m2 := ctx.AddressCodeAddressMap()
	require.Equal(t, m1, m2)
	require.Contains(t, m2, target)
}

func TestABIForReturnsDeployedABI(t *testing.T) {
	artifacts := map[common.Address]*types.Artifact{target: testArtifact(t, getterABI)}
	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{}, testBlock(), testTx(), &types.Trace{}, types.NewSnapshots(nil), artifacts, nil, nil)

	raw, ok := ctx.ABIFor(target)
	require.True(t, ok)
	require.JSONEq(t, getterABI, string(raw))

	_, ok = ctx.ABIFor(common.HexToAddress("0x1"))
	require.False(t, ok)
}
