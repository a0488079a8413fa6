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

package snapshot

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/spec"
	"github.com/edb-rs/edb/types"
)

// zeroDB always reports a zero account/slot, standing in for a fresh fork
// with no RPC or cache layer behind it.
type zeroDB struct{}

func (zeroDB) Basic(common.Address) (*forkdb.Account, error) {
	return &forkdb.Account{Balance: big.NewInt(0)}, nil
}
func (zeroDB) CodeByHash(common.Hash) ([]byte, error) { return nil, nil }
func (zeroDB) Storage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, nil
}
func (zeroDB) BlockHash(uint64) (common.Hash, error) { return common.Hash{}, nil }
func (zeroDB) Commit(forkdb.StateDiff) error          { return nil }
func (zeroDB) Clone() forkdb.DB                       { return zeroDB{} }

// fakeOpContext is a minimal tracing.OpContext stand-in for driving
// OnOpcode directly without a live EVM.
type fakeOpContext struct {
	address common.Address
	memory  []byte
	stack   []uint256.Int
}

func (f fakeOpContext) MemoryData() []byte          { return f.memory }
func (f fakeOpContext) StackData() []uint256.Int    { return f.stack }
func (f fakeOpContext) Caller() common.Address      { return common.Address{} }
func (f fakeOpContext) Address() common.Address     { return f.address }
func (f fakeOpContext) CallValue() *uint256.Int     { return uint256.NewInt(0) }
func (f fakeOpContext) CallInput() []byte           { return nil }
func (f fakeOpContext) ContractCode() []byte        { return nil }

func TestOpcodeInspectorCapturesOnlyNoSourceAddresses(t *testing.T) {
	noSource := common.HexToAddress("0xaaaa")
	hasSource := common.HexToAddress("0xbbbb")

	adapter := forkdb.NewStateAdapter(zeroDB{})
	insp := NewOpcodeInspector(adapter, map[common.Address]bool{noSource: true})
	hooks := insp.Hooks()

	hooks.OnEnter(0, byte(vm.CALL), common.Address{}, noSource, nil, 0, nil)
	hooks.OnOpcode(10, byte(vm.ADD), 0, 0, fakeOpContext{address: noSource}, nil, 1, nil)
	hooks.OnExit(0, nil, 0, nil, false)

	hooks.OnEnter(0, byte(vm.CALL), common.Address{}, hasSource, nil, 0, nil)
	hooks.OnOpcode(20, byte(vm.ADD), 0, 0, fakeOpContext{address: hasSource}, nil, 1, nil)
	hooks.OnExit(0, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, noSource, snaps[0].BytecodeAddress)
	require.Equal(t, uint64(10), snaps[0].PC)
}

func TestOpcodeInspectorReusesMemoryWhenUntouched(t *testing.T) {
	addr := common.HexToAddress("0xaaaa")
	adapter := forkdb.NewStateAdapter(zeroDB{})
	insp := NewOpcodeInspector(adapter, map[common.Address]bool{addr: true})
	hooks := insp.Hooks()

	mem := []byte{1, 2, 3, 4}
	hooks.OnEnter(0, byte(vm.CALL), common.Address{}, addr, nil, 0, nil)
	hooks.OnOpcode(1, byte(vm.ADD), 0, 0, fakeOpContext{address: addr, memory: mem}, nil, 1, nil)
	hooks.OnOpcode(2, byte(vm.ADD), 0, 0, fakeOpContext{address: addr, memory: mem}, nil, 1, nil)
	hooks.OnExit(0, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Same(t, snaps[0].Memory, snaps[1].Memory)
}

func TestOpcodeInspectorCopiesMemoryAfterWrite(t *testing.T) {
	addr := common.HexToAddress("0xaaaa")
	adapter := forkdb.NewStateAdapter(zeroDB{})
	insp := NewOpcodeInspector(adapter, map[common.Address]bool{addr: true})
	hooks := insp.Hooks()

	hooks.OnEnter(0, byte(vm.CALL), common.Address{}, addr, nil, 0, nil)
	hooks.OnOpcode(1, byte(vm.MSTORE), 0, 0, fakeOpContext{address: addr, memory: []byte{0, 0}}, nil, 1, nil)
	hooks.OnOpcode(2, byte(vm.ADD), 0, 0, fakeOpContext{address: addr, memory: []byte{1, 2}}, nil, 1, nil)
	hooks.OnExit(0, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.NotSame(t, snaps[0].Memory, snaps[1].Memory)
	require.Equal(t, []byte{1, 2}, snaps[1].Memory.Bytes())
}

func TestHookInspectorCapturesBeforeStepPayload(t *testing.T) {
	path := "C.sol"
	usid := types.USID(7)

	analysis := &types.AnalysisResult{
		Files: map[types.FileID]*types.SourceAnalysis{
			0: {Path: path, Steps: []types.Step{{USID: usid, Range: types.SourceRange{FileID: 0, Start: 20, Length: 5}}}},
		},
		UsidToStep: map[types.USID]struct {
			File types.FileID
			Step int
		}{usid: {File: 0, Step: 0}},
	}

	adapter := forkdb.NewStateAdapter(zeroDB{})
	source := "line one\nline two\ntarget here\n"
	log, _ := test.NewNullLogger()
	insp := NewHookInspector(adapter, analysis, map[string]string{path: source}, logrus.NewEntry(log))
	hooks := insp.Hooks()

	contractAddr := common.HexToAddress("0xcccc")
	payload, err := hookPayloadArgs.Pack(path, new(big.Int).SetUint64(uint64(usid)))
	require.NoError(t, err)

	hooks.OnEnter(1, byte(vm.CALL), contractAddr, spec.ProbePrecompileAddress, payload, 0, nil)
	hooks.OnExit(1, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, contractAddr, snaps[0].Address)
	require.Equal(t, contractAddr, snaps[0].BytecodeAddress)
	require.Equal(t, usid, snaps[0].USID)
	require.Equal(t, path, snaps[0].Path)
	require.Equal(t, 3, snaps[0].Line)
}

func TestHookInspectorBytecodeAddressFollowsDelegatecall(t *testing.T) {
	path := "Lib.sol"
	usid := types.USID(9)

	analysis := &types.AnalysisResult{
		Files: map[types.FileID]*types.SourceAnalysis{
			0: {Path: path, Steps: []types.Step{{USID: usid, Range: types.SourceRange{FileID: 0, Start: 0, Length: 1}}}},
		},
		UsidToStep: map[types.USID]struct {
			File types.FileID
			Step int
		}{usid: {File: 0, Step: 0}},
	}

	adapter := forkdb.NewStateAdapter(zeroDB{})
	log, _ := test.NewNullLogger()
	insp := NewHookInspector(adapter, analysis, map[string]string{path: "only line\n"}, logrus.NewEntry(log))
	hooks := insp.Hooks()

	eoa := common.HexToAddress("0xe0a")
	contractAddr := common.HexToAddress("0xcccc")
	libraryAddr := common.HexToAddress("0x1ib")
	payload, err := hookPayloadArgs.Pack(path, new(big.Int).SetUint64(uint64(usid)))
	require.NoError(t, err)

	hooks.OnEnter(0, byte(vm.CALL), eoa, contractAddr, nil, 0, nil)
	hooks.OnEnter(1, byte(vm.DELEGATECALL), contractAddr, libraryAddr, nil, 0, nil)
	// The probe call's "from" stays the storage context (contractAddr) under
	// DELEGATECALL, but the code actually executing is libraryAddr's.
	hooks.OnEnter(2, byte(vm.CALL), contractAddr, spec.ProbePrecompileAddress, payload, 0, nil)
	hooks.OnExit(2, nil, 0, nil, false)
	hooks.OnExit(1, nil, 0, nil, false)
	hooks.OnExit(0, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, contractAddr, snaps[0].Address)
	require.Equal(t, libraryAddr, snaps[0].BytecodeAddress)
}

func TestHookInspectorIgnoresNonProbeCalls(t *testing.T) {
	analysis := &types.AnalysisResult{Files: map[types.FileID]*types.SourceAnalysis{}}
	adapter := forkdb.NewStateAdapter(zeroDB{})
	log, _ := test.NewNullLogger()
	insp := NewHookInspector(adapter, analysis, nil, logrus.NewEntry(log))
	hooks := insp.Hooks()

	hooks.OnEnter(1, byte(vm.CALL), common.Address{}, common.HexToAddress("0xdead"), []byte{1, 2, 3}, 0, nil)
	hooks.OnExit(1, nil, 0, nil, false)

	snaps, err := insp.Snapshots()
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestMergeOrdersByFrameThenProgramOrder(t *testing.T) {
	opcodeSnaps := []types.OpcodeSnapshot{
		{Frame: types.ExecutionFrameId{TraceEntryID: 1}, PC: 1},
	}
	hookSnaps := []types.HookSnapshot{
		{Frame: types.ExecutionFrameId{TraceEntryID: 0}, USID: 1},
	}
	log, _ := test.NewNullLogger()

	merged := Merge(opcodeSnaps, hookSnaps, logrus.NewEntry(log))
	require.Equal(t, 2, merged.Len())
	require.Equal(t, types.SnapshotHook, merged.At(0).Kind)
	require.Equal(t, types.SnapshotOpcode, merged.At(1).Kind)
}

func TestMergeLogsMixedKindsWithinOneFrame(t *testing.T) {
	frame := types.ExecutionFrameId{TraceEntryID: 5}
	opcodeSnaps := []types.OpcodeSnapshot{{Frame: frame, PC: 1}}
	hookSnaps := []types.HookSnapshot{{Frame: frame, USID: 1}}
	log, hook := test.NewNullLogger()

	Merge(opcodeSnaps, hookSnaps, logrus.NewEntry(log))

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			found = true
		}
	}
	require.True(t, found, "expected an error log for mixed-kind snapshots in one frame")
}
