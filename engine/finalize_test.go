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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/edb-rs/edb/replay"
	"github.com/edb-rs/edb/types"
)

func testLogEntry() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestFinalizeLinksTraceToEarliestSnapshot(t *testing.T) {
	trace := &types.Trace{Entries: []types.TraceEntry{
		{ID: 0, Target: target, CodeAddress: target},
		{ID: 1, Target: target, CodeAddress: target},
	}}
	snapshots := types.NewSnapshots([]types.Snapshot{
		{Kind: types.SnapshotOpcode, Opcode: &types.OpcodeSnapshot{Frame: types.NewExecutionFrameId(0), DB: zeroDB{}}},
		{Kind: types.SnapshotOpcode, Opcode: &types.OpcodeSnapshot{Frame: types.NewExecutionFrameId(0), DB: zeroDB{}}},
		{Kind: types.SnapshotOpcode, Opcode: &types.OpcodeSnapshot{Frame: types.NewExecutionFrameId(1), DB: zeroDB{}}},
	})

	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{ChainID: big.NewInt(1)}, testBlock(), testTx(), trace, snapshots, nil, nil, nil)
	log, _ := testLogEntry()
	require.NoError(t, ctx.Finalize(log))

	require.NotNil(t, ctx.Trace.Entries[0].FirstSnapshotID)
	require.Equal(t, 0, *ctx.Trace.Entries[0].FirstSnapshotID)
	require.NotNil(t, ctx.Trace.Entries[1].FirstSnapshotID)
	require.Equal(t, 2, *ctx.Trace.Entries[1].FirstSnapshotID)
}

func TestFinalizeRunsOnlyOnce(t *testing.T) {
	trace := &types.Trace{Entries: []types.TraceEntry{{ID: 0, Target: target, CodeAddress: target}}}
	snapshots := types.NewSnapshots([]types.Snapshot{
		{Kind: types.SnapshotOpcode, Opcode: &types.OpcodeSnapshot{Frame: types.NewExecutionFrameId(0), DB: zeroDB{}}},
	})
	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{ChainID: big.NewInt(1)}, testBlock(), testTx(), trace, snapshots, nil, nil, nil)
	log, _ := testLogEntry()

	require.NoError(t, ctx.Finalize(log))
	require.True(t, ctx.Finalized())

	// Mutate the linked id directly, then call Finalize again: sync.Once
	// must make the second call a no-op, leaving the mutation intact.
	sentinel := 99
	ctx.Trace.Entries[0].FirstSnapshotID = &sentinel
	require.NoError(t, ctx.Finalize(log))
	require.Equal(t, 99, *ctx.Trace.Entries[0].FirstSnapshotID)
}

func TestFinalizeStoresNilForFailedGetter(t *testing.T) {
	hookAddr := target
	hook := &types.HookSnapshot{Address: hookAddr, Frame: types.NewExecutionFrameId(0), DB: zeroDB{}}
	snapshots := types.NewSnapshots([]types.Snapshot{
		{Kind: types.SnapshotHook, Hook: hook},
	})
	trace := &types.Trace{Entries: []types.TraceEntry{{ID: 0, Target: hookAddr, CodeAddress: hookAddr}}}
	analysis := &types.AnalysisResult{
		Variables: []types.Variable{
			{UVID: 7, Name: "total", IsState: true, Scope: -1},
		},
	}

	ctx := Build(replay.ForkInfo{}, &params.ChainConfig{ChainID: big.NewInt(1)}, testBlock(), testTx(), trace, snapshots,
		map[common.Address]*types.Artifact{hookAddr: testArtifact(t, getterABI)},
		nil,
		map[common.Address]*types.AnalysisResult{hookAddr: analysis},
	)
	log, _ := testLogEntry()
	require.NoError(t, ctx.Finalize(log))

	require.Contains(t, hook.StateVariables, types.UVID(7))
	require.Nil(t, hook.StateVariables[types.UVID(7)])
}
