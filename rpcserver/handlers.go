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

// Package rpcserver implements spec.md §4.14's JSON-RPC 2.0 server: the ten
// edb_* methods, the GET /health endpoint, and the Created -> Built ->
// Serving -> Shutdown session state machine.
package rpcserver

import (
	"bytes"
	"context"
	"math/big"
	"runtime"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"golang.org/x/sync/errgroup"

	"github.com/edb-rs/edb/engine"
	"github.com/edb-rs/edb/eval"
	"github.com/edb-rs/edb/replay"
	"github.com/edb-rs/edb/types"
)

// EdbAPI is registered under the "edb" namespace with go-ethereum's rpc
// package, which lower-camel-cases each exported method name and prefixes
// it with the namespace — GetSnapshotCount becomes edb_getSnapshotCount —
// the same dispatch convention every geth-family node uses for its own
// eth_/net_/debug_ namespaces.
type EdbAPI struct {
	ctx *engine.Context
}

// NewEdbAPI wraps a finalized engine context for RPC dispatch.
func NewEdbAPI(ctx *engine.Context) *EdbAPI { return &EdbAPI{ctx: ctx} }

// maxParallelism bounds the breakpoint-hit fold to the host's CPU count,
// per spec.md §5's "bounded data parallelism" note.
func maxParallelism() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

func (a *EdbAPI) snapshotAt(id int) (*types.Snapshot, error) {
	if a.ctx.Snapshots == nil || id < 0 || id >= a.ctx.Snapshots.Len() {
		return nil, newRPCError(CodeSnapshotOutOfBounds, "snapshot %d out of bounds", id)
	}
	return a.ctx.Snapshots.At(id), nil
}

// GetSnapshotCount implements edb_getSnapshotCount.
func (a *EdbAPI) GetSnapshotCount(context.Context) (int, error) {
	if a.ctx.Snapshots == nil {
		return 0, nil
	}
	return a.ctx.Snapshots.Len(), nil
}

// GetSnapshotInfo implements edb_getSnapshotInfo.
func (a *EdbAPI) GetSnapshotInfo(_ context.Context, snapshotID int) (*SnapshotInfo, error) {
	sn, err := a.snapshotAt(snapshotID)
	if err != nil {
		return nil, err
	}
	info := &SnapshotInfo{ID: sn.ID(), Frame: sn.FrameID(), Prev: sn.PrevID(), Next: sn.NextID()}
	if sn.Kind == types.SnapshotOpcode {
		info.Kind = "opcode"
		info.Opcode = &OpcodeSnapshotInfo{
			Address:         sn.Opcode.Address,
			BytecodeAddress: sn.Opcode.BytecodeAddress,
			PC:              sn.Opcode.PC,
			Opcode:          sn.Opcode.Opcode,
		}
	} else {
		info.Kind = "hook"
		info.Hook = &HookSnapshotInfo{
			Address:         sn.Hook.Address,
			BytecodeAddress: sn.Hook.BytecodeAddress,
			Path:            sn.Hook.Path,
			Line:            sn.Hook.Line,
		}
	}
	return info, nil
}

// GetCode implements edb_getCode.
func (a *EdbAPI) GetCode(_ context.Context, snapshotID int) (*CodeResult, error) {
	sn, err := a.snapshotAt(snapshotID)
	if err != nil {
		return nil, err
	}
	if sn.Kind == types.SnapshotOpcode {
		code, codeErr := sn.DB().Code(sn.BytecodeAddress())
		if codeErr != nil {
			return nil, newRPCError(CodeInternalError, "read code for %s: %v", sn.BytecodeAddress(), codeErr)
		}
		return &CodeResult{Opcode: &OpcodeCodeResult{Address: sn.TargetAddress(), Code: disassemble(code)}}, nil
	}
	art, ok := a.ctx.Artifacts[sn.BytecodeAddress()]
	if !ok {
		return nil, newRPCError(CodeSourceNotFound, "no source for %s", sn.BytecodeAddress())
	}
	files := make(map[string]string, len(art.Input.Sources))
	for path, f := range art.Input.Sources {
		files[path] = f.Content
	}
	return &CodeResult{Source: &SourceCodeResult{Address: sn.TargetAddress(), Files: files}}, nil
}

// GetConstructorArgs implements edb_getConstructorArgs.
func (a *EdbAPI) GetConstructorArgs(_ context.Context, address common.Address) (hexutil.Bytes, error) {
	art, ok := a.ctx.Artifacts[address]
	if !ok {
		return nil, newRPCError(CodeInvalidAddress, "no artifact for %s", address)
	}
	return hexutil.Bytes(art.Metadata.ConstructorArgs), nil
}

// GetContractAbi implements edb_getContractAbi.
func (a *EdbAPI) GetContractAbi(_ context.Context, address common.Address, recompiled bool) (hexutil.Bytes, error) {
	set := a.ctx.Artifacts
	if recompiled {
		set = a.ctx.RecompiledArtifacts
	}
	art, ok := set[address]
	if !ok {
		return nil, newRPCError(CodeInvalidAddress, "no artifact for %s", address)
	}
	contract, ok := art.Contract()
	if !ok {
		return nil, newRPCError(CodeInvalidAddress, "no compiled contract for %s", address)
	}
	return hexutil.Bytes(contract.ABI), nil
}

// GetTrace implements edb_getTrace.
func (a *EdbAPI) GetTrace(context.Context) (*types.Trace, error) {
	if a.ctx.Trace == nil {
		return &types.Trace{}, nil
	}
	return a.ctx.Trace, nil
}

// GetStorage implements edb_getStorage.
func (a *EdbAPI) GetStorage(_ context.Context, snapshotID int, slot common.Hash) (*hexutil.Big, error) {
	sn, err := a.snapshotAt(snapshotID)
	if err != nil {
		return nil, err
	}
	val, readErr := sn.DB().Storage(sn.TargetAddress(), slot)
	if readErr != nil {
		return nil, newRPCError(CodeInternalError, "read storage: %v", readErr)
	}
	result := hexutil.Big(*new(big.Int).SetBytes(val.Bytes()))
	return &result, nil
}

// GetStorageDiff implements edb_getStorageDiff: before is read from
// snapshot 0, after from the requested snapshot, over the set of slots this
// address's opcode-level SSTORE/SLOAD traffic is known to have touched
// anywhere up to snapshotID. A contract whose storage is only ever touched
// through source-level (hook) snapshots has no such traffic recorded and
// reports an empty diff — see the `rpcserver` design-ledger entry for why a
// general type-directed storage-layout walk is out of scope here, same
// rationale as the evaluator's IndexExpr gap.
func (a *EdbAPI) GetStorageDiff(_ context.Context, snapshotID int) (map[common.Hash]StorageDiffEntry, error) {
	sn, err := a.snapshotAt(snapshotID)
	if err != nil {
		return nil, err
	}
	target := sn.TargetAddress()
	first := a.ctx.Snapshots.At(0)

	slots := map[common.Hash]struct{}{}
	for i := 0; i <= snapshotID; i++ {
		s := a.ctx.Snapshots.At(i)
		if s.Kind != types.SnapshotOpcode || s.Opcode.Address != target {
			continue
		}
		op := s.Opcode.Opcode
		if op != byte(vm.SLOAD) && op != byte(vm.SSTORE) {
			continue
		}
		if len(s.Opcode.Stack) == 0 {
			continue
		}
		top := s.Opcode.Stack[len(s.Opcode.Stack)-1]
		slots[top.Bytes32()] = struct{}{}
	}

	out := make(map[common.Hash]StorageDiffEntry, len(slots))
	for slot := range slots {
		beforeVal, err := first.DB().Storage(target, slot)
		if err != nil {
			return nil, newRPCError(CodeInternalError, "read before-storage: %v", err)
		}
		afterVal, err := sn.DB().Storage(target, slot)
		if err != nil {
			return nil, newRPCError(CodeInternalError, "read after-storage: %v", err)
		}
		out[slot] = StorageDiffEntry{
			Before: hexutil.Big(*new(big.Int).SetBytes(beforeVal.Bytes())),
			After:  hexutil.Big(*new(big.Int).SetBytes(afterVal.Bytes())),
		}
	}
	return out, nil
}

// GetBreakpointHits implements edb_getBreakpointHits: a parallel fold over
// every snapshot per spec.md §5's "scanning all snapshots for a breakpoint
// hit" concurrency point, bounded by CPU cores via errgroup.SetLimit.
func (a *EdbAPI) GetBreakpointHits(ctx context.Context, bp types.Breakpoint) ([]int, error) {
	if a.ctx.Snapshots == nil {
		return nil, nil
	}
	n := a.ctx.Snapshots.Len()
	hits := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			sn := a.ctx.Snapshots.At(i)
			if !bp.MatchesLocation(sn) {
				return nil
			}
			if bp.Condition == nil {
				hits[i] = true
				return nil
			}
			ok, err := a.evalCondition(sn, *bp.Condition)
			if err != nil {
				return nil // an unevaluable condition simply never hits
			}
			hits[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newRPCError(CodeInternalError, "breakpoint scan: %v", err)
	}

	out := make([]int, 0)
	for i, hit := range hits {
		if hit {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (a *EdbAPI) evalCondition(sn *types.Snapshot, expr string) (bool, error) {
	v, err := eval.Evaluate(a.envFor(sn), "bool("+expr+")")
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, nil
	}
	return b, nil
}

// EvalOnSnapshot implements edb_evalOnSnapshot.
func (a *EdbAPI) EvalOnSnapshot(_ context.Context, snapshotID int, expr string) (*EvalResult, error) {
	sn, err := a.snapshotAt(snapshotID)
	if err != nil {
		return nil, err
	}
	v, evalErr := eval.Evaluate(a.envFor(sn), expr)
	if evalErr != nil {
		msg := evalErr.Error()
		return &EvalResult{Err: &msg}, nil
	}
	return &EvalResult{Ok: &v}, nil
}

func (a *EdbAPI) envFor(sn *types.Snapshot) *eval.Env {
	var origin common.Address
	if a.ctx.Tx != nil {
		signer := gethtypes.MakeSigner(a.ctx.Config, a.ctx.Block.Number(), a.ctx.Block.Time())
		if s, err := gethtypes.Sender(signer, a.ctx.Tx); err == nil {
			origin = s
		}
	}
	var analysis *types.AnalysisResult
	if sn.Kind == types.SnapshotHook {
		analysis = a.ctx.AnalysisResults[sn.BytecodeAddress()]
	}
	return &eval.Env{
		BlockCtx:    replay.BlockContext(a.ctx.Block, a.ctx.ForkInfo.HardforkID),
		ChainConfig: a.ctx.Config,
		Snapshot:    sn,
		Analysis:    analysis,
		TxOrigin:    origin,
		ABIFor: func(addr common.Address) (abi.ABI, bool) {
			raw, ok := a.ctx.ABIFor(addr)
			if !ok {
				return abi.ABI{}, false
			}
			parsed, err := abi.JSON(bytes.NewReader(raw))
			if err != nil {
				return abi.ABI{}, false
			}
			return parsed, true
		},
	}
}
