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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/opcode"
	"github.com/edb-rs/edb/types"
)

// OpcodeInspector records an OpcodeSnapshot at every step whose executing
// bytecode address has no verified source. It is single-use: build one per
// re-execution pass.
type OpcodeInspector struct {
	adapter       *forkdb.StateAdapter
	noSourceAddrs map[common.Address]bool

	frames    frameTracker
	codeAddrs []common.Address // stack of bytecode addresses, pushed on entry

	lastMemory map[types.ExecutionFrameId]*types.SharedBytes
	lastOp     map[types.ExecutionFrameId]vm.OpCode
	calldata   map[types.ExecutionFrameId]*types.SharedBytes

	snapshots []types.OpcodeSnapshot
	err       error
}

// NewOpcodeInspector returns an inspector that only captures steps whose
// code address is a key of noSourceAddrs with a true value; contracts with
// source are left entirely to the hook-snapshot inspector.
func NewOpcodeInspector(adapter *forkdb.StateAdapter, noSourceAddrs map[common.Address]bool) *OpcodeInspector {
	return &OpcodeInspector{
		adapter:       adapter,
		noSourceAddrs: noSourceAddrs,
		lastMemory:    make(map[types.ExecutionFrameId]*types.SharedBytes),
		lastOp:        make(map[types.ExecutionFrameId]vm.OpCode),
		calldata:      make(map[types.ExecutionFrameId]*types.SharedBytes),
	}
}

// Hooks returns the core/tracing.Hooks set driving this inspector.
func (o *OpcodeInspector) Hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnEnter:  o.onEnter,
		OnExit:   o.onExit,
		OnOpcode: o.onOpcode,
	}
}

func (o *OpcodeInspector) onEnter(depth int, typ byte, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	frame := o.frames.enter()
	o.codeAddrs = append(o.codeAddrs, to)
	o.calldata[frame] = types.NewSharedBytes(append([]byte(nil), input...))
}

func (o *OpcodeInspector) onExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	o.frames.exit()
	if len(o.codeAddrs) > 0 {
		o.codeAddrs = o.codeAddrs[:len(o.codeAddrs)-1]
	}
}

func (o *OpcodeInspector) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	if o.err != nil || len(o.codeAddrs) == 0 {
		return
	}
	codeAddr := o.codeAddrs[len(o.codeAddrs)-1]
	if !o.noSourceAddrs[codeAddr] {
		return
	}

	frame := o.frames.current()
	opVal := vm.OpCode(op)

	db, cerr := forkdb.CaptureCommitted(o.adapter)
	if cerr != nil {
		o.err = cerr
		return
	}

	o.snapshots = append(o.snapshots, types.OpcodeSnapshot{
		Address:          scope.Address(),
		BytecodeAddress:  codeAddr,
		Frame:            frame,
		PC:               pc,
		Opcode:           op,
		Memory:           o.memoryFor(frame, opVal, scope),
		Stack:            append([]uint256.Int(nil), scope.StackData()...),
		Calldata:         o.calldata[frame],
		TransientStorage: forkdb.TransientSnapshot(o.adapter),
		DB:               db,
	})
}

// memoryFor returns a memory buffer to attach to the snapshot being built
// for op at frame. If the previous opcode captured in this frame did not
// write memory, the buffer is unchanged since then and the existing
// *SharedBytes is reused by reference; otherwise a fresh copy is taken.
func (o *OpcodeInspector) memoryFor(frame types.ExecutionFrameId, op vm.OpCode, scope tracing.OpContext) *types.SharedBytes {
	prevOp, hadPrev := o.lastOp[frame]
	o.lastOp[frame] = op
	if hadPrev && !opcode.ModifiesMemory(prevOp) {
		if shared, ok := o.lastMemory[frame]; ok {
			return shared
		}
	}
	shared := types.NewSharedBytes(append([]byte(nil), scope.MemoryData()...))
	o.lastMemory[frame] = shared
	return shared
}

// Snapshots returns every opcode snapshot captured so far, or the first
// error encountered while capturing a committed DB.
func (o *OpcodeInspector) Snapshots() ([]types.OpcodeSnapshot, error) {
	return o.snapshots, o.err
}
