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

// Package calltrace builds the call tree of a single transaction via a
// core/tracing.Hooks inspector, the same mechanism the teacher's simulation
// tracer uses to observe call frames, adapted to record EDB's Trace shape
// instead of gas-accounting summaries.
package calltrace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/edb-rs/edb/types"
)

// Result is what a completed call-trace pass hands back to the pipeline.
type Result struct {
	Trace            types.Trace
	VisitedAddresses map[common.Address]bool // value is was-deployed-here
}

// Tracer accumulates TraceEntry values as the EVM reports call frame
// enter/exit events. It is single-use: build one per target-tx execution.
type Tracer struct {
	entries  []types.TraceEntry
	stack    []int // indices into entries, current open frames
	visited  map[common.Address]bool
	finished bool
}

// New returns a Tracer ready to be installed via Hooks.
func New() *Tracer {
	return &Tracer{visited: make(map[common.Address]bool)}
}

// Hooks returns the core/tracing.Hooks that drive this tracer. Only the
// call-frame lifecycle hooks are populated; opcode-level capture is the
// concern of the snapshot package's own inspectors running in parallel
// passes.
func (t *Tracer) Hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnEnter: t.onEnter,
		OnExit:  t.onExit,
	}
}

func (t *Tracer) onEnter(depth int, typ byte, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	id := len(t.entries)
	var parentID *int
	if len(t.stack) > 0 {
		p := t.stack[len(t.stack)-1]
		parentID = &p
	}

	kind := classify(vm.OpCode(typ))
	v := new(uint256.Int)
	if value != nil {
		v, _ = uint256.FromBig(value)
	}

	// Under DELEGATECALL/CALLCODE the storage/execution context (Target)
	// stays with the calling frame; only the code being run (CodeAddress)
	// comes from `to`. Every other call kind runs in its own context.
	target := to
	if (kind.CallScheme == types.SchemeDelegateCall || kind.CallScheme == types.SchemeCallCode) && len(t.stack) > 0 {
		target = t.entries[t.stack[len(t.stack)-1]].Target
	}

	entry := types.TraceEntry{
		ID:          id,
		ParentID:    parentID,
		Depth:       depth,
		Kind:        kind,
		Caller:      from,
		Target:      target,
		CodeAddress: to,
		Input:       append([]byte(nil), input...),
		Value:       v,
	}
	if kind.IsCreate {
		if _, seen := t.visited[to]; !seen {
			entry.CreatedContract = true
		}
		t.visited[to] = true
	} else if _, seen := t.visited[to]; !seen {
		t.visited[to] = false
	}

	t.entries = append(t.entries, entry)
	t.stack = append(t.stack, id)
}

func (t *Tracer) onExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	if len(t.stack) == 0 {
		return
	}
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]

	entry := &t.entries[top]
	switch {
	case reverted:
		entry.Result = types.CallResult{Kind: types.ResultRevert, Output: append([]byte(nil), output...)}
	case err != nil:
		entry.Result = types.CallResult{Kind: types.ResultHalt, Reason: err.Error()}
	default:
		entry.Result = types.CallResult{Kind: types.ResultSuccess, Output: append([]byte(nil), output...)}
		if entry.Kind.IsCreate {
			entry.Bytecode = append([]byte(nil), output...)
		}
	}
}

func classify(op vm.OpCode) types.CallKind {
	switch op {
	case vm.CREATE:
		return types.CallKind{IsCreate: true, CreateScheme: types.SchemeCreate}
	case vm.CREATE2:
		return types.CallKind{IsCreate: true, CreateScheme: types.SchemeCreate2}
	case vm.CALLCODE:
		return types.CallKind{CallScheme: types.SchemeCallCode}
	case vm.DELEGATECALL:
		return types.CallKind{CallScheme: types.SchemeDelegateCall}
	case vm.STATICCALL:
		return types.CallKind{CallScheme: types.SchemeStaticCall}
	default:
		return types.CallKind{CallScheme: types.SchemeCall}
	}
}

// Result finalizes the trace. Safe to call once, after the traced EVM run
// has returned.
func (t *Tracer) Result() Result {
	return Result{
		Trace:            types.Trace{Entries: t.entries},
		VisitedAddresses: t.visited,
	}
}
