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
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/spec"
	"github.com/edb-rs/edb/types"
)

type hookKind int

const (
	hookBeforeStep hookKind = iota
	hookVariableUpdate
)

// hookPayloadArgs decodes the (string, uint256) prefix every probe call
// carries. A BeforeStep call's string is the file path and its uint is the
// USID; a VariableUpdate call's string is the literal "update" and its uint
// is the UVID. The third argument a VariableUpdate call also carries (the
// updated value, whose Solidity type varies per variable) is deliberately
// not decoded here: nothing in this module emits VariableUpdate calls yet,
// since resolving an assignment target to a UVID needs the complete
// variable arena (see the instrument package), so this branch exists for
// forward compatibility only.
var hookPayloadArgs = buildHookPayloadArgs()

func buildHookPayloadArgs() abi.Arguments {
	strTy, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	uintTy, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: strTy}, {Type: uintTy}}
}

func decodeHookPayload(data []byte) (kind hookKind, path string, n uint64, ok bool) {
	vals, err := hookPayloadArgs.UnpackValues(data)
	if err != nil || len(vals) != 2 {
		return
	}
	s, isStr := vals[0].(string)
	num, isNum := vals[1].(*big.Int)
	if !isStr || !isNum {
		return
	}
	if s == "update" {
		return hookVariableUpdate, "", num.Uint64(), true
	}
	return hookBeforeStep, s, num.Uint64(), true
}

// HookInspector records a HookSnapshot for every CALL to the probe
// precompile address an instrumented contract makes. It is single-use:
// build one per re-execution pass over code that has already had
// instrument.Instrument applied.
type HookInspector struct {
	adapter  *forkdb.StateAdapter
	analysis *types.AnalysisResult
	sources  map[string]string // path -> original source, for line resolution
	log      *logrus.Entry

	frames    frameTracker
	codeAddrs []common.Address // stack of bytecode addresses, pushed on entry

	snapshots []types.HookSnapshot
	err       error
}

// NewHookInspector returns an inspector resolving hook payloads against
// analysis and computing source lines against sources (keyed by the same
// paths analysis.Files records).
func NewHookInspector(adapter *forkdb.StateAdapter, analysis *types.AnalysisResult, sources map[string]string, log *logrus.Entry) *HookInspector {
	return &HookInspector{adapter: adapter, analysis: analysis, sources: sources, log: log}
}

// Hooks returns the core/tracing.Hooks set driving this inspector.
func (h *HookInspector) Hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnEnter: h.onEnter,
		OnExit:  h.onExit,
	}
}

// onEnter fires for every CALL/CREATE in the transaction, not just probe
// calls; a CALL into the probe precompile is captured here and then pushed
// onto the frame stack like any other call, so later real calls still get
// the same sequential TraceEntryID the call tracer assigned them. codeAddrs
// mirrors OpcodeInspector's stack: the probe call's own "to" is always the
// precompile address, so the bytecode address actually executing when the
// probe fired is the frame below it, the top of codeAddrs before this call
// is pushed.
func (h *HookInspector) onEnter(depth int, typ byte, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	if to == spec.ProbePrecompileAddress {
		bytecodeAddr := from
		if len(h.codeAddrs) > 0 {
			bytecodeAddr = h.codeAddrs[len(h.codeAddrs)-1]
		}
		h.captureHook(h.frames.current(), from, bytecodeAddr, input)
	}
	h.frames.enter()
	h.codeAddrs = append(h.codeAddrs, to)
}

func (h *HookInspector) onExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	h.frames.exit()
	if len(h.codeAddrs) > 0 {
		h.codeAddrs = h.codeAddrs[:len(h.codeAddrs)-1]
	}
}

// captureHook records a hook snapshot. addr is the storage/target address
// the probe call originates from (from); bytecodeAddr is the code address
// actually executing at that point, which differs from addr under
// DELEGATECALL/CALLCODE (see calltrace.Tracer.onEnter).
func (h *HookInspector) captureHook(frame types.ExecutionFrameId, addr, bytecodeAddr common.Address, input []byte) {
	if h.err != nil {
		return
	}
	kind, path, n, ok := decodeHookPayload(input)
	if !ok {
		h.log.WithField("address", addr).Warn("snapshot: malformed probe precompile payload, skipping")
		return
	}

	switch kind {
	case hookVariableUpdate:
		// Unreachable today; see hookPayloadArgs' doc comment.
		return
	case hookBeforeStep:
		usid := types.USID(n)
		step, found := h.analysis.StepAt(usid)
		if !found {
			h.log.WithField("usid", usid).Warn("snapshot: hook references unknown usid")
			return
		}

		db, derr := forkdb.CaptureCommitted(h.adapter)
		if derr != nil {
			h.err = derr
			return
		}

		h.snapshots = append(h.snapshots, types.HookSnapshot{
			Address:          addr,
			BytecodeAddress:  bytecodeAddr,
			Frame:            frame,
			USID:             usid,
			Path:             path,
			Range:            step.Range,
			Line:             lineAt(h.sources[path], step.Range.Start),
			TransientStorage: forkdb.TransientSnapshot(h.adapter),
			DB:               db,
		})
	}
}

// lineAt returns the 1-based line number of offset within content, or 0 if
// content is empty (source unavailable) or offset is out of range.
func lineAt(content string, offset int) int {
	if content == "" || offset < 0 || offset > len(content) {
		return 0
	}
	return strings.Count(content[:offset], "\n") + 1
}

// Snapshots returns every hook snapshot captured so far, or the first error
// encountered while capturing a committed DB.
func (h *HookInspector) Snapshots() ([]types.HookSnapshot, error) {
	return h.snapshots, h.err
}
