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
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/eval"
	"github.com/edb-rs/edb/replay"
	"github.com/edb-rs/edb/types"
)

// Finalize performs spec.md §4.12's two build-time passes: trace linking
// and state-variable pre-evaluation. It must run exactly once, after Build
// and before the context is handed to the RPC server.
func (c *Context) Finalize(log *logrus.Entry) error {
	var err error
	c.finalizeOnce.Do(func() {
		c.linkTrace()
		err = c.prefetchStateVariables(log)
		c.finalized = err == nil
	})
	return err
}

// linkTrace sets TraceEntry.FirstSnapshotID to the lowest snapshot index
// whose frame id's TraceEntryID matches the entry, per spec.md §4.12 point 1.
func (c *Context) linkTrace() {
	if c.Trace == nil || c.Snapshots == nil {
		return
	}
	first := make(map[int]int, len(c.Trace.Entries))
	for i := 0; i < c.Snapshots.Len(); i++ {
		id := c.Snapshots.At(i).FrameID().TraceEntryID
		if _, ok := first[id]; !ok {
			first[id] = i
		}
	}
	for i := range c.Trace.Entries {
		if idx, ok := first[c.Trace.Entries[i].ID]; ok {
			v := idx
			c.Trace.Entries[i].FirstSnapshotID = &v
		}
	}
}

// prefetchStateVariables evaluates every zero-argument ABI getter that
// corresponds to a state variable, for every hook snapshot, and caches the
// decoded result on HookSnapshot.StateVariables. A getter's own failure
// (revert, halt, decode error) stores a nil entry rather than aborting the
// whole pass: spec.md §4.12 point 2 says failures store None, not that one
// bad variable should fail the build.
func (c *Context) prefetchStateVariables(log *logrus.Entry) error {
	if c.Snapshots == nil {
		return nil
	}
	blockCtx := replay.BlockContext(c.Block, c.ForkInfo.HardforkID)
	caller := common.Address{}
	if c.Tx != nil {
		signer := gethtypes.MakeSigner(c.Config, c.Block.Number(), c.Block.Time())
		if s, err := gethtypes.Sender(signer, c.Tx); err == nil {
			caller = s
		}
	}

	abiCache := make(map[common.Address]abi.ABI)

	for i := 0; i < c.Snapshots.Len(); i++ {
		sn := c.Snapshots.At(i)
		if sn.Kind != types.SnapshotHook {
			continue
		}
		hook := sn.Hook
		addr := hook.Address
		analysis, ok := c.AnalysisResults[addr]
		if !ok {
			continue
		}
		contractABI, ok := abiCache[addr]
		if !ok {
			parsed, err := c.parsedABI(addr)
			if err != nil {
				log.WithField("address", addr).WithError(err).Warn("engine: no ABI for state-variable prefetch")
				continue
			}
			contractABI = parsed
			abiCache[addr] = parsed
		}

		if hook.StateVariables == nil {
			hook.StateVariables = make(map[types.UVID]any, len(analysis.Variables))
		}
		for _, v := range analysis.Variables {
			if !v.IsState {
				continue
			}
			method, ok := contractABI.Methods[v.Name]
			if !ok || len(method.Inputs) != 0 {
				continue
			}
			var selector [4]byte
			copy(selector[:], method.ID)
			result := eval.CallZeroArg(blockCtx, c.Config, hook.DB, hook.TransientStorage, caller, addr, selector)
			if result.Halted || result.Reverted {
				hook.StateVariables[v.UVID] = nil
				continue
			}
			outVals, err := method.Outputs.Unpack(result.Output)
			if err != nil || len(outVals) == 0 {
				hook.StateVariables[v.UVID] = nil
				continue
			}
			hook.StateVariables[v.UVID] = decodeSingle(outVals[0], method.Outputs[0].Type)
		}
	}
	return nil
}

// parsedABI returns the as-deployed ABI for addr, parsed once and cached by
// the caller.
func (c *Context) parsedABI(addr common.Address) (abi.ABI, error) {
	raw, ok := c.ABIFor(addr)
	if !ok {
		return abi.ABI{}, fmt.Errorf("no artifact for %s", addr)
	}
	return abi.JSON(bytes.NewReader(raw))
}

// decodeSingle wraps a single decoded abi return value as a types.Value,
// the shape HookSnapshot.StateVariables and the eval package agree on.
func decodeSingle(v any, t abi.Type) types.Value {
	return types.Value{Type: t.String(), Val: v}
}
