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

package eval

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/edb-rs/edb/types"
)

// CallResult is the outcome of a single-shot derived-EVM call.
type CallResult struct {
	Output   []byte
	Reverted bool
	Halted   bool
	HaltErr  error
}

// Call executes calldata against target inside a fresh EVM over committed,
// as caller, never committing the result back: exactly spec.md §4.13's
// "transact_one" derived-EVM call. Gas, nonce, and balance checks are
// relaxed (math.MaxUint64 gas, no sender validation) since the point is to
// observe a view's return value, not to charge or authorize anything.
func Call(blockCtx vm.BlockContext, cfg *params.ChainConfig, committed types.CommittedDB, transient types.TransientStorage, caller, target common.Address, calldata []byte, value *uint256.Int) CallResult {
	if value == nil {
		value = uint256.NewInt(0)
	}
	state := newDerivedState(committed, transient)
	evm := vm.NewEVM(blockCtx, state, cfg, vm.Config{})
	evm.SetTxContext(core.TxContext{Origin: caller, GasPrice: big.NewInt(0)})

	ret, _, err := evm.Call(vm.AccountRef(caller), target, calldata, math.MaxUint64, value)
	if err == nil {
		return CallResult{Output: ret}
	}
	if err == vm.ErrExecutionReverted {
		return CallResult{Output: ret, Reverted: true}
	}
	return CallResult{Halted: true, HaltErr: err}
}

// CallZeroArg is Call specialized to a 4-byte-selector, no-argument getter —
// the shape of an auto-generated public state-variable accessor.
func CallZeroArg(blockCtx vm.BlockContext, cfg *params.ChainConfig, committed types.CommittedDB, transient types.TransientStorage, caller, target common.Address, selector [4]byte) CallResult {
	return Call(blockCtx, cfg, committed, transient, caller, target, selector[:], nil)
}
