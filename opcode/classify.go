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

// Package opcode classifies EVM opcodes by the kind of state they touch,
// on top of go-ethereum's vm.OpCode table.
package opcode

import "github.com/ethereum/go-ethereum/core/vm"

// ModifiesEVMState reports whether op modifies persistent EVM state:
// storage (SSTORE), account state (CREATE/CREATE2/SELFDESTRUCT), balances
// (CALL/CALLCODE — the only call opcodes that can transfer value), or logs
// (LOG0-LOG4). DELEGATECALL/STATICCALL are excluded: they cannot transfer
// value, and gas accounting is not considered state for this purpose.
func ModifiesEVMState(op vm.OpCode) bool {
	switch op {
	case vm.SSTORE,
		vm.CREATE, vm.CREATE2, vm.SELFDESTRUCT,
		vm.CALL, vm.CALLCODE,
		vm.LOG0, vm.LOG1, vm.LOG2, vm.LOG3, vm.LOG4:
		return true
	default:
		return false
	}
}

// ModifiesTransientStorage reports whether op writes transient storage
// (EIP-1153). Only TSTORE does; TLOAD merely reads it.
func ModifiesTransientStorage(op vm.OpCode) bool {
	return op == vm.TSTORE
}

// IsMessageCall reports whether op invokes another contract context:
// CREATE, CREATE2, CALL, CALLCODE, DELEGATECALL, or STATICCALL.
func IsMessageCall(op vm.OpCode) bool {
	switch op {
	case vm.CREATE, vm.CREATE2, vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL:
		return true
	default:
		return false
	}
}

// ModifiesMemory reports whether op can write to the current frame's
// memory, the condition an opcode snapshot inspector uses to decide
// whether its cheaply-shared memory buffer must be copied before the next
// step instead of reused by reference.
func ModifiesMemory(op vm.OpCode) bool {
	switch op {
	case vm.MSTORE, vm.MSTORE8, vm.MCOPY,
		vm.CALLDATACOPY, vm.CODECOPY, vm.EXTCODECOPY, vm.RETURNDATACOPY,
		vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL:
		return true
	default:
		return false
	}
}
