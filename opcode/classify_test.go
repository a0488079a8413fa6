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

package opcode

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/assert"
)

func TestModifiesEVMState(t *testing.T) {
	for _, op := range []vm.OpCode{vm.SSTORE, vm.CREATE, vm.CREATE2, vm.SELFDESTRUCT, vm.CALL, vm.CALLCODE, vm.LOG0, vm.LOG1, vm.LOG2, vm.LOG3, vm.LOG4} {
		assert.Truef(t, ModifiesEVMState(op), "%s should modify state", op)
	}
	for _, op := range []vm.OpCode{vm.SLOAD, vm.MSTORE, vm.ADD, vm.RETURN, vm.REVERT, vm.DELEGATECALL, vm.STATICCALL} {
		assert.Falsef(t, ModifiesEVMState(op), "%s should not modify state", op)
	}
}

func TestModifiesTransientStorage(t *testing.T) {
	assert.True(t, ModifiesTransientStorage(vm.TSTORE))
	assert.False(t, ModifiesTransientStorage(vm.TLOAD))
	assert.False(t, ModifiesTransientStorage(vm.SSTORE))
}

func TestIsMessageCall(t *testing.T) {
	for _, op := range []vm.OpCode{vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL, vm.CREATE, vm.CREATE2} {
		assert.Truef(t, IsMessageCall(op), "%s should be a message call", op)
	}
	for _, op := range []vm.OpCode{vm.SSTORE, vm.SLOAD, vm.ADD, vm.JUMP, vm.RETURN, vm.REVERT} {
		assert.Falsef(t, IsMessageCall(op), "%s should not be a message call", op)
	}
}

func TestModifiesMemory(t *testing.T) {
	for _, op := range []vm.OpCode{vm.MSTORE, vm.MSTORE8, vm.MCOPY, vm.CALLDATACOPY, vm.CODECOPY, vm.EXTCODECOPY, vm.RETURNDATACOPY, vm.CALL, vm.STATICCALL} {
		assert.Truef(t, ModifiesMemory(op), "%s should modify memory", op)
	}
	for _, op := range []vm.OpCode{vm.MLOAD, vm.SSTORE, vm.ADD, vm.LOG0, vm.CREATE} {
		assert.Falsef(t, ModifiesMemory(op), "%s should not modify memory", op)
	}
}
