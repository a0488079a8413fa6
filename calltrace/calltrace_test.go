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

package calltrace

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/require"

	"github.com/edb-rs/edb/types"
)

func TestCallTraceParentChildAndDepth(t *testing.T) {
	tr := New()
	hooks := tr.Hooks()

	a := common.HexToAddress("0xa")
	b := common.HexToAddress("0xb")

	hooks.OnEnter(0, byte(vm.CALL), a, b, nil, 1000, big.NewInt(0))
	hooks.OnEnter(1, byte(vm.STATICCALL), b, a, nil, 500, nil)
	hooks.OnExit(1, []byte("ok"), 10, nil, false)
	hooks.OnExit(0, []byte("ok"), 50, nil, false)

	result := tr.Result()
	require.Len(t, result.Trace.Entries, 2)

	root := result.Trace.Entries[0]
	child := result.Trace.Entries[1]
	require.Nil(t, root.ParentID)
	require.NotNil(t, child.ParentID)
	require.Equal(t, root.ID, *child.ParentID)
	require.Equal(t, 1, child.Depth)
	require.Equal(t, types.ResultSuccess, root.Result.Kind)
}

func TestCallTraceDelegateCallInheritsTarget(t *testing.T) {
	tr := New()
	hooks := tr.Hooks()

	caller := common.HexToAddress("0x1")
	proxy := common.HexToAddress("0x2")
	library := common.HexToAddress("0x3")

	hooks.OnEnter(0, byte(vm.CALL), caller, proxy, nil, 1000, big.NewInt(0))
	hooks.OnEnter(1, byte(vm.DELEGATECALL), proxy, library, nil, 900, nil)
	hooks.OnExit(1, nil, 10, nil, false)
	hooks.OnExit(0, nil, 20, nil, false)

	result := tr.Result()
	delegate := result.Trace.Entries[1]
	require.Equal(t, proxy, delegate.Target, "delegatecall must keep the caller's storage context")
	require.Equal(t, library, delegate.CodeAddress, "delegatecall runs the callee's code")
}

func TestCallTraceMarksCreatedContract(t *testing.T) {
	tr := New()
	hooks := tr.Hooks()

	deployer := common.HexToAddress("0x1")
	newContract := common.HexToAddress("0xdead")

	hooks.OnEnter(0, byte(vm.CREATE), deployer, newContract, nil, 1000, big.NewInt(0))
	hooks.OnExit(0, []byte{0x60, 0x00}, 100, nil, false)

	result := tr.Result()
	require.True(t, result.Trace.Entries[0].CreatedContract)
	require.Equal(t, []byte{0x60, 0x00}, result.Trace.Entries[0].Bytecode)
	require.True(t, result.VisitedAddresses[newContract])
}

func TestCallTraceRevertAndHalt(t *testing.T) {
	tr := New()
	hooks := tr.Hooks()

	a := common.HexToAddress("0x1")
	b := common.HexToAddress("0x2")

	hooks.OnEnter(0, byte(vm.CALL), a, b, nil, 1000, big.NewInt(0))
	hooks.OnExit(0, []byte("reverted"), 1000, nil, true)
	result := tr.Result()
	require.Equal(t, types.ResultRevert, result.Trace.Entries[0].Result.Kind)

	tr2 := New()
	hooks2 := tr2.Hooks()
	hooks2.OnEnter(0, byte(vm.CALL), a, b, nil, 1000, big.NewInt(0))
	hooks2.OnExit(0, nil, 1000, errors.New("out of gas"), false)
	result2 := tr2.Result()
	require.Equal(t, types.ResultHalt, result2.Trace.Entries[0].Result.Kind)
	require.Equal(t, "out of gas", result2.Trace.Entries[0].Result.Reason)
}
