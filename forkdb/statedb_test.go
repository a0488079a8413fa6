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

package forkdb

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// emptyDB always reports a zero account/slot, standing in for a fresh fork
// with no RPC or cache layer behind it.
type emptyDB struct{}

func (emptyDB) Basic(common.Address) (*Account, error) {
	return &Account{Balance: big.NewInt(0)}, nil
}
func (emptyDB) CodeByHash(common.Hash) ([]byte, error)               { return nil, nil }
func (emptyDB) Storage(common.Address, common.Hash) (common.Hash, error) {
	return common.Hash{}, nil
}
func (emptyDB) BlockHash(uint64) (common.Hash, error) { return common.Hash{}, nil }
func (emptyDB) Commit(StateDiff) error                { return nil }
func (emptyDB) Clone() DB                             { return emptyDB{} }

func TestStateAdapterBalanceRoundTrip(t *testing.T) {
	s := NewStateAdapter(emptyDB{})
	addr := common.HexToAddress("0x1")

	s.AddBalance(addr, uint256.NewInt(100), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(100), s.GetBalance(addr))

	s.SubBalance(addr, uint256.NewInt(40), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(60), s.GetBalance(addr))
}

func TestStateAdapterRevertToSnapshot(t *testing.T) {
	s := NewStateAdapter(emptyDB{})
	addr := common.HexToAddress("0x1")
	key := common.HexToHash("0x2")

	id := s.Snapshot()
	s.SetState(addr, key, common.HexToHash("0x42"))
	require.Equal(t, common.HexToHash("0x42"), s.GetState(addr, key))

	s.RevertToSnapshot(id)
	require.Equal(t, common.Hash{}, s.GetState(addr, key))
}

func TestStateAdapterNestedRevert(t *testing.T) {
	s := NewStateAdapter(emptyDB{})
	addr := common.HexToAddress("0x1")

	outer := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(10), tracing.BalanceChangeUnspecified)
	inner := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(20), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(30), s.GetBalance(addr))

	s.RevertToSnapshot(inner)
	require.Equal(t, uint256.NewInt(10), s.GetBalance(addr))

	s.RevertToSnapshot(outer)
	require.True(t, s.GetBalance(addr).IsZero())
}

func TestStateAdapterAccessList(t *testing.T) {
	s := NewStateAdapter(emptyDB{})
	addr := common.HexToAddress("0x1")
	slot := common.HexToHash("0x2")

	require.False(t, s.AddressInAccessList(addr))
	s.AddSlotToAccessList(addr, slot)
	addrOK, slotOK := s.SlotInAccessList(addr, slot)
	require.True(t, addrOK)
	require.True(t, slotOK)
}

func TestStateAdapterSelfDestruct6780(t *testing.T) {
	s := NewStateAdapter(emptyDB{})
	created := common.HexToAddress("0x1")
	existing := common.HexToAddress("0x2")

	s.CreateContract(created)
	s.AddBalance(created, uint256.NewInt(5), tracing.BalanceChangeUnspecified)
	_, destroyed := s.SelfDestruct6780(created)
	require.True(t, destroyed)
	require.True(t, s.HasSelfDestructed(created))

	_, destroyed = s.SelfDestruct6780(existing)
	require.False(t, destroyed)
}

func TestOverlayCloneIsolatesMutations(t *testing.T) {
	base := NewOverlay(emptyDB{})
	addr := common.HexToAddress("0x1")

	diff := NewStateDiff()
	diff.Accounts[addr] = &Account{Balance: big.NewInt(7), Nonce: 1}
	require.NoError(t, base.Commit(diff))

	clone := base.Clone()
	cloneDiff := NewStateDiff()
	cloneDiff.Accounts[addr] = &Account{Balance: big.NewInt(99), Nonce: 2}
	require.NoError(t, clone.Commit(cloneDiff))

	baseAcc, err := base.Basic(addr)
	require.NoError(t, err)
	require.Equal(t, int64(7), baseAcc.Balance.Int64())

	cloneAcc, err := clone.Basic(addr)
	require.NoError(t, err)
	require.Equal(t, int64(99), cloneAcc.Balance.Int64())
}

func TestDbErrorFormatsWithoutArgs(t *testing.T) {
	err := NewDbError("plain message")
	require.Equal(t, "plain message", err.Error())
}
