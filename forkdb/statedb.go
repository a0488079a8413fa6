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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// journalEntry is a single undoable mutation recorded since the last
// Snapshot, so RevertToSnapshot can unwind exactly what changed.
type journalEntry func(s *StateAdapter)

// StateAdapter implements go-ethereum's core/vm.StateDB on top of a forkdb
// DB stack. It is the object every EVM instance (replay, target-tx,
// tweak-tracer, derived-EVM) executes against; each carries its own
// journal, access list, and transient storage, but they can all share the
// same underlying DB stack via Clone.
type StateAdapter struct {
	db DB

	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	codes    map[common.Address][]byte
	codeHash map[common.Address]common.Hash
	storage  map[common.Address]map[common.Hash]common.Hash
	created  map[common.Address]bool
	destruct map[common.Address]bool

	transient map[common.Address]map[common.Hash]common.Hash

	refund uint64

	accessAddrs map[common.Address]bool
	accessSlots map[common.Address]map[common.Hash]bool

	logs      []*types.Log
	preimages map[common.Hash][]byte
	journal   []journalEntry
}

// NewStateAdapter builds a StateAdapter reading through to db.
func NewStateAdapter(db DB) *StateAdapter {
	return &StateAdapter{
		db:          db,
		balances:    make(map[common.Address]*uint256.Int),
		nonces:      make(map[common.Address]uint64),
		codes:       make(map[common.Address][]byte),
		codeHash:    make(map[common.Address]common.Hash),
		storage:     make(map[common.Address]map[common.Hash]common.Hash),
		created:     make(map[common.Address]bool),
		destruct:    make(map[common.Address]bool),
		transient:   make(map[common.Address]map[common.Hash]common.Hash),
		accessAddrs: make(map[common.Address]bool),
		accessSlots: make(map[common.Address]map[common.Hash]bool),
		preimages:   make(map[common.Hash][]byte),
	}
}

// DB returns the underlying forkdb stack, for building a derived EVM or a
// snapshot's committed DB.
func (s *StateAdapter) DB() DB { return s.db }

func (s *StateAdapter) balanceOf(addr common.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return b
	}
	acc, err := s.db.Basic(addr)
	if err != nil || acc == nil || acc.Balance == nil {
		return uint256.NewInt(0)
	}
	b, _ := uint256.FromBig(acc.Balance)
	return b
}

func (s *StateAdapter) CreateAccount(addr common.Address) {
	prevBal := s.balanceOf(addr)
	s.journal = append(s.journal, func(s *StateAdapter) { s.balances[addr] = prevBal })
	s.created[addr] = true
	if _, ok := s.balances[addr]; !ok {
		s.balances[addr] = prevBal
	}
}

func (s *StateAdapter) CreateContract(addr common.Address) {
	s.created[addr] = true
}

func (s *StateAdapter) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	prev := *s.balanceOf(addr)
	s.journal = append(s.journal, func(s *StateAdapter) { s.balances[addr] = &prev })
	next := new(uint256.Int).Sub(&prev, amount)
	s.balances[addr] = next
	return prev
}

func (s *StateAdapter) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	prev := *s.balanceOf(addr)
	s.journal = append(s.journal, func(s *StateAdapter) { s.balances[addr] = &prev })
	next := new(uint256.Int).Add(&prev, amount)
	s.balances[addr] = next
	return prev
}

func (s *StateAdapter) GetBalance(addr common.Address) *uint256.Int {
	return s.balanceOf(addr)
}

func (s *StateAdapter) GetNonce(addr common.Address) uint64 {
	if n, ok := s.nonces[addr]; ok {
		return n
	}
	acc, err := s.db.Basic(addr)
	if err != nil || acc == nil {
		return 0
	}
	return acc.Nonce
}

func (s *StateAdapter) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	prev := s.GetNonce(addr)
	s.journal = append(s.journal, func(s *StateAdapter) { s.nonces[addr] = prev })
	s.nonces[addr] = nonce
}

func (s *StateAdapter) GetCodeHash(addr common.Address) common.Hash {
	if h, ok := s.codeHash[addr]; ok {
		return h
	}
	acc, err := s.db.Basic(addr)
	if err != nil || acc == nil {
		return common.Hash{}
	}
	return acc.CodeHash
}

func (s *StateAdapter) GetCode(addr common.Address) []byte {
	if c, ok := s.codes[addr]; ok {
		return c
	}
	hash := s.GetCodeHash(addr)
	if hash == (common.Hash{}) {
		return nil
	}
	code, err := s.db.CodeByHash(hash)
	if err != nil {
		return nil
	}
	return code
}

func (s *StateAdapter) SetCode(addr common.Address, code []byte) {
	prevCode, hadCode := s.codes[addr]
	prevHash, hadHash := s.codeHash[addr]
	s.journal = append(s.journal, func(s *StateAdapter) {
		if hadCode {
			s.codes[addr] = prevCode
		} else {
			delete(s.codes, addr)
		}
		if hadHash {
			s.codeHash[addr] = prevHash
		} else {
			delete(s.codeHash, addr)
		}
	})
	s.codes[addr] = code
	s.codeHash[addr] = codeHash(code)
}

func (s *StateAdapter) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *StateAdapter) AddRefund(amount uint64) {
	prev := s.refund
	s.journal = append(s.journal, func(s *StateAdapter) { s.refund = prev })
	s.refund += amount
}

func (s *StateAdapter) SubRefund(amount uint64) {
	prev := s.refund
	s.journal = append(s.journal, func(s *StateAdapter) { s.refund = prev })
	if amount > s.refund {
		s.refund = 0
		return
	}
	s.refund -= amount
}

func (s *StateAdapter) GetRefund() uint64 { return s.refund }

func (s *StateAdapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	val, err := s.db.Storage(addr, key)
	if err != nil {
		return common.Hash{}
	}
	return val
}

func (s *StateAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	return s.GetCommittedState(addr, key)
}

func (s *StateAdapter) SetState(addr common.Address, key, value common.Hash) common.Hash {
	prev := s.GetState(addr, key)
	s.journal = append(s.journal, func(s *StateAdapter) {
		slots := s.storage[addr]
		if slots == nil {
			slots = make(map[common.Hash]common.Hash)
			s.storage[addr] = slots
		}
		slots[key] = prev
	})
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.storage[addr] = slots
	}
	slots[key] = value
	return prev
}

// GetStorageRoot is unused for EVM execution semantics (no trie is ever
// materialized); it exists only to satisfy the StateDB interface.
func (s *StateAdapter) GetStorageRoot(addr common.Address) common.Hash { return common.Hash{} }

func (s *StateAdapter) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.transient[addr]; ok {
		return slots[key]
	}
	return common.Hash{}
}

func (s *StateAdapter) SetTransientState(addr common.Address, key, value common.Hash) {
	prevSlots := s.transient[addr]
	var prev common.Hash
	if prevSlots != nil {
		prev = prevSlots[key]
	}
	s.journal = append(s.journal, func(s *StateAdapter) {
		slots := s.transient[addr]
		if slots == nil {
			slots = make(map[common.Hash]common.Hash)
			s.transient[addr] = slots
		}
		slots[key] = prev
	})
	slots, ok := s.transient[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s.transient[addr] = slots
	}
	slots[key] = value
}

func (s *StateAdapter) SelfDestruct(addr common.Address) uint256.Int {
	prevBal := *s.balanceOf(addr)
	prevDestruct := s.destruct[addr]
	s.journal = append(s.journal, func(s *StateAdapter) {
		s.balances[addr] = &prevBal
		s.destruct[addr] = prevDestruct
	})
	s.destruct[addr] = true
	s.balances[addr] = uint256.NewInt(0)
	return prevBal
}

func (s *StateAdapter) HasSelfDestructed(addr common.Address) bool { return s.destruct[addr] }

// SelfDestruct6780 implements EIP-6780: only contracts created in the
// current transaction self-destruct immediately; others merely zero their
// balance (handled by the caller transferring it away before this call).
func (s *StateAdapter) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	if s.created[addr] {
		bal := s.SelfDestruct(addr)
		return bal, true
	}
	return *s.balanceOf(addr), false
}

func (s *StateAdapter) Exist(addr common.Address) bool {
	if _, ok := s.balances[addr]; ok {
		return true
	}
	if _, ok := s.nonces[addr]; ok {
		return true
	}
	if _, ok := s.codeHash[addr]; ok {
		return true
	}
	acc, err := s.db.Basic(addr)
	if err != nil || acc == nil {
		return false
	}
	return acc.Nonce != 0 || (acc.Balance != nil && acc.Balance.Sign() != 0) || acc.CodeHash != (common.Hash{})
}

func (s *StateAdapter) Empty(addr common.Address) bool {
	return s.GetNonce(addr) == 0 && s.GetBalance(addr).IsZero() && s.GetCodeHash(addr) == (common.Hash{})
}

func (s *StateAdapter) AddressInAccessList(addr common.Address) bool { return s.accessAddrs[addr] }

func (s *StateAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk, slotOk bool) {
	addressOk = s.accessAddrs[addr]
	if slots, ok := s.accessSlots[addr]; ok {
		slotOk = slots[slot]
	}
	return
}

func (s *StateAdapter) AddAddressToAccessList(addr common.Address) {
	if s.accessAddrs[addr] {
		return
	}
	s.journal = append(s.journal, func(s *StateAdapter) { delete(s.accessAddrs, addr) })
	s.accessAddrs[addr] = true
}

func (s *StateAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.AddAddressToAccessList(addr)
	slots, ok := s.accessSlots[addr]
	if !ok {
		slots = make(map[common.Hash]bool)
		s.accessSlots[addr] = slots
	}
	if slots[slot] {
		return
	}
	s.journal = append(s.journal, func(s *StateAdapter) { delete(s.accessSlots[addr], slot) })
	slots[slot] = true
}

// Prepare wires the EIP-2929/3651/4844 warm-address set for a transaction:
// sender, recipient, precompiles, and any tx-level access list entries are
// pre-warmed per the passed rules.
func (s *StateAdapter) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.AddAddressToAccessList(sender)
	if dest != nil {
		s.AddAddressToAccessList(*dest)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
	for _, entry := range txAccesses {
		s.AddAddressToAccessList(entry.Address)
		for _, key := range entry.StorageKeys {
			s.AddSlotToAccessList(entry.Address, key)
		}
	}
}

func (s *StateAdapter) RevertToSnapshot(id int) {
	for len(s.journal) > id {
		last := len(s.journal) - 1
		entry := s.journal[last]
		s.journal = s.journal[:last]
		entry(s)
	}
}

func (s *StateAdapter) Snapshot() int { return len(s.journal) }

func (s *StateAdapter) AddLog(log *types.Log) {
	n := len(s.logs)
	s.journal = append(s.journal, func(s *StateAdapter) { s.logs = s.logs[:n] })
	s.logs = append(s.logs, log)
}

func (s *StateAdapter) Logs() []*types.Log { return s.logs }

func (s *StateAdapter) AddPreimage(hash common.Hash, preimage []byte) {
	if _, ok := s.preimages[hash]; ok {
		return
	}
	s.preimages[hash] = append([]byte(nil), preimage...)
}

// StateDiff materializes every mutation recorded against this adapter into
// a forkdb.StateDiff, ready for the enclosing DB layer's Commit.
func (s *StateAdapter) StateDiff() StateDiff {
	diff := NewStateDiff()
	for addr := range s.destruct {
		diff.AccountsDeleted[addr] = struct{}{}
	}
	touched := make(map[common.Address]struct{})
	for addr := range s.balances {
		touched[addr] = struct{}{}
	}
	for addr := range s.nonces {
		touched[addr] = struct{}{}
	}
	for addr := range s.codeHash {
		touched[addr] = struct{}{}
	}
	for addr := range touched {
		if s.destruct[addr] {
			continue
		}
		diff.Accounts[addr] = &Account{
			Balance:  s.GetBalance(addr).ToBig(),
			Nonce:    s.GetNonce(addr),
			CodeHash: s.GetCodeHash(addr),
		}
	}
	for _, code := range s.codes {
		diff.Code[codeHash(code)] = code
	}
	for addr, slots := range s.storage {
		if s.destruct[addr] {
			continue
		}
		dst := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			dst[k] = v
		}
		diff.Storage[addr] = dst
	}
	return diff
}
