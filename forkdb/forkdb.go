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

// Package forkdb implements the three-layer forked database stack: a mutable
// overlay on top of a read-through memoization cache on top of an archive-node
// RPC adapter. Every snapshot captured during re-execution owns a clone of
// this stack, so cloning must stay cheap; Overlay achieves that by chaining
// copy-on-write delta frames instead of copying maps.
package forkdb

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account mirrors the subset of account state the stack needs to serve
// basic(addr) queries: balance, nonce, and the hash of the account's code.
type Account struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash
}

// DB is the contract every layer of the stack implements. Implementations
// must be safe for concurrent reads; Commit is only ever called on the
// outermost Overlay.
type DB interface {
	Basic(addr common.Address) (*Account, error)
	CodeByHash(hash common.Hash) ([]byte, error)
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)
	BlockHash(number uint64) (common.Hash, error)
	Commit(diff StateDiff) error
	// Clone returns a cheap new DB over the current state. Commits to the
	// clone never reach the original; an Overlay clone reads through to its
	// original, so later commits to the original show through it.
	Clone() DB
}

// StateDiff is the set of mutations a Commit applies to the overlay layer.
// AccountsDeleted marks accounts that self-destructed or never existed.
type StateDiff struct {
	Accounts        map[common.Address]*Account
	Storage         map[common.Address]map[common.Hash]common.Hash
	Code            map[common.Hash][]byte
	AccountsDeleted map[common.Address]struct{}
}

// NewStateDiff returns an empty, ready-to-populate StateDiff.
func NewStateDiff() StateDiff {
	return StateDiff{
		Accounts:        make(map[common.Address]*Account),
		Storage:         make(map[common.Address]map[common.Hash]common.Hash),
		Code:            make(map[common.Hash][]byte),
		AccountsDeleted: make(map[common.Address]struct{}),
	}
}

// DbError wraps every error that crosses a DB layer boundary into a single
// stringly-typed, comparable, trivially-cloneable type. Snapshots clone the
// DB stack freely and the RPC server fans out across goroutines, so the
// concrete error type returned by DB methods must not carry any
// non-thread-safe state (an *rpc.Error, a *url.Error with an embedded
// net.Conn, etc.) — DbError absorbs all of that via fmt.Stringer/Error.
type DbError struct {
	message string
}

func NewDbError(format string, args ...any) DbError {
	return DbError{message: fmt.Sprintf(format, args...)}
}

func WrapDbError(err error) DbError {
	if err == nil {
		return DbError{}
	}
	if de, ok := err.(DbError); ok {
		return de
	}
	return DbError{message: err.Error()}
}

func (e DbError) Error() string { return e.message }

func (e DbError) IsZero() bool { return e.message == "" }
