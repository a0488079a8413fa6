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

// Package keypool rotates a small pool of block-explorer API keys behind
// an atomic counter, the only piece of mutable global state besides the
// id allocator (spec.md §5 and §9).
package keypool

import (
	"errors"
	"math/rand"
	"sync/atomic"
)

// Pool hands out API keys round-robin starting from a randomly shuffled
// offset, so concurrent processes sharing the same key list don't all
// hammer key[0] first.
type Pool struct {
	keys []string
	next atomic.Uint64
}

// New builds a Pool from keys, shuffling their starting order.
func New(keys []string) *Pool {
	shuffled := make([]string, len(keys))
	copy(shuffled, keys)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return &Pool{keys: shuffled}
}

// NextKey returns the next key in rotation, or an error if the pool is empty.
func (p *Pool) NextKey() (string, error) {
	if len(p.keys) == 0 {
		return "", errors.New("keypool: no api keys configured")
	}
	idx := p.next.Add(1) - 1
	return p.keys[idx%uint64(len(p.keys))], nil
}

// Len reports how many keys are in the pool.
func (p *Pool) Len() int { return len(p.keys) }
