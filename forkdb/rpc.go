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
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"
)

// RPCAdapter is the innermost layer: an archive-node JSON-RPC client pinned
// to a fixed block number. ethclient's calls already block the caller
// goroutine, so the "async to sync" bridge Rust implementations need is
// just direct calls here; singleflight still earns its keep collapsing
// concurrent reads of the same address/slot issued by parallel snapshot
// construction into one upstream round trip.
type RPCAdapter struct {
	client *ethclient.Client
	ctx    context.Context
	block  *big.Int
	group  singleflight.Group
}

// NewRPCAdapter pins the adapter to blockNumber (the RPC adapter always
// observes state as of the end of blockNumber-1, per spec: a target block
// N forks at N-1).
func NewRPCAdapter(ctx context.Context, client *ethclient.Client, blockNumber uint64) *RPCAdapter {
	pinned := new(big.Int).SetUint64(blockNumber)
	if blockNumber > 0 {
		pinned.SetUint64(blockNumber - 1)
	}
	return &RPCAdapter{client: client, ctx: ctx, block: pinned}
}

func (r *RPCAdapter) Basic(addr common.Address) (*Account, error) {
	key := "basic:" + addr.Hex()
	v, err, _ := r.group.Do(key, func() (any, error) {
		bal, err := r.client.BalanceAt(r.ctx, addr, r.block)
		if err != nil {
			return nil, NewDbError("forkdb: BalanceAt(%s): %v", addr, err)
		}
		nonce, err := r.client.NonceAt(r.ctx, addr, r.block)
		if err != nil {
			return nil, NewDbError("forkdb: NonceAt(%s): %v", addr, err)
		}
		code, err := r.client.CodeAt(r.ctx, addr, r.block)
		if err != nil {
			return nil, NewDbError("forkdb: CodeAt(%s): %v", addr, err)
		}
		return &Account{Balance: bal, Nonce: nonce, CodeHash: codeHash(code)}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}

func (r *RPCAdapter) CodeByHash(hash common.Hash) ([]byte, error) {
	// The standard eth_getCode RPC is keyed by address, not code hash, so
	// this layer can only serve hashes it has already observed via Basic;
	// the cache layer above is responsible for remembering the mapping.
	return nil, NewDbError("forkdb: code for hash %s not available from RPC adapter directly", hash)
}

func (r *RPCAdapter) CodeAt(addr common.Address) ([]byte, error) {
	key := "code:" + addr.Hex()
	v, err, _ := r.group.Do(key, func() (any, error) {
		code, err := r.client.CodeAt(r.ctx, addr, r.block)
		if err != nil {
			return nil, NewDbError("forkdb: CodeAt(%s): %v", addr, err)
		}
		return code, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *RPCAdapter) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	key := "storage:" + addr.Hex() + ":" + slot.Hex()
	v, err, _ := r.group.Do(key, func() (any, error) {
		val, err := r.client.StorageAt(r.ctx, addr, slot, r.block)
		if err != nil {
			return common.Hash{}, NewDbError("forkdb: StorageAt(%s,%s): %v", addr, slot, err)
		}
		return common.BytesToHash(val), nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

func (r *RPCAdapter) BlockHash(number uint64) (common.Hash, error) {
	key := "blockhash:" + new(big.Int).SetUint64(number).String()
	v, err, _ := r.group.Do(key, func() (any, error) {
		header, err := r.client.HeaderByNumber(r.ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return common.Hash{}, NewDbError("forkdb: HeaderByNumber(%d): %v", number, err)
		}
		return header.Hash(), nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

// Commit always fails: the RPC adapter observes immutable chain history, it
// never accepts writes. Only the Overlay layer commits state diffs.
func (r *RPCAdapter) Commit(StateDiff) error {
	return NewDbError("forkdb: cannot commit to the read-only RPC adapter")
}

// Clone is cheap because RPCAdapter carries no mutable per-instance state
// beyond the singleflight group, which is safe to share; a fresh, empty
// group is handed to the clone so in-flight dedup keys aren't shared across
// independently-evolving snapshot stacks.
func (r *RPCAdapter) Clone() DB {
	return &RPCAdapter{client: r.client, ctx: r.ctx, block: r.block}
}

func codeHash(code []byte) common.Hash {
	if len(code) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(crypto.Keccak256(code))
}
