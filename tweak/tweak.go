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

// Package tweak installs recompiled (instrumented) runtime code at the
// address of a contract that was verified and created *before* the target
// transaction: it replays that contract's original creation, substituting
// the recompiled init code, and writes the resulting runtime code into the
// target-transaction overlay.
package tweak

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/edberr"
	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/replay"
)

// Tweaker replays a contract's original creation with recompiled init code
// and recovers the resulting runtime code.
type Tweaker struct {
	client *ethclient.Client
	log    *logrus.Entry
}

// New returns a Tweaker driving replay against client.
func New(client *ethclient.Client, log *logrus.Entry) *Tweaker {
	return &Tweaker{client: client, log: log}
}

// Result is what a successful tweak recovers: the runtime code to install
// at target, and its keccak hash.
type Result struct {
	Address     common.Address
	RuntimeCode []byte
	CodeHash    common.Hash
}

// Tweak forks at creationBlock, replays every transaction preceding
// creationTxHash, then re-runs the creation itself with initCode (the
// artifact's recompiled creation bytecode, concatenated with the
// *original* constructor arguments) in place of whatever bytecode the
// chain actually ran. The contract address is not predicted in advance:
// because the fork lands on the exact pre-creation state, replaying CREATE
// from the same caller naturally reproduces the same address via
// (caller, nonce) — so the only check needed is that it matches target.
//
// CREATE2-deployed contracts (factory deployments) are not handled: doing
// so requires recovering the original salt from a trace of the creation
// transaction, which this pass does not build. Such contracts fail this
// tweak and are demoted to opcode-only by the caller.
func (t *Tweaker) Tweak(ctx context.Context, creationBlock uint64, creationTxHash common.Hash, target common.Address, initCode []byte) (*Result, error) {
	r := replay.New(t.client, t.log)
	fork, err := r.Run(ctx, creationBlock, creationTxHash, false)
	if err != nil {
		return nil, edberr.Wrap(edberr.EvmExecutionError, "tweak: fork+replay to creation tx: %v", err)
	}

	creationTx := fork.TargetTx
	if !IsPlainCreate(creationTx) {
		return nil, fmt.Errorf("tweak: tx %s is not a contract-creation transaction", creationTxHash)
	}

	signer := gethtypes.MakeSigner(fork.ForkInfo.ChainConfig, fork.Block.Number(), fork.Block.Time())
	sender, err := gethtypes.Sender(signer, creationTx)
	if err != nil {
		return nil, fmt.Errorf("tweak: recover sender of %s: %w", creationTxHash, err)
	}

	state := forkdb.NewStateAdapter(fork.DB)
	blockCtx := replay.BlockContext(fork.Block, fork.ForkInfo.HardforkID)
	evm := vm.NewEVM(blockCtx, state, fork.ForkInfo.ChainConfig, vm.Config{})
	evm.SetTxContext(core.TxContext{Origin: sender, GasPrice: big.NewInt(0)})

	value, overflow := uint256.FromBig(creationTx.Value())
	if overflow {
		return nil, fmt.Errorf("tweak: tx %s value overflows uint256", creationTxHash)
	}

	// Gas/nonce/balance constraints are relaxed here: this is our own
	// re-execution for debugging purposes, not a real chain state
	// transition, and instrumentation can only increase gas usage.
	ret, contractAddr, _, err := evm.Create(vm.AccountRef(sender), initCode, math.MaxUint64, value)
	if err != nil {
		return nil, edberr.Wrap(edberr.EvmExecutionError, "tweak: replay creation of %s with recompiled init code: %v", target, err)
	}
	if contractAddr != target {
		return nil, fmt.Errorf("tweak: recompiled creation landed at %s, expected %s (nonce drift)", contractAddr, target)
	}

	return &Result{
		Address:     target,
		RuntimeCode: ret,
		CodeHash:    crypto.Keccak256Hash(ret),
	}, nil
}

// IsPlainCreate reports whether tx is a CREATE-style creation (To == nil),
// as opposed to a regular call or a CREATE2 deployment routed through a
// factory contract's own CALL. Only the former is handled by Tweak.
func IsPlainCreate(tx *gethtypes.Transaction) bool {
	return tx.To() == nil
}

// BuildInitCode concatenates the recompiled creation bytecode with the
// original transaction's constructor arguments, exactly how solc expects
// a contract's init code to be laid out: code followed by ABI-encoded
// constructor parameters.
func BuildInitCode(creationBytecode, constructorArgs []byte) []byte {
	initCode := make([]byte, 0, len(creationBytecode)+len(constructorArgs))
	initCode = append(initCode, creationBytecode...)
	initCode = append(initCode, constructorArgs...)
	return initCode
}
