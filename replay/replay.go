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

// Package replay rebuilds the pre-transaction state of a target tx by
// forking an archive node at block N-1 and, unless quick mode is enabled,
// re-executing every transaction of block N that preceded the target.
package replay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/spec"
)

// ForkInfo records where the fork happened and which mainnet spec governs
// execution from here on.
type ForkInfo struct {
	BlockNumber uint64
	ChainID     *big.Int
	HardforkID  spec.ID
	ChainConfig *params.ChainConfig
	QuickMode   bool
}

// ForkResult is returned once the preamble has been replayed (or skipped,
// in quick mode): the DB stack now reflects state immediately before the
// target transaction.
type ForkResult struct {
	ForkInfo    ForkInfo
	DB          *forkdb.Overlay
	Block       *types.Block
	TargetTx    *types.Transaction
	TargetIndex int
}

// Replayer drives the fork+replay preamble.
type Replayer struct {
	client *ethclient.Client
	log    *logrus.Entry
}

func New(client *ethclient.Client, log *logrus.Entry) *Replayer {
	return &Replayer{client: client, log: log}
}

// Run forks at block-1 and, unless quickMode is set, re-executes every
// transaction preceding txHash within block, committing every outcome
// (success, revert, or halt) to the overlay exactly as mainnet did.
func (r *Replayer) Run(ctx context.Context, blockNumber uint64, txHash common.Hash, quickMode bool) (*ForkResult, error) {
	block, err := r.client.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("replay: fetch block %d: %w", blockNumber, err)
	}
	chainID, err := r.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: fetch chain id: %w", err)
	}

	targetIdx := -1
	for i, tx := range block.Transactions() {
		if tx.Hash() == txHash {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("replay: tx %s not found in block %d", txHash, blockNumber)
	}

	hardforkID := spec.At(blockNumber)
	cfg := spec.ChainConfigAt(blockNumber)

	rpcAdapter := forkdb.NewRPCAdapter(ctx, r.client, blockNumber)
	cache := forkdb.NewCache(rpcAdapter)
	overlay := forkdb.NewOverlay(cache)

	info := ForkInfo{
		BlockNumber: blockNumber,
		ChainID:     chainID,
		HardforkID:  hardforkID,
		ChainConfig: cfg,
		QuickMode:   quickMode,
	}

	result := &ForkResult{
		ForkInfo:    info,
		DB:          overlay,
		Block:       block,
		TargetTx:    block.Transactions()[targetIdx],
		TargetIndex: targetIdx,
	}

	if quickMode {
		r.log.WithField("block", blockNumber).Debug("replay: quick mode, skipping preamble")
		return result, nil
	}

	if err := r.replayPreamble(overlay, block, cfg, hardforkID, targetIdx); err != nil {
		return nil, err
	}
	return result, nil
}

// replayPreamble executes block.Transactions()[:targetIdx] against the
// overlay, committing every outcome including reverts and halts, since
// mainnet committed them too.
func (r *Replayer) replayPreamble(overlay *forkdb.Overlay, block *types.Block, cfg *params.ChainConfig, hardforkID spec.ID, targetIdx int) error {
	blockCtx := BlockContext(block, hardforkID)
	signer := types.MakeSigner(cfg, block.Number(), block.Time())

	for i := 0; i < targetIdx; i++ {
		tx := block.Transactions()[i]
		state := forkdb.NewStateAdapter(overlay)

		msg, err := core.TransactionToMessage(tx, signer, block.BaseFee())
		if err != nil {
			return fmt.Errorf("replay: decode tx %s: %w", tx.Hash(), err)
		}

		evm := vm.NewEVM(blockCtx, state, cfg, vm.Config{})
		evm.SetTxContext(core.NewEVMTxContext(msg))

		gasPool := new(core.GasPool).AddGas(block.GasLimit())
		if _, err := core.ApplyMessage(evm, msg, gasPool); err != nil {
			// Mainnet still committed whatever state the failed tx produced
			// up to the point of failure; so do we, then move on.
			r.log.WithError(err).WithField("tx", tx.Hash()).Debug("replay: preamble tx reverted or halted")
		}

		if err := overlay.Commit(state.StateDiff()); err != nil {
			return fmt.Errorf("replay: commit preamble tx %s: %w", tx.Hash(), err)
		}
	}
	return nil
}

// BlockContext builds the vm.BlockContext for block, matching mainnet's
// CanTransfer/Transfer/Coinbase/etc. and computing BlobBaseFee when the
// header carries excess blob gas. Exported so tweak's creation-tx replay
// (a different block than the main target replay) can build an identical
// context without duplicating this logic.
func BlockContext(block *types.Block, hardforkID spec.ID) vm.BlockContext {
	header := block.Header()
	ctx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		Coinbase:    header.Coinbase,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int).Set(header.Difficulty),
		GasLimit:    header.GasLimit,
		BaseFee:     header.BaseFee,
	}
	if header.Random != nil {
		random := *header.Random
		ctx.Random = &random
	}
	if header.ExcessBlobGas != nil {
		ctx.BlobBaseFee = calcBlobBaseFee(*header.ExcessBlobGas, hardforkID)
	}
	return ctx
}

// calcBlobBaseFee implements the EIP-4844 fake_exponential formula with the
// mainnet hardfork-dependent update fraction (3,338,477 pre-Prague,
// 5,007,716 from Prague per EIP-7691), matching block.excess_blob_gas as
// mainnet computed it rather than depending on an internal geth helper
// whose exact exported signature varies by release.
func calcBlobBaseFee(excessBlobGas uint64, hardforkID spec.ID) *big.Int {
	const minBaseFeePerBlobGas = 1
	fraction := new(big.Int).SetUint64(spec.BlobBaseFeeUpdateFraction(hardforkID))
	factor := big.NewInt(minBaseFeePerBlobGas)
	numerator := new(big.Int).SetUint64(excessBlobGas)

	output := new(big.Int)
	numeratorAccum := new(big.Int).Mul(factor, fraction)
	i := big.NewInt(1)
	denomTimesI := new(big.Int)
	for numeratorAccum.Sign() > 0 {
		output.Add(output, numeratorAccum)
		denomTimesI.Mul(fraction, i)
		numeratorAccum.Mul(numeratorAccum, numerator)
		numeratorAccum.Div(numeratorAccum, denomTimesI)
		i.Add(i, big.NewInt(1))
	}
	return output.Div(output, fraction)
}
