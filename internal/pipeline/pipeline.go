// Package pipeline drives logs through the engine: the live indexer pulls
// from an RPC node, the replayer pulls from the S3 archive. Both feed the
// same strictly ordered processing loop.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/engine"
	"github.com/quaylabs/obindexer/internal/platform/evm"
)

// StoreTx runs fn with entity stores and the checkpoint store bound to one
// atomic unit: either every write in fn commits, or none do.
type StoreTx interface {
	InTx(ctx context.Context, fn func(domain.Stores, domain.CheckpointStore) error) error
}

// sortLogs orders logs by chain position. eth_getLogs already returns chain
// order within one call, but chunked fetches are concatenated.
func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		if logs[i].TxIndex != logs[j].TxIndex {
			return logs[i].TxIndex < logs[j].TxIndex
		}
		return logs[i].Index < logs[j].Index
	})
}

// runLogs decodes and processes a sorted slice of logs, closing each
// transaction as the loop moves past it. Transaction boundaries matter: a
// staged clear announce that its own transaction never settles is an orphan
// and must be discarded before the next transaction's events apply. The
// boundary is tracked per orderbook, because one transaction can touch
// several tracked contracts and an interleaved log from another orderbook
// must not cut an announce off from its settle half.
func runLogs(ctx context.Context, eng *engine.Engine, logs []types.Log, blockTime func(context.Context, uint64) (time.Time, error)) error {
	open := make(map[common.Address]common.Hash)
	var seen []common.Address

	for _, lg := range logs {
		if prev, ok := open[lg.Address]; ok && prev != lg.TxHash {
			if err := eng.FinishTx(ctx, lg.Address, prev); err != nil {
				return err
			}
		}

		ts, err := blockTime(ctx, lg.BlockNumber)
		if err != nil {
			return fmt.Errorf("pipeline: block time for %d: %w", lg.BlockNumber, err)
		}

		ev, err := evm.DecodeLog(lg, ts)
		if err != nil {
			return fmt.Errorf("pipeline: decode log %s/%d: %w", lg.TxHash.Hex(), lg.Index, err)
		}
		if ev == nil {
			continue
		}

		if err := eng.Process(ctx, ev); err != nil {
			return err
		}
		if _, ok := open[lg.Address]; !ok {
			seen = append(seen, lg.Address)
		}
		open[lg.Address] = lg.TxHash
	}

	for _, orderbook := range seen {
		if err := eng.FinishTx(ctx, orderbook, open[orderbook]); err != nil {
			return err
		}
	}
	return nil
}

// commitLogs processes one batch of logs and writes the resulting checkpoint
// through a single store transaction. Vault balances are read-modify-write,
// so the cursor must move in lockstep with the entity writes it accounts
// for; a partially applied batch would double-count deltas on retry.
func commitLogs(ctx context.Context, db StoreTx, eng *engine.Engine, logs []types.Log, blockTime func(context.Context, uint64) (time.Time, error), cp domain.Checkpoint) error {
	return db.InTx(ctx, func(stores domain.Stores, checkpoints domain.CheckpointStore) error {
		if err := runLogs(ctx, eng.WithStores(stores), logs, blockTime); err != nil {
			return err
		}
		return checkpoints.Put(ctx, cp)
	})
}
