package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFetcher pulls orderbook logs in bounded block-range chunks. RPC
// providers cap the range of a single eth_getLogs call, so large catch-ups
// are split.
type LogFetcher struct {
	client    *Client
	addresses []common.Address
	chunkSize uint64
}

// NewLogFetcher builds a fetcher for the given orderbook contracts.
func NewLogFetcher(client *Client, addresses []common.Address, chunkSize uint64) *LogFetcher {
	if chunkSize == 0 {
		chunkSize = 2000
	}
	return &LogFetcher{client: client, addresses: addresses, chunkSize: chunkSize}
}

// Fetch returns all orderbook logs in [from, to], inclusive, in chain order.
func (f *LogFetcher) Fetch(ctx context.Context, from, to uint64) ([]types.Log, error) {
	var out []types.Log
	for start := from; start <= to; start += f.chunkSize {
		end := start + f.chunkSize - 1
		if end > to {
			end = to
		}
		logs, err := f.client.Eth.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: f.addresses,
			Topics:    [][]common.Hash{EventTopics()},
		})
		if err != nil {
			return nil, fmt.Errorf("evm: filter logs [%d,%d]: %w", start, end, err)
		}
		out = append(out, logs...)
	}
	return out, nil
}

// Head returns the latest block number.
func (f *LogFetcher) Head(ctx context.Context) (uint64, error) {
	head, err := f.client.Eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("evm: block number: %w", err)
	}
	return head, nil
}

// BlockTime returns the timestamp of a block. The pipeline memoizes per
// block; every event in a block shares one timestamp.
func (f *LogFetcher) BlockTime(ctx context.Context, number uint64) (time.Time, common.Hash, error) {
	header, err := f.client.Eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, common.Hash{}, fmt.Errorf("evm: header %d: %w", number, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), header.Hash(), nil
}
