// Package evm wraps all chain access: the RPC client, orderbook event
// decoding, ERC20 metadata reads, and the decimal calculator contract.
package evm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the JSON-RPC connection shared by every chain reader.
type Client struct {
	Eth *ethclient.Client
	log *slog.Logger
}

// Dial connects to an EVM JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string, log *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", rpcURL, err)
	}
	return &Client{Eth: eth, log: log.With("component", "evm")}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.Eth.Close()
}
