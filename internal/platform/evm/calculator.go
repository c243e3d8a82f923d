package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

const calculatorABIJSON = `[
  {"type":"function","name":"add","stateMutability":"view","inputs":[{"name":"a","type":"bytes32"},{"name":"b","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"sub","stateMutability":"view","inputs":[{"name":"a","type":"bytes32"},{"name":"b","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"minus","stateMutability":"view","inputs":[{"name":"a","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"gt","stateMutability":"view","inputs":[{"name":"a","type":"bytes32"},{"name":"b","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"fromFixedDecimal","stateMutability":"view","inputs":[{"name":"value","type":"uint256"},{"name":"decimals","type":"uint8"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"parse","stateMutability":"view","inputs":[{"name":"s","type":"string"}],"outputs":[{"name":"","type":"bytes32"}]}
]`

var calculatorABI = mustParseABI(calculatorABIJSON)

// Calculator calls the on-chain decimal arithmetic contract. Every ledger
// amount computation goes through it so the indexer's balances agree
// bit-exactly with what the contract computed.
type Calculator struct {
	client  *Client
	address common.Address
}

var _ domain.Calculator = (*Calculator)(nil)

// NewCalculator binds the calculator contract at the configured per-network
// address.
func NewCalculator(client *Client, address common.Address) *Calculator {
	return &Calculator{client: client, address: address}
}

func (c *Calculator) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := calculatorABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack calculator %s: %w", method, err)
	}
	data, err := c.client.Eth.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: calculator %s: %w", method, err)
	}
	values, err := calculatorABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack calculator %s: %w", method, err)
	}
	return values, nil
}

func (c *Calculator) callFloat(ctx context.Context, method string, args ...any) (domain.Float, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return domain.Float{}, err
	}
	out, ok := values[0].([32]byte)
	if !ok {
		return domain.Float{}, fmt.Errorf("evm: calculator %s returned %T, want bytes32", method, values[0])
	}
	return domain.Float(out), nil
}

func (c *Calculator) Add(ctx context.Context, a, b domain.Float) (domain.Float, error) {
	return c.callFloat(ctx, "add", [32]byte(a), [32]byte(b))
}

func (c *Calculator) Sub(ctx context.Context, a, b domain.Float) (domain.Float, error) {
	return c.callFloat(ctx, "sub", [32]byte(a), [32]byte(b))
}

func (c *Calculator) Minus(ctx context.Context, a domain.Float) (domain.Float, error) {
	return c.callFloat(ctx, "minus", [32]byte(a))
}

func (c *Calculator) Gt(ctx context.Context, a, b domain.Float) (bool, error) {
	values, err := c.call(ctx, "gt", [32]byte(a), [32]byte(b))
	if err != nil {
		return false, err
	}
	out, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("evm: calculator gt returned %T, want bool", values[0])
	}
	return out, nil
}

func (c *Calculator) FromFixedDecimal(ctx context.Context, value *big.Int, decimals uint8) (domain.Float, error) {
	return c.callFloat(ctx, "fromFixedDecimal", value, decimals)
}

func (c *Calculator) Parse(ctx context.Context, s string) (domain.Float, error) {
	return c.callFloat(ctx, "parse", s)
}
