package evm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

const erc20ABIJSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// ERC20Reader reads token metadata from the chain. Not every token
// implements the optional metadata methods; a reverted read yields a nil
// field, which the registry caches as a terminal result.
type ERC20Reader struct {
	client *Client
}

// NewERC20Reader builds a reader over the shared RPC client.
func NewERC20Reader(client *Client) *ERC20Reader {
	return &ERC20Reader{client: client}
}

// Metadata reads name, symbol, and decimals. A transport error aborts the
// whole read; per-method reverts only blank the field.
func (r *ERC20Reader) Metadata(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	token := domain.ERC20{Address: addr}

	var name string
	ok, err := r.callView(ctx, addr, "name", &name)
	if err != nil {
		return domain.ERC20{}, err
	}
	if ok {
		token.Name = &name
	}

	var symbol string
	ok, err = r.callView(ctx, addr, "symbol", &symbol)
	if err != nil {
		return domain.ERC20{}, err
	}
	if ok {
		token.Symbol = &symbol
	}

	var decimals uint8
	ok, err = r.callView(ctx, addr, "decimals", &decimals)
	if err != nil {
		return domain.ERC20{}, err
	}
	if ok {
		token.Decimals = &decimals
	}

	return token, nil
}

// callView performs one view call and unpacks the single return value into
// out. It reports false without error when the call reverted or returned no
// data.
func (r *ERC20Reader) callView(ctx context.Context, addr common.Address, method string, out any) (bool, error) {
	input, err := erc20ABI.Pack(method)
	if err != nil {
		return false, fmt.Errorf("evm: pack %s: %w", method, err)
	}

	data, err := r.client.Eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: input}, nil)
	if err != nil {
		if isRevert(err) {
			return false, nil
		}
		return false, fmt.Errorf("evm: call %s on %s: %w", method, addr.Hex(), err)
	}
	if len(data) == 0 {
		return false, nil
	}

	values, err := erc20ABI.Unpack(method, data)
	if err != nil || len(values) != 1 {
		// Garbage return data gets the same treatment as a revert.
		return false, nil
	}

	switch dst := out.(type) {
	case *string:
		s, ok := values[0].(string)
		if !ok {
			return false, nil
		}
		*dst = s
	case *uint8:
		v, ok := values[0].(uint8)
		if !ok {
			return false, nil
		}
		*dst = v
	default:
		return false, fmt.Errorf("evm: unsupported output type %T", out)
	}
	return true, nil
}

// isRevert distinguishes an EVM revert from a transport failure. RPC nodes
// wrap reverts in varying message shapes, so this is a string check.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "out of gas") ||
		strings.Contains(msg, "invalid opcode")
}
