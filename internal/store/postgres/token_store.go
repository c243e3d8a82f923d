package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	db DB
}

var _ domain.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a store over the given query surface.
func NewTokenStore(db DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Put(ctx context.Context, token domain.ERC20) error {
	const query = `
		INSERT INTO tokens (address, name, symbol, decimals)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			name     = EXCLUDED.name,
			symbol   = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals`

	var decimals *int16
	if token.Decimals != nil {
		d := int16(*token.Decimals)
		decimals = &d
	}
	_, err := s.db.Exec(ctx, query, addrBytes(token.Address), token.Name, token.Symbol, decimals)
	if err != nil {
		return fmt.Errorf("postgres: put token %s: %w", token.Address.Hex(), err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, addr common.Address) (domain.ERC20, error) {
	const query = `
		SELECT address, name, symbol, decimals
		FROM tokens WHERE address = $1`

	var (
		token    domain.ERC20
		address  []byte
		decimals *int16
	)
	err := s.db.QueryRow(ctx, query, addrBytes(addr)).
		Scan(&address, &token.Name, &token.Symbol, &decimals)
	if err != nil {
		return domain.ERC20{}, notFound(err)
	}
	token.Address = toAddr(address)
	if decimals != nil {
		d := uint8(*decimals)
		token.Decimals = &d
	}
	return token, nil
}
