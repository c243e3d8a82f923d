package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// OrderbookStore implements domain.OrderbookStore using PostgreSQL.
type OrderbookStore struct {
	db DB
}

var _ domain.OrderbookStore = (*OrderbookStore)(nil)

// NewOrderbookStore creates a store over the given query surface.
func NewOrderbookStore(db DB) *OrderbookStore {
	return &OrderbookStore{db: db}
}

func (s *OrderbookStore) Put(ctx context.Context, ob domain.Orderbook) error {
	const query = `
		INSERT INTO orderbooks (address, first_seen_block, first_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO NOTHING`

	_, err := s.db.Exec(ctx, query, addrBytes(ob.Address), ob.FirstSeenBlock, ob.FirstSeenAt)
	if err != nil {
		return fmt.Errorf("postgres: put orderbook %s: %w", ob.Address.Hex(), err)
	}
	return nil
}

func (s *OrderbookStore) Get(ctx context.Context, addr common.Address) (domain.Orderbook, error) {
	const query = `
		SELECT address, first_seen_block, first_seen_at
		FROM orderbooks WHERE address = $1`

	var (
		ob      domain.Orderbook
		address []byte
	)
	err := s.db.QueryRow(ctx, query, addrBytes(addr)).
		Scan(&address, &ob.FirstSeenBlock, &ob.FirstSeenAt)
	if err != nil {
		return domain.Orderbook{}, notFound(err)
	}
	ob.Address = toAddr(address)
	return ob, nil
}
