package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	db DB
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a store over the given query surface.
func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Put(ctx context.Context, order domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, orderbook, order_hash, owner, nonce, order_bytes,
			inputs, outputs, active, meta, added_at, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			order_bytes = EXCLUDED.order_bytes,
			inputs      = EXCLUDED.inputs,
			outputs     = EXCLUDED.outputs,
			active      = EXCLUDED.active,
			meta        = EXCLUDED.meta,
			added_at    = EXCLUDED.added_at,
			tx_hash     = EXCLUDED.tx_hash`

	_, err := s.db.Exec(ctx, query,
		hashBytes(order.ID), addrBytes(order.Orderbook), hashBytes(order.OrderHash),
		addrBytes(order.Owner), hashBytes(order.Nonce), order.OrderBytes,
		hashesBytes(order.Inputs), hashesBytes(order.Outputs),
		order.Active, order.Meta, order.AddedAt, hashBytes(order.TxHash))
	if err != nil {
		return fmt.Errorf("postgres: put order %s: %w", order.ID.Hex(), err)
	}
	return nil
}

const orderColumns = `
	id, orderbook, order_hash, owner, nonce, order_bytes,
	inputs, outputs, active, meta, added_at, tx_hash`

func (s *OrderStore) Get(ctx context.Context, id common.Hash) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	row := s.db.QueryRow(ctx, query, hashBytes(id))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, notFound(err)
	}
	return order, nil
}

func (s *OrderStore) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders WHERE owner = $1
		ORDER BY added_at
		LIMIT $2 OFFSET $3`
	return s.list(ctx, query, addrBytes(owner), limitOf(opts), opts.Offset)
}

func (s *OrderStore) ListActive(ctx context.Context, orderbook common.Address, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders WHERE orderbook = $1 AND active
		ORDER BY added_at
		LIMIT $2 OFFSET $3`
	return s.list(ctx, query, addrBytes(orderbook), limitOf(opts), opts.Offset)
}

func (s *OrderStore) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func scanOrder(row scanner) (domain.Order, error) {
	var (
		order                        domain.Order
		id, orderbook, orderHash     []byte
		owner, nonce, tx             []byte
		inputs, outputs              [][]byte
	)
	err := row.Scan(&id, &orderbook, &orderHash, &owner, &nonce, &order.OrderBytes,
		&inputs, &outputs, &order.Active, &order.Meta, &order.AddedAt, &tx)
	if err != nil {
		return domain.Order{}, err
	}
	order.ID = toHash(id)
	order.Orderbook = toAddr(orderbook)
	order.OrderHash = toHash(orderHash)
	order.Owner = toAddr(owner)
	order.Nonce = toHash(nonce)
	order.Inputs = toHashes(inputs)
	order.Outputs = toHashes(outputs)
	order.TxHash = toHash(tx)
	return order, nil
}

func (s *OrderStore) PutAdd(ctx context.Context, rec domain.AddOrder) error {
	const query = `
		INSERT INTO order_adds (id, order_id, tx_hash, sender, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(rec.ID), hashBytes(rec.OrderID), hashBytes(rec.TxHash),
		addrBytes(rec.Sender), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put add record %s: %w", rec.ID.Hex(), err)
	}
	return nil
}

func (s *OrderStore) PutRemove(ctx context.Context, rec domain.RemoveOrder) error {
	const query = `
		INSERT INTO order_removes (id, order_id, tx_hash, sender, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(rec.ID), hashBytes(rec.OrderID), hashBytes(rec.TxHash),
		addrBytes(rec.Sender), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put remove record %s: %w", rec.ID.Hex(), err)
	}
	return nil
}
