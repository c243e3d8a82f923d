package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	db DB
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a store over the given query surface.
func NewTradeStore(db DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) PutTrade(ctx context.Context, trade domain.Trade) error {
	const query = `
		INSERT INTO trades (id, orderbook, order_id, order_hash, input_change_id, output_change_id, tx_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(trade.ID), addrBytes(trade.Orderbook), hashBytes(trade.OrderID),
		hashBytes(trade.OrderHash), hashBytes(trade.InputChangeID),
		hashBytes(trade.OutputChangeID), hashBytes(trade.TxHash), trade.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put trade %s: %w", trade.ID.Hex(), err)
	}
	return nil
}

func (s *TradeStore) PutBalanceChange(ctx context.Context, change domain.TradeVaultBalanceChange) error {
	const query = `
		INSERT INTO trade_vault_balance_changes (id, vault_id, tx_hash, amount, old_balance, new_balance, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		hashBytes(change.ID), hashBytes(change.VaultID), hashBytes(change.TxHash),
		floatBytes(change.Amount), floatBytes(change.OldBalance),
		floatBytes(change.NewBalance), change.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put balance change %s: %w", change.ID.Hex(), err)
	}
	return nil
}

func (s *TradeStore) GetTrade(ctx context.Context, id common.Hash) (domain.Trade, error) {
	const query = `
		SELECT id, orderbook, order_id, order_hash, input_change_id, output_change_id, tx_hash, ts
		FROM trades WHERE id = $1`

	row := s.db.QueryRow(ctx, query, hashBytes(id))
	trade, err := scanTrade(row)
	if err != nil {
		return domain.Trade{}, notFound(err)
	}
	return trade, nil
}

func (s *TradeStore) ListByOrder(ctx context.Context, orderID common.Hash, opts domain.ListOpts) ([]domain.Trade, error) {
	const query = `
		SELECT id, orderbook, order_id, order_hash, input_change_id, output_change_id, tx_hash, ts
		FROM trades WHERE order_id = $1
		ORDER BY ts
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, hashBytes(orderID), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, trade)
	}
	return out, rows.Err()
}

func scanTrade(row scanner) (domain.Trade, error) {
	var (
		trade                      domain.Trade
		id, orderbook, orderID     []byte
		orderHash, inCh, outCh, tx []byte
	)
	err := row.Scan(&id, &orderbook, &orderID, &orderHash, &inCh, &outCh, &tx, &trade.Timestamp)
	if err != nil {
		return domain.Trade{}, err
	}
	trade.ID = toHash(id)
	trade.Orderbook = toAddr(orderbook)
	trade.OrderID = toHash(orderID)
	trade.OrderHash = toHash(orderHash)
	trade.InputChangeID = toHash(inCh)
	trade.OutputChangeID = toHash(outCh)
	trade.TxHash = toHash(tx)
	return trade, nil
}

func (s *TradeStore) ListChangesByVault(ctx context.Context, vaultID common.Hash, opts domain.ListOpts) ([]domain.TradeVaultBalanceChange, error) {
	const query = `
		SELECT id, vault_id, tx_hash, amount, old_balance, new_balance, ts
		FROM trade_vault_balance_changes WHERE vault_id = $1
		ORDER BY ts
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, hashBytes(vaultID), limitOf(opts), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list balance changes: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeVaultBalanceChange
	for rows.Next() {
		var (
			c                        domain.TradeVaultBalanceChange
			id, vid, tx              []byte
			amount, oldB, newB       []byte
		)
		if err := rows.Scan(&id, &vid, &tx, &amount, &oldB, &newB, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan balance change: %w", err)
		}
		c.ID, c.VaultID, c.TxHash = toHash(id), toHash(vid), toHash(tx)
		c.Amount, c.OldBalance, c.NewBalance = toFloat(amount), toFloat(oldB), toFloat(newB)
		out = append(out, c)
	}
	return out, rows.Err()
}
