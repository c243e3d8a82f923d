package postgres

import (
	"context"
	"fmt"

	"github.com/quaylabs/obindexer/internal/domain"
)

// CheckpointStore implements domain.CheckpointStore using PostgreSQL. A
// single row tracks the last fully committed block.
type CheckpointStore struct {
	db DB
}

var _ domain.CheckpointStore = (*CheckpointStore)(nil)

// NewCheckpointStore creates a store over the given query surface.
func NewCheckpointStore(db DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func (s *CheckpointStore) Put(ctx context.Context, cp domain.Checkpoint) error {
	const query = `
		INSERT INTO checkpoints (singleton, block_number, block_hash, updated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			block_hash   = EXCLUDED.block_hash,
			updated_at   = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query, cp.BlockNumber, hashBytes(cp.BlockHash), cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) Get(ctx context.Context) (domain.Checkpoint, error) {
	const query = `
		SELECT block_number, block_hash, updated_at
		FROM checkpoints WHERE singleton`

	var (
		cp   domain.Checkpoint
		hash []byte
	)
	err := s.db.QueryRow(ctx, query).Scan(&cp.BlockNumber, &hash, &cp.UpdatedAt)
	if err != nil {
		return domain.Checkpoint{}, notFound(err)
	}
	cp.BlockHash = toHash(hash)
	return cp, nil
}
