package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/obindexer/internal/domain"
)

// StagingStore implements domain.StagingStore using PostgreSQL. Rows here
// are transient; they exist only between the two halves of a settlement, but
// they must survive a crash between those halves, which is why they are not
// kept in memory.
type StagingStore struct {
	db DB
}

var _ domain.StagingStore = (*StagingStore)(nil)

// NewStagingStore creates a store over the given query surface.
func NewStagingStore(db DB) *StagingStore {
	return &StagingStore{db: db}
}

// stagingSide is the JSON shape of one party's staged slots.
type stagingSide struct {
	Address       common.Address `json:"address"`
	OrderHash     common.Hash    `json:"orderHash"`
	InputToken    common.Address `json:"inputToken"`
	InputVaultID  common.Hash    `json:"inputVaultId"`
	OutputToken   common.Address `json:"outputToken"`
	OutputVaultID common.Hash    `json:"outputVaultId"`
	BountyVaultID common.Hash    `json:"bountyVaultId"`
}

func sideToJSON(side domain.ClearStagingSide) ([]byte, error) {
	return json.Marshal(stagingSide(side))
}

func sideFromJSON(data []byte) (domain.ClearStagingSide, error) {
	var side stagingSide
	if err := json.Unmarshal(data, &side); err != nil {
		return domain.ClearStagingSide{}, err
	}
	return domain.ClearStagingSide(side), nil
}

func (s *StagingStore) Put(ctx context.Context, staging domain.ClearStaging) error {
	alice, err := sideToJSON(staging.Alice)
	if err != nil {
		return fmt.Errorf("postgres: encode staging: %w", err)
	}
	bob, err := sideToJSON(staging.Bob)
	if err != nil {
		return fmt.Errorf("postgres: encode staging: %w", err)
	}

	const query = `
		INSERT INTO clear_stagings (id, orderbook, tx_hash, alice, bob)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			alice = EXCLUDED.alice,
			bob   = EXCLUDED.bob`

	_, err = s.db.Exec(ctx, query,
		hashBytes(staging.ID), addrBytes(staging.Orderbook),
		hashBytes(staging.TxHash), alice, bob)
	if err != nil {
		return fmt.Errorf("postgres: put staging %s: %w", staging.ID.Hex(), err)
	}
	return nil
}

func (s *StagingStore) Get(ctx context.Context, id common.Hash) (domain.ClearStaging, error) {
	const query = `
		SELECT id, orderbook, tx_hash, alice, bob
		FROM clear_stagings WHERE id = $1`

	var (
		staging              domain.ClearStaging
		sid, orderbook, tx   []byte
		aliceJSON, bobJSON   []byte
	)
	err := s.db.QueryRow(ctx, query, hashBytes(id)).
		Scan(&sid, &orderbook, &tx, &aliceJSON, &bobJSON)
	if err != nil {
		return domain.ClearStaging{}, notFound(err)
	}

	staging.ID = toHash(sid)
	staging.Orderbook = toAddr(orderbook)
	staging.TxHash = toHash(tx)
	if staging.Alice, err = sideFromJSON(aliceJSON); err != nil {
		return domain.ClearStaging{}, fmt.Errorf("postgres: decode staging: %w", err)
	}
	if staging.Bob, err = sideFromJSON(bobJSON); err != nil {
		return domain.ClearStaging{}, fmt.Errorf("postgres: decode staging: %w", err)
	}
	return staging, nil
}

func (s *StagingStore) Delete(ctx context.Context, id common.Hash) error {
	_, err := s.db.Exec(ctx, `DELETE FROM clear_stagings WHERE id = $1`, hashBytes(id))
	if err != nil {
		return fmt.Errorf("postgres: delete staging %s: %w", id.Hex(), err)
	}
	return nil
}
