package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/obindexer/internal/domain"
	"github.com/quaylabs/obindexer/internal/store/memory"
)

func testMux(t *testing.T) (*http.ServeMux, *memory.Stores) {
	t.Helper()
	stores := memory.New()
	log := slog.New(slog.DiscardHandler)

	vaults := NewVaultHandler(stores.Vaults, stores.VaultEvents, stores.Trades, log)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/vaults", vaults.ListVaults)
	mux.HandleFunc("GET /api/vaults/{id}", vaults.GetVault)
	mux.HandleFunc("GET /api/vaults/{id}/changes", vaults.ListVaultChanges)
	return mux, stores
}

func TestListVaultsByOwner(t *testing.T) {
	mux, stores := testMux(t)
	owner := common.HexToAddress("0xaa")

	require.NoError(t, stores.Vaults.Put(context.Background(), domain.Vault{
		ID:      common.HexToHash("0x01"),
		Owner:   owner,
		Token:   common.HexToAddress("0x11"),
		VaultID: common.HexToHash("0x05"),
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vaults?owner="+owner.Hex(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listVaultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Vaults, 1)
	assert.Equal(t, owner, resp.Vaults[0].Owner)
}

func TestListVaultsRequiresOwner(t *testing.T) {
	mux, _ := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vaults", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetVaultNotFound(t *testing.T) {
	mux, _ := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/vaults/0x0000000000000000000000000000000000000000000000000000000000000001", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVaultInvalidID(t *testing.T) {
	mux, _ := testMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vaults/nonsense", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
