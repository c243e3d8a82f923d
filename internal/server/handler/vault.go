package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quaylabs/obindexer/internal/domain"
)

// VaultHandler serves vault balance and vault history endpoints.
type VaultHandler struct {
	vaults domain.VaultStore
	events domain.VaultEventStore
	trades domain.TradeStore
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(vaults domain.VaultStore, events domain.VaultEventStore, trades domain.TradeStore, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vaults: vaults, events: events, trades: trades, logger: logger}
}

type listVaultsResponse struct {
	Vaults []domain.Vault `json:"vaults"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListVaults returns the vaults belonging to an owner.
// GET /api/vaults?owner=0x...&limit=50&offset=0
func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseAddress(r.URL.Query().Get("owner"))
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid owner address")
		return
	}
	opts := parseListOpts(r)

	vaults, err := h.vaults.ListByOwner(r.Context(), owner, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list vaults failed",
			slog.String("owner", owner.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list vaults")
		return
	}

	writeJSON(w, http.StatusOK, listVaultsResponse{
		Vaults: vaults,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetVault returns a single vault by its entity id.
// GET /api/vaults/{id}
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid vault id")
		return
	}

	vault, err := h.vaults.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get vault failed",
			slog.String("vault_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get vault")
		return
	}

	writeJSON(w, http.StatusOK, vault)
}

type vaultDepositsResponse struct {
	Deposits []domain.Deposit `json:"deposits"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListVaultDeposits returns the deposit history of a vault.
// GET /api/vaults/{id}/deposits
func (h *VaultHandler) ListVaultDeposits(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid vault id")
		return
	}
	opts := parseListOpts(r)

	deposits, err := h.events.ListDepositsByVault(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deposits failed",
			slog.String("vault_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list deposits")
		return
	}

	writeJSON(w, http.StatusOK, vaultDepositsResponse{
		Deposits: deposits,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

type vaultWithdrawalsResponse struct {
	Withdrawals []domain.Withdrawal `json:"withdrawals"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// ListVaultWithdrawals returns the withdrawal history of a vault.
// GET /api/vaults/{id}/withdrawals
func (h *VaultHandler) ListVaultWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid vault id")
		return
	}
	opts := parseListOpts(r)

	withdrawals, err := h.events.ListWithdrawalsByVault(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list withdrawals failed",
			slog.String("vault_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list withdrawals")
		return
	}

	writeJSON(w, http.StatusOK, vaultWithdrawalsResponse{
		Withdrawals: withdrawals,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

type vaultChangesResponse struct {
	Changes []domain.TradeVaultBalanceChange `json:"changes"`
	Limit   int                              `json:"limit"`
	Offset  int                              `json:"offset"`
}

// ListVaultChanges returns the trade-driven balance changes of a vault.
// GET /api/vaults/{id}/changes
func (h *VaultHandler) ListVaultChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid vault id")
		return
	}
	opts := parseListOpts(r)

	changes, err := h.trades.ListChangesByVault(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list vault changes failed",
			slog.String("vault_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list balance changes")
		return
	}

	writeJSON(w, http.StatusOK, vaultChangesResponse{
		Changes: changes,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
