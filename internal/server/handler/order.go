package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quaylabs/obindexer/internal/domain"
)

// OrderHandler serves order lifecycle and per-order trade endpoints.
type OrderHandler struct {
	orders domain.OrderStore
	trades domain.TradeStore
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders domain.OrderStore, trades domain.TradeStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, trades: trades, logger: logger}
}

type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListOrders returns orders by owner, or the active orders of an orderbook.
// GET /api/orders?owner=0x...
// GET /api/orders?orderbook=0x...  (active only)
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	var (
		orders []domain.Order
		err    error
	)
	switch {
	case q.Get("owner") != "":
		owner, ok := parseAddress(q.Get("owner"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid owner address")
			return
		}
		orders, err = h.orders.ListByOwner(r.Context(), owner, opts)
	case q.Get("orderbook") != "":
		orderbook, ok := parseAddress(q.Get("orderbook"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid orderbook address")
			return
		}
		orders, err = h.orders.ListActive(r.Context(), orderbook, opts)
	default:
		writeError(w, http.StatusBadRequest, "owner or orderbook query parameter required")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{
		Orders: orders,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetOrder returns a single order by its entity id.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.String("order_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListOrderTrades returns the trades an order participated in.
// GET /api/orders/{id}/trades
func (h *OrderHandler) ListOrderTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	opts := parseListOpts(r)

	trades, err := h.trades.ListByOrder(r.Context(), id, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list order trades failed",
			slog.String("order_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: trades,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}
