package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"cfdjournal/internal/app"
	"cfdjournal/internal/domain"
	"cfdjournal/internal/engine"
	"cfdjournal/internal/ports"
)

// handlers serves all journal HTTP endpoints.
type handlers struct {
	journal *app.JournalService
	logger  ports.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Accounts ---

type accountRequest struct {
	Name                   string  `json:"name"`
	StartBalance           float64 `json:"startBalance"`
	OpenCloseCommissionPct float64 `json:"openCloseCommissionPct"`
	NightCommissionPct     float64 `json:"nightCommissionPct"`
}

func (h *handlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	acct, err := h.journal.CreateAccount(r.Context(), app.CreateAccountRequest{
		Name:                   req.Name,
		StartBalance:           req.StartBalance,
		OpenCloseCommissionPct: req.OpenCloseCommissionPct,
		NightCommissionPct:     req.NightCommissionPct,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.journal.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

func (h *handlers) updateCommissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		OpenCloseCommissionPct float64 `json:"openCloseCommissionPct"`
		NightCommissionPct     float64 `json:"nightCommissionPct"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.journal.UpdateAccountCommissions(r.Context(), id, req.OpenCloseCommissionPct, req.NightCommissionPct); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Symbols ---

func (h *handlers) createSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sym, err := h.journal.CreateSymbol(r.Context(), req.Ticker, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sym)
}

func (h *handlers) listSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.journal.ListSymbols(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

func (h *handlers) setSymbolActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.journal.SetSymbolActive(r.Context(), id, req.Active); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Positions ---

type openPositionRequest struct {
	AccountID int64   `json:"accountId"`
	SymbolID  int64   `json:"symbolId"`
	TradeType string  `json:"tradeType"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	OpenedAt  string  `json:"openedAt,omitempty"` // RFC3339, defaults to now
}

func (h *handlers) openPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	openedAt, err := parseTime(req.OpenedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	pos, err := h.journal.OpenPosition(r.Context(), app.OpenPositionRequest{
		AccountID: req.AccountID,
		SymbolID:  req.SymbolID,
		TradeType: domain.TradeType(req.TradeType),
		Quantity:  req.Quantity,
		Price:     req.Price,
		OpenedAt:  openedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := h.journal.GetSnapshot(r.Context(), pos.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionResponse(detail))
}

func (h *handlers) listPositions(w http.ResponseWriter, r *http.Request) {
	status := domain.PositionStatus(r.URL.Query().Get("status"))
	if status != "" && status != domain.StatusOpen && status != domain.StatusClosed {
		writeError(w, errors.Join(errors.New("status must be open or closed"), ports.ErrValidation))
		return
	}
	details, err := h.journal.ListPositions(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]positionResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toPositionResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": out})
}

func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := h.journal.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponse(detail))
}

func (h *handlers) addToPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Quantity   float64 `json:"quantity"`
		Price      float64 `json:"price"`
		ExecutedAt string  `json:"executedAt,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	executedAt, err := parseTime(req.ExecutedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.journal.AddToPosition(r.Context(), id, req.Quantity, req.Price, executedAt); err != nil {
		writeError(w, err)
		return
	}
	detail, err := h.journal.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionResponse(detail))
}

func (h *handlers) closePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Price      float64 `json:"price"`
		Percentage float64 `json:"percentage"`
		ClosedAt   string  `json:"closedAt,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	closedAt, err := parseTime(req.ClosedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.journal.ClosePosition(r.Context(), app.ClosePositionRequest{
		PositionID: id,
		Price:      req.Price,
		Percentage: req.Percentage,
		ClosedAt:   closedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (h *handlers) deletePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.journal.DeletePosition(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Metrics ---

func (h *handlers) performance(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.journal.GetPerformance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// JSON cannot carry +Inf; an infinite profit factor becomes null.
	var profitFactor *float64
	if !math.IsInf(metrics.ProfitFactor, 0) {
		profitFactor = &metrics.ProfitFactor
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalTrades":   metrics.TotalTrades,
		"winningTrades": metrics.WinningTrades,
		"losingTrades":  metrics.LosingTrades,
		"winRate":       metrics.WinRate,
		"averageWin":    metrics.AverageWin,
		"averageLoss":   metrics.AverageLoss,
		"profitFactor":  profitFactor,
		"expectancy":    metrics.Expectancy,
		"largestWin":    metrics.LargestWin,
		"largestLoss":   metrics.LargestLoss,
		"maxDrawdown":   metrics.MaxDrawdown,
		"totalPnl":      metrics.TotalPnL,
		"totalFees":     metrics.TotalFees,
	})
}

func (h *handlers) calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, errors.Join(errors.New("year query parameter required"), ports.ErrValidation))
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, errors.Join(errors.New("month query parameter must be 1-12"), ports.ErrValidation))
		return
	}
	grid, err := h.journal.GetCalendarGrid(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"year": year, "month": month, "days": grid})
}

func (h *handlers) timeMetrics(w http.ResponseWriter, r *http.Request) {
	tm, err := h.journal.GetTimeMetrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tm)
}

func (h *handlers) monthlyPnL(w http.ResponseWriter, r *http.Request) {
	series, err := h.journal.GetMonthlyPnL(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"months": series})
}

func (h *handlers) symbolDistribution(w http.ResponseWriter, r *http.Request) {
	stats, err := h.journal.GetSymbolDistribution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": stats})
}

// --- Response shapes ---

type snapshotResponse struct {
	TradeType         string  `json:"tradeType,omitempty"`
	Degenerate        bool    `json:"degenerate,omitempty"`
	NetQuantity       float64 `json:"netQuantity"`
	OriginalQuantity  float64 `json:"originalQuantity"`
	ClosedQuantity    float64 `json:"closedQuantity"`
	OpenPrice         float64 `json:"openPrice"`
	ClosePrice        float64 `json:"closePrice"`
	IsPartiallyClosed bool    `json:"isPartiallyClosed"`
	RealizedPnL       float64 `json:"realizedPnl"`
	UnrealizedPnL     float64 `json:"unrealizedPnl"`
	PnL               float64 `json:"pnl"`
	OpenFee           float64 `json:"openFee"`
	CloseFee          float64 `json:"closeFee"`
	NightFee          float64 `json:"nightFee"`
	TotalFees         float64 `json:"totalFees"`
	BreakevenPrice    float64 `json:"breakevenPrice"`
}

type positionResponse struct {
	ID        int64            `json:"id"`
	AccountID int64            `json:"accountId"`
	SymbolID  int64            `json:"symbolId"`
	Status    string           `json:"status"`
	OpenedAt  time.Time        `json:"openedAt"`
	ClosedAt  *time.Time       `json:"closedAt,omitempty"`
	Snapshot  snapshotResponse `json:"snapshot"`
}

func toSnapshotResponse(s engine.Snapshot) snapshotResponse {
	return snapshotResponse{
		TradeType:         string(s.TradeType),
		Degenerate:        s.Degenerate,
		NetQuantity:       s.NetQuantity,
		OriginalQuantity:  s.OriginalQuantity,
		ClosedQuantity:    s.ClosedQuantity,
		OpenPrice:         s.OpenPrice,
		ClosePrice:        s.ClosePrice,
		IsPartiallyClosed: s.IsPartiallyClosed,
		RealizedPnL:       s.RealizedPnL,
		UnrealizedPnL:     s.UnrealizedPnL,
		PnL:               s.PnL,
		OpenFee:           s.Fees.Open,
		CloseFee:          s.Fees.Close,
		NightFee:          s.Fees.Night,
		TotalFees:         s.Fees.Total,
		BreakevenPrice:    s.BreakevenPrice,
	}
}

func toPositionResponse(d *app.PositionDetail) positionResponse {
	resp := positionResponse{
		ID:        d.Position.ID,
		AccountID: d.Position.AccountID,
		SymbolID:  d.Position.SymbolID,
		Status:    string(d.Position.Status),
		OpenedAt:  d.Position.OpenedAt,
		Snapshot:  toSnapshotResponse(d.Snapshot),
	}
	if !d.Position.ClosedAt.IsZero() {
		closedAt := d.Position.ClosedAt
		resp.ClosedAt = &closedAt
	}
	return resp
}
