package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/escrow"
)

type escrowRequest struct {
	TraderID string          `json:"trader_id"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	TradeID  string          `json:"trade_id"`
}

func (h *handler) lockFunds(w http.ResponseWriter, r *http.Request) {
	var req escrowRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bal, err := h.Escrow.Lock(r.Context(), req.TraderID, req.Currency, req.Amount, req.TradeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, bal)
}

func (h *handler) unlockFunds(w http.ResponseWriter, r *http.Request) {
	var req escrowRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bal, err := h.Escrow.Unlock(r.Context(), req.TraderID, req.Currency, req.Amount, req.TradeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, bal)
}

func (h *handler) releaseFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TradeID     string          `json:"trade_id"`
		SellerID    string          `json:"seller_id"`
		BuyerID     string          `json:"buyer_id"`
		Currency    string          `json:"currency"`
		GrossAmount decimal.Decimal `json:"gross_amount"`
		FeePercent  decimal.Decimal `json:"fee_percent"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Escrow.Release(r.Context(), escrow.ReleaseRequest{
		TradeID:     req.TradeID,
		SellerID:    req.SellerID,
		BuyerID:     req.BuyerID,
		Currency:    req.Currency,
		GrossAmount: req.GrossAmount,
		FeePercent:  req.FeePercent,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, res)
}

func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string          `json:"transaction_id"`
		UserID        string          `json:"user_id"`
		Currency      string          `json:"currency"`
		Amount        decimal.Decimal `json:"amount"`
		Source        string          `json:"source"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	bal, err := h.Escrow.Deposit(r.Context(), escrow.DepositRequest{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Currency:      req.Currency,
		Amount:        req.Amount,
		Source:        req.Source,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, bal)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string          `json:"transaction_id"`
		UserID        string          `json:"user_id"`
		Currency      string          `json:"currency"`
		Amount        decimal.Decimal `json:"amount"`
		FeePercent    decimal.Decimal `json:"fee_percent"`
		Destination   string          `json:"destination"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Escrow.Withdraw(r.Context(), escrow.WithdrawRequest{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Currency:      req.Currency,
		Amount:        req.Amount,
		FeePercent:    req.FeePercent,
		Destination:   req.Destination,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, res)
}

func (h *handler) listBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Escrow.ListBalances(r.Context(), chi.URLParam(r, "traderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, balances)
}

func (h *handler) getBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Escrow.GetBalance(r.Context(), chi.URLParam(r, "traderID"), chi.URLParam(r, "currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, bal)
}

func (h *handler) feePoolBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Escrow.FeePoolBalance(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, bal)
}

func (h *handler) escrowLock(w http.ResponseWriter, r *http.Request) {
	lock, err := h.Escrow.GetLock(r.Context(), chi.URLParam(r, "tradeID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, lock)
}
