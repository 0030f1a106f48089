package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/custody-core/internal/ledger"
)

func ledgerQuery(r *http.Request) (ledger.Query, error) {
	q := r.URL.Query()
	from, err := queryTime(q, "from")
	if err != nil {
		return ledger.Query{}, err
	}
	to, err := queryTime(q, "to")
	if err != nil {
		return ledger.Query{}, err
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		return ledger.Query{}, err
	}
	return ledger.Query{
		Currency:      q.Get("currency"),
		RevenueSource: q.Get("source"),
		From:          from,
		To:            to,
		Limit:         limit,
	}, nil
}

func (h *handler) userLedger(w http.ResponseWriter, r *http.Request) {
	q, err := ledgerQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.Ledger.UserLedger(r.Context(), chi.URLParam(r, "userID"), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, entries)
}

func (h *handler) revenueLedger(w http.ResponseWriter, r *http.Request) {
	q, err := ledgerQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.Ledger.RevenueLedger(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, entries)
}

func (h *handler) transactionEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.TransactionEntries(r.Context(), chi.URLParam(r, "txID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, entries)
}

func (h *handler) verifyTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")
	tampered, err := h.Ledger.VerifyTransaction(r.Context(), txID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ids := make([]string, 0, len(tampered))
	for _, e := range tampered {
		ids = append(ids, e.ID)
	}
	success(w, map[string]any{
		"transaction_id":   txID,
		"valid":            len(tampered) == 0,
		"tampered_entries": ids,
	})
}

func (h *handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.Ledger.ReverseEntry(r.Context(), chi.URLParam(r, "entryID"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, map[string]string{"entry_id": id})
}

func (h *handler) recordTradeFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string          `json:"user_id"`
		Currency      string          `json:"currency"`
		Fee           decimal.Decimal `json:"fee"`
		FeeType       string          `json:"fee_type"`
		TransactionID string          `json:"transaction_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.Ledger.RecordTradeFee(r.Context(), req.UserID, req.Currency, req.Fee, ledger.FeeType(req.FeeType), req.TransactionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, map[string]string{"entry_id": id})
}

// recordSwap records the ledger side of a swap the exchange already priced.
func (h *handler) recordSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string          `json:"user_id"`
		FromCurrency  string          `json:"from_currency"`
		ToCurrency    string          `json:"to_currency"`
		FromAmount    decimal.Decimal `json:"from_amount"`
		ToAmount      decimal.Decimal `json:"to_amount"`
		FeeAmount     decimal.Decimal `json:"fee_amount"`
		FeeCurrency   string          `json:"fee_currency"`
		TransactionID string          `json:"transaction_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Ledger.RecordSwap(r.Context(), ledger.Swap{
		UserID:        req.UserID,
		FromCurrency:  req.FromCurrency,
		ToCurrency:    req.ToCurrency,
		FromAmount:    req.FromAmount,
		ToAmount:      req.ToAmount,
		FeeAmount:     req.FeeAmount,
		FeeCurrency:   req.FeeCurrency,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, map[string]string{
		"transaction_id":  res.TransactionID,
		"debit_entry_id":  res.DebitID,
		"credit_entry_id": res.CreditID,
		"fee_entry_id":    res.FeeID,
	})
}

func (h *handler) recordReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferrerID     string          `json:"referrer_id"`
		ReferredUserID string          `json:"referred_user_id"`
		Currency       string          `json:"currency"`
		Amount         decimal.Decimal `json:"amount"`
		FeeSource      string          `json:"fee_source"`
		TransactionID  string          `json:"transaction_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.Ledger.RecordReferralCommission(r.Context(), ledger.ReferralCommission{
		ReferrerID:     req.ReferrerID,
		ReferredUserID: req.ReferredUserID,
		Currency:       req.Currency,
		Amount:         req.Amount,
		FeeSource:      req.FeeSource,
		TransactionID:  req.TransactionID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, map[string]string{"entry_id": id})
}
