package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/risk"
)

type killSwitchRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// validateIntent answers 200 on RISK_PASS and 403 on RISK_BLOCK, carrying the
// full result in both cases.
func (h *handler) validateIntent(w http.ResponseWriter, r *http.Request) {
	var intent risk.OrderIntent
	if err := decode(r, &intent); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Risk.ValidateOrderIntent(r.Context(), intent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Allowed() {
		writeJSON(w, http.StatusForbidden, Response{
			Status:  "error",
			Message: res.Details,
			Data:    res,
			Error:   string(res.Reason),
		})
		return
	}
	success(w, res)
}

func (h *handler) globalConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Risk.GlobalConfig(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, cfg)
}

func (h *handler) updateGlobalConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.GlobalRiskConfig
	if err := decode(r, &cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Risk.UpdateGlobalConfig(r.Context(), cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.globalConfig(w, r)
}

func (h *handler) globalKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Risk.SetGlobalKillSwitch(r.Context(), req.Active, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, req)
}

func (h *handler) userKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.Risk.SetUserKillSwitch(r.Context(), userID, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, map[string]any{"user_id": userID, "active": req.Active})
}

func (h *handler) botKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	botID := chi.URLParam(r, "botID")
	if err := h.Risk.SetBotKillSwitch(r.Context(), botID, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, map[string]any{"bot_id": botID, "active": req.Active})
}

func (h *handler) botConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Risk.BotConfig(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, cfg)
}

func (h *handler) updateBotConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.BotRiskConfig
	if err := decode(r, &cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	cfg.BotID = chi.URLParam(r, "botID")
	if err := h.Risk.UpdateBotConfig(r.Context(), cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, cfg)
}

func (h *handler) listViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	violations, err := h.Risk.ListViolations(r.Context(), q.Get("bot_id"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, violations)
}
