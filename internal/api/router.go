package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/custody-core/internal/escrow"
	"github.com/sheikh-saqib/custody-core/internal/ledger"
	"github.com/sheikh-saqib/custody-core/internal/reconciliation"
	"github.com/sheikh-saqib/custody-core/internal/risk"
)

// Services are the domain components the HTTP layer fronts.
type Services struct {
	Escrow         *escrow.Engine
	Ledger         *ledger.Ledger
	Reconciliation *reconciliation.Engine
	Risk           *risk.Manager
}

type handler struct {
	Services
	logger *zap.Logger
}

// NewRouter wires every route. Callers may mount more (e.g. /metrics) on the
// returned router.
func NewRouter(svc Services, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{Services: svc, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		success(w, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/escrow", func(r chi.Router) {
			r.Post("/lock", h.lockFunds)
			r.Post("/unlock", h.unlockFunds)
			r.Post("/release", h.releaseFunds)
			r.Get("/trades/{tradeID}", h.escrowLock)
		})
		r.Route("/wallet", func(r chi.Router) {
			r.Post("/deposits", h.deposit)
			r.Post("/withdrawals", h.withdraw)
		})
		r.Get("/balances/{traderID}", h.listBalances)
		r.Get("/balances/{traderID}/{currency}", h.getBalance)
		r.Get("/fee-pool/{currency}", h.feePoolBalance)

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/users/{userID}", h.userLedger)
			r.Get("/revenue", h.revenueLedger)
			r.Get("/transactions/{txID}", h.transactionEntries)
			r.Get("/transactions/{txID}/verify", h.verifyTransaction)
			r.Post("/entries/{entryID}/reverse", h.reverseEntry)
			r.Post("/fees", h.recordTradeFee)
			r.Post("/swaps", h.recordSwap)
			r.Post("/referrals", h.recordReferral)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/daily", h.runDaily)
			r.Post("/weekly", h.runWeekly)
			r.Post("/monthly", h.runMonthly)
			r.Get("/reports", h.listReports)
			r.Get("/alerts", h.listAlerts)
			r.Post("/alerts/{alertID}/ack", h.acknowledgeAlert)
			r.Get("/users/{userID}", h.reconcileUser)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Post("/validate", h.validateIntent)
			r.Get("/config", h.globalConfig)
			r.Put("/config", h.updateGlobalConfig)
			r.Post("/kill-switch", h.globalKillSwitch)
			r.Post("/users/{userID}/kill-switch", h.userKillSwitch)
			r.Post("/bots/{botID}/kill-switch", h.botKillSwitch)
			r.Get("/bots/{botID}/config", h.botConfig)
			r.Put("/bots/{botID}/config", h.updateBotConfig)
			r.Get("/violations", h.listViolations)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
