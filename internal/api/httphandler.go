package api

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/referral"
	"stakedeck/internal/staking"
	"stakedeck/internal/types"
	"stakedeck/internal/wallet"
)

// SessionTokenHdrName carries the wallet session token on authenticated routes.
const SessionTokenHdrName = "X-Session-Token"

const maxBodyBytes = 1 << 20

type Handler struct {
	Sessions  *wallet.Manager
	Staking   *staking.Service
	Poller    *staking.Poller
	Referrals *referral.Service
}

func NewHandler(sessions *wallet.Manager, svc *staking.Service, poller *staking.Poller, referrals *referral.Service) *Handler {
	return &Handler{
		Sessions:  sessions,
		Staking:   svc,
		Poller:    poller,
		Referrals: referrals,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", h.handleConnect)
	mux.HandleFunc("DELETE /session", h.handleDisconnect)

	mux.HandleFunc("GET /positions", h.authed(h.handlePositions))
	mux.HandleFunc("GET /dashboard", h.authed(h.handleDashboard))
	mux.HandleFunc("POST /stake", h.authed(h.handleStake))
	mux.HandleFunc("POST /unstake", h.authed(h.handleUnstake))
	mux.HandleFunc("GET /transactions", h.authed(h.handleTransactions))
	mux.HandleFunc("POST /transactions/check", h.authed(h.handleCheckNow))
	mux.HandleFunc("DELETE /transactions/completed", h.authed(h.handleClearCompleted))
	mux.HandleFunc("DELETE /transactions/{id}", h.authed(h.handleRemoveTransaction))

	mux.HandleFunc("GET /maintenance", h.handleMaintenance)

	mux.HandleFunc("POST /referral/register", h.handleReferralRegister)
	mux.HandleFunc("POST /referral/link", h.handleReferralLink)
	mux.HandleFunc("POST /referral/use", h.handleReferralUse)
	mux.HandleFunc("GET /referral/stats", h.handleReferralStats)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// authed resolves the session token header and passes the bound address on.
func (h *Handler) authed(next func(w http.ResponseWriter, r *http.Request, address string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.Sessions.Resolve(r.Context(), r.Header.Get(SessionTokenHdrName))
		if err != nil {
			http.Error(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		next(w, r, session.Address)
	}
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	session, err := h.Sessions.Connect(r.Context(), req.Address)
	if err != nil {
		httpError(w, err)
		return
	}
	log.WithFields(log.Fields{"address": session.Address, "ip": clientIP(r)}).Info("wallet connected")
	respond(w, http.StatusCreated, session)
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	address, err := h.Sessions.Disconnect(r.Context(), r.Header.Get(SessionTokenHdrName))
	if err != nil {
		httpError(w, err)
		return
	}
	h.Poller.StopPolling(address)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request, address string) {
	positions, err := h.Staking.Positions(r.Context(), address)
	if err != nil {
		httpError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"positions": positions})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request, address string) {
	dashboard, err := h.Staking.Dashboard(r.Context(), address)
	if err != nil {
		httpError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"dashboard": dashboard,
		// nil when the balance lookup failed; clients must not render it as 0
		"balance":      h.Staking.Balance(r.Context(), address),
		"denomination": h.Staking.Denomination(r.Context()),
	})
}

func (h *Handler) handleStake(w http.ResponseWriter, r *http.Request, address string) {
	var req struct {
		Token  string  `json:"token"`
		Amount float64 `json:"amount"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	tx, err := h.Staking.Stake(r.Context(), address, req.Token, req.Amount)
	if err != nil {
		if tx.ID != "" {
			// The submission failed but the transaction record exists; return
			// it so the client can show the failure.
			respond(w, http.StatusBadGateway, map[string]any{"transaction": tx, "error": err.Error()})
			return
		}
		httpError(w, err)
		return
	}
	respond(w, http.StatusAccepted, map[string]any{"transaction": tx})
}

func (h *Handler) handleUnstake(w http.ResponseWriter, r *http.Request, address string) {
	var req struct {
		PositionID string `json:"position_id"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	tx, err := h.Staking.Unstake(r.Context(), address, req.PositionID)
	if err != nil {
		if tx.ID != "" {
			respond(w, http.StatusBadGateway, map[string]any{"transaction": tx, "error": err.Error()})
			return
		}
		httpError(w, err)
		return
	}
	respond(w, http.StatusAccepted, map[string]any{"transaction": tx})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request, address string) {
	respond(w, http.StatusOK, map[string]any{
		"transactions": h.Staking.Transactions(address),
		"polling":      h.Poller.Polling(address),
	})
}

func (h *Handler) handleCheckNow(w http.ResponseWriter, r *http.Request, address string) {
	h.Poller.CheckNow(r.Context(), address)
	respond(w, http.StatusOK, map[string]any{
		"transactions": h.Staking.Transactions(address),
		"polling":      h.Poller.Polling(address),
	})
}

func (h *Handler) handleClearCompleted(w http.ResponseWriter, r *http.Request, address string) {
	removed := h.Staking.RemoveCompleted(address)
	respond(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) handleRemoveTransaction(w http.ResponseWriter, r *http.Request, address string) {
	id := r.PathValue("id")
	tx, ok := h.Staking.Transaction(id)
	if !ok || tx.Address != address {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}
	h.Staking.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"maintenance": h.Staking.InMaintenance(r.Context())})
}

func (h *Handler) handleReferralRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	account, err := h.Referrals.Register(r.Context(), req.Subject)
	if err != nil {
		httpError(w, err)
		return
	}
	respond(w, http.StatusOK, account)
}

func (h *Handler) handleReferralLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Address string `json:"address"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.Referrals.LinkWallet(r.Context(), req.Subject, req.Address); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReferralUse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Subject string `json:"subject"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.Referrals.Use(r.Context(), req.Code, req.Subject); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReferralStats(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}
	stats, err := h.Referrals.Stats(r.Context(), subject)
	if err != nil {
		httpError(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

// readJSON decodes the request body into v, writing the error response itself
// on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return false
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatus(err))
}

// httpStatus maps domain sentinels to response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrWalletLinked),
		errors.Is(err, types.ErrSelfReferral),
		errors.Is(err, types.ErrCodeUsed):
		return http.StatusConflict
	case errors.Is(err, types.ErrQueueEvicted):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// clientIP extracts the real client IP from X-Forwarded-For or RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respond writes a JSON response with the given status code.
func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}
