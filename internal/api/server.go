// Package api exposes the node's HTTP surface: health, vault stats, request
// lookups and the event journal for integrators polling state, plus
// key-guarded admin actions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/unboundlabs/unbound/internal/asset"
	"github.com/unboundlabs/unbound/internal/operator"
	"github.com/unboundlabs/unbound/internal/queue"
	"github.com/unboundlabs/unbound/internal/store"
	"github.com/unboundlabs/unbound/internal/vault"
	"github.com/unboundlabs/unbound/pkg/log"
)

// Server wires the HTTP handlers. Journal and Operator are optional; their
// endpoints return 404 when absent.
type Server struct {
	vault    *vault.Vault
	operator *operator.Service
	journal  *store.Store
	// adminAccount is the ledger identity admin actions are issued as.
	adminAccount asset.Account
	adminKey     string
	logger       zerolog.Logger
}

type Config struct {
	Vault        *vault.Vault
	Operator     *operator.Service
	Journal      *store.Store
	AdminAccount asset.Account
	AdminKey     string
}

func NewServer(cfg Config) *Server {
	return &Server{
		vault:        cfg.Vault,
		operator:     cfg.Operator,
		journal:      cfg.Journal,
		adminAccount: cfg.AdminAccount,
		adminKey:     cfg.AdminKey,
		logger:       log.API,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/vault", s.handleVault)
	mux.HandleFunc("GET /v1/deposits/{id}", s.handleDeposit)
	mux.HandleFunc("GET /v1/withdrawals/{id}", s.handleWithdrawal)
	mux.HandleFunc("GET /v1/users/{account}/withdrawals", s.handleUserWithdrawals)
	mux.HandleFunc("GET /v1/operator", s.handleOperator)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("POST /admin/nav", s.requireAdmin(s.handleAdminNAV))
	mux.HandleFunc("POST /admin/pause", s.requireAdmin(s.handleAdminPause))
	mux.HandleFunc("POST /admin/unpause", s.requireAdmin(s.handleAdminUnpause))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type vaultStats struct {
	TotalSupply      string       `json:"totalSupply"`
	TotalNAV         string       `json:"totalNav"`
	SharePrice       string       `json:"sharePrice"`
	NAVUpdatedAt     uint64       `json:"navUpdatedAt"`
	Paused           bool         `json:"paused"`
	PendingDeposits  uint64       `json:"pendingDeposits"`
	PendingWithdraws uint64       `json:"pendingWithdrawals"`
	Params           vault.Params `json:"params"`
}

func (s *Server) handleVault(w http.ResponseWriter, _ *http.Request) {
	// Share price is the redeem value of one whole share unit, in
	// settlement minor units.
	price, err := s.vault.PreviewRedeem(uint256.NewInt(1_000_000))
	if err != nil {
		price = new(uint256.Int)
	}

	writeJSON(w, http.StatusOK, vaultStats{
		TotalSupply:      s.vault.TotalSupply().Dec(),
		TotalNAV:         s.vault.TotalNAV().Dec(),
		SharePrice:       price.Dec(),
		NAVUpdatedAt:     s.vault.NAVLastUpdate(),
		Paused:           s.vault.Paused(),
		PendingDeposits:  s.vault.PendingDepositCount(),
		PendingWithdraws: s.vault.PendingWithdrawalCount(),
		Params:           s.vault.GetParams(),
	})
}

type depositView struct {
	ID        uint64 `json:"id"`
	Requester string `json:"requester"`
	Receiver  string `json:"receiver"`
	Value     string `json:"value"`
	MinShares string `json:"minShares"`
	Timestamp uint64 `json:"timestamp"`
	Processed bool   `json:"processed"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, err := s.vault.DepositRequest(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "deposit not found")
		return
	}
	writeJSON(w, http.StatusOK, depositView{
		ID:        req.ID,
		Requester: string(req.Requester),
		Receiver:  string(req.Receiver),
		Value:     req.Value.Dec(),
		MinShares: req.MinShares.Dec(),
		Timestamp: req.Timestamp,
		Processed: req.Processed,
	})
}

type withdrawalView struct {
	ID           uint64 `json:"id"`
	Requester    string `json:"requester"`
	Shares       string `json:"shares"`
	MinAssets    string `json:"minAssets"`
	SettledValue string `json:"settledValue"`
	Timestamp    uint64 `json:"timestamp"`
	Status       string `json:"status"`
}

func toWithdrawalView(req queue.WithdrawalRequest) withdrawalView {
	return withdrawalView{
		ID:           req.ID,
		Requester:    string(req.Requester),
		Shares:       req.Shares.Dec(),
		MinAssets:    req.MinAssets.Dec(),
		SettledValue: req.SettledValue.Dec(),
		Timestamp:    req.Timestamp,
		Status:       req.Status.String(),
	}
}

func (s *Server) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, err := s.vault.WithdrawalRequest(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "withdrawal not found")
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalView(req))
}

func (s *Server) handleUserWithdrawals(w http.ResponseWriter, r *http.Request) {
	account := asset.Account(r.PathValue("account"))

	var out []withdrawalView
	for _, id := range s.vault.UserWithdrawals(account) {
		req, err := s.vault.WithdrawalRequest(id)
		if err != nil {
			continue
		}
		out = append(out, toWithdrawalView(req))
	}
	if out == nil {
		out = []withdrawalView{}
	}
	writeJSON(w, http.StatusOK, out)
}

type operatorView struct {
	Loops    []operator.LoopStatus `json:"loops"`
	Inflight []uint64              `json:"inflightWithdrawals"`
}

func (s *Server) handleOperator(w http.ResponseWriter, _ *http.Request) {
	if s.operator == nil {
		writeError(w, http.StatusNotFound, "operator not running")
		return
	}
	inflight := s.operator.InflightWithdrawals()
	if inflight == nil {
		inflight = []uint64{}
	}
	writeJSON(w, http.StatusOK, operatorView{
		Loops:    s.operator.Statuses(),
		Inflight: inflight,
	})
}

type eventView struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	RequestID uint64 `json:"requestId"`
	Account   string `json:"account,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Shares    string `json:"shares,omitempty"`
	OldNAV    string `json:"oldNav,omitempty"`
	NewNAV    string `json:"newNav,omitempty"`
	Timestamp uint64 `json:"timestamp"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "event journal not enabled")
		return
	}

	from, _ := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	max := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("max")); err == nil && v > 0 && v <= 1000 {
		max = v
	}

	entries, err := s.journal.Events(from, max)
	if err != nil {
		s.logger.Error().Err(err).Msg("read event journal")
		writeError(w, http.StatusInternalServerError, "journal read failed")
		return
	}

	out := make([]eventView, 0, len(entries))
	for _, entry := range entries {
		ev := eventView{
			Seq:       entry.Seq,
			Kind:      entry.Event.Kind.String(),
			RequestID: entry.Event.RequestID,
			Account:   string(entry.Event.Account),
			Timestamp: entry.Event.Timestamp,
		}
		if entry.Event.Amount != nil {
			ev.Amount = entry.Event.Amount.Dec()
		}
		if entry.Event.Shares != nil {
			ev.Shares = entry.Event.Shares.Dec()
		}
		if entry.Event.OldNAV != nil {
			ev.OldNAV = entry.Event.OldNAV.Dec()
		}
		if entry.Event.NewNAV != nil {
			ev.NewNAV = entry.Event.NewNAV.Dec()
		}
		out = append(out, ev)
	}
	writeJSON(w, http.StatusOK, out)
}

// requireAdmin rejects admin calls without the configured key. With no key
// configured the endpoints are disabled outright.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			writeError(w, http.StatusNotFound, "admin api disabled")
			return
		}
		if r.Header.Get("X-Admin-Key") != s.adminKey {
			writeError(w, http.StatusUnauthorized, "bad admin key")
			return
		}
		next(w, r)
	}
}

type adminNAVRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleAdminNAV(w http.ResponseWriter, r *http.Request) {
	var body adminNAVRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	value, err := uint256.FromDecimal(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid nav value")
		return
	}

	if err := s.vault.UpdateNAV(s.adminAccount, value); err != nil {
		s.writeVaultError(w, err)
		return
	}
	s.logger.Warn().Str("nav", value.Dec()).Msg("nav forced via admin api")
	writeJSON(w, http.StatusOK, map[string]string{"totalNav": s.vault.TotalNAV().Dec()})
}

func (s *Server) handleAdminPause(w http.ResponseWriter, _ *http.Request) {
	if err := s.vault.Pause(s.adminAccount); err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleAdminUnpause(w http.ResponseWriter, _ *http.Request) {
	if err := s.vault.Unpause(s.adminAccount); err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) writeVaultError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrNotOwner),
		errors.Is(err, vault.ErrNotOperator),
		errors.Is(err, vault.ErrNotGuardian):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrReentrancy):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
