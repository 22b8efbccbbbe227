// Package admin exposes the operational HTTP API: peer registration,
// transfer and event inspection, fee model management, dry-run quotes,
// runtime config, reconciliation triggers, and a small dashboard. All
// mutating routes are gated by the shared capability token when one is
// configured.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omnivault/crosschain-composer/internal/auth"
	"github.com/omnivault/crosschain-composer/internal/composer"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/quoter"
	"github.com/omnivault/crosschain-composer/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	defaultEventLimit  = 100
	maxEventLimit      = 1000
)

// allowedRuntimeKeys are the runtime config keys the config watchers act
// on. Rejecting everything else keeps typos out of the table.
var allowedRuntimeKeys = map[string]bool{
	"broadcast_interval_ms": true,
	"is_active":             true,
	"send_rate_limit":       true,
	"send_rate_burst":       true,
}

// FeeModeler is one chain's fee model surface: inspection, live updates,
// and dry-run quoting. Satisfied by *quoter.Quoter.
type FeeModeler interface {
	Model(eid uint32) (model.CostModel, bool)
	Models() map[uint32]model.CostModel
	SetModel(eid uint32, cm model.CostModel)
	Quote(ctx context.Context, msg *model.Message, opts model.DeliveryOptions, requireValidatorCheck bool) (model.FeeQuote, error)
}

// ReconcileRequester triggers journal/custody reconciliation. In production
// this is satisfied by *reconciliation.Service, but tests can provide a
// simple mock.
type ReconcileRequester interface {
	ReconcileAny(ctx context.Context, chain string) (any, error)
	HasChain(chain string) bool
}

// Server provides the HTTP-based admin API for operational management.
type Server struct {
	registry     *composer.Registry
	peers        store.PeerRepository
	ledger       store.TransactionLedger
	journal      store.EventJournal
	runtimeCfg   store.RuntimeConfigRepository
	feeModels    map[string]FeeModeler
	reconcileReq ReconcileRequester
	capability   auth.Capability
	logger       *slog.Logger
	startedAt    time.Time
}

// NewServer creates the admin API server over the shared repositories and
// the service registry.
func NewServer(
	registry *composer.Registry,
	peers store.PeerRepository,
	ledger store.TransactionLedger,
	journal store.EventJournal,
	runtimeCfg store.RuntimeConfigRepository,
	logger *slog.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		registry:   registry,
		peers:      peers,
		ledger:     ledger,
		journal:    journal,
		runtimeCfg: runtimeCfg,
		feeModels:  make(map[string]FeeModeler),
		logger:     logger.With("component", "admin"),
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the admin server.
type ServerOption func(*Server)

// WithReconcileRequester sets the reconciliation requester on the admin server.
func WithReconcileRequester(rr ReconcileRequester) ServerOption {
	return func(s *Server) { s.reconcileReq = rr }
}

// WithFeeModeler registers one chain's fee model surface.
func WithFeeModeler(chain string, fm FeeModeler) ServerOption {
	return func(s *Server) { s.feeModels[chain] = fm }
}

// WithCapability gates every /admin/v1 route behind the given token.
func WithCapability(c auth.Capability) ServerOption {
	return func(s *Server) { s.capability = c }
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/peers", s.handleListPeers)
	mux.HandleFunc("POST /admin/v1/peers", s.handleRegisterPeer)
	mux.HandleFunc("POST /admin/v1/peers/whitelist", s.handleWhitelistPeer)
	mux.HandleFunc("GET /admin/v1/transfers", s.handleLookupTransfer)
	mux.HandleFunc("GET /admin/v1/transfers/recent", s.handleRecentTransfers)
	mux.HandleFunc("GET /admin/v1/events", s.handleListEvents)
	mux.HandleFunc("GET /admin/v1/fee-models", s.handleGetFeeModels)
	mux.HandleFunc("PUT /admin/v1/fee-models", s.handleSetFeeModel)
	mux.HandleFunc("POST /admin/v1/quotes/dry-run", s.handleQuoteDryRun)
	mux.HandleFunc("GET /admin/v1/status", s.handleStatus)
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	mux.HandleFunc("POST /admin/v1/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /admin/v1/runtime-configs", s.handleGetRuntimeConfigs)
	mux.HandleFunc("PUT /admin/v1/runtime-configs", s.handleSetRuntimeConfig)
	mux.HandleFunc("POST /admin/v1/runtime-configs/deactivate", s.handleDeactivateRuntimeConfig)

	// Dashboard API + static files
	mux.HandleFunc("GET /admin/v1/dashboard/overview", s.handleDashboardOverview)
	mux.Handle("/dashboard/", http.StripPrefix("/dashboard/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/dashboard", s.handleDashboardIndex)

	if s.capability.IsSet() {
		return s.requireCapability(mux)
	}
	return mux
}

// requireCapability rejects /admin/v1 requests whose bearer token does not
// grant the configured capability. Dashboard assets stay readable; the
// data they fetch is still gated.
func (s *Server) requireCapability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/admin/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		raw := bearerToken(r)
		if raw == "" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		presented, err := auth.Parse(raw)
		if err != nil {
			http.Error(w, `{"error":"malformed bearer token"}`, http.StatusUnauthorized)
			return
		}
		if !s.capability.Grants(presented) {
			s.logger.Warn("admin API capability rejected", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, `{"error":"capability does not grant admin access"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// requireEidQuery extracts and validates an endpoint id query param.
// Returns false (and writes an error response) if validation fails.
func requireEidQuery(w http.ResponseWriter, r *http.Request, param string) (uint32, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		http.Error(w, fmt.Sprintf(`{"error":"%s query param required"}`, param), http.StatusBadRequest)
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		http.Error(w, fmt.Sprintf(`{"error":"%s must be a positive endpoint id"}`, param), http.StatusBadRequest)
		return 0, false
	}
	return uint32(v), true
}

// requireChainQuery extracts the chain name query param.
func requireChainQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	chain := r.URL.Query().Get("chain")
	if chain == "" {
		http.Error(w, `{"error":"chain query param required"}`, http.StatusBadRequest)
		return "", false
	}
	return chain, true
}

func limitQuery(r *http.Request, fallback, max int) int {
	limit := fallback
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// --- Peer endpoints ---

type peerResponse struct {
	LocalEid      uint32 `json:"local_eid"`
	RemoteEid     uint32 `json:"remote_eid"`
	RemoteAddress string `json:"remote_address"`
	Whitelisted   bool   `json:"whitelisted"`
	Source        string `json:"source"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func peerToResponse(p model.Peer) peerResponse {
	resp := peerResponse{
		LocalEid:      p.LocalEid,
		RemoteEid:     p.RemoteEid,
		RemoteAddress: p.RemoteAddress,
		Whitelisted:   p.Whitelisted,
		Source:        string(p.Source),
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.peers.List(r.Context())
	if err != nil {
		s.logger.Error("list peers failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	var localEid uint32
	if raw := r.URL.Query().Get("local_eid"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, `{"error":"local_eid must be an endpoint id"}`, http.StatusBadRequest)
			return
		}
		localEid = uint32(v)
	}

	resp := make([]peerResponse, 0, len(peers))
	for _, p := range peers {
		if localEid != 0 && p.LocalEid != localEid {
			continue
		}
		resp = append(resp, peerToResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerPeerRequest struct {
	LocalEid      uint32 `json:"local_eid"`
	RemoteEid     uint32 `json:"remote_eid"`
	RemoteAddress string `json:"remote_address"`
	Whitelisted   bool   `json:"whitelisted"`
}

func (s *Server) handleRegisterPeer(w http.ResponseWriter, r *http.Request) {
	var req registerPeerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.LocalEid == 0 || req.RemoteEid == 0 || req.RemoteAddress == "" {
		http.Error(w, `{"error":"local_eid, remote_eid, and remote_address are required"}`, http.StatusBadRequest)
		return
	}
	if req.LocalEid == req.RemoteEid {
		http.Error(w, `{"error":"a chain cannot peer with itself"}`, http.StatusBadRequest)
		return
	}

	peer := &model.Peer{
		LocalEid:      req.LocalEid,
		RemoteEid:     req.RemoteEid,
		RemoteAddress: req.RemoteAddress,
		Whitelisted:   req.Whitelisted,
		Source:        model.PeerSourceAdmin,
	}
	if err := s.peers.Upsert(r.Context(), peer); err != nil {
		s.logger.Error("register peer failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	s.logger.Info("peer registered via admin API",
		"local_eid", req.LocalEid,
		"remote_eid", req.RemoteEid,
		"remote_address", req.RemoteAddress,
		"whitelisted", req.Whitelisted,
	)

	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

type whitelistPeerRequest struct {
	LocalEid    uint32 `json:"local_eid"`
	RemoteEid   uint32 `json:"remote_eid"`
	Whitelisted bool   `json:"whitelisted"`
}

func (s *Server) handleWhitelistPeer(w http.ResponseWriter, r *http.Request) {
	var req whitelistPeerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.LocalEid == 0 || req.RemoteEid == 0 {
		http.Error(w, `{"error":"local_eid and remote_eid are required"}`, http.StatusBadRequest)
		return
	}

	peer, err := s.peers.Find(r.Context(), req.LocalEid, req.RemoteEid)
	if err != nil {
		s.logger.Error("whitelist peer lookup failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if peer == nil {
		http.Error(w, `{"error":"peer not registered"}`, http.StatusNotFound)
		return
	}

	peer.Whitelisted = req.Whitelisted
	if err := s.peers.Upsert(r.Context(), peer); err != nil {
		s.logger.Error("whitelist peer update failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	s.logger.Info("peer whitelist updated via admin API",
		"local_eid", req.LocalEid,
		"remote_eid", req.RemoteEid,
		"whitelisted", req.Whitelisted,
	)

	writeJSON(w, http.StatusOK, peerToResponse(*peer))
}

// --- Transfer endpoints ---

func (s *Server) handleLookupTransfer(w http.ResponseWriter, r *http.Request) {
	localEid, ok := requireEidQuery(w, r, "local_eid")
	if !ok {
		return
	}
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		http.Error(w, `{"error":"id query param required"}`, http.StatusBadRequest)
		return
	}
	id, err := model.ParseTransactionID(rawID)
	if err != nil {
		http.Error(w, `{"error":"id must be 64 hex characters"}`, http.StatusBadRequest)
		return
	}

	rec, err := s.ledger.Lookup(r.Context(), localEid, id)
	if err != nil {
		s.logger.Error("transfer lookup failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, `{"error":"transfer not recorded"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRecentTransfers(w http.ResponseWriter, r *http.Request) {
	localEid, ok := requireEidQuery(w, r, "local_eid")
	if !ok {
		return
	}
	limit := limitQuery(r, defaultRecentLimit, maxRecentLimit)

	recs, err := s.ledger.Recent(r.Context(), localEid, limit)
	if err != nil {
		s.logger.Error("recent transfers failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transfers": recs, "count": len(recs)})
}

// --- Event endpoints ---

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	localEid, ok := requireEidQuery(w, r, "local_eid")
	if !ok {
		return
	}

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			http.Error(w, `{"error":"after must be a non-negative sequence"}`, http.StatusBadRequest)
			return
		}
		after = v
	}
	limit := limitQuery(r, defaultEventLimit, maxEventLimit)

	events, err := s.journal.ListAfter(r.Context(), localEid, after, limit)
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// --- Fee model endpoints ---

func (s *Server) handleGetFeeModels(w http.ResponseWriter, r *http.Request) {
	chain, ok := requireChainQuery(w, r)
	if !ok {
		return
	}
	fm, ok := s.feeModels[chain]
	if !ok {
		http.Error(w, `{"error":"unknown chain"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chain": chain, "models": fm.Models()})
}

type setFeeModelRequest struct {
	Chain          string          `json:"chain"`
	DestinationEid uint32          `json:"destination_eid"`
	Model          model.CostModel `json:"model"`
}

func (s *Server) handleSetFeeModel(w http.ResponseWriter, r *http.Request) {
	var req setFeeModelRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Chain == "" || req.DestinationEid == 0 {
		http.Error(w, `{"error":"chain and destination_eid are required"}`, http.StatusBadRequest)
		return
	}
	fm, ok := s.feeModels[req.Chain]
	if !ok {
		http.Error(w, `{"error":"unknown chain"}`, http.StatusNotFound)
		return
	}

	fm.SetModel(req.DestinationEid, req.Model)

	s.logger.Info("fee model updated via admin API",
		"chain", req.Chain,
		"destination_eid", req.DestinationEid,
	)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Quote dry-run endpoint ---

type quoteDryRunRequest struct {
	Chain   string                `json:"chain"`
	Message model.Message         `json:"message"`
	Options model.DeliveryOptions `json:"options"`
}

func (s *Server) handleQuoteDryRun(w http.ResponseWriter, r *http.Request) {
	var req quoteDryRunRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Chain == "" {
		http.Error(w, `{"error":"chain is required"}`, http.StatusBadRequest)
		return
	}
	fm, ok := s.feeModels[req.Chain]
	if !ok {
		http.Error(w, `{"error":"unknown chain"}`, http.StatusNotFound)
		return
	}

	if err := req.Message.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	quote, err := fm.Quote(r.Context(), &req.Message, req.Options, true)
	if err != nil {
		if errors.Is(err, quoter.ErrUnsupportedDestination) {
			http.Error(w, `{"error":"no fee model for destination"}`, http.StatusBadRequest)
			return
		}
		s.logger.Error("dry-run quote failed", "error", err, "chain", req.Chain)
		http.Error(w, `{"error":"quote failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// --- Status and health endpoints ---

type serviceStatus struct {
	Chain  string                  `json:"chain"`
	Role   string                  `json:"role"`
	Active bool                    `json:"active"`
	Health composer.HealthSnapshot `json:"health"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, `{"error":"registry not available"}`, http.StatusServiceUnavailable)
		return
	}

	services := s.registry.All()
	resp := make([]serviceStatus, 0, len(services))
	for _, svc := range services {
		resp = append(resp, serviceStatus{
			Chain:  svc.Chain(),
			Role:   string(svc.Local().Role),
			Active: svc.IsActive(),
			Health: svc.Health().Snapshot(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	chains := 0
	if s.registry != nil {
		chains = len(s.registry.All())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"chains":         chains,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// --- Reconciliation endpoint ---

type reconcileRequest struct {
	Chain string `json:"chain"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconcileReq == nil {
		http.Error(w, `{"error":"reconciliation not available"}`, http.StatusServiceUnavailable)
		return
	}

	var req reconcileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Chain == "" {
		http.Error(w, `{"error":"chain is required"}`, http.StatusBadRequest)
		return
	}
	if !s.reconcileReq.HasChain(req.Chain) {
		http.Error(w, `{"error":"reconciliation not supported for this chain"}`, http.StatusNotFound)
		return
	}

	result, err := s.reconcileReq.ReconcileAny(r.Context(), req.Chain)
	if err != nil {
		s.logger.Error("reconciliation failed", "error", err, "chain", req.Chain)
		http.Error(w, `{"error":"reconciliation failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Runtime config endpoints ---

func (s *Server) handleGetRuntimeConfigs(w http.ResponseWriter, r *http.Request) {
	chain, ok := requireChainQuery(w, r)
	if !ok {
		return
	}

	configs, err := s.runtimeCfg.GetActive(r.Context(), chain)
	if err != nil {
		s.logger.Error("get runtime configs failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chain": chain, "configs": configs})
}

type setRuntimeConfigRequest struct {
	Chain string `json:"chain"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleSetRuntimeConfig(w http.ResponseWriter, r *http.Request) {
	var req setRuntimeConfigRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Chain == "" || req.Key == "" || req.Value == "" {
		http.Error(w, `{"error":"chain, key, and value are required"}`, http.StatusBadRequest)
		return
	}
	if !allowedRuntimeKeys[req.Key] {
		http.Error(w, `{"error":"unknown runtime config key"}`, http.StatusBadRequest)
		return
	}

	if err := s.runtimeCfg.Set(r.Context(), req.Chain, req.Key, req.Value); err != nil {
		s.logger.Error("set runtime config failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	s.logger.Info("runtime config updated via admin API",
		"chain", req.Chain,
		"key", req.Key,
		"value", req.Value,
	)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type deactivateRuntimeConfigRequest struct {
	Chain string `json:"chain"`
	Key   string `json:"key"`
}

func (s *Server) handleDeactivateRuntimeConfig(w http.ResponseWriter, r *http.Request) {
	var req deactivateRuntimeConfigRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Chain == "" || req.Key == "" {
		http.Error(w, `{"error":"chain and key are required"}`, http.StatusBadRequest)
		return
	}

	if err := s.runtimeCfg.Deactivate(r.Context(), req.Chain, req.Key); err != nil {
		s.logger.Error("deactivate runtime config failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	s.logger.Info("runtime config deactivated via admin API", "chain", req.Chain, "key", req.Key)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
