package faucetd

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"burnfaucet/core/runtime"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/native/faucet"
	"burnfaucet/observability"
	"burnfaucet/observability/logging"
)

const maxBodyBytes = 1 << 20

// TransactionRequest is the body of POST /v1/transactions.
type TransactionRequest struct {
	Nonce        uint64                    `json:"nonce"`
	Instructions []runtime.Instruction     `json:"instructions"`
	Signatures   map[crypto.Address][]byte `json:"signatures"`
}

// ErrorResponse is returned for every non-2xx response. Code is the faucet
// error code when the failure came from the faucet program.
type ErrorResponse struct {
	Error string   `json:"error"`
	Code  *int     `json:"code,omitempty"`
	ID    string   `json:"id,omitempty"`
	Logs  []string `json:"logs,omitempty"`
}

// TreasuryResponse is returned by GET /v1/treasury.
type TreasuryResponse struct {
	Address crypto.Address `json:"address"`
	Bump    uint8          `json:"bump"`
	Balance uint64         `json:"balance"`
}

// AccountResponse is returned by GET /v1/accounts/{address}.
type AccountResponse struct {
	Address crypto.Address `json:"address"`
	Exists  bool           `json:"exists"`
	*types.Account
}

// Server exposes a Node over HTTP.
type Server struct {
	node    *Node
	logger  *slog.Logger
	limiter *rateLimiter
	router  http.Handler
}

// Option customises a Server.
type Option func(*Server)

// WithSubmitLimit throttles POST /v1/transactions per client.
func WithSubmitLimit(limit SubmitLimit) Option {
	return func(s *Server) { s.limiter = newRateLimiter(limit) }
}

// NewServer builds the router for node.
func NewServer(node *Node, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{node: node, logger: logger, limiter: newRateLimiter(SubmitLimit{})}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(api chi.Router) {
		api.With(s.limiter.middleware).Post("/transactions", s.handleSubmit)
		api.Get("/claims/{class}/{actor}", s.handleClaim)
		api.Get("/treasury", s.handleTreasury)
		api.Get("/accounts/{address}", s.handleAccount)
		api.Get("/accounts/{address}/proof", s.handleAccountProof)
		api.Get("/events", s.handleEvents)
	})
	return r
}

// observe records per-route metrics and an access log line.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := observability.HTTP().Start("faucetd")
		defer done()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().Observe("faucetd", r.Method+" "+route, status, elapsed)
		s.logger.Debug("request served",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", chimw.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"height": s.node.View().Height(),
		"root":   s.node.View().Root().Hex(),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload: " + err.Error()})
		return
	}
	if len(req.Instructions) == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: runtime.ErrEmptyTransaction.Error()})
		return
	}
	tx := runtime.NewTransaction(req.Instructions...)
	tx.Nonce = req.Nonce
	for addr, sig := range req.Signatures {
		tx.Signatures[addr] = sig
		s.logger.Debug("transaction signature",
			"signer", addr.String(),
			logging.MaskField("signature", hex.EncodeToString(sig)))
	}

	receipt, err := s.node.Submit(r.Context(), tx)
	if err != nil {
		resp := ErrorResponse{Error: err.Error()}
		if code, ok := faucet.Code(err); ok {
			resp.Code = &code
		}
		if receipt != nil {
			resp.ID = receipt.ID
			resp.Logs = receipt.Logs
		}
		s.logger.Info("transaction rejected", "tx", tx.ID(), "error", err)
		writeError(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(chi.URLParam(r, "class"), 10, 8)
	class := faucet.ClaimClass(raw)
	if err != nil || !class.Valid() || class.Compressed() {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "class must be a core challenge class"})
		return
	}
	actor, err := crypto.ParseAddress(strings.TrimSpace(chi.URLParam(r, "actor")))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	status, err := s.node.Engine().ClaimStatus(s.node.View(), class, actor)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTreasury(w http.ResponseWriter, _ *http.Request) {
	treasury := s.node.Engine().Treasury()
	balance, err := s.node.Engine().TreasuryBalance(s.node.View())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TreasuryResponse{
		Address: treasury.Address,
		Bump:    treasury.Bump,
		Balance: balance,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	acc, err := s.node.View().Account(addr)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Address: addr, Exists: acc.Exists(), Account: acc})
}

func (s *Server) handleAccountProof(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	proof, err := s.node.View().ProveAccount(addr)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	writeJSON(w, status, body)
}

// decodeError turns an error body back into an error value. Faucet codes map
// to their sentinel so callers can use errors.Is across the wire.
func decodeError(status int, body ErrorResponse) error {
	if body.Code != nil {
		if sentinel, ok := faucet.ErrorForCode(*body.Code); ok {
			return &RemoteError{Status: status, Message: body.Error, Logs: body.Logs, err: sentinel}
		}
	}
	return &RemoteError{Status: status, Message: body.Error, Logs: body.Logs}
}

// RemoteError is a non-2xx response from faucetd.
type RemoteError struct {
	Status  int
	Message string
	Logs    []string
	err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.err }
