package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fraudsim/internal/alerts"
	"fraudsim/internal/config"
	"fraudsim/internal/datagen"
	"fraudsim/internal/ingest"
	"fraudsim/internal/lockout"
	"fraudsim/internal/model"
	"fraudsim/internal/pipeline"
	"fraudsim/internal/stats"
	"fraudsim/internal/storage"
)

type Server struct {
	cfg      *config.Manager
	pipe     *pipeline.Pipeline
	history  storage.HistoryStore
	lockouts *lockout.Manager
	alerts   *alerts.Store
	stats    *stats.Store
	gen      *datagen.Generator
	logger   *slog.Logger
	version  string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Storage    string       `json:"storage_driver"`
	ScorerURL  string       `json:"scorer_url"`
	Kafka      bool         `json:"kafka_ingest"`
	Decisions  stats.Counts `json:"decisions"`
}

func Start(
	ctx context.Context,
	cfg *config.Manager,
	pipe *pipeline.Pipeline,
	history storage.HistoryStore,
	lockouts *lockout.Manager,
	alertStore *alerts.Store,
	statsStore *stats.Store,
	logger *slog.Logger,
	version string,
) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:      cfg,
		pipe:     pipe,
		history:  history,
		lockouts: lockouts,
		alerts:   alertStore,
		stats:    statsStore,
		gen:      datagen.New(time.Now().UnixNano()),
		logger:   logger,
		version:  version,
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// Handler builds the route table. Exposed so tests can drive the API without
// a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/", s.handleTransactionsByStatus)
	mux.HandleFunc("/api/accounts/status/", s.handleAccountStatus)
	mux.HandleFunc("/api/accounts/blocked", s.handleBlockedAccounts)
	mux.HandleFunc("/api/dashboard/summary", s.handleDashboardSummary)
	mux.HandleFunc("/api/dashboard/fraud-trends", s.handleFraudTrends)
	mux.HandleFunc("/api/dashboard/channel-wise", s.handleChannelWise)
	mux.HandleFunc("/api/dashboard/location-wise", s.handleLocationWise)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/admin/reload", s.handleReload)
	mux.HandleFunc("/admin/clear", s.handleClear)
	return mux
}

// NewServer builds a Server without starting a listener; used by tests.
func NewServer(
	cfg *config.Manager,
	pipe *pipeline.Pipeline,
	history storage.HistoryStore,
	lockouts *lockout.Manager,
	alertStore *alerts.Store,
	statsStore *stats.Store,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		pipe:     pipe,
		history:  history,
		lockouts: lockouts,
		alerts:   alertStore,
		stats:    statsStore,
		gen:      datagen.New(1),
		logger:   logger,
		version:  "test",
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	var counts stats.Counts
	if s.stats != nil {
		counts = s.stats.Snapshot()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Storage:    cfg.Storage.Driver,
		ScorerURL:  cfg.Scorer.URL,
		Kafka:      cfg.Ingest.Kafka.Enabled,
		Decisions:  counts,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.history.FindAll(r.Context())
		if err != nil {
			s.storeError(w, "list transactions", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSubmit runs one transaction through the decision pipeline. Malformed
// input (including unparsable timestamps) is a 400; only a failed persistence
// write surfaces as a 500. Degraded dependencies never fail the request.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body required")
		return
	}
	txn, err := ingest.DecodeTransaction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.pipe.Process(r.Context(), txn); err != nil {
		if s.logger != nil {
			s.logger.Error("transaction persistence failed",
				"transaction_id", txn.TransactionID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "failed to persist transaction")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleTransactionsByStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	path = strings.Trim(path, "/")
	var (
		list []model.Transaction
		err  error
	)
	switch strings.ToLower(path) {
	case "fraud":
		list, err = s.history.FindFraud(r.Context())
	case "success":
		list, err = s.history.FindByStatus(r.Context(), model.StatusSuccess)
	case "failed":
		list, err = s.history.FindByStatus(r.Context(), model.StatusFailed)
	case "pending":
		list, err = s.history.FindByStatus(r.Context(), model.StatusPending)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		s.storeError(w, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAccountStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	account := strings.TrimPrefix(r.URL.Path, "/api/accounts/status/")
	account = strings.Trim(account, "/")
	if account == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	state, err := s.lockouts.GetStatus(r.Context(), account)
	if err != nil {
		s.storeError(w, "account status", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleBlockedAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	blocked, err := s.lockouts.ListBlocked(r.Context())
	if err != nil {
		s.storeError(w, "blocked accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, blocked)
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := s.history.Summary(r.Context())
	if err != nil {
		s.storeError(w, "dashboard summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFraudTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	trends, err := s.history.FraudTrends(r.Context())
	if err != nil {
		s.storeError(w, "fraud trends", err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleChannelWise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := s.history.ChannelWiseFraud(r.Context())
	if err != nil {
		s.storeError(w, "channel-wise fraud", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLocationWise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := s.history.LocationWiseFraud(r.Context())
	if err != nil {
		s.storeError(w, "location-wise fraud", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.FraudAlert
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	count := 10
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "count must be between 1 and 1000")
			return
		}
		count = n
	}
	processed := 0
	for _, txn := range s.gen.Generate(count) {
		if _, err := s.pipe.Process(r.Context(), &txn); err != nil {
			s.storeError(w, "generate transactions", err)
			return
		}
		processed++
	}
	writeJSON(w, http.StatusOK, map[string]any{"generated": processed})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.cfg.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.alerts != nil {
		s.alerts.Clear()
	}
	if s.stats != nil {
		s.stats.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if s.logger != nil {
		s.logger.Error("store query failed", "op", op, "err", err)
	}
	writeError(w, http.StatusInternalServerError, "storage unavailable")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
