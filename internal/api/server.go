package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volumeScope/internal/model"
	"volumeScope/internal/monitor"
)

// Controller is the monitor surface exposed over HTTP. *monitor.Monitor satisfies it.
type Controller interface {
	View() monitor.View
	Pool(address string) (model.PoolRecord, bool)
	Connect(ctx context.Context) error
	Disconnect()
	Refresh(ctx context.Context) error
	ChangeTimeWindow(window model.TimeWindow) error
}

type Config struct {
	Addr string
	// BaseContext outlives single requests; connect and refresh use it.
	BaseContext context.Context
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

// Server serves the control API, the leaderboard websocket and metrics.
type Server struct {
	controller  Controller
	broadcaster *Broadcaster
	baseCtx     context.Context
	logger      *zap.Logger
	router      *mux.Router
	server      *http.Server
}

func NewServer(cfg Config, controller Controller, broadcaster *Broadcaster) *Server {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster(cfg.Logger)
	}

	router := mux.NewRouter()
	s := &Server{
		controller:  controller,
		broadcaster: broadcaster,
		baseCtx:     cfg.BaseContext,
		logger:      cfg.Logger,
		router:      router,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.registerRoutes(cfg.Gatherer)
	return s
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/pools", s.handlePools).Methods(http.MethodGet)
	api.HandleFunc("/pools/{address}", s.handlePool).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/window/{window}", s.handleWindow).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.broadcaster.Handler())
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish forwards a view to websocket clients. It matches monitor.Deps.Publish.
func (s *Server) Publish(view monitor.View) {
	s.broadcaster.Broadcast(view)
}

func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.Close()
	return s.server.Shutdown(ctx)
}

type statsResponse struct {
	Stats     model.Stats      `json:"stats"`
	Window    model.TimeWindow `json:"window"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type statusResponse struct {
	IsConnected      bool   `json:"is_connected"`
	ConnectionStatus string `json:"connection_status"`
	State            string `json:"state"`
	Attempts         int    `json:"attempts"`
	MaxAttempts      int    `json:"max_attempts"`
	LastError        string `json:"last_error,omitempty"`
}

type poolResponse struct {
	model.PoolRecord
	Transactions []model.Transaction `json:"transactions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.View())
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.View().Pools)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	record, ok := s.controller.Pool(address)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "pool not tracked"})
		return
	}
	s.writeJSON(w, http.StatusOK, poolResponse{PoolRecord: record, Transactions: record.Transactions})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	view := s.controller.View()
	s.writeJSON(w, http.StatusOK, statsResponse{Stats: view.Stats, Window: view.Window, UpdatedAt: view.UpdatedAt})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusOf(s.controller.View()))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Connect(s.baseCtx); err != nil {
		s.logger.Warn("connect request failed", zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, statusOf(s.controller.View()))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.controller.Disconnect()
	s.writeJSON(w, http.StatusOK, statusOf(s.controller.View()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Refresh(s.baseCtx); err != nil {
		s.logger.Warn("refresh reconnect failed", zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.View())
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	window := model.TimeWindow(mux.Vars(r)["window"])
	if err := s.controller.ChangeTimeWindow(window); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("encode response", zap.Error(err))
	}
}

func statusOf(view monitor.View) statusResponse {
	return statusResponse{
		IsConnected:      view.IsConnected,
		ConnectionStatus: view.ConnectionStatus,
		State:            view.Stream.StateName,
		Attempts:         view.Stream.Attempts,
		MaxAttempts:      view.Stream.MaxAttempts,
		LastError:        view.Stream.LastError,
	}
}
