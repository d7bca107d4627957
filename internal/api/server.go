package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pool-watch/internal/alert"
	"pool-watch/internal/logger"
	"pool-watch/internal/sysinfo"
	"pool-watch/internal/watch"
)

// StatusSource 提供运行状态
type StatusSource interface {
	Status() watch.ManagerStatus
}

// MaintenanceSwitch 读取与切换维护模式
type MaintenanceSwitch interface {
	Maintenance() bool
	SetMaintenance(enabled bool) error
}

// Deps 服务依赖 为 nil 的依赖对应接口返回 503
type Deps struct {
	Status      StatusSource
	Maintenance MaintenanceSwitch
	System      *sysinfo.Collector
	Metrics     http.Handler
}

// Server 状态与指标 HTTP 服务
type Server struct {
	httpServer *http.Server
}

type handler struct {
	deps Deps
}

type statusResponse struct {
	watch.ManagerStatus
	Stats  alert.Stats       `json:"stats"`
	System *sysinfo.Snapshot `json:"system,omitempty"`
}

// NewServer 构建 HTTP 服务 不会开始监听
func NewServer(addr string, deps Deps) *Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      newHandler(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return &Server{httpServer: srv}
}

func newHandler(deps Deps) http.Handler {
	h := &handler{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/maintenance", h.maintenance)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	return withCORS(mux)
}

// ListenAndServe 阻塞监听 正常关闭时返回 nil
func (s *Server) ListenAndServe() error {
	logger.Info("API 服务监听 %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 停止接收新连接 等待已有请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.deps.Status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "watcher not ready"})
		return
	}
	st := h.deps.Status.Status()
	resp := statusResponse{ManagerStatus: st, Stats: st.Pipeline.Stats}
	if h.deps.System != nil {
		snap := h.deps.System.Snapshot()
		resp.System = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) maintenance(w http.ResponseWriter, r *http.Request) {
	if h.deps.Maintenance == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "maintenance switch not configured"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "enabled": h.deps.Maintenance.Maintenance()})
	case http.MethodPost:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if err := h.deps.Maintenance.SetMaintenance(*req.Enabled); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		logger.Info("维护模式已通过 API 切换为 %v", *req.Enabled)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "enabled": *req.Enabled})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
