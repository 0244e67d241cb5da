// Package admin provides read-only admin API endpoints for runtime inspection
// of gateway state. All endpoints are protected by IP allowlist.
package admin

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/dskow/library-gateway/internal/circuitbreaker"
	"github.com/dskow/library-gateway/internal/config"
	"github.com/dskow/library-gateway/internal/retryqueue"
)

// Handler provides admin API endpoints.
type Handler struct {
	reloader    ConfigProvider
	breakers    []*circuitbreaker.ConsecutiveBreaker
	queue       *retryqueue.Queue
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// ConfigProvider abstracts config access for testability.
type ConfigProvider interface {
	Current() *config.Config
}

// New creates a new admin Handler. The allowlist CIDRs must be pre-validated
// (config validation ensures this).
func New(
	reloader ConfigProvider,
	breakers []*circuitbreaker.ConsecutiveBreaker,
	queue *retryqueue.Queue,
	allowlist []string,
	logger *slog.Logger,
) *Handler {
	nets := make([]*net.IPNet, 0, len(allowlist))
	for _, cidr := range allowlist {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // already validated by config
		}
		nets = append(nets, ipNet)
	}
	return &Handler{
		reloader:    reloader,
		breakers:    breakers,
		queue:       queue,
		allowedNets: nets,
		logger:      logger,
	}
}

// RegisterRoutes adds admin routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/breakers", h.guard(h.breakersHandler))
	mux.HandleFunc("/admin/queue", h.guard(h.queueHandler))
	mux.HandleFunc("/admin/config", h.guard(h.configHandler))
}

// guard wraps a handler with IP allowlist checking.
func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
				"error": "Method Not Allowed",
			})
			return
		}

		ip := extractIP(r.RemoteAddr)
		if !h.isAllowed(ip) {
			h.logger.Warn("admin access denied", "client_ip", ip, "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "Forbidden",
			})
			return
		}
		next(w, r)
	}
}

func (h *Handler) isAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range h.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// breakerStatus is the response type for /admin/breakers.
type breakerStatus struct {
	Dependency string `json:"dependency"`
	State      string `json:"state"`
}

func (h *Handler) breakersHandler(w http.ResponseWriter, r *http.Request) {
	statuses := make([]breakerStatus, len(h.breakers))
	for i, b := range h.breakers {
		statuses[i] = breakerStatus{
			Dependency: b.Dependency(),
			State:      b.State().String(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"breakers": statuses})
}

func (h *Handler) queueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": h.queue.Len(),
	})
}

func (h *Handler) configHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reloader.Current())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
