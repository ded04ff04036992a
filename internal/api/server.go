// Package api exposes the controller over HTTP: status, mode and manual
// signal control, pedestrian requests, emergency preemption, the event log,
// settings, and operational endpoints (/healthz, /metrics). Mutating
// endpoints are rate-limited per client IP and audit-logged.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/controller"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/domain/model"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/health"
	"github.com/Masterionik/rpi5-smart-traffic-light-system/internal/metrics"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// ControlSurface is the slice of the controller the API exposes. Satisfied
// by *controller.Controller; tests substitute fakes.
type ControlSurface interface {
	Status() controller.StatusSnapshot
	DetailedStatus() controller.DetailedSnapshot
	Mode() model.ControllerMode
	SetMode(m model.ControllerMode) error
	ManualSetDirection(dir model.Direction, state model.SignalState) error
	RequestPedestrianCrossing(dir model.Direction) (controller.PedestrianAck, error)
	HandleEmergency(dir model.Direction) bool
	EmergencyStop()
	Events(limit int) []model.EventLogEntry
	SettingsSnapshot() controller.Settings
	UpdateSettings(patch controller.SettingsPatch) controller.Settings
	Stats() controller.StatsSnapshot
}

// Server serves the control API for one controller instance.
type Server struct {
	ctrl     ControlSurface
	registry *health.Registry
	logger   *slog.Logger
	limiter  *RateLimitMiddleware
}

// NewServer builds the API server. registry may be nil; /healthz then
// reports only that the process is up.
func NewServer(ctrl ControlSurface, registry *health.Registry, logger *slog.Logger) *Server {
	return &Server{
		ctrl:     ctrl,
		registry: registry,
		logger:   logger.With("component", "api"),
		limiter:  NewRateLimitMiddleware(logger),
	}
}

// Close releases the rate limiter's background goroutine.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/status/detailed", s.handleDetailedStatus)
	mux.HandleFunc("POST /api/v1/mode", s.handleSetMode)
	mux.HandleFunc("POST /api/v1/manual/signal", s.handleManualSignal)
	mux.HandleFunc("POST /api/v1/pedestrian/request", s.handlePedestrianRequest)
	mux.HandleFunc("POST /api/v1/emergency", s.handleEmergency)
	mux.HandleFunc("POST /api/v1/emergency/stop", s.handleEmergencyStop)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/v1/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.limiter.Wrap(AuditMiddleware(s.logger, instrument(mux)))
}

// instrument counts every request by method, path and response status.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.statusCode)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSONBody reads and decodes a bounded JSON request body into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleDetailedStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.DetailedStatus())
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.SetMode(mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(mode)})
}

type manualSignalRequest struct {
	Direction string `json:"direction"`
	State     string `json:"state"`
}

func (s *Server) handleManualSignal(w http.ResponseWriter, r *http.Request) {
	var req manualSignalRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := model.ParseSignalState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ctrl.ManualSetDirection(dir, state); err != nil {
		status := http.StatusConflict
		if !errors.Is(err, controller.ErrNotManualMode) && !errors.Is(err, controller.ErrEmergencyActive) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"direction": string(dir),
		"state":     string(state),
	})
}

type pedestrianRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handlePedestrianRequest(w http.ResponseWriter, r *http.Request) {
	var req pedestrianRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ack, err := s.ctrl.RequestPedestrianCrossing(dir)
	if err != nil {
		var cooldown *controller.CooldownError
		if errors.As(err, &cooldown) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":             "request in cooldown",
				"remaining_seconds": cooldown.Remaining.Seconds(),
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

type emergencyRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	granted := s.ctrl.HandleEmergency(dir)
	writeJSON(w, http.StatusOK, map[string]any{
		"direction": string(dir),
		"granted":   granted,
	})
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.EmergencyStop()
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(model.ModeManual)})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events := s.ctrl.Events(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.SettingsSnapshot())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch controller.SettingsPatch
	if !decodeJSONBody(w, r, &patch) {
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.UpdateSettings(patch))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Stats())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"mode":   string(s.ctrl.Mode()),
	}
	if s.registry != nil {
		resp["components"] = s.registry.Snapshots()
		if !s.registry.Healthy() {
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
