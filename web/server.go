package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"presence-go/detect"
	"presence-go/fusion"
	"presence-go/node"
)

// Controller is the slice of the master node the web layer may touch:
// read the published snapshot, start/stop calibration, adjust sensitivity.
type Controller interface {
	Status() node.Snapshot
	StartCalibration()
	StopCalibration()
	SetSensitivity(link int, wander, jitter float64)
}

// Server exposes the status API and the websocket stream.
type Server struct {
	Hub *Hub

	log  *logrus.Logger
	ctrl Controller
}

// NewServer wires a controller to a fresh hub.
func NewServer(ctrl Controller, log *logrus.Logger) *Server {
	return &Server{
		Hub:  NewHub(log),
		log:  log,
		ctrl: ctrl,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	mux.HandleFunc("/api/sensitivity", s.handleSensitivity)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.Hub.serveWs(w, r)
	})
	return mux
}

// Start runs the hub and serves until the listener fails.
func (s *Server) Start(port int) error {
	go s.Hub.Run()
	addr := fmt.Sprintf(":%d", port)
	s.log.Infof("http listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.ctrl.Status())
}

type calibrateRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	switch req.Action {
	case "start":
		s.ctrl.StartCalibration()
		writeJSON(w, map[string]interface{}{
			"status":   "calibrating",
			"duration": int(detect.DefaultCalibrationDuration.Seconds()),
		})
	case "stop":
		s.ctrl.StopCalibration()
		writeJSON(w, map[string]string{"status": "done"})
	default:
		http.Error(w, "invalid action", http.StatusBadRequest)
	}
}

type sensitivityRequest struct {
	Link       int     `json:"link"`
	WanderSens float64 `json:"wander_sens"`
	JitterSens float64 `json:"jitter_sens"`
}

func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sensitivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Link < 0 || req.Link >= fusion.LinkCount {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error": "invalid link index (0-2)",
		})
		return
	}
	if !detect.ValidSensitivity(req.WanderSens) && !detect.ValidSensitivity(req.JitterSens) {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("sensitivity outside [%g, %g]",
				detect.SensitivityMin, detect.SensitivityMax),
		})
		return
	}
	s.ctrl.SetSensitivity(req.Link, req.WanderSens, req.JitterSens)
	writeJSON(w, map[string]interface{}{
		"link":        req.Link,
		"wander_sens": req.WanderSens,
		"jitter_sens": req.JitterSens,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
