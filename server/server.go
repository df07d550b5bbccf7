// Package server exposes a session.Manager over HTTP.
//
// Every response other than a training stream is a JSON envelope of the form
// {"success": bool, "data": ..., "message": "..."}. Training streams are newline-delimited JSON,
// one object per Snapshot.
package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/session"
	"github.com/sharnoff/placenet/store"
)

// Server routes requests to a session.Manager.
type Server struct {
	m   *session.Manager
	mux *http.ServeMux
}

// New creates a Server for m.
func New(m *session.Manager) *Server {
	s := &Server{m: m, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /api/health", s.health)
	s.mux.HandleFunc("GET /api/eda", s.eda)

	s.mux.HandleFunc("POST /api/train", s.train)
	s.mux.HandleFunc("POST /train", s.trainStream)
	s.mux.HandleFunc("POST /api/train/stream", s.trainStream)
	s.mux.HandleFunc("GET /api/train/status", s.status)
	s.mux.HandleFunc("POST /api/train/stop", s.stop)

	s.mux.HandleFunc("GET /api/model/state", s.modelState)
	s.mux.HandleFunc("POST /api/predict", s.predict)
	s.mux.HandleFunc("GET /api/evaluate", s.evaluate)
	s.mux.HandleFunc("GET /api/save-model", s.saveModel)
	s.mux.HandleFunc("POST /api/load-model", s.loadModel)

	s.mux.HandleFunc("GET /api/sessions", s.sessions)
	s.mux.HandleFunc("GET /api/replay-session/{id}", s.replay)

	return s
}

// ServeHTTP is the implementation of http.Handler for Server. Every response allows cross-origin
// requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("event=write-failed err=%q", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("event=request-failed err=%q", err)
	}

	writeJSON(w, status, envelope{Message: err.Error()})
}

// statusOf maps errors from the layers below to HTTP statuses.
func statusOf(err error) int {
	cause := errors.Cause(err)
	switch cause.(type) {
	case placenet.ConfigurationError, placenet.DataShapeError, placenet.ShapeMismatchError:
		return http.StatusBadRequest
	case *json.SyntaxError, *json.UnmarshalTypeError, badRequest:
		return http.StatusBadRequest
	}

	switch {
	case cause == placenet.ErrAlreadyRunning, cause == session.ErrNoRun, cause == placenet.ErrNotTrained:
		return http.StatusConflict
	case cause == store.ErrNotFound, os.IsNotExist(cause):
		return http.StatusNotFound
	case cause == session.ErrNoArchive:
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

type badRequest string

func (b badRequest) Error() string {
	return string(b)
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{
		"status": "ok",
		"state":  s.m.Status().State,
		"cpu": map[string]any{
			"brand":          cpuid.CPU.BrandName,
			"physical_cores": cpuid.CPU.PhysicalCores,
			"logical_cores":  cpuid.CPU.LogicalCores,
			"avx2":           cpuid.CPU.Supports(cpuid.AVX2),
		},
	})
}

func (s *Server) eda(w http.ResponseWriter, r *http.Request) {
	eda, err := s.m.EDA()
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, eda)
}

func (s *Server) modelState(w http.ResponseWriter, r *http.Request) {
	ok(w, s.m.ModelState())
}

type predictRequest struct {
	CGPA *float64 `json:"cgpa"`
	IQ   *float64 `json:"iq"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	} else if req.CGPA == nil || req.IQ == nil {
		fail(w, badRequest("Both cgpa and iq are required"))
		return
	}

	pred, err := s.m.Predict(*req.CGPA, *req.IQ)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, pred)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	ev, err := s.m.Evaluate()
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, map[string]any{
		"accuracy":  ev.Accuracy,
		"precision": ev.Precision,
		"recall":    ev.Recall,
		"f1":        ev.F1,
		"confusion_matrix": map[string]int{
			"tp": ev.Confusion.TP,
			"tn": ev.Confusion.TN,
			"fp": ev.Confusion.FP,
			"fn": ev.Confusion.FN,
		},
	})
}

func (s *Server) saveModel(w http.ResponseWriter, r *http.Request) {
	path, err := s.m.SaveModel(r.URL.Query().Get("filename"))
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, map[string]string{"path": path})
}

func (s *Server) loadModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}

	if err := s.m.LoadModel(req.Filename); err != nil {
		fail(w, err)
		return
	}

	ok(w, s.m.ModelState())
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.m.Sessions(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if list == nil {
		list = []store.Session{}
	}

	ok(w, list)
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request) {
	sess, err := s.m.Replay(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, sess)
}
