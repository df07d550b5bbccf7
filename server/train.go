package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/session"
)

type trainRequest struct {
	LearningRate *float64 `json:"learning_rate"`
	Epochs       *int     `json:"epochs"`
	Mode         string   `json:"mode"`
	ReportEvery  *int     `json:"report_every"`
	Seed         int64    `json:"seed"`
}

// start begins a run, taking anything the request leaves out from the Manager's defaults.
func (s *Server) start(r *http.Request) (*session.Run, error) {
	var req trainRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	p := s.m.Defaults()
	if req.Mode != "" {
		mode, err := placenet.ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		p.Mode = mode
	}
	if req.LearningRate != nil {
		p.LearningRate = *req.LearningRate
	}
	if req.Epochs != nil {
		p.Epochs = *req.Epochs
	}
	if req.ReportEvery != nil {
		p.ReportEvery = *req.ReportEvery
	}
	if req.Seed != 0 {
		p.Seed = req.Seed
	}

	return s.m.Start(p)
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	run, err := s.start(r)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, map[string]string{"session_id": run.ID})
}

// frame is a single line of a training stream.
type frame struct {
	SessionID  string                 `json:"session_id"`
	Epoch      int                    `json:"epoch"`
	Epochs     int                    `json:"epochs"`
	Loss       float64                `json:"loss"`
	Accuracy   float64                `json:"accuracy"`
	State      string                 `json:"state"`
	Parameters map[string][][]float64 `json:"parameters"`
	Boundary   string                 `json:"boundary,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// trainStream starts a run and streams its Snapshots until it finishes. If the client goes away,
// the run is stopped.
func (s *Server) trainStream(w http.ResponseWriter, r *http.Request) {
	run, err := s.start(r)
	if err != nil {
		fail(w, err)
		return
	}

	flusher, canFlush := w.(http.Flusher)

	w.Header().Set("Content-Type", "application/x-json-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	err = run.Watch(r.Context(), func(snap placenet.Snapshot) {
		f := frame{
			SessionID:  run.ID,
			Epoch:      snap.Epoch,
			Epochs:     snap.Epochs,
			Loss:       snap.Loss,
			Accuracy:   snap.Accuracy,
			State:      snap.State.String(),
			Parameters: snap.Params.Export(),
			Boundary:   snap.Boundary,
		}
		if snap.Err != nil {
			f.Error = snap.Err.Error()
		}

		if err := enc.Encode(f); err != nil {
			log.Printf("session=%s event=stream-write-failed err=%q", run.ID, err)
		}
		if canFlush {
			flusher.Flush()
		}
	})

	if r.Context().Err() != nil {
		log.Printf("session=%s event=client-gone", run.ID)
		run.Stop()
	} else if err != nil {
		log.Printf("session=%s event=stream-ended err=%q", run.ID, err)
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ok(w, s.m.Status())
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.m.Stop(); err != nil {
		fail(w, err)
		return
	}

	ok(w, s.m.Status())
}
