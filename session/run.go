package session

import (
	"context"
	"sync"
	"time"

	"github.com/sharnoff/placenet"
)

// TrainParams are the hyperparameters of a single run.
type TrainParams struct {
	LearningRate float64       `json:"learning_rate"`
	Epochs       int           `json:"epochs"`
	Mode         placenet.Mode `json:"-"`
	ReportEvery  int           `json:"report_every"`
	Seed         int64         `json:"seed"`
}

// Status is a summary of a Run at a point in time.
type Status struct {
	SessionID string  `json:"session_id,omitempty"`
	State     string  `json:"state"`
	Epoch     int     `json:"epoch"`
	Epochs    int     `json:"epochs"`
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	Error     string  `json:"error,omitempty"`
	Boundary  string  `json:"boundary,omitempty"`
}

// Run is a training run in progress (or finished) on its own goroutine. A Run is the Sink of its
// own training; every Snapshot is kept so that watchers joining late see all of them.
type Run struct {
	ID      string
	Params  TrainParams
	Created time.Time

	net    *placenet.Network
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	snaps    []placenet.Snapshot
	changed  chan struct{}
	finished bool
	hist     *placenet.History
	err      error
}

func newRun(id string, params TrainParams, net *placenet.Network, cancel context.CancelFunc) *Run {
	return &Run{
		ID:      id,
		Params:  params,
		Created: time.Now().UTC(),
		net:     net,
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
}

// Update is the implementation of placenet.Sink for Run.
func (r *Run) Update(s placenet.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}

func (r *Run) finish(hist *placenet.History, err error) {
	r.mu.Lock()
	r.finished = true
	r.hist, r.err = hist, err
	close(r.changed)
	r.mu.Unlock()

	close(r.done)
}

// Network returns the Network being trained.
func (r *Run) Network() *placenet.Network {
	return r.net
}

// Done returns a channel that is closed once the Run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Stop cancels the Run. It returns immediately; use Wait to wait for the Run to finish.
func (r *Run) Stop() {
	r.cancel()
}

// Wait waits for the Run to finish and returns its result.
func (r *Run) Wait() (*placenet.History, error) {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hist, r.err
}

// Last returns the most recent Snapshot, if there has been one.
func (r *Run) Last() (placenet.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snaps) == 0 {
		return placenet.Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

// Status summarizes the Run.
func (r *Run) Status() Status {
	st := Status{
		SessionID: r.ID,
		State:     r.net.State().String(),
		Epochs:    r.Params.Epochs,
	}

	if s, ok := r.Last(); ok {
		st.Epoch = s.Epoch
		st.Loss = s.Loss
		st.Accuracy = s.Accuracy
		st.Boundary = s.Boundary
		if s.Err != nil {
			st.Error = s.Err.Error()
		}
	}

	return st
}

// Watch calls fn with every Snapshot of the Run in order, starting from the first, until the Run
// has finished or ctx is cancelled. It returns the error of the Run, or of ctx.
func (r *Run) Watch(ctx context.Context, fn func(placenet.Snapshot)) error {
	next := 0
	for {
		r.mu.Lock()
		pending := r.snaps[next:]
		changed, finished, err := r.changed, r.finished, r.err
		r.mu.Unlock()

		for _, s := range pending {
			fn(s)
		}
		next += len(pending)

		if finished {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
