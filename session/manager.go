// Package session owns the model being served: it runs training in the background, keeps track of
// the current run, and answers predictions with whichever model is current.
package session

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/dataset"
	"github.com/sharnoff/placenet/render"
	"github.com/sharnoff/placenet/scaler"
	"github.com/sharnoff/placenet/store"
	"gonum.org/v1/gonum/mat"
)

// ErrNoRun is returned when an operation needs a training run and there has not been one.
var ErrNoRun = errors.New("No training session has been started")

// ErrNoArchive is returned by Sessions and Replay when the Manager has no session archive.
var ErrNoArchive = errors.New("Session archive is disabled")

// Defaults for runs whose parameters leave them out.
const (
	DefaultEpochs       = 1000
	DefaultLearningRate = 0.01
)

// Options configure a Manager. Zero values are replaced by the defaults below.
type Options struct {
	Layers       placenet.LayerSpec
	TestFraction float64
	Seed         int64

	// GridSteps and ImageSize control the decision-boundary images. ImageSize 0 disables them.
	GridSteps int
	ImageSize int

	// Pace is passed on to placenet.TrainArgs.
	Pace time.Duration

	ModelDir string
	Bins     int

	// Defaults fill in the parameters that a request leaves out. A zero ReportEvery means
	// placenet.DefaultReportEvery.
	Defaults TrainParams
}

func (o *Options) setDefaults() {
	if o.Layers == nil {
		o.Layers = placenet.LayerSpec{2, 2, 1}
	}
	if o.TestFraction == 0 {
		o.TestFraction = dataset.DefaultTestFraction
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	if o.GridSteps == 0 {
		o.GridSteps = 50
	}
	if o.ModelDir == "" {
		o.ModelDir = "models"
	}
	if o.Bins == 0 {
		o.Bins = 10
	}
	if o.Defaults.Epochs == 0 {
		o.Defaults.Epochs = DefaultEpochs
	}
	if o.Defaults.LearningRate == 0 {
		o.Defaults.LearningRate = DefaultLearningRate
	}
	if o.Defaults.Seed == 0 {
		o.Defaults.Seed = o.Seed
	}
}

// Manager is the model-session object of a server. There should be one per process; it holds no
// global state.
type Manager struct {
	opts     Options
	data     *dataset.Dataset
	split    *dataset.Split
	sessions *store.Sessions

	mu     sync.Mutex
	net    *placenet.Network
	scaler *scaler.Standard
	lr     float64
	run    *Run
	wg     sync.WaitGroup
}

// NewManager splits d and prepares to train on it. sessions may be nil, in which case runs are
// not archived.
func NewManager(d *dataset.Dataset, sessions *store.Sessions, opts Options) (*Manager, error) {
	opts.setDefaults()
	if err := opts.Layers.Validate(); err != nil {
		return nil, err
	}

	split, err := d.Prepare(opts.TestFraction, opts.Seed)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to prepare dataset")
	}

	return &Manager{
		opts:     opts,
		data:     d,
		split:    split,
		sessions: sessions,
		scaler:   split.Scaler,
	}, nil
}

// Defaults returns the parameters used for anything a request leaves out.
func (m *Manager) Defaults() TrainParams {
	return m.opts.Defaults
}

// Split returns the prepared training and test sets.
func (m *Manager) Split() *dataset.Split {
	return m.split
}

func (m *Manager) args(p TrainParams, sink placenet.Sink) placenet.TrainArgs {
	args := placenet.TrainArgs{
		X:            m.split.XTrain,
		Y:            m.split.YTrain,
		Epochs:       p.Epochs,
		LearningRate: p.LearningRate,
		Mode:         p.Mode,
		ReportEvery:  p.ReportEvery,
		Seed:         p.Seed,
		Sink:         sink,
		Pace:         m.opts.Pace,
		Warn: func(w placenet.NumericInstabilityWarning) {
			log.Printf("warning=numeric-instability epoch=%d saturated=%d clipped=%d", w.Epoch, w.Saturated, w.Clipped)
		},
	}

	if m.opts.ImageSize > 0 && m.opts.Layers[0] == 2 {
		args.Renderer = render.Boundary(m.opts.ImageSize).Overlay(m.split.XTrain, m.split.YTrain)
		args.Grid = placenet.GridAround(m.split.XTrain, 0.5, m.opts.GridSteps)
	}

	return args
}

// Start begins a new training run with a fresh Network, which immediately becomes the current
// model. Invalid parameters are rejected before anything changes. Only one run may be in progress
// at a time; Start returns placenet.ErrAlreadyRunning otherwise.
func (m *Manager) Start(p TrainParams) (*Run, error) {
	if p.Seed == 0 {
		p.Seed = m.opts.Seed
	}

	net, err := placenet.New(m.opts.Layers)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run != nil && !m.run.isDone() {
		return nil, placenet.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(uuid.NewString(), p, net, cancel)

	args := m.args(p, run)
	if err := net.Validate(args); err != nil {
		cancel()
		return nil, err
	}

	m.run = run
	m.net = net
	m.scaler = m.split.Scaler
	m.lr = p.LearningRate

	log.Printf("session=%s event=start epochs=%d lr=%g mode=%v", run.ID, p.Epochs, p.LearningRate, p.Mode)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		hist, err := net.Train(ctx, args)
		if err != nil {
			log.Printf("session=%s event=failed err=%q", run.ID, err)
		} else {
			log.Printf("session=%s event=completed loss=%.4f", run.ID, hist.Loss[len(hist.Loss)-1])
		}

		m.archive(run, hist, err)
		run.finish(hist, err)
	}()

	return run, nil
}

func (m *Manager) archive(run *Run, hist *placenet.History, trainErr error) {
	if m.sessions == nil {
		return
	}

	sess := &store.Session{
		ID:           run.ID,
		CreatedAt:    run.Created,
		LearningRate: run.Params.LearningRate,
		Epochs:       run.Params.Epochs,
		Mode:         run.Params.Mode.String(),
		ReportEvery:  run.Params.ReportEvery,
		State:        run.net.State().String(),
		Frames:       store.Frames(hist),
	}
	if trainErr != nil {
		sess.Error = trainErr.Error()
	}
	if s, ok := run.Last(); ok {
		sess.FinalLoss, sess.FinalAccuracy = s.Loss, s.Accuracy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.sessions.Put(ctx, sess); err != nil {
		log.Printf("session=%s event=archive-failed err=%q", run.ID, err)
	}
}

// Current returns the most recent Run, or nil if there has not been one.
func (m *Manager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.run
}

// Status returns the status of the most recent Run, or an idle Status if there has not been one.
func (m *Manager) Status() Status {
	if run := m.Current(); run != nil {
		return run.Status()
	}

	return Status{State: placenet.Idle.String()}
}

// Stop cancels the current Run. It returns ErrNoRun if no run is in progress.
func (m *Manager) Stop() error {
	run := m.Current()
	if run == nil || run.isDone() {
		return ErrNoRun
	}

	run.Stop()
	return nil
}

// Shutdown stops any Run in progress and waits for it to be archived.
func (m *Manager) Shutdown() {
	if run := m.Current(); run != nil {
		run.Stop()
	}

	m.wg.Wait()
}

func (m *Manager) model() (*placenet.Network, *scaler.Standard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.net == nil || !m.net.Initialized() {
		return nil, nil, placenet.ErrNotTrained
	}

	return m.net, m.scaler, nil
}

// Prediction is the answer for a single student.
type Prediction struct {
	Probability float64 `json:"probability"`
	Placement   int     `json:"placement"`
}

// Predict scales a single student's raw features and predicts with the current model, which may
// still be training.
func (m *Manager) Predict(cgpa, iq float64) (Prediction, error) {
	net, sc, err := m.model()
	if err != nil {
		return Prediction{}, err
	}

	v, err := sc.Transform([]float64{cgpa, iq})
	if err != nil {
		return Prediction{}, err
	}

	probs, labels, err := net.Predict(mat.NewDense(len(v), 1, v))
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{Probability: probs[0], Placement: labels[0]}, nil
}

// Evaluate tests the current model on the held-out test set.
func (m *Manager) Evaluate() (placenet.Evaluation, error) {
	net, _, err := m.model()
	if err != nil {
		return placenet.Evaluation{}, err
	}

	return net.Evaluate(m.split.XTest, m.split.YTest)
}

// ModelState describes the current model.
type ModelState struct {
	Layers     []int                  `json:"layers"`
	Parameters map[string][][]float64 `json:"parameters,omitempty"`
	Trained    bool                   `json:"trained"`
	State      string                 `json:"state"`
}

// ModelState returns the layers and parameters of the current model. A Manager without a model
// reports Trained as false rather than failing.
func (m *Manager) ModelState() ModelState {
	st := ModelState{Layers: m.opts.Layers, State: placenet.Idle.String()}

	net, _, err := m.model()
	if err != nil {
		return st
	}

	st.State = net.State().String()
	if p, err := net.Params(); err == nil {
		st.Parameters = p.Export()
		st.Trained = true
	}

	return st
}

// modelPath confines name to the model directory.
func (m *Manager) modelPath(name string) string {
	if name == "" {
		name = "model.json"
	}

	return filepath.Join(m.opts.ModelDir, filepath.Base(name))
}

// SaveModel writes the current model to name within the model directory, returning the path.
func (m *Manager) SaveModel(name string) (string, error) {
	net, sc, err := m.model()
	if err != nil {
		return "", err
	}

	p, err := net.Params()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	lr := m.lr
	m.mu.Unlock()

	path := m.modelPath(name)
	if err := store.SaveModel(path, store.NewModel(net.Spec(), p, sc, lr)); err != nil {
		return "", err
	}

	log.Printf("event=model-saved path=%s", path)
	return path, nil
}

// LoadModel replaces the current model with the one saved as name. It is rejected while a run is
// in progress, and the saved model must have the layers the Manager was created with.
func (m *Manager) LoadModel(name string) error {
	path := m.modelPath(name)
	saved, err := store.LoadModel(path)
	if err != nil {
		return err
	}

	if !slices.Equal(placenet.LayerSpec(saved.Layers), m.opts.Layers) {
		return placenet.ConfigurationError{Field: "layers", Reason: fmt.Sprintf("model %s has layers %v, expected %v", name, saved.Layers, m.opts.Layers)}
	}

	net, err := placenet.New(placenet.LayerSpec(saved.Layers))
	if err != nil {
		return err
	}

	p, err := saved.Params()
	if err != nil {
		return err
	}
	if err := net.SetParams(p); err != nil {
		return err
	}

	sc, err := saved.Standard()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run != nil && !m.run.isDone() {
		return placenet.ErrAlreadyRunning
	}

	m.net = net
	m.lr = saved.LearningRate
	m.scaler = m.split.Scaler
	if sc != nil {
		m.scaler = sc
	}

	log.Printf("event=model-loaded path=%s", path)
	return nil
}

// Sessions lists the archived sessions, newest first.
func (m *Manager) Sessions(ctx context.Context) ([]store.Session, error) {
	if m.sessions == nil {
		return nil, ErrNoArchive
	}

	return m.sessions.List(ctx)
}

// Replay returns an archived session with every recorded Snapshot.
func (m *Manager) Replay(ctx context.Context, id string) (*store.Session, error) {
	if m.sessions == nil {
		return nil, ErrNoArchive
	}

	return m.sessions.Get(ctx, id)
}

// EDA is the exploratory summary of the dataset, with base64 PNG plots.
type EDA struct {
	Stats *dataset.Summary  `json:"stats"`
	Plots map[string]string `json:"plots"`
}

// EDA summarizes the full dataset.
func (m *Manager) EDA() (*EDA, error) {
	stats, err := m.data.Stats(m.opts.Bins)
	if err != nil {
		return nil, err
	}
	stats.TrainTestSplit = dataset.SplitLabel(m.opts.TestFraction)

	plots := make(map[string]string)
	for _, col := range []string{dataset.ColCGPA, dataset.ColIQ} {
		plots[col+"_hist"], err = render.Bars(stats.Features[col].Histogram.Counts, 320, 200)
		if err != nil {
			return nil, err
		}
	}

	x, y := m.data.Matrices()
	if plots["scatter_plot"], err = render.Scatter(x, y, 320); err != nil {
		return nil, err
	}

	return &EDA{Stats: stats, Plots: plots}, nil
}
