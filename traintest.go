package placenet

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultReportEvery is the number of epochs between Snapshots when TrainArgs.ReportEvery is left
// as zero.
const DefaultReportEvery int = 5

// Mode is the granularity of the updates made during an epoch.
type Mode int8

const (
	// Batch makes a single update per epoch, from the gradients over the entire training set.
	Batch Mode = iota

	// Online makes one update per example, in order, for every example in the training set.
	Online
)

func (m Mode) String() string {
	switch m {
	case Batch:
		return "batch"
	case Online:
		return "online"
	}

	return "<unknown mode>"
}

// ParseMode is the inverse of Mode.String. The empty string is Batch.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "batch":
		return Batch, nil
	case "online":
		return Online, nil
	}

	return 0, ConfigurationError{"mode", "unknown mode " + s}
}

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}

	return "<unknown state>"
}

// Snapshot is a point-in-time record of a training run. Snapshots are never modified after they
// have been produced; Params is a copy that belongs to the Snapshot.
type Snapshot struct {
	// Epoch is the number of epochs completed. Epoch 0 is taken before any training.
	Epoch int

	// Epochs is the total number of epochs in the run.
	Epochs int

	// Loss is the training loss observed during the epoch: for Batch mode, the loss of the forward
	// pass the update was computed from; for Online mode, the mean of the per-example losses. At
	// epoch 0, it is the loss of the initial parameters.
	Loss float64

	// Accuracy is the fraction of the training set classified correctly after the epoch's updates,
	// from 0 to 1.
	Accuracy float64

	Params Params

	// Boundary is the result of TrainArgs.Renderer, if one was given.
	Boundary string

	State RunState

	// Err is set only on the final Snapshot of a failed run.
	Err error
}

// History is the record of every Snapshot that was produced during a run, indexed together.
type History struct {
	Epochs     []int
	Loss       []float64
	Accuracy   []float64
	Params     []Params
	Boundaries []string
}

func (h *History) add(s Snapshot) {
	h.Epochs = append(h.Epochs, s.Epoch)
	h.Loss = append(h.Loss, s.Loss)
	h.Accuracy = append(h.Accuracy, s.Accuracy)
	h.Params = append(h.Params, s.Params)
	h.Boundaries = append(h.Boundaries, s.Boundary)
}

// TrainArgs are the arguments to Train. X, Y, Epochs and LearningRate are required; everything
// else has a usable zero value.
type TrainArgs struct {
	// X is the training set, with one row per input unit and one column per example. It should
	// already be scaled.
	X mat.Matrix

	// Y is the labels of the training set: a single row of 0s and 1s, one column per example.
	Y mat.Matrix

	Epochs       int
	LearningRate float64
	Mode         Mode

	// ReportEvery is the number of epochs between Snapshots. Snapshots are always produced for
	// epoch 0 and the final epoch. Zero means DefaultReportEvery.
	ReportEvery int

	// Seed is used to initialize the Network if it has no parameters yet.
	Seed int64

	// Sink is given every Snapshot, including the final one of a failed run. It may be nil.
	Sink Sink

	// Renderer, if not nil, is used to draw the decision boundary over Grid for every Snapshot.
	Renderer Renderer
	Grid     Grid

	// Pace is how long Train waits after handing each Snapshot to the Sink, to let streaming
	// consumers keep up. It is not required for correctness.
	Pace time.Duration

	// Warn, if not nil, is called after every epoch in which values had to be clamped.
	Warn func(NumericInstabilityWarning)
}

// checkArgs validates args and fills in defaults. It does not modify the Network.
func (net *Network) checkArgs(args *TrainArgs) error {
	if !(args.LearningRate > 0) || math.IsInf(args.LearningRate, 0) {
		return ConfigurationError{"learning rate", "must be a finite number > 0"}
	} else if args.Epochs < 1 {
		return ConfigurationError{"epochs", "must be >= 1"}
	} else if args.ReportEvery < 0 {
		return ConfigurationError{"report interval", "must be >= 0"}
	} else if args.Mode != Batch && args.Mode != Online {
		return ConfigurationError{"mode", args.Mode.String()}
	} else if args.Renderer != nil && args.Grid.Steps < 2 {
		return ConfigurationError{"grid", "must have at least 2 steps along each axis"}
	}

	if args.ReportEvery == 0 {
		args.ReportEvery = DefaultReportEvery
	}
	if args.Sink == nil {
		args.Sink = SinkFunc(func(Snapshot) {})
	}

	if args.X == nil {
		return DataShapeError{"feature rows", net.spec[0], 0}
	} else if args.Y == nil {
		return DataShapeError{"label rows", net.spec[len(net.spec)-1], 0}
	}

	xr, xc := args.X.Dims()
	yr, yc := args.Y.Dims()
	if xr != net.spec[0] {
		return DataShapeError{"feature rows", net.spec[0], xr}
	} else if yr != net.spec[len(net.spec)-1] {
		return DataShapeError{"label rows", net.spec[len(net.spec)-1], yr}
	} else if xc < 1 {
		return DataShapeError{"examples", 1, xc}
	} else if yc != xc {
		return DataShapeError{"label columns", xc, yc}
	}

	for i := 0; i < yr; i++ {
		for j := 0; j < yc; j++ {
			if v := args.Y.At(i, j); v != 0 && v != 1 {
				return errors.Errorf("Label %d is %v, labels must be 0 or 1", j, v)
			}
		}
	}

	return nil
}

// Validate returns the error that Train would return for args before starting, if any. It does
// not check whether a run is already in progress.
func (net *Network) Validate(args TrainArgs) error {
	return net.checkArgs(&args)
}

// claim marks the Network as running. The flag is only set while holding mu, so Init and SetParams
// either finish before the run starts or see the flag and back off.
func (net *Network) claim() bool {
	net.mu.Lock()
	defer net.mu.Unlock()

	return net.running.CompareAndSwap(false, true)
}

func (net *Network) setState(s RunState) {
	net.state.Store(int32(s))
}

// Train runs gradient descent on the Network for args.Epochs epochs, handing Snapshots to
// args.Sink as it goes, and returns the History of those Snapshots.
//
// Invalid arguments are reported immediately as type ConfigurationError or DataShapeError, before
// anything about the Network has changed. If another run is already in progress, Train returns
// ErrAlreadyRunning. If the Network has no parameters, they are initialized with Init(args.Seed).
//
// Once the run has started, any failure (including cancellation of ctx, which is checked between
// epochs and between examples) stops the run. The Network keeps whatever parameters it had at that
// point, a final Snapshot carrying the error is given to the Sink, and the error is returned
// along with the History so far.
func (net *Network) Train(ctx context.Context, args TrainArgs) (*History, error) {
	if err := net.checkArgs(&args); err != nil {
		return nil, err
	}

	if !net.claim() {
		return nil, ErrAlreadyRunning
	}
	defer net.running.Store(false)

	net.setState(Initializing)
	if !net.Initialized() {
		if err := net.init(args.Seed); err != nil {
			net.setState(Failed)
			return nil, err
		}
	}

	net.setState(Running)

	t := &trainer{
		net:  net,
		args: args,
		ctx:  ctx,
		x:    mat.DenseCopyOf(args.X),
		y:    mat.DenseCopyOf(args.Y),
		hist: new(History),
	}

	if err := t.run(); err != nil {
		net.setState(Failed)

		net.mu.RLock()
		p := net.params.Copy()
		net.mu.RUnlock()

		args.Sink.Update(Snapshot{
			Epoch:    t.epoch,
			Epochs:   args.Epochs,
			Loss:     t.loss,
			Accuracy: t.accuracy,
			Params:   p,
			State:    Failed,
			Err:      err,
		})
		return t.hist, err
	}

	net.setState(Completed)
	return t.hist, nil
}

// trainer holds the state of a single call to Train. It reads net.params without locking, which
// is safe because it is the only writer; every write goes through step.
type trainer struct {
	net  *Network
	args TrainArgs
	ctx  context.Context

	x, y *mat.Dense
	hist *History

	// the last completed epoch, and its results
	epoch    int
	loss     float64
	accuracy float64
}

func (t *trainer) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("Training panicked during epoch %d: %v", t.epoch+1, r)
		}
	}()

	a, c := Forward(t.net.params, t.x)
	t.loss = Loss(a, t.y)
	t.accuracy = accuracy(a, t.y)
	t.warn(0, c.Saturated, clippedPredictions(a))

	if err := t.report(); err != nil {
		return err
	}

	report := Every(t.args.ReportEvery)
	for e := 1; e <= t.args.Epochs; e++ {
		if err := t.ctx.Err(); err != nil {
			return errors.Wrapf(err, "Training stopped before epoch %d", e)
		}

		var loss float64
		var saturated, clipped int
		if t.args.Mode == Online {
			loss, saturated, clipped, err = t.onlineEpoch()
		} else {
			loss, saturated, clipped, err = t.batchEpoch()
		}
		if err != nil {
			return errors.Wrapf(err, "Epoch %d failed", e)
		}

		a, _ := Forward(t.net.params, t.x)
		t.epoch, t.loss, t.accuracy = e, loss, accuracy(a, t.y)
		t.warn(e, saturated, clipped)

		if report(e) || e == t.args.Epochs {
			if err := t.report(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *trainer) batchEpoch() (loss float64, saturated, clipped int, err error) {
	a, c := Forward(t.net.params, t.x)
	loss = Loss(a, t.y)

	g := Backward(t.net.params, t.y, c)
	if err = t.step(g); err != nil {
		return 0, 0, 0, err
	}

	return loss, c.Saturated, clippedPredictions(a), nil
}

// onlineEpoch makes one update per example. A failure on any example aborts the whole epoch.
func (t *trainer) onlineEpoch() (loss float64, saturated, clipped int, err error) {
	rows, m := t.x.Dims()
	outs, _ := t.y.Dims()

	for j := 0; j < m; j++ {
		if err = t.ctx.Err(); err != nil {
			return 0, 0, 0, errors.Wrapf(err, "Training stopped at example %d", j)
		}

		x := t.x.Slice(0, rows, j, j+1)
		y := t.y.Slice(0, outs, j, j+1)

		a, c := Forward(t.net.params, x)
		loss += Loss(a, y)
		saturated += c.Saturated
		clipped += clippedPredictions(a)

		g := Backward(t.net.params, y, c)
		if err = t.step(g); err != nil {
			return 0, 0, 0, errors.Wrapf(err, "Failed on example %d", j)
		}
	}

	return loss / float64(m), saturated, clipped, nil
}

func (t *trainer) step(g Gradients) error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()

	return Update(t.net.params, g, t.args.LearningRate)
}

func (t *trainer) warn(epoch, saturated, clipped int) {
	if t.args.Warn != nil && (saturated != 0 || clipped != 0) {
		t.args.Warn(NumericInstabilityWarning{epoch, saturated, clipped})
	}
}

// report produces a Snapshot of the last completed epoch.
func (t *trainer) report() error {
	s := Snapshot{
		Epoch:    t.epoch,
		Epochs:   t.args.Epochs,
		Loss:     t.loss,
		Accuracy: t.accuracy,
		Params:   t.net.params.Copy(),
		State:    Running,
	}
	if t.epoch == t.args.Epochs {
		s.State = Completed
	}

	if t.args.Renderer != nil {
		b, err := t.args.Renderer.Render(predictor(s.Params), t.args.Grid)
		if err != nil {
			return errors.Wrapf(err, "Failed to render decision boundary at epoch %d", t.epoch)
		}
		s.Boundary = b
	}

	t.hist.add(s)
	t.args.Sink.Update(s)

	if t.args.Pace > 0 {
		select {
		case <-t.ctx.Done():
		case <-time.After(t.args.Pace):
		}
	}

	return nil
}

// predictor returns a PredictFunc using a fixed set of parameters.
func predictor(p Params) PredictFunc {
	return func(points mat.Matrix) ([]int, error) {
		_, want := p[0].W.Dims()
		if r, _ := points.Dims(); r != want {
			return nil, DataShapeError{"feature rows", want, r}
		}

		a, _ := Forward(p, points)
		return Threshold(mat.Row(nil, 0, a)), nil
	}
}

// accuracy returns the fraction of columns of a that, thresholded at 0.5, equal y.
func accuracy(a, y mat.Matrix) float64 {
	probs := mat.Row(nil, 0, a)
	labels := Threshold(probs)

	var correct int
	for j, l := range labels {
		if float64(l) == y.At(0, j) {
			correct++
		}
	}

	return float64(correct) / float64(len(labels))
}

// Confusion holds the counts of a confusion matrix for binary labels.
type Confusion struct {
	TP, TN, FP, FN int
}

// Evaluation is the result of testing a Network on labelled data.
type Evaluation struct {
	Accuracy  float64
	Confusion Confusion
	Precision float64
	Recall    float64
	F1        float64
}

// Score compares predicted labels with the true labels y. Precision, recall and F1 are 0 whenever
// their denominators are zero, so Score never fails because a class is absent.
func Score(pred []int, y []float64) Evaluation {
	var ev Evaluation
	c := &ev.Confusion
	for i, p := range pred {
		switch {
		case p == 1 && y[i] == 1:
			c.TP++
		case p == 0 && y[i] == 0:
			c.TN++
		case p == 1:
			c.FP++
		default:
			c.FN++
		}
	}

	if n := len(pred); n != 0 {
		ev.Accuracy = float64(c.TP+c.TN) / float64(n)
	}
	if c.TP+c.FP != 0 {
		ev.Precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN != 0 {
		ev.Recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if ev.Precision+ev.Recall != 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}

	return ev
}

// Evaluate runs x through the Network, thresholds the outputs at 0.5 and scores them against the
// labels y. It returns ErrNotTrained if the Network has no parameters, and type DataShapeError if
// x and y do not fit the Network or each other.
func (net *Network) Evaluate(x, y mat.Matrix) (Evaluation, error) {
	_, xc := x.Dims()
	if yr, yc := y.Dims(); yr != 1 {
		return Evaluation{}, DataShapeError{"label rows", 1, yr}
	} else if yc != xc {
		return Evaluation{}, DataShapeError{"label columns", xc, yc}
	}

	_, labels, err := net.Predict(x)
	if err != nil {
		return Evaluation{}, err
	}

	return Score(labels, mat.Row(nil, 0, y)), nil
}
