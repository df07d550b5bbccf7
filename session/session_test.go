package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/dataset"
	"github.com/sharnoff/placenet/store"
)

func newManager(t *testing.T, pace time.Duration) *Manager {
	t.Helper()

	sessions, err := store.OpenSessions(":memory:")
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	m, err := NewManager(dataset.Synthetic(60, 1), sessions, Options{
		GridSteps: 4,
		ImageSize: 16,
		Pace:      pace,
		ModelDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m
}

func TestRunCompletes(t *testing.T) {
	m := newManager(t, 0)

	if _, err := m.Predict(7, 120); err != placenet.ErrNotTrained {
		t.Fatalf("expected ErrNotTrained before training, got %v", err)
	}
	if st := m.Status(); st.State != "idle" {
		t.Fatalf("expected idle status, got %+v", st)
	}

	run, err := m.Start(TrainParams{LearningRate: 0.5, Epochs: 20, ReportEvery: 10})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	hist, err := run.Wait()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(hist.Epochs) != 3 || hist.Boundaries[2] == "" {
		t.Fatalf("unexpected history %v", hist.Epochs)
	}

	st := m.Status()
	if st.State != "completed" || st.Epoch != 20 || st.SessionID != run.ID {
		t.Fatalf("unexpected status %+v", st)
	}

	pred, err := m.Predict(9.5, 160)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Probability < 0 || pred.Probability > 1 {
		t.Fatalf("probability out of range: %v", pred.Probability)
	}

	ev, err := m.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	c := ev.Confusion
	if _, n := m.Split().YTest.Dims(); c.TP+c.TN+c.FP+c.FN != n {
		t.Fatalf("confusion matrix does not cover the test set: %+v", c)
	}

	if ms := m.ModelState(); !ms.Trained || len(ms.Parameters) != 4 {
		t.Fatalf("unexpected model state %+v", ms)
	}

	list, err := m.Sessions(context.Background())
	if err != nil || len(list) != 1 || list[0].ID != run.ID || list[0].State != "completed" {
		t.Fatalf("unexpected sessions %+v, %v", list, err)
	}

	replay, err := m.Replay(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replay.Frames) != 3 || replay.Frames[2].Epoch != 20 {
		t.Fatalf("unexpected replay %+v", replay.Frames)
	}
}

func TestWatchSeesEverySnapshot(t *testing.T) {
	m := newManager(t, time.Millisecond)

	run, err := m.Start(TrainParams{LearningRate: 0.1, Epochs: 10, ReportEvery: 1, Mode: placenet.Online})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var epochs []int
	err = run.Watch(context.Background(), func(s placenet.Snapshot) {
		epochs = append(epochs, s.Epoch)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if len(epochs) != 11 {
		t.Fatalf("expected 11 snapshots, got %v", epochs)
	}
	for i, e := range epochs {
		if e != i {
			t.Fatalf("snapshots out of order: %v", epochs)
		}
	}

	// watching a finished run replays it
	var again int
	run.Watch(context.Background(), func(placenet.Snapshot) { again++ })
	if again != 11 {
		t.Fatalf("expected replay of 11 snapshots, got %d", again)
	}
}

func TestStop(t *testing.T) {
	m := newManager(t, 5*time.Millisecond)

	if err := m.Stop(); err != ErrNoRun {
		t.Fatalf("expected ErrNoRun, got %v", err)
	}

	run, err := m.Start(TrainParams{LearningRate: 0.1, Epochs: 100000, ReportEvery: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := m.Start(TrainParams{LearningRate: 0.1, Epochs: 1}); err != placenet.ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := m.LoadModel("model.json"); err == nil {
		t.Fatalf("expected LoadModel to fail during training")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	_, err = run.Wait()
	if errors.Cause(err) != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	st := m.Status()
	if st.State != "failed" || st.Error == "" {
		t.Fatalf("unexpected status after stop %+v", st)
	}

	// a new run may start after the old one stopped
	next, err := m.Start(TrainParams{LearningRate: 0.1, Epochs: 1})
	if err != nil {
		t.Fatalf("Start after stop: %v", err)
	}
	next.Wait()
}

func TestStartRejectsBadParams(t *testing.T) {
	m := newManager(t, 0)

	_, err := m.Start(TrainParams{LearningRate: 0, Epochs: 10})
	if _, ok := err.(placenet.ConfigurationError); !ok {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if m.Current() != nil {
		t.Fatalf("rejected run became current")
	}
}

func TestSaveLoadModel(t *testing.T) {
	m := newManager(t, 0)
	if _, err := m.SaveModel(""); err != placenet.ErrNotTrained {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}

	run, _ := m.Start(TrainParams{LearningRate: 0.5, Epochs: 30})
	if _, err := run.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	before, _ := m.Predict(8, 130)

	path, err := m.SaveModel("../outside.json")
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if filepath.Base(path) != "outside.json" || filepath.Dir(path) != m.opts.ModelDir {
		t.Fatalf("model saved outside the model directory: %s", path)
	}

	// train something else, then restore
	run, _ = m.Start(TrainParams{LearningRate: 0.01, Epochs: 1, Seed: 99})
	run.Wait()

	if err := m.LoadModel("outside.json"); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	after, _ := m.Predict(8, 130)
	if before != after {
		t.Fatalf("prediction changed after save/load: %+v vs %+v", before, after)
	}

	if err := m.LoadModel("missing.json"); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestLoadModelRejectsOtherLayers(t *testing.T) {
	m := newManager(t, 0)

	net, _ := placenet.New(placenet.LayerSpec{2, 3, 1})
	net.Init(1)
	p, _ := net.Params()
	if err := store.SaveModel(filepath.Join(m.opts.ModelDir, "wide.json"), store.NewModel(net.Spec(), p, nil, 0.1)); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	err := m.LoadModel("wide.json")
	if _, ok := err.(placenet.ConfigurationError); !ok {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, err := m.Predict(8, 130); err != placenet.ErrNotTrained {
		t.Fatalf("rejected model became current: %v", err)
	}
}

func TestEDA(t *testing.T) {
	m := newManager(t, 0)
	eda, err := m.EDA()
	if err != nil {
		t.Fatalf("EDA: %v", err)
	}

	if eda.Stats.Samples != 60 || eda.Stats.TrainTestSplit != "80/20" {
		t.Fatalf("unexpected stats %+v", eda.Stats)
	}
	for _, k := range []string{"cgpa_hist", "iq_hist", "scatter_plot"} {
		if eda.Plots[k] == "" {
			t.Fatalf("missing plot %s", k)
		}
	}
}

func TestNoArchive(t *testing.T) {
	m, err := NewManager(dataset.Synthetic(10, 1), nil, Options{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Sessions(context.Background()); err != ErrNoArchive {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}
