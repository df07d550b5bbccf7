package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sharnoff/placenet/dataset"
	"github.com/sharnoff/placenet/session"
	"github.com/sharnoff/placenet/store"
)

func newServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()

	return newServerWith(t, session.Options{
		GridSteps: 4,
		ImageSize: 8,
		ModelDir:  t.TempDir(),
	})
}

func newServerWith(t *testing.T, opts session.Options) (*Server, *session.Manager) {
	t.Helper()

	sessions, err := store.OpenSessions(":memory:")
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	m, err := session.NewManager(dataset.Synthetic(60, 3), sessions, opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Shutdown)

	return New(m), m
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func do(t *testing.T, s *Server, method, path, body string) (int, response) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: bad response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestHealthAndCORS(t *testing.T) {
	s, _ := newServer(t)

	code, resp := do(t, s, "GET", "/api/health", "")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("health: %d %+v", code, resp)
	}

	req := httptest.NewRequest("OPTIONS", "/api/predict", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}
}

func TestTrainStream(t *testing.T) {
	s, _ := newServer(t)

	req := httptest.NewRequest("POST", "/train", strings.NewReader(`{"epochs": 20, "learning_rate": 0.5, "report_every": 10}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	frames := readFrames(t, rec)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	last := frames[2]
	if last.Epoch != 20 || last.State != "completed" || len(last.Parameters) != 4 || last.Error != "" {
		t.Fatalf("unexpected last frame %+v", last)
	}
	if frames[0].Epoch != 0 || frames[0].Boundary == "" {
		t.Fatalf("unexpected first frame %+v", frames[0])
	}
}

func readFrames(t *testing.T, rec *httptest.ResponseRecorder) []frame {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/x-json-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var frames []frame
	sc := bufio.NewScanner(rec.Body)
	sc.Buffer(nil, 1<<20)
	for sc.Scan() {
		var f frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		frames = append(frames, f)
	}

	return frames
}

func TestTrainUsesConfiguredDefaults(t *testing.T) {
	s, _ := newServerWith(t, session.Options{
		ModelDir: t.TempDir(),
		Defaults: session.TrainParams{Epochs: 7, LearningRate: 0.5, ReportEvery: 3},
	})

	req := httptest.NewRequest("POST", "/api/train/stream", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	frames := readFrames(t, rec)
	want := []int{0, 3, 6, 7}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want epochs %v", len(frames), want)
	}
	for i, f := range frames {
		if f.Epoch != want[i] || f.Epochs != 7 {
			t.Fatalf("frame %d is for epoch %d/%d, want %d/7", i, f.Epoch, f.Epochs, want[i])
		}
	}

	// a request still overrides the configured cadence
	req = httptest.NewRequest("POST", "/api/train/stream", strings.NewReader(`{"report_every": 7}`))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if frames := readFrames(t, rec); len(frames) != 2 || frames[1].Epoch != 7 {
		t.Fatalf("expected frames for epochs 0 and 7, got %+v", frames)
	}
}

func TestTrainRejectsBadRequest(t *testing.T) {
	s, _ := newServer(t)

	for _, body := range []string{
		`{"learning_rate": 0}`,
		`{"epochs": 0}`,
		`{"mode": "sideways"}`,
		`{not json`,
	} {
		code, resp := do(t, s, "POST", "/api/train", body)
		if code != http.StatusBadRequest || resp.Success {
			t.Fatalf("%s: expected 400, got %d %+v", body, code, resp)
		}
	}
}

func TestTrainPredictEvaluate(t *testing.T) {
	s, m := newServer(t)

	code, resp := do(t, s, "POST", "/api/predict", `{"cgpa": 8, "iq": 120}`)
	if code != http.StatusConflict {
		t.Fatalf("predict before training: %d %+v", code, resp)
	}
	if code, _ := do(t, s, "POST", "/api/train/stop", ""); code != http.StatusConflict {
		t.Fatalf("stop without a run: %d", code)
	}

	code, resp = do(t, s, "POST", "/api/train", `{"epochs": 30, "learning_rate": 0.5, "mode": "online"}`)
	if code != http.StatusOK {
		t.Fatalf("train: %d %+v", code, resp)
	}
	var started struct {
		SessionID string `json:"session_id"`
	}
	json.Unmarshal(resp.Data, &started)
	if started.SessionID == "" {
		t.Fatalf("no session id in %s", resp.Data)
	}

	if _, err := m.Current().Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	code, resp = do(t, s, "GET", "/api/train/status", "")
	var st session.Status
	json.Unmarshal(resp.Data, &st)
	if code != http.StatusOK || st.State != "completed" || st.SessionID != started.SessionID {
		t.Fatalf("status: %d %+v", code, st)
	}

	code, resp = do(t, s, "POST", "/api/predict", `{"cgpa": 8, "iq": 120}`)
	var pred session.Prediction
	json.Unmarshal(resp.Data, &pred)
	if code != http.StatusOK || pred.Probability <= 0 || pred.Probability >= 1 {
		t.Fatalf("predict: %d %+v", code, pred)
	}

	if code, _ := do(t, s, "POST", "/api/predict", `{"cgpa": 8}`); code != http.StatusBadRequest {
		t.Fatalf("predict without iq: %d", code)
	}

	code, resp = do(t, s, "GET", "/api/evaluate", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), "confusion_matrix") {
		t.Fatalf("evaluate: %d %s", code, resp.Data)
	}

	code, resp = do(t, s, "GET", "/api/sessions", "")
	var list []store.Session
	json.Unmarshal(resp.Data, &list)
	if code != http.StatusOK || len(list) != 1 {
		t.Fatalf("sessions: %d %s", code, resp.Data)
	}

	code, resp = do(t, s, "GET", "/api/replay-session/"+started.SessionID, "")
	var replay store.Session
	json.Unmarshal(resp.Data, &replay)
	if code != http.StatusOK || len(replay.Frames) == 0 {
		t.Fatalf("replay: %d %s", code, resp.Data)
	}

	if code, _ := do(t, s, "GET", "/api/replay-session/unknown", ""); code != http.StatusNotFound {
		t.Fatalf("replay of unknown session: %d", code)
	}
}

func TestSaveLoadModel(t *testing.T) {
	s, m := newServer(t)

	do(t, s, "POST", "/api/train", `{"epochs": 5, "learning_rate": 0.1}`)
	m.Current().Wait()

	code, resp := do(t, s, "GET", "/api/save-model?filename=saved.json", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), "saved.json") {
		t.Fatalf("save: %d %s", code, resp.Data)
	}

	code, resp = do(t, s, "POST", "/api/load-model", `{"filename": "saved.json"}`)
	if code != http.StatusOK || !strings.Contains(string(resp.Data), "W1") {
		t.Fatalf("load: %d %s", code, resp.Data)
	}

	if code, _ := do(t, s, "POST", "/api/load-model", `{"filename": "nothing.json"}`); code != http.StatusNotFound {
		t.Fatalf("load of missing model: %d", code)
	}

	code, resp = do(t, s, "GET", "/api/model/state", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"trained":true`) {
		t.Fatalf("model state: %d %s", code, resp.Data)
	}
}

func TestEDA(t *testing.T) {
	s, _ := newServer(t)

	code, resp := do(t, s, "GET", "/api/eda", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), "correlation_cgpa_iq") {
		t.Fatalf("eda: %d %s", code, resp.Data)
	}
}
