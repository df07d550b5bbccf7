package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "placenet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# demo
addr: ":8080"
data_path: "data/placement.csv"
epochs: 250
learning_rate: 0.05
mode: online
pace: 20ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DataPath != "data/placement.csv" || cfg.Epochs != 250 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.LearningRate != 0.05 || cfg.Mode != "online" || cfg.Pace != 20*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.Seed != 42 || cfg.GridSteps != 50 {
		t.Fatalf("defaults were lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing colon": "epochs 5\n",
		"unknown key":   "speed: 5\n",
		"bad int":       "epochs: many\n",
		"bad duration":  "pace: soon\n",
		"invalid":       "learning_rate: 0\n",
		"bad mode":      "mode: minibatch\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := Load(writeConfig(t, "epochs: 5\nseed: x\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected error to name line 2, got %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{Epochs: 7, Mode: "online", Addr: ":1"})

	if cfg.Epochs != 7 || cfg.Mode != "online" || cfg.Addr != ":1" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LearningRate != 0.01 {
		t.Fatalf("zero override changed learning rate: %v", cfg.LearningRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
