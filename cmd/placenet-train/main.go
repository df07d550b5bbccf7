package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/config"
	"github.com/sharnoff/placenet/dataset"
	"github.com/sharnoff/placenet/scaler"
	"github.com/sharnoff/placenet/store"
)

func format(fs ...float64) (str string) {
	for i := range fs {
		if i != 0 {
			str += ", "
		}
		str += fmt.Sprintf("%.6f", fs[i])
	}

	return
}

// printer is the Sink used while training, printing one line per Snapshot.
type printer struct{}

func (printer) Update(s placenet.Snapshot) {
	if s.Err != nil {
		fmt.Printf("%d, stopped: %v\n", s.Epoch, s.Err)
		return
	}

	fmt.Printf("%d, %s\n", s.Epoch, format(s.Loss, s.Accuracy))
}

func train(ctx context.Context, net *placenet.Network, split *dataset.Split, cfg *config.Config) {
	mode, err := placenet.ParseMode(cfg.Mode)
	if err != nil {
		panic(err.Error())
	}

	args := placenet.TrainArgs{
		X:            split.XTrain,
		Y:            split.YTrain,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		Mode:         mode,
		ReportEvery:  cfg.ReportEvery,
		Seed:         cfg.Seed,
		Sink:         printer{},
		Warn: func(w placenet.NumericInstabilityWarning) {
			fmt.Fprintln(os.Stderr, w.Error())
		},
	}

	fmt.Printf("Starting training (%v, %d epochs, learning rate %v)...\n", mode, cfg.Epochs, cfg.LearningRate)
	fmt.Println("Epoch, Loss, Accuracy")

	if _, err := net.Train(ctx, args); err != nil {
		fmt.Println("Training did not finish:", err)
		return
	}

	fmt.Println("Done training!")
}

func test(net *placenet.Network, split *dataset.Split) {
	fmt.Println("Testing...")
	ev, err := net.Evaluate(split.XTest, split.YTest)
	if err != nil {
		panic(err.Error())
	}

	c := ev.Confusion
	fmt.Printf("Accuracy: %.2f%%\n", ev.Accuracy*100)
	fmt.Printf("Precision, Recall, F1: %s\n", format(ev.Precision, ev.Recall, ev.F1))
	fmt.Printf("TP=%d TN=%d FP=%d FN=%d\n", c.TP, c.TN, c.FP, c.FN)
}

func save(net *placenet.Network, sc *scaler.Standard, path string, learningRate float64) {
	fmt.Println("Saving...")
	p, err := net.Params()
	if err != nil {
		panic(err.Error())
	}

	if err := store.SaveModel(path, store.NewModel(net.Spec(), p, sc, learningRate)); err != nil {
		panic(err.Error())
	}
	fmt.Println("Done!")
}

func load(path string) (net *placenet.Network) {
	fmt.Println("Loading...")
	m, err := store.LoadModel(path)
	if err != nil {
		panic(err.Error())
	}

	if net, err = placenet.New(placenet.LayerSpec(m.Layers)); err != nil {
		panic(err.Error())
	}

	p, err := m.Params()
	if err != nil {
		panic(err.Error())
	}
	if err = net.SetParams(p); err != nil {
		panic(err.Error())
	}
	fmt.Println("Done!")

	return
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file (defaults are used if empty)")
	dataPath := flag.String("data", "", "Override placement CSV path")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	learningRate := flag.Float64("lr", 0, "Learning rate")
	mode := flag.String("mode", "", "batch or online")
	reportEvery := flag.Int("report-every", 0, "Print progress every N epochs")
	seed := flag.Int64("seed", 0, "PRNG seed")
	out := flag.String("out", "", "Where to save the trained model (defaults to <model_dir>/model.json)")
	resume := flag.Bool("resume", false, "Continue training the model at -out instead of starting fresh")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			panic(err.Error())
		}
	}

	cfg.ApplyOverrides(config.Overrides{
		DataPath:     *dataPath,
		Seed:         *seed,
		Epochs:       *epochs,
		LearningRate: *learningRate,
		Mode:         *mode,
		ReportEvery:  *reportEvery,
	})
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.ModelDir, "model.json")
	}

	data, err := dataset.Open(cfg.DataPath, cfg.SyntheticSize, cfg.Seed)
	if err != nil {
		panic(err.Error())
	}

	split, err := data.Prepare(cfg.TestFraction, cfg.Seed)
	if err != nil {
		panic(err.Error())
	}

	var net *placenet.Network
	if *resume {
		net = load(path)
	} else {
		fmt.Println("Setting up network...")
		if net, err = placenet.New(placenet.LayerSpec{2, 2, 1}); err != nil {
			panic(err.Error())
		}
		fmt.Println("Done!")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	train(ctx, net, split, cfg)
	test(net, split)
	save(net, split.Scaler, path, cfg.LearningRate)
}
