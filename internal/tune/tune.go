// Package tune searches worker count and row batch size for the lowest
// median frame time using the Mayfly optimizer.
package tune

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/mandelsimd/internal/app"
)

const (
	defaultFrames      = 3
	defaultMaxRowBatch = 16
	defaultIterations  = 10

	// minPopulation is the smallest population mayfly v0.1.0 accepts.
	minPopulation = 20
)

// Config configures a tuning run.
type Config struct {
	Width   int
	Height  int
	Backend string
	Frames  int // frames timed per candidate

	MaxWorkers  int // 0 uses GOMAXPROCS
	MaxRowBatch int

	Iterations int
	Population int
	Seed       int64
}

// Setting is one point of the search space.
type Setting struct {
	Workers  int `json:"workers"`
	RowBatch int `json:"rowBatch"`
}

func (s Setting) String() string {
	return fmt.Sprintf("workers=%d rowBatch=%d", s.Workers, s.RowBatch)
}

// Trial is the measurement of one setting.
type Trial struct {
	Setting
	Median time.Duration `json:"medianNs"`
	Error  string        `json:"error,omitempty"`
}

// Result is the outcome of a tuning run.
type Result struct {
	Best   Setting       `json:"best"`
	Median time.Duration `json:"medianNs"`

	// Trials holds every distinct setting measured, fastest first.
	Trials []Trial `json:"trials"`

	// Evaluations counts objective calls, including cached repeats.
	Evaluations int `json:"evaluations"`
}

// MeasureFunc returns the median frame time of a setting.
type MeasureFunc func(ctx context.Context, s Setting) (time.Duration, error)

// Option configures a Tuner.
type Option func(*Tuner)

// WithMeasure replaces the frame timer.
func WithMeasure(fn MeasureFunc) Option {
	return func(t *Tuner) {
		t.measure = fn
	}
}

// Tuner runs the search. A Tuner is not safe for concurrent use.
type Tuner struct {
	cfg     Config
	measure MeasureFunc
	trials  map[Setting]Trial
	evals   int
}

// New creates a tuner, filling defaults into cfg.
func New(cfg Config, opts ...Option) *Tuner {
	if cfg.Frames <= 0 {
		cfg.Frames = defaultFrames
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxRowBatch <= 0 {
		cfg.MaxRowBatch = defaultMaxRowBatch
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = defaultIterations
	}
	if cfg.Population < minPopulation {
		cfg.Population = minPopulation
	}

	t := &Tuner{cfg: cfg, trials: make(map[Setting]Trial)}
	t.measure = t.benchMeasure
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the effective configuration.
func (t *Tuner) Config() Config {
	return t.cfg
}

// Decode maps an optimizer position in [0,1]^2 to a setting.
func (t *Tuner) Decode(x []float64) Setting {
	return Setting{
		Workers:  scale(x[0], t.cfg.MaxWorkers),
		RowBatch: scale(x[1], t.cfg.MaxRowBatch),
	}
}

// scale maps v in [0,1] to an integer in [1, n].
func scale(v float64, n int) int {
	v = math.Min(1, math.Max(0, v))
	return 1 + int(math.Round(v*float64(n-1)))
}

// Run searches the space and returns the fastest setting found.
func (t *Tuner) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		return t.objective(ctx, x)
	}
	config.ProblemSize = 2
	config.MaxIterations = t.cfg.Iterations
	config.NPop = t.cfg.Population
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(t.cfg.Seed))

	slog.Info("Tuning started",
		"backend", t.cfg.Backend, "width", t.cfg.Width, "height", t.cfg.Height,
		"max_workers", t.cfg.MaxWorkers, "max_row_batch", t.cfg.MaxRowBatch)

	_, err := mayfly.Optimize(config)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run optimizer: %w", err)
	}

	result := t.result()
	if result == nil {
		return nil, errors.New("no setting could be measured")
	}

	slog.Info("Tuning finished", "best", result.Best.String(), "median", result.Median,
		"settings", len(result.Trials), "evaluations", result.Evaluations)
	return result, nil
}

// objective returns the median frame time in seconds. Failed settings cost
// +Inf so the optimizer moves away from them.
func (t *Tuner) objective(ctx context.Context, x []float64) float64 {
	t.evals++
	if ctx.Err() != nil {
		return math.Inf(1)
	}

	s := t.Decode(x)
	trial, ok := t.trials[s]
	if !ok {
		trial = Trial{Setting: s}
		median, err := t.measure(ctx, s)
		if err != nil {
			trial.Error = err.Error()
			slog.Debug("Setting failed", "setting", s.String(), "error", err)
		} else {
			trial.Median = median
			slog.Debug("Setting measured", "setting", s.String(), "median", median)
		}
		t.trials[s] = trial
	}

	if trial.Error != "" {
		return math.Inf(1)
	}
	return trial.Median.Seconds()
}

// result collects the measured settings, or nil if every one failed.
func (t *Tuner) result() *Result {
	trials := make([]Trial, 0, len(t.trials))
	for _, trial := range t.trials {
		trials = append(trials, trial)
	}
	slices.SortFunc(trials, func(a, b Trial) int {
		switch {
		case (a.Error == "") != (b.Error == ""):
			if a.Error == "" {
				return -1
			}
			return 1
		case a.Median != b.Median:
			return cmp.Compare(a.Median, b.Median)
		case a.Workers != b.Workers:
			return a.Workers - b.Workers
		default:
			return a.RowBatch - b.RowBatch
		}
	})

	if len(trials) == 0 || trials[0].Error != "" {
		return nil
	}
	return &Result{
		Best:        trials[0].Setting,
		Median:      trials[0].Median,
		Trials:      trials,
		Evaluations: t.evals,
	}
}

// benchMeasure times the configured backend on a fresh context, so each
// setting gets its own worker pool.
func (t *Tuner) benchMeasure(ctx context.Context, s Setting) (time.Duration, error) {
	c, err := app.New(app.Config{
		Width:    t.cfg.Width,
		Height:   t.cfg.Height,
		Backend:  t.cfg.Backend,
		Workers:  s.Workers,
		RowBatch: s.RowBatch,
	})
	if err != nil {
		return 0, err
	}
	defer c.Close()

	results, err := c.Bench(ctx, app.BenchOptions{
		Backends: []string{t.cfg.Backend},
		Frames:   t.cfg.Frames,
	})
	if err != nil {
		return 0, err
	}
	if results[0].Error != "" {
		return 0, errors.New(results[0].Error)
	}
	return results[0].Median, nil
}
