package classify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"phototriage/internal/logging"
)

// Model is an opaque probability function over decoded images. Implementations
// must be safe for concurrent use; the scan runs Predict from its own
// goroutine while the gate may be queried elsewhere.
type Model interface {
	Predict(ctx context.Context, img image.Image) (float64, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, img image.Image) (float64, error)

func (f ModelFunc) Predict(ctx context.Context, img image.Image) (float64, error) {
	return f(ctx, img)
}

// ModelLoader resolves the underlying model. It runs at most once per
// Detector; the handle is cached for process lifetime.
type ModelLoader func() (Model, error)

// ErrNoModel indicates no sensitivity model is available. The gate degrades
// to "not sensitive" rather than failing the scan.
var ErrNoModel = errors.New("sensitivity model not available")

// FileLoader returns a loader that resolves a model from disk. Model
// inference is an injection point: this build bundles no inference runtime,
// so the loader reports ErrNoModel (with the path for diagnostics) and the
// gate degrades, matching a deployment without a bundled model. Embedding
// callers supply their own ModelLoader to enable detection.
func FileLoader(path string) ModelLoader {
	return func() (Model, error) {
		if path == "" {
			return nil, ErrNoModel
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoModel, err)
		}
		return nil, fmt.Errorf("%w: no inference runtime for %q", ErrNoModel, path)
	}
}

// Detector wraps a Model with a mutable decision threshold. Stateless per
// call aside from the cached model handle; safe for concurrent invocation
// from multiple scan workers.
type Detector struct {
	loader ModelLoader
	logger *slog.Logger

	mu         sync.Mutex
	model      Model
	loadFailed bool
	warned     bool

	// threshold is stored as float bits so reads never block classification.
	threshold atomic.Uint64
}

// NewDetector constructs a gate around loader with the given initial
// threshold. Threshold range is enforced at the configuration boundary, not
// here.
func NewDetector(loader ModelLoader, threshold float64, logger *slog.Logger) *Detector {
	d := &Detector{
		loader: loader,
		logger: logging.NewComponentLogger(logger, "classify"),
	}
	d.SetThreshold(threshold)
	return d
}

// Threshold returns the current decision threshold.
func (d *Detector) Threshold() float64 {
	return math.Float64frombits(d.threshold.Load())
}

// SetThreshold updates the decision threshold for subsequent calls. Already
// recorded verdicts are not re-evaluated; a true re-evaluation requires
// clearing the sensitive set and rescanning.
func (d *Detector) SetThreshold(value float64) {
	d.threshold.Store(math.Float64bits(value))
}

// Classify returns the sensitivity probability for an image. When no model
// resolves, every call returns 0 and the failure is logged once, not
// repeated. Per-image prediction errors also degrade to 0.
func (d *Detector) Classify(ctx context.Context, img image.Image) float64 {
	model := d.acquireModel()
	if model == nil {
		return 0
	}
	probability, err := model.Predict(ctx, img)
	if err != nil {
		d.logger.Debug("prediction failed; treating as not sensitive", logging.Error(err))
		return 0
	}
	return probability
}

// IsSensitive applies the threshold, read fresh on every call, to the
// classification probability.
func (d *Detector) IsSensitive(ctx context.Context, img image.Image) bool {
	return d.Classify(ctx, img) >= d.Threshold()
}

func (d *Detector) acquireModel() Model {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.model != nil {
		return d.model
	}
	if d.loadFailed {
		return nil
	}
	if d.loader == nil {
		d.loadFailed = true
		d.warnOnce(ErrNoModel)
		return nil
	}

	model, err := d.loader()
	if err != nil || model == nil {
		d.loadFailed = true
		if err == nil {
			err = ErrNoModel
		}
		d.warnOnce(err)
		return nil
	}
	d.model = model
	d.logger.Info("sensitivity model loaded")
	return d.model
}

func (d *Detector) warnOnce(err error) {
	if d.warned {
		return
	}
	d.warned = true
	d.logger.Warn("no sensitivity model; all assets will classify as not sensitive",
		logging.Error(err),
	)
}
