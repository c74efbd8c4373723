package classify_test

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"phototriage/internal/classify"
	"phototriage/internal/logging"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestIsSensitiveAppliesThreshold(t *testing.T) {
	loader := func() (classify.Model, error) {
		return classify.ModelFunc(func(context.Context, image.Image) (float64, error) {
			return 0.85, nil
		}), nil
	}
	detector := classify.NewDetector(loader, 0.8, logging.NewNop())

	ctx := context.Background()
	if !detector.IsSensitive(ctx, testImage()) {
		t.Fatal("0.85 >= 0.8 should be sensitive")
	}

	detector.SetThreshold(0.9)
	if detector.IsSensitive(ctx, testImage()) {
		t.Fatal("0.85 < 0.9 should not be sensitive")
	}
}

func TestThresholdReadFreshEachCall(t *testing.T) {
	detector := classify.NewDetector(func() (classify.Model, error) {
		return classify.ModelFunc(func(context.Context, image.Image) (float64, error) {
			return 0.5, nil
		}), nil
	}, 0.8, logging.NewNop())

	ctx := context.Background()
	if detector.IsSensitive(ctx, testImage()) {
		t.Fatal("0.5 < 0.8 should not be sensitive")
	}
	detector.SetThreshold(0.4)
	if !detector.IsSensitive(ctx, testImage()) {
		t.Fatal("threshold change must apply to the next call")
	}
}

func TestMissingModelDegradesAndLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	loader := func() (classify.Model, error) {
		loads.Add(1)
		return nil, errors.New("model file missing")
	}
	detector := classify.NewDetector(loader, 0.8, logging.NewNop())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if detector.IsSensitive(ctx, testImage()) {
			t.Fatal("degraded gate must report not sensitive")
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("loader should run once, ran %d times", loads.Load())
	}
}

func TestModelLoadedOnce(t *testing.T) {
	var loads atomic.Int32
	loader := func() (classify.Model, error) {
		loads.Add(1)
		return classify.ModelFunc(func(context.Context, image.Image) (float64, error) {
			return 0.99, nil
		}), nil
	}
	detector := classify.NewDetector(loader, 0.8, logging.NewNop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !detector.IsSensitive(ctx, testImage()) {
			t.Fatal("expected sensitive verdict")
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("loader should run once, ran %d times", loads.Load())
	}
}

func TestPredictionErrorDegrades(t *testing.T) {
	detector := classify.NewDetector(func() (classify.Model, error) {
		return classify.ModelFunc(func(context.Context, image.Image) (float64, error) {
			return 0, errors.New("inference failed")
		}), nil
	}, 0.1, logging.NewNop())

	if detector.IsSensitive(context.Background(), testImage()) {
		t.Fatal("prediction error must degrade to not sensitive")
	}
}

func TestFileLoaderReportsNoModel(t *testing.T) {
	loader := classify.FileLoader("")
	if _, err := loader(); !errors.Is(err, classify.ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}

	loader = classify.FileLoader("/nonexistent/model.onnx")
	if _, err := loader(); !errors.Is(err, classify.ErrNoModel) {
		t.Fatalf("expected ErrNoModel for missing file, got %v", err)
	}
}
