package detection

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/go-hud/pkg/viewport"
)

func TestDetection_Validate(t *testing.T) {
	good := Detection{ClassLabel: "person", Confidence: 0.8, Box: viewport.Box{X: 10, Y: 10, Width: 50, Height: 100}}

	tests := []struct {
		name    string
		mutate  func(d *Detection)
		wantErr bool
	}{
		{"valid", func(d *Detection) {}, false},
		{"zero size box", func(d *Detection) { d.Box.Width, d.Box.Height = 0, 0 }, false},
		{"empty label", func(d *Detection) { d.ClassLabel = "" }, true},
		{"confidence above one", func(d *Detection) { d.Confidence = 1.2 }, true},
		{"negative confidence", func(d *Detection) { d.Confidence = -0.1 }, true},
		{"NaN confidence", func(d *Detection) { d.Confidence = math.NaN() }, true},
		{"NaN box", func(d *Detection) { d.Box.X = math.NaN() }, true},
		{"negative height", func(d *Detection) { d.Box.Height = -1 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := good
			tc.mutate(&d)
			err := d.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDetection) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidDetection", err)
			}
		})
	}
}

func TestDetection_Center(t *testing.T) {
	d := Detection{Box: viewport.Box{X: 100, Y: 200, Width: 40, Height: 60}}
	c := d.Center()
	if c.X != 120 || c.Y != 230 {
		t.Errorf("Center() = %v, want {120 230}", c)
	}
}

func TestFilterConfidence(t *testing.T) {
	dets := []Detection{
		{ClassLabel: "a", Confidence: 0.2},
		{ClassLabel: "b", Confidence: 0.35},
		{ClassLabel: "c", Confidence: 0.9},
	}

	got := FilterConfidence(dets, 0.35)
	if len(got) != 2 {
		t.Fatalf("FilterConfidence: got %d detections, want 2", len(got))
	}
	if got[0].ClassLabel != "b" || got[1].ClassLabel != "c" {
		t.Errorf("FilterConfidence: order not preserved, got %v", got)
	}
}

func TestMapToScreen(t *testing.T) {
	dets := []Detection{{ClassLabel: "tv", Box: viewport.Box{X: 10, Y: 10, Width: 10, Height: 10}}}
	got := MapToScreen(dets, viewport.Mapping{Scale: 2, OffsetX: 5})
	want := viewport.Box{X: 25, Y: 20, Width: 20, Height: 20}
	if got[0].Box != want {
		t.Errorf("MapToScreen: got %+v, want %+v", got[0].Box, want)
	}
	if dets[0].Box.X != 10 {
		t.Error("MapToScreen modified its input")
	}
}

func TestMerge(t *testing.T) {
	a := SourceFunc(func(ctx context.Context, frame []byte) ([]Detection, error) {
		return []Detection{{ClassLabel: "person"}}, nil
	})
	b := SourceFunc(func(ctx context.Context, frame []byte) ([]Detection, error) {
		return nil, errors.New("model offline")
	})
	c := SourceFunc(func(ctx context.Context, frame []byte) ([]Detection, error) {
		return []Detection{{ClassLabel: "drone"}}, nil
	})

	got, err := Merge(a, nil, b, c).Detect(context.Background(), nil)
	if err == nil {
		t.Error("Merge: expected error from failing source")
	}
	if len(got) != 2 || got[0].ClassLabel != "person" || got[1].ClassLabel != "drone" {
		t.Errorf("Merge: got %v, want [person drone]", got)
	}
}

func TestRemoteSource_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Content-Type = %q, want image/jpeg", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[{"class":"chair","confidence":0.7,"box":{"x":1,"y":2,"width":3,"height":4}}]}`))
	}))
	defer srv.Close()

	got, err := NewRemote(srv.URL).Detect(context.Background(), []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Detect: got %d detections, want 1", len(got))
	}
	want := Detection{ClassLabel: "chair", Confidence: 0.7, Box: viewport.Box{X: 1, Y: 2, Width: 3, Height: 4}}
	if got[0] != want {
		t.Errorf("Detect: got %+v, want %+v", got[0], want)
	}
}

func TestRemoteSource_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewRemote(srv.URL).Detect(context.Background(), nil); err == nil {
		t.Error("Detect: expected error for 503 response")
	}
}

func TestDefaultYOLOConfig(t *testing.T) {
	cfg := DefaultYOLOConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultYOLOConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultYOLOConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultYOLOConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	cfg := DefaultYOLOConfig()
	cfg.ModelPath = "does/not/exist.onnx"
	if _, err := NewYOLO(cfg); err == nil {
		t.Error("NewYOLO: expected error for missing model")
	}
}
