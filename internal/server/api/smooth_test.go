package api

import (
	"math"
	"net/http"
	"testing"

	"github.com/ayusman/kinesmooth/internal/config"
)

func smoothSettings() *config.SmoothingConfig {
	seed := uint64(7)
	coeff := 10
	cfg := config.DefaultSmoothingConfig()
	cfg.CoefficientCount = &coeff
	cfg.Seed = &seed
	return cfg
}

func TestSmoothHandler_Smooth(t *testing.T) {
	handler := NewSmoothHandler(smoothSettings())

	samples := 25
	rec := doJSON(t, handler, http.MethodPost, "/api/smooth", smoothRequest{
		Points:  circle(60),
		Options: &config.SmoothingConfig{SampleCount: &samples},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response smoothResponse
	decodeBody(t, rec, &response)

	if response.Options.CoefficientCount != 10 || response.Options.SampleCount != 25 {
		t.Errorf("unexpected effective options %+v", response.Options)
	}
	if len(response.Points) != 25 || len(response.Samples) != 25 {
		t.Fatalf("expected 25 samples, got %d points and %d samples", len(response.Points), len(response.Samples))
	}
	if len(response.Parameters) != 60 {
		t.Errorf("expected 60 parameters, got %d", len(response.Parameters))
	}
	if len(response.Channels) != 2 || len(response.Residuals) != 2 {
		t.Errorf("expected 2 channels, got %d channels and %d residuals", len(response.Channels), len(response.Residuals))
	}
	if response.Warnings == nil {
		t.Error("warnings should be an empty list, not null")
	}

	for i, p := range response.Points {
		r := math.Hypot(p[0], p[1])
		if math.Abs(r-1) > 0.2 {
			t.Errorf("point %d radius %.3f too far from the unit circle", i, r)
		}
	}
	if response.Deviation.MaxStep > 0.5 {
		t.Errorf("max step %.3f too large", response.Deviation.MaxStep)
	}
}

func TestSmoothHandler_NilBase(t *testing.T) {
	handler := NewSmoothHandler(nil)
	if handler.base == nil {
		t.Fatal("expected default settings")
	}
}

func TestSmoothHandler_Errors(t *testing.T) {
	tooMany := 100
	bad := 1

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"invalid json", "nope", http.StatusBadRequest},
		{"no points", smoothRequest{}, http.StatusBadRequest},
		{"ragged", smoothRequest{Points: [][]float64{{0, 0}, {1}}}, http.StatusBadRequest},
		{"invalid options", smoothRequest{Points: circle(20), Options: &config.SmoothingConfig{CoefficientCount: &bad}}, http.StatusBadRequest},
		{"too few points", smoothRequest{Points: circle(20), Options: &config.SmoothingConfig{CoefficientCount: &tooMany}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSmoothHandler(smoothSettings())
			rec := doJSON(t, handler, http.MethodPost, "/api/smooth", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSmoothHandler_MethodNotAllowed(t *testing.T) {
	handler := NewSmoothHandler(nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/smooth", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
