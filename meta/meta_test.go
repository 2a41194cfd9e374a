package meta

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hupe1980/quantpool/borders"
)

func TestBordersCache(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Borders(1); ok {
		t.Fatal("expected no cached borders")
	}

	first := r.SetBordersIfAbsent(1, []float32{0.5, 1.5})
	if len(first) != 2 {
		t.Fatalf("unexpected grid %v", first)
	}

	// A second set does not overwrite.
	second := r.SetBordersIfAbsent(1, []float32{9})
	if len(second) != 2 || second[0] != 0.5 {
		t.Errorf("cached grid overwritten: %v", second)
	}

	got, ok := r.Borders(1)
	if !ok || len(got) != 2 {
		t.Errorf("Borders = %v, %v", got, ok)
	}
}

func TestSetOrCheckNanMode(t *testing.T) {
	r := NewRegistry()

	if err := r.SetOrCheckNanMode(3, borders.NanIsMax); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := r.SetOrCheckNanMode(3, borders.NanIsMax); err != nil {
		t.Fatalf("repeated set failed: %v", err)
	}

	err := r.SetOrCheckNanMode(3, borders.NanIsMin)
	if !errors.Is(err, ErrNanModeConflict) {
		t.Errorf("expected ErrNanModeConflict, got %v", err)
	}
}

func TestGetOrComputeNanMode(t *testing.T) {
	r := NewRegistry()

	clean := []float32{1, 2, 3}
	if got := r.GetOrComputeNanMode(0, clean, borders.NanIsMin); got != borders.NanForbidden {
		t.Errorf("mode = %v, want Forbidden", got)
	}

	// Cached: a later call with NaNs does not change the decision.
	dirty := []float32{1, float32(math.NaN())}
	if got := r.GetOrComputeNanMode(0, dirty, borders.NanIsMin); got != borders.NanForbidden {
		t.Errorf("cached mode = %v, want Forbidden", got)
	}

	if got := r.GetOrComputeNanMode(1, dirty, borders.NanIsMax); got != borders.NanIsMax {
		t.Errorf("mode = %v, want Max", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for f := uint32(0); f < 64; f++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SetBordersIfAbsent(f, []float32{float32(f)})
			if err := r.SetOrCheckNanMode(f, borders.NanForbidden); err != nil {
				t.Errorf("feature %d: %v", f, err)
			}
		}()
	}
	wg.Wait()

	for f := uint32(0); f < 64; f++ {
		grid, ok := r.Borders(f)
		if !ok || grid[0] != float32(f) {
			t.Errorf("feature %d: grid = %v, %v", f, grid, ok)
		}
	}
}
