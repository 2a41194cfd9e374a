package rawcol

import (
	"math"
	"testing"
)

func TestFloat32View(t *testing.T) {
	buf := make([]byte, 3*Float32Stride)
	v, err := ViewFloat32(buf, 3)
	if err != nil {
		t.Fatalf("ViewFloat32 failed: %v", err)
	}

	v.Set(0, 1.5)
	v.Set(1, -2.25)
	v.Set(2, float32(math.NaN()))

	if v.At(0) != 1.5 || v.At(1) != -2.25 {
		t.Errorf("At returned %f, %f", v.At(0), v.At(1))
	}
	if !math.IsNaN(float64(v.At(2))) {
		t.Error("expected NaN at index 2")
	}

	got := v.Floats([]int{2, 0, 1})
	if got[1] != 1.5 || got[2] != -2.25 {
		t.Errorf("Floats = %v", got)
	}
}

func TestFloat32ViewBits(t *testing.T) {
	buf := make([]byte, 2*Float32Stride)
	v, err := ViewFloat32(buf, 2)
	if err != nil {
		t.Fatalf("ViewFloat32 failed: %v", err)
	}

	v.SetBits(0, 0xdeadbeef)
	v.SetBits(1, 42)

	if v.BitsAt(0) != 0xdeadbeef || v.BitsAt(1) != 42 {
		t.Errorf("BitsAt = %x, %d", v.BitsAt(0), v.BitsAt(1))
	}

	got := v.Bits([]int{1, 0})
	if got[0] != 42 || got[1] != 0xdeadbeef {
		t.Errorf("Bits = %v", got)
	}
}

func TestViewSizeMismatch(t *testing.T) {
	if _, err := ViewFloat32(make([]byte, 7), 2); err == nil {
		t.Error("expected error for misaligned float32 buffer")
	}
	if _, err := ViewUint8(make([]byte, 3), 2); err == nil {
		t.Error("expected error for wrong uint8 buffer size")
	}
}

func TestUint8View(t *testing.T) {
	buf := make([]byte, 4)
	v, err := ViewUint8(buf, 4)
	if err != nil {
		t.Fatalf("ViewUint8 failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		v.Set(i, uint8(i*2))
	}

	got := v.Bins([]int{3, 2, 1, 0})
	want := []uint32{6, 4, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bins[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
