package bitpack

import (
	"math/rand"
	"testing"
)

func TestWidth(t *testing.T) {
	cases := []struct {
		binCount uint32
		want     uint
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{256, 8},
		{257, 9},
	}

	for _, c := range cases {
		if got := Width(c.binCount); got != c.want {
			t.Errorf("Width(%d) = %d, want %d", c.binCount, got, c.want)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 1, 2, 2}

	p, err := Compress(values, 2)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if p.Len() != len(values) {
		t.Fatalf("Len = %d, want %d", p.Len(), len(values))
	}

	got := p.Decompress()
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("Decompress[%d] = %d, want %d", i, got[i], values[i])
		}
	}
}

func TestCompressRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, width := range []uint{1, 2, 3, 5, 7, 8, 13, 17, 32} {
		n := 1000 + rng.Intn(100)
		values := make([]uint32, n)
		for i := range values {
			if width == 32 {
				values[i] = rng.Uint32()
			} else {
				values[i] = rng.Uint32() % (1 << width)
			}
		}

		p, err := Compress(values, width)
		if err != nil {
			t.Fatalf("Compress width=%d failed: %v", width, err)
		}

		got := p.Decompress()
		for i := range values {
			if got[i] != values[i] {
				t.Fatalf("width=%d: Decompress[%d] = %d, want %d", width, i, got[i], values[i])
			}
		}

		for _, i := range []int{0, n / 2, n - 1} {
			if p.At(i) != values[i] {
				t.Errorf("width=%d: At(%d) = %d, want %d", width, i, p.At(i), values[i])
			}
		}
	}
}

func TestCompressValueTooLarge(t *testing.T) {
	if _, err := Compress([]uint32{0, 4}, 2); err == nil {
		t.Error("expected error for value 4 at width 2")
	}
	if _, err := Compress([]uint32{1}, 0); err == nil {
		t.Error("expected error for nonzero value at width 0")
	}
}

func TestCompressZeroWidth(t *testing.T) {
	p, err := Compress([]uint32{0, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if p.SizeBytes() != 0 {
		t.Errorf("SizeBytes = %d, want 0", p.SizeBytes())
	}
	got := p.Decompress()
	if len(got) != 3 {
		t.Fatalf("Decompress length = %d, want 3", len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("Decompress[%d] = %d, want 0", i, v)
		}
	}
}

func TestCompressMinimalSize(t *testing.T) {
	// 33 values at 2 bits: 32 per word, so 2 words = 16 bytes.
	values := make([]uint32, 33)
	p, err := Compress(values, 2)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if p.SizeBytes() != 16 {
		t.Errorf("SizeBytes = %d, want 16", p.SizeBytes())
	}
}
