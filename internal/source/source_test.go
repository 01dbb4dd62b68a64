package source

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
)

func syntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Signal:       gnss.SignalGPSL1CA,
		PRN:          1,
		SampleRateHz: 2.046e6,
		Amplitude:    1,
	}
}

func TestSyntheticPhaseContinuity(t *testing.T) {
	ctx := context.Background()
	cfg := syntheticConfig()
	cfg.DopplerHz = 1000

	one, err := NewSynthetic(cfg)
	if err != nil {
		t.Fatal(err)
	}
	many, err := NewSynthetic(cfg)
	if err != nil {
		t.Fatal(err)
	}

	whole, err := one.Read(ctx, 4096)
	if err != nil {
		t.Fatal(err)
	}
	var pieces []complex64
	for _, n := range []int{1000, 96, 3000} {
		block, err := many.Read(ctx, n)
		if err != nil {
			t.Fatal(err)
		}
		pieces = append(pieces, block...)
	}

	for i := range whole {
		if d := complexDist(whole[i], pieces[i]); d > 1e-4 {
			t.Fatalf("sample %d differs across block boundaries by %g", i, d)
		}
	}
}

func TestSyntheticSkipMatchesRead(t *testing.T) {
	ctx := context.Background()
	cfg := syntheticConfig()
	cfg.DopplerHz = 250
	cfg.CodePhaseSamples = 77

	read, err := NewSynthetic(cfg)
	if err != nil {
		t.Fatal(err)
	}
	skip, err := NewSynthetic(cfg)
	if err != nil {
		t.Fatal(err)
	}

	const ahead = 1537
	if _, err := read.Read(ctx, ahead); err != nil {
		t.Fatal(err)
	}
	if err := skip.Skip(ahead); err != nil {
		t.Fatal(err)
	}

	a, err := read.Read(ctx, 256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := skip.Read(ctx, 256)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if d := complexDist(a[i], b[i]); d > 1e-4 {
			t.Fatalf("sample %d: skip and read diverge by %g", i, d)
		}
	}
}

func TestSyntheticCodePhaseDelay(t *testing.T) {
	ctx := context.Background()

	delayed, err := NewSynthetic(SyntheticConfig{
		Signal:           gnss.SignalGPSL1CA,
		PRN:              1,
		SampleRateHz:     2.046e6,
		CodePhaseSamples: 100,
		Amplitude:        1,
	})
	if err != nil {
		t.Fatal(err)
	}
	prompt, err := NewSynthetic(syntheticConfig())
	if err != nil {
		t.Fatal(err)
	}

	// After skipping the delay the streams must line up chip for chip.
	if err := delayed.Skip(100); err != nil {
		t.Fatal(err)
	}
	a, err := delayed.Read(ctx, 512)
	if err != nil {
		t.Fatal(err)
	}
	b, err := prompt.Read(ctx, 512)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if d := complexDist(a[i], b[i]); d > 1e-4 {
			t.Fatalf("sample %d: delayed stream misaligned by %g", i, d)
		}
	}
}

func TestSyntheticRejectsBadConfig(t *testing.T) {
	if _, err := NewSynthetic(SyntheticConfig{Signal: gnss.SignalGPSL1CA, PRN: 1}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	cfg := syntheticConfig()
	cfg.PRN = 99
	if _, err := NewSynthetic(cfg); err == nil {
		t.Error("expected error for invalid PRN")
	}
}

func TestIQFileReadAndSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")

	samples := []int16{
		2048, 0, // 1+0i after scaling
		0, -2048, // 0-1i
		1024, 1024,
		-512, 256,
		100, -100,
	}
	raw := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenIQFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	got, err := src.Read(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []complex64{complex(1, 0), complex(0, -1)}
	for i := range want {
		if d := complexDist(got[i], want[i]); d > 1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Skip one pair, then the next read starts at the fourth sample.
	if err := src.Skip(1); err != nil {
		t.Fatal(err)
	}
	got, err = src.Read(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	wantNext := complex(float32(-512)/adcScale, float32(256)/adcScale)
	if d := complexDist(got[0], wantNext); d > 1e-6 {
		t.Fatalf("sample after skip = %v, want %v", got[0], wantNext)
	}
}

func TestIQFileShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, make([]byte, 6), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenIQFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if _, err := src.Read(context.Background(), 4); err == nil {
		t.Fatal("expected error reading past the end of the capture")
	}
}

func complexDist(a, b complex64) float64 {
	return math.Hypot(float64(real(a)-real(b)), float64(imag(a)-imag(b)))
}
