package app

import (
	"context"
	"io"
	"testing"

	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
	"github.com/shangzhen6688/gnss-sdr/internal/logging"
	"github.com/shangzhen6688/gnss-sdr/internal/source"
	"github.com/shangzhen6688/gnss-sdr/internal/tracking"
)

func testLogger() logging.Logger {
	return logging.New(logging.Error, false, io.Discard)
}

func testChannel(t *testing.T) *tracking.Channel {
	t.Helper()
	ch, err := tracking.NewChannel(tracking.Config{
		Signal:                  gnss.SignalGPSL1CA,
		SampleRateHz:            2.046e6,
		PLLBandwidthHz:          25,
		DLLBandwidthHz:          2,
		EarlyLateSpaceChips:     0.5,
		VeryEarlyLateSpaceChips: 1.0,
		VectorLength:            2046,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	return ch
}

// countingReporter records every measurement it is handed.
type countingReporter struct {
	records []tracking.Measurement
}

func (c *countingReporter) Report(m tracking.Measurement) {
	c.records = append(c.records, m)
}

// deadSource hands out silence and tracks stream consumption.
type deadSource struct {
	read    int
	skipped int
}

func (d *deadSource) Read(_ context.Context, n int) ([]complex64, error) {
	d.read += n
	return make([]complex64, n), nil
}

func (d *deadSource) Skip(n int) error {
	d.skipped += n
	return nil
}

func (d *deadSource) Close() error { return nil }

func TestRunnerTracksSignal(t *testing.T) {
	src, err := source.NewSynthetic(source.SyntheticConfig{
		Signal:       gnss.SignalGPSL1CA,
		PRN:          1,
		SampleRateHz: 2.046e6,
		Amplitude:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	ch := testChannel(t)
	rep := &countingReporter{}

	const epochs = 25
	runner := NewRunner(src, ch, rep, testLogger(), Config{
		Acquisition: tracking.Acquisition{PRN: 1},
		MaxEpochs:   epochs,
	})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rep.records) != epochs {
		t.Fatalf("reported records = %d, want %d", len(rep.records), epochs)
	}
	if !rep.records[0].PullIn {
		t.Fatal("first record must be the pull-in")
	}
	for i, m := range rep.records[1:] {
		if !m.Valid {
			t.Fatalf("record %d: expected valid steady-state epoch", i+1)
		}
		if m.PromptI < 2000 {
			t.Fatalf("record %d: prompt %g, want a correlation peak", i+1, m.PromptI)
		}
	}
}

func TestRunnerHonorsSkipContract(t *testing.T) {
	src := &deadSource{}
	ch := testChannel(t)

	runner := NewRunner(src, ch, nil, testLogger(), Config{
		Acquisition: tracking.Acquisition{PRN: 1, CodePhaseSamples: 300},
		MaxEpochs:   3,
	})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Pull-in: round(300 + 2046) samples discarded, then two read
	// epochs of the nominal length.
	if src.skipped != 2346 {
		t.Fatalf("skipped = %d, want 2346", src.skipped)
	}
	if src.read != 2*2046 {
		t.Fatalf("read = %d, want %d", src.read, 2*2046)
	}
}

func TestRunnerStopsOnLossOfLock(t *testing.T) {
	src := &deadSource{}
	ch, err := tracking.NewChannel(tracking.Config{
		Signal:                  gnss.SignalGPSL1CA,
		SampleRateHz:            2.046e6,
		PLLBandwidthHz:          25,
		DLLBandwidthHz:          2,
		EarlyLateSpaceChips:     0.5,
		VeryEarlyLateSpaceChips: 1.0,
		VectorLength:            2046,
		CN0WindowEpochs:         2,
		MaxLockFailures:         1,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	rep := &countingReporter{}

	runner := NewRunner(src, ch, rep, testLogger(), Config{
		Acquisition: tracking.Acquisition{PRN: 1},
	})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Dead air fails every two-epoch window; the counter passes the
	// limit on the second window. One pull-in plus four epochs.
	if len(rep.records) != 5 {
		t.Fatalf("reported records = %d, want 5", len(rep.records))
	}
	if ch.Enabled() {
		t.Fatal("channel must be disabled after loss of lock")
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	src := &deadSource{}
	ch := testChannel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(src, ch, nil, testLogger(), Config{
		Acquisition: tracking.Acquisition{PRN: 1},
	})
	if err := runner.Run(ctx); err != context.Canceled {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
