// Package app wires a sample source to a tracking channel and drives
// the epoch loop.
package app

import (
	"context"
	"fmt"

	"github.com/shangzhen6688/gnss-sdr/internal/logging"
	"github.com/shangzhen6688/gnss-sdr/internal/source"
	"github.com/shangzhen6688/gnss-sdr/internal/telemetry"
	"github.com/shangzhen6688/gnss-sdr/internal/tracking"
)

// Config controls the run loop.
type Config struct {
	// Acquisition seeds the channel before the first epoch.
	Acquisition tracking.Acquisition

	// MaxEpochs stops the loop after that many invocations. Zero
	// means run until the context is cancelled or lock is lost.
	MaxEpochs int

	// ReArmOnUnlock restarts the channel from the original
	// acquisition hint after a loss-of-lock event instead of
	// stopping.
	ReArmOnUnlock bool
}

// Runner reads sample blocks from a source and feeds them to a
// channel, honoring the request and skip counts each measurement
// carries.
type Runner struct {
	src      source.Source
	ch       *tracking.Channel
	reporter telemetry.Reporter
	log      logging.Logger
	cfg      Config

	unlocked bool
}

func NewRunner(src source.Source, ch *tracking.Channel, rep telemetry.Reporter, logger logging.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		src:      src,
		ch:       ch,
		reporter: rep,
		log:      logger,
		cfg:      cfg,
	}
}

// Run drives the channel until the context is cancelled, MaxEpochs is
// reached, or the channel loses lock with re-arming disabled.
func (r *Runner) Run(ctx context.Context) error {
	r.ch.SetEventSink(tracking.EventFunc(func(channel, prn int) {
		r.unlocked = true
	}))

	if err := r.ch.StartTracking(r.cfg.Acquisition); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}

	req := 0
	for epoch := 0; r.cfg.MaxEpochs == 0 || epoch < r.cfg.MaxEpochs; epoch++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var block []complex64
		if !r.ch.PullInPending() && req > 0 {
			var err error
			block, err = r.src.Read(ctx, req)
			if err != nil {
				return fmt.Errorf("read %d samples: %w", req, err)
			}
		}

		m := r.ch.ProcessEpoch(block)
		if r.reporter != nil {
			r.reporter.Report(m)
		}

		if m.SkipSamples > 0 {
			if err := r.src.Skip(m.SkipSamples); err != nil {
				return fmt.Errorf("skip %d samples: %w", m.SkipSamples, err)
			}
		}
		req = m.RequestSamples

		if r.unlocked {
			r.unlocked = false
			if !r.cfg.ReArmOnUnlock {
				r.log.Info("stopping after loss of lock",
					logging.Field{Key: "epoch", Value: epoch},
					logging.Field{Key: "prn", Value: r.cfg.Acquisition.PRN})
				return nil
			}
			r.log.Info("re-arming channel",
				logging.Field{Key: "epoch", Value: epoch},
				logging.Field{Key: "prn", Value: r.cfg.Acquisition.PRN})
			if err := r.ch.StartTracking(r.cfg.Acquisition); err != nil {
				return fmt.Errorf("re-arm: %w", err)
			}
			req = 0
		}
	}
	return nil
}
