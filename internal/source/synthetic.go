package source

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
)

// SyntheticConfig describes the simulated satellite signal.
type SyntheticConfig struct {
	Signal       gnss.Signal
	PRN          int
	SampleRateHz float64
	IFFreqHz     float64

	// DopplerHz is the true carrier offset. The code rate is derived
	// from it, so code and carrier stay coherent like a real signal.
	DopplerHz float64
	// CodePhaseSamples delays the code sequence start by this many
	// samples, emulating signal travel time.
	CodePhaseSamples float64

	Amplitude  float64
	NoiseSigma float64 // standard deviation of the additive Gaussian noise
}

// Synthetic generates a continuous sampled GNSS signal. Phase is
// carried across Read calls, so consecutive blocks form one coherent
// stream regardless of block sizes.
type Synthetic struct {
	cfg  SyntheticConfig
	code []float64

	carrPhaseRad   float64
	codePhaseChips float64
	noise          distuv.Normal
}

// NewSynthetic builds a generator for the configured signal and PRN.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.SampleRateHz <= 0 {
		return nil, fmt.Errorf("synthetic source: sample rate must be positive, got %g", cfg.SampleRateHz)
	}
	code, err := gnss.Code(cfg.Signal, cfg.PRN)
	if err != nil {
		return nil, fmt.Errorf("synthetic source: %w", err)
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 1
	}
	s := &Synthetic{
		cfg:   cfg,
		code:  code,
		noise: distuv.Normal{Mu: 0, Sigma: cfg.NoiseSigma},
	}
	// Negative initial code phase: at stream sample zero the code
	// sequence start is still CodePhaseSamples away.
	s.codePhaseChips = -cfg.CodePhaseSamples * s.codeFreqHz() / cfg.SampleRateHz
	return s, nil
}

func (s *Synthetic) codeFreqHz() float64 {
	chipRate := s.cfg.Signal.ChipRateHz()
	return chipRate + s.cfg.DopplerHz*chipRate/s.cfg.Signal.CarrierFreqHz()
}

func (s *Synthetic) Read(_ context.Context, n int) ([]complex64, error) {
	out := make([]complex64, n)
	carrStep := 2 * math.Pi * (s.cfg.IFFreqHz + s.cfg.DopplerHz) / s.cfg.SampleRateHz
	codeStep := s.codeFreqHz() / s.cfg.SampleRateHz
	clen := float64(len(s.code))
	for i := range out {
		idx := int(math.Floor(math.Mod(math.Mod(s.codePhaseChips, clen)+clen, clen)))
		sinP, cosP := math.Sincos(s.carrPhaseRad)
		re := s.cfg.Amplitude * s.code[idx] * cosP
		im := s.cfg.Amplitude * s.code[idx] * sinP
		if s.cfg.NoiseSigma > 0 {
			re += s.noise.Rand()
			im += s.noise.Rand()
		}
		out[i] = complex64(complex(re, im))
		s.carrPhaseRad += carrStep
		s.codePhaseChips += codeStep
	}
	// keep the carrier phase bounded over long runs
	s.carrPhaseRad = math.Mod(s.carrPhaseRad, 2*math.Pi)
	return out, nil
}

func (s *Synthetic) Skip(n int) error {
	carrStep := 2 * math.Pi * (s.cfg.IFFreqHz + s.cfg.DopplerHz) / s.cfg.SampleRateHz
	codeStep := s.codeFreqHz() / s.cfg.SampleRateHz
	s.carrPhaseRad = math.Mod(s.carrPhaseRad+float64(n)*carrStep, 2*math.Pi)
	s.codePhaseChips += float64(n) * codeStep
	return nil
}

func (s *Synthetic) Close() error { return nil }
