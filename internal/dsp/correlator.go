package dsp

import (
	"math"
	"math/cmplx"
)

// Tap identifies one correlator output within the five-tap bank.
type Tap int

const (
	TapVeryEarly Tap = iota
	TapEarly
	TapPrompt
	TapLate
	TapVeryLate
	NumTaps
)

func (t Tap) String() string {
	switch t {
	case TapVeryEarly:
		return "VE"
	case TapEarly:
		return "E"
	case TapPrompt:
		return "P"
	case TapLate:
		return "L"
	case TapVeryLate:
		return "VL"
	default:
		return "?"
	}
}

// rotator renormalization interval. The carrier rotator accumulates a
// tiny magnitude error each multiply; rescaling every block keeps it at
// unit modulus without a branch in the per-sample loop.
const rotatorBlock = 256

// Correlator is the five-tap carrier wipe-off and code resampling bank.
// It holds the local replica (two samples per chip) and the fixed tap
// offsets, symmetric around the prompt tap.
type Correlator struct {
	replica []float64
	offsets [NumTaps]float64 // in replica samples (half chips)
	outs    [NumTaps]complex128
}

// NewCorrelator builds a bank over the given replica with the requested
// early-late and very-early-late spacings in chips.
func NewCorrelator(replica []float64, earlyLateChips, veryEarlyLateChips float64) *Correlator {
	c := &Correlator{replica: replica}
	// chips -> replica samples at 2 samples per chip
	c.offsets[TapVeryEarly] = -2 * veryEarlyLateChips
	c.offsets[TapEarly] = -2 * earlyLateChips
	c.offsets[TapPrompt] = 0
	c.offsets[TapLate] = 2 * earlyLateChips
	c.offsets[TapVeryLate] = 2 * veryEarlyLateChips
	return c
}

// SetReplica swaps in a freshly generated replica. Accumulators are
// cleared, since sums against the old code are meaningless.
func (c *Correlator) SetReplica(replica []float64) {
	c.replica = replica
	c.Reset()
}

// Reset zeroes all five accumulators.
func (c *Correlator) Reset() {
	for i := range c.outs {
		c.outs[i] = 0
	}
}

// Outputs returns the current accumulator values.
func (c *Correlator) Outputs() [NumTaps]complex128 { return c.outs }

// Prompt returns the prompt tap accumulator.
func (c *Correlator) Prompt() complex128 { return c.outs[TapPrompt] }

// Accumulate performs carrier wipe-off and multi-tap code correlation
// over one block of input samples.
//
// carrPhaseRad is the residual carrier phase at the first sample and
// carrStepRad the phase advance per sample. codePhase is the residual
// code phase and codeStep the advance per sample, both in replica
// samples (half chips). Each tap accumulates
//
//	sum_n in[n] * exp(-j(phi + n*dphi)) * replica[floor(chi + n*dchi + offset) mod len]
//
// The per-sample loop is branch free apart from the replica index
// wraparound.
func (c *Correlator) Accumulate(in []complex64, carrPhaseRad, carrStepRad, codePhase, codeStep float64) [NumTaps]complex128 {
	n := len(in)
	clen := len(c.replica)
	if n == 0 || clen == 0 {
		return c.outs
	}

	rot := cmplx.Exp(complex(0, -carrPhaseRad))
	step := cmplx.Exp(complex(0, -carrStepRad))

	for base := 0; base < n; base += rotatorBlock {
		end := base + rotatorBlock
		if end > n {
			end = n
		}
		for i := base; i < end; i++ {
			wiped := complex128(in[i]) * rot
			rot *= step
			phase := codePhase + float64(i)*codeStep
			for t := Tap(0); t < NumTaps; t++ {
				idx := int(math.Floor(phase + c.offsets[t]))
				idx %= clen
				if idx < 0 {
					idx += clen
				}
				c.outs[t] += wiped * complex(c.replica[idx], 0)
			}
		}
		rot /= complex(cmplx.Abs(rot), 0)
	}
	return c.outs
}
