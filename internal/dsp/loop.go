package dsp

import "math"

// LoopFilter is a second-order loop filter realized with the bilinear
// transform, as used for both the carrier and code tracking loops. The
// natural frequency is derived from the requested noise bandwidth for a
// given damping factor and gain.
type LoopFilter struct {
	tau1, tau2 float64
	pdi        float64 // integration time in seconds
	prevErr    float64
	prevNCO    float64
}

// NewPLLFilter returns a carrier loop filter for the given noise
// bandwidth (Hz) and integration time (s). Damping 0.7, gain 0.25.
func NewPLLFilter(bwHz, pdi float64) *LoopFilter {
	return newLoopFilter(bwHz, 0.7, 0.25, pdi)
}

// NewDLLFilter returns a code loop filter for the given noise bandwidth
// (Hz) and integration time (s). Damping 0.7, unit gain.
func NewDLLFilter(bwHz, pdi float64) *LoopFilter {
	return newLoopFilter(bwHz, 0.7, 1.0, pdi)
}

func newLoopFilter(bwHz, zeta, k, pdi float64) *LoopFilter {
	wn := bwHz * 8 * zeta / (4*zeta*zeta + 1)
	return &LoopFilter{
		tau1: k / (wn * wn),
		tau2: 2 * zeta / wn,
		pdi:  pdi,
	}
}

// Reset clears the filter memory. Called when tracking (re)starts.
func (f *LoopFilter) Reset() {
	f.prevErr = 0
	f.prevNCO = 0
}

// Update feeds one discriminator sample through the filter and returns
// the new NCO command in the discriminator's unit per second.
func (f *LoopFilter) Update(err float64) float64 {
	nco := f.prevNCO +
		(f.tau2/f.tau1)*(err-f.prevErr) +
		(err+f.prevErr)*(f.pdi/(2*f.tau1))
	f.prevNCO = nco
	f.prevErr = err
	return nco
}

// PLLTwoQuadrantAtan is the costas-loop carrier phase discriminator.
// Two quadrant on purpose: a 180 degree flip from an unresolved data
// bit transition maps to zero error. Output in radians.
func PLLTwoQuadrantAtan(prompt complex128) float64 {
	if real(prompt) == 0 {
		return 0
	}
	return math.Atan(imag(prompt) / real(prompt))
}

// DLLVEMLNormalized is the noncoherent very-early-minus-late power
// discriminator over the four outer taps. Output is the code phase
// error in chips; the prompt tap does not participate.
func DLLVEMLNormalized(ve, e, l, vl complex128) float64 {
	early := math.Sqrt(magSq(ve) + magSq(e))
	late := math.Sqrt(magSq(l) + magSq(vl))
	if early+late == 0 {
		return 0
	}
	return (early - late) / (early + late)
}

func magSq(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}
