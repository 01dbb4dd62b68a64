package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CN0SNV estimates the carrier-to-noise-density ratio in dB-Hz from a
// window of prompt correlator outputs using the signal-to-noise-variance
// estimator: the squared mean of |I| approximates signal power, the mean
// of |P|^2 total power, and their gap the noise variance.
func CN0SNV(prompts []complex128, sampleRateHz float64, codeLengthChips float64) float64 {
	n := len(prompts)
	if n == 0 {
		return 0
	}
	absI := make([]float64, n)
	pow := make([]float64, n)
	for i, p := range prompts {
		absI[i] = math.Abs(real(p))
		pow[i] = magSq(p)
	}
	psig := floats.Sum(absI) / float64(n)
	psig *= psig
	ptot := floats.Sum(pow) / float64(n)
	if ptot <= psig {
		return 0
	}
	snr := psig / (ptot - psig)
	return 10*math.Log10(snr) + 10*math.Log10(sampleRateHz/2/codeLengthChips)
}

// CarrierLockStatistic computes the narrowband phase coherence test over
// a window of prompt outputs. Near 1 when the carrier loop holds the
// signal energy on the in-phase arm, near 0 when phase is incoherent.
func CarrierLockStatistic(prompts []complex128) float64 {
	if len(prompts) == 0 {
		return 0
	}
	is := make([]float64, len(prompts))
	qs := make([]float64, len(prompts))
	for i, p := range prompts {
		is[i] = real(p)
		qs[i] = imag(p)
	}
	sumI := floats.Sum(is)
	sumQ := floats.Sum(qs)
	nbp := sumI*sumI + sumQ*sumQ
	if nbp == 0 {
		return 0
	}
	nbd := sumI*sumI - sumQ*sumQ
	return nbd / nbp
}
