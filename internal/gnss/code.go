package gnss

import "fmt"

// G2 tap delays per PRN for the L1 C/A Gold code (IS-GPS-200, table 3-I).
var l1caDelay = [32]int{
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862,
}

// Code generates the spreading code for the given signal and PRN as a
// sequence of +/-1 chip values.
func Code(sig Signal, prn int) ([]float64, error) {
	if !sig.Valid() {
		return nil, fmt.Errorf("signal %d has no code generator", sig)
	}
	if !sig.ValidPRN(prn) {
		return nil, fmt.Errorf("%s: PRN %d out of range", sig, prn)
	}
	switch sig {
	case SignalGPSL1CA:
		return goldCode(prn), nil
	}
	return nil, fmt.Errorf("signal %d has no code generator", sig)
}

// goldCode runs the two 10-stage LFSRs of the C/A generator and combines
// them with the PRN-specific G2 delay.
func goldCode(prn int) []float64 {
	const n = 1023
	var r1, r2 [10]int8
	for i := range r1 {
		r1[i] = -1
		r2[i] = -1
	}
	g1 := make([]int8, n)
	g2 := make([]int8, n)
	for i := 0; i < n; i++ {
		g1[i] = r1[9]
		g2[i] = r2[9]
		c1 := r1[2] * r1[9]
		c2 := r2[1] * r2[2] * r2[5] * r2[7] * r2[8] * r2[9]
		copy(r1[1:], r1[:9])
		copy(r2[1:], r2[:9])
		r1[0] = c1
		r2[0] = c2
	}
	code := make([]float64, n)
	j := n - l1caDelay[prn-1]
	for i := 0; i < n; i++ {
		code[i] = float64(-g1[i] * g2[j%n])
		j++
	}
	return code
}

// SampledCode returns the local replica for the correlator bank: the
// spreading code sampled at two samples per chip with zero initial shift.
// The replica must be regenerated whenever tracking restarts, since the
// PRN may have changed.
func SampledCode(sig Signal, prn int) ([]float64, error) {
	code, err := Code(sig, prn)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 2*len(code))
	for i, chip := range code {
		out[2*i] = chip
		out[2*i+1] = chip
	}
	return out, nil
}
