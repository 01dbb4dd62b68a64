package gnss

import (
	"math"
	"testing"
)

func TestParseSignal(t *testing.T) {
	cases := []struct {
		in      string
		want    Signal
		wantErr bool
	}{
		{in: "gps-l1ca", want: SignalGPSL1CA},
		{in: "L1CA", want: SignalGPSL1CA},
		{in: "l1ca", want: SignalGPSL1CA},
		{in: "galileo-e1b", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseSignal(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSignal(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSignal(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSignal(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSignalParameters(t *testing.T) {
	sig := SignalGPSL1CA
	if !sig.Valid() {
		t.Fatal("expected GPS L1 C/A to be a valid signal")
	}
	if got := sig.CodeLengthChips(); got != 1023 {
		t.Errorf("code length = %d, want 1023", got)
	}
	if got := sig.ChipRateHz(); got != 1.023e6 {
		t.Errorf("chip rate = %g, want 1.023e6", got)
	}
	if got := sig.CarrierFreqHz(); got != 1575.42e6 {
		t.Errorf("carrier frequency = %g, want 1575.42e6", got)
	}
	if got := sig.Constellation(); got != "GPS" {
		t.Errorf("constellation = %q, want GPS", got)
	}
	if got := sig.CodePeriod(); math.Abs(got-1e-3) > 1e-12 {
		t.Errorf("code period = %g, want 1ms", got)
	}
}

func TestValidPRN(t *testing.T) {
	sig := SignalGPSL1CA
	for _, prn := range []int{1, 17, 32} {
		if !sig.ValidPRN(prn) {
			t.Errorf("PRN %d: expected valid", prn)
		}
	}
	for _, prn := range []int{0, -3, 33, 100} {
		if sig.ValidPRN(prn) {
			t.Errorf("PRN %d: expected invalid", prn)
		}
	}
}

func TestInvalidSignal(t *testing.T) {
	var sig Signal = 99
	if sig.Valid() {
		t.Fatal("expected signal 99 to be invalid")
	}
	if sig.ValidPRN(1) {
		t.Fatal("expected ValidPRN to reject an unknown signal")
	}
}
