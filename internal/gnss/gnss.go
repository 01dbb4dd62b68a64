package gnss

import "fmt"

// Signal identifies a GNSS signal component that a channel can track.
// The set is closed: every signal known to the receiver has an entry in
// the parameter table below, and the tracking core reads all of its
// numeric constants from that table.
type Signal int

const (
	// SignalGPSL1CA is the GPS L1 coarse/acquisition signal.
	SignalGPSL1CA Signal = iota
)

// signalParams holds the per-signal constants used by the tracking loops.
type signalParams struct {
	name            string
	constellation   string
	codeLengthChips int
	chipRateHz      float64
	carrierFreqHz   float64
	minPRN, maxPRN  int
}

var signalTable = map[Signal]signalParams{
	SignalGPSL1CA: {
		name:            "GPS L1 C/A",
		constellation:   "GPS",
		codeLengthChips: 1023,
		chipRateHz:      1.023e6,
		carrierFreqHz:   1575.42e6,
		minPRN:          1,
		maxPRN:          32,
	},
}

func (s Signal) String() string {
	if p, ok := signalTable[s]; ok {
		return p.name
	}
	return "unknown"
}

// Constellation returns the human-readable constellation name.
func (s Signal) Constellation() string {
	if p, ok := signalTable[s]; ok {
		return p.constellation
	}
	return "unknown"
}

// Valid reports whether the signal has a parameter table entry.
func (s Signal) Valid() bool {
	_, ok := signalTable[s]
	return ok
}

// CodeLengthChips returns the spreading code length in chips.
func (s Signal) CodeLengthChips() int { return signalTable[s].codeLengthChips }

// ChipRateHz returns the nominal chipping rate.
func (s Signal) ChipRateHz() float64 { return signalTable[s].chipRateHz }

// CarrierFreqHz returns the nominal carrier frequency.
func (s Signal) CarrierFreqHz() float64 { return signalTable[s].carrierFreqHz }

// CodePeriod returns the duration of one full code sequence in seconds.
func (s Signal) CodePeriod() float64 {
	p := signalTable[s]
	return float64(p.codeLengthChips) / p.chipRateHz
}

// ValidPRN reports whether prn is assigned for this signal.
func (s Signal) ValidPRN(prn int) bool {
	p, ok := signalTable[s]
	if !ok {
		return false
	}
	return prn >= p.minPRN && prn <= p.maxPRN
}

// ParseSignal converts a CLI/config signal name to a Signal.
func ParseSignal(name string) (Signal, error) {
	switch name {
	case "gps-l1ca", "L1CA", "l1ca":
		return SignalGPSL1CA, nil
	default:
		return Signal(0), fmt.Errorf("unknown signal %q", name)
	}
}
