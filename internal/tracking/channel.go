package tracking

import (
	"fmt"
	"math"

	"github.com/shangzhen6688/gnss-sdr/internal/dsp"
	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
	"github.com/shangzhen6688/gnss-sdr/internal/logging"
)

const twoPi = 2 * math.Pi

// Config holds the per-channel tracking parameters. It is immutable
// after the channel is constructed.
type Config struct {
	Signal       gnss.Signal
	SampleRateHz float64
	IFFreqHz     float64 // carrier frequency offset of the baseband stream

	PLLBandwidthHz          float64
	DLLBandwidthHz          float64
	EarlyLateSpaceChips     float64
	VeryEarlyLateSpaceChips float64

	// VectorLength is the nominal epoch length in samples:
	// round(code period * sample rate).
	VectorLength int

	// Quality monitor parameters. Zero values select the defaults.
	CN0WindowEpochs int     // prompt window size, default 20
	MinCN0DBHz      float64 // default 25
	LockThreshold   float64 // default 0.85
	MaxLockFailures int     // default 50
}

const (
	defaultCN0Window       = 20
	defaultMinCN0DBHz      = 25
	defaultLockThreshold   = 0.85
	defaultMaxLockFailures = 50
)

func (c *Config) applyDefaults() {
	if c.CN0WindowEpochs == 0 {
		c.CN0WindowEpochs = defaultCN0Window
	}
	if c.MinCN0DBHz == 0 {
		c.MinCN0DBHz = defaultMinCN0DBHz
	}
	if c.LockThreshold == 0 {
		c.LockThreshold = defaultLockThreshold
	}
	if c.MaxLockFailures == 0 {
		c.MaxLockFailures = defaultMaxLockFailures
	}
}

func (c Config) validate() error {
	if !c.Signal.Valid() {
		return fmt.Errorf("tracking: unknown signal %d", c.Signal)
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("tracking: sample rate must be positive, got %g", c.SampleRateHz)
	}
	if c.PLLBandwidthHz <= 0 {
		return fmt.Errorf("tracking: PLL bandwidth must be positive, got %g", c.PLLBandwidthHz)
	}
	if c.DLLBandwidthHz <= 0 {
		return fmt.Errorf("tracking: DLL bandwidth must be positive, got %g", c.DLLBandwidthHz)
	}
	if c.EarlyLateSpaceChips <= 0 {
		return fmt.Errorf("tracking: early-late spacing must be positive, got %g", c.EarlyLateSpaceChips)
	}
	if c.VeryEarlyLateSpaceChips < c.EarlyLateSpaceChips {
		return fmt.Errorf("tracking: very-early-late spacing %g below early-late spacing %g",
			c.VeryEarlyLateSpaceChips, c.EarlyLateSpaceChips)
	}
	if c.VectorLength <= 0 {
		return fmt.Errorf("tracking: vector length must be positive, got %d", c.VectorLength)
	}
	if c.LockThreshold < 0 || c.LockThreshold > 1 {
		return fmt.Errorf("tracking: lock threshold %g outside [0,1]", c.LockThreshold)
	}
	return nil
}

// Acquisition is the coarse estimate handed over when tracking starts.
type Acquisition struct {
	PRN              int
	CodePhaseSamples float64
	DopplerHz        float64
	SampleStamp      uint64 // absolute sample count the estimate refers to
}

// EventSink receives loss-of-lock notifications.
type EventSink interface {
	LossOfLock(channel, prn int)
}

// EventFunc adapts a function to the EventSink interface.
type EventFunc func(channel, prn int)

func (f EventFunc) LossOfLock(channel, prn int) { f(channel, prn) }

// DumpSink receives one diagnostic record per epoch. Write failures are
// reported by the channel's logger and never interrupt tracking.
type DumpSink interface {
	WriteEpoch(DumpRecord) error
}

// Channel tracks one satellite signal: it closes the carrier and code
// loops around the correlator bank, frames variable-length epochs, and
// watches signal quality. It is not safe for concurrent use; the host
// must invoke ProcessEpoch serially.
type Channel struct {
	cfg Config
	log logging.Logger
	id  int

	events EventSink
	dump   DumpSink

	corr       *dsp.Correlator
	carrFilter *dsp.LoopFilter
	codeFilter *dsp.LoopFilter

	acq Acquisition

	// carrier state
	dopplerHz       float64
	remCarrPhaseRad float64
	accCarrPhaseRad float64

	// code state
	codeFreqHz          float64
	remCodePhaseSamples float64
	accCodePhaseSecs    float64

	// epoch framing
	epochSamples  int
	sampleCounter uint64

	enabled bool
	pullIn  bool

	// quality monitor
	promptWindow []complex128
	windowFill   int
	windowIdx    int
	cn0DBHz      float64
	lockStat     float64
	lockFails    int
}

// NewChannel validates the configuration and builds an idle channel.
// StartTracking must be called before the first epoch.
func NewChannel(cfg Config, logger logging.Logger) (*Channel, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	ch := &Channel{
		cfg:          cfg,
		log:          logger,
		corr:         dsp.NewCorrelator(nil, cfg.EarlyLateSpaceChips, cfg.VeryEarlyLateSpaceChips),
		carrFilter:   dsp.NewPLLFilter(cfg.PLLBandwidthHz, cfg.Signal.CodePeriod()),
		codeFilter:   dsp.NewDLLFilter(cfg.DLLBandwidthHz, cfg.Signal.CodePeriod()),
		promptWindow: make([]complex128, cfg.CN0WindowEpochs),
		epochSamples: cfg.VectorLength,
		lockStat:     1,
	}
	return ch, nil
}

// SetChannelID assigns the opaque channel number used in logs and
// notifications. It has no effect on the tracking math.
func (ch *Channel) SetChannelID(id int) {
	ch.id = id
	ch.log = ch.log.With(logging.Field{Key: "channel", Value: id})
}

// SetEventSink installs the loss-of-lock notification target.
func (ch *Channel) SetEventSink(s EventSink) { ch.events = s }

// SetDumpSink installs the per-epoch diagnostic sink.
func (ch *Channel) SetDumpSink(s DumpSink) { ch.dump = s }

// ChannelID returns the assigned channel number.
func (ch *Channel) ChannelID() int { return ch.id }

// Enabled reports whether the tracking loops run on the next epoch.
func (ch *Channel) Enabled() bool { return ch.enabled }

// PullInPending reports whether the next ProcessEpoch call performs the
// one-shot alignment. The alignment consumes no input samples; hosts
// may pass an empty block for that call.
func (ch *Channel) PullInPending() bool { return ch.enabled && ch.pullIn }

// CN0DBHz returns the latest CN0 estimate.
func (ch *Channel) CN0DBHz() float64 { return ch.cn0DBHz }

// LockStatistic returns the latest carrier lock test value.
func (ch *Channel) LockStatistic() float64 { return ch.lockStat }

// DopplerHz returns the current carrier Doppler estimate.
func (ch *Channel) DopplerHz() float64 { return ch.dopplerHz }

// CodeFreqHz returns the current code frequency estimate.
func (ch *Channel) CodeFreqHz() float64 { return ch.codeFreqHz }

// StartTracking arms the channel with an acquisition estimate. The
// local replica is regenerated for the given PRN, loop filters and all
// phase accumulators are reset, and the next ProcessEpoch performs the
// one-shot pull-in alignment.
func (ch *Channel) StartTracking(acq Acquisition) error {
	if !ch.cfg.Signal.ValidPRN(acq.PRN) {
		return fmt.Errorf("tracking: %s: PRN %d out of range", ch.cfg.Signal, acq.PRN)
	}
	replica, err := gnss.SampledCode(ch.cfg.Signal, acq.PRN)
	if err != nil {
		return fmt.Errorf("tracking: generate replica: %w", err)
	}
	ch.corr.SetReplica(replica)

	ch.acq = acq
	ch.carrFilter.Reset()
	ch.codeFilter.Reset()

	ch.dopplerHz = acq.DopplerHz
	ch.remCarrPhaseRad = 0
	ch.accCarrPhaseRad = 0
	ch.codeFreqHz = ch.cfg.Signal.ChipRateHz()
	ch.remCodePhaseSamples = 0
	ch.accCodePhaseSecs = 0
	ch.epochSamples = ch.cfg.VectorLength

	ch.windowFill = 0
	ch.windowIdx = 0
	ch.lockFails = 0
	ch.cn0DBHz = 0
	ch.lockStat = 1

	ch.pullIn = true
	ch.enabled = true

	ch.log.Info("tracking started",
		logging.Field{Key: "signal", Value: ch.cfg.Signal.String()},
		logging.Field{Key: "constellation", Value: ch.cfg.Signal.Constellation()},
		logging.Field{Key: "prn", Value: acq.PRN},
		logging.Field{Key: "doppler_hz", Value: acq.DopplerHz},
		logging.Field{Key: "code_phase_samples", Value: acq.CodePhaseSamples})
	return nil
}

// Disable stops the tracking loops at the next epoch boundary. Records
// keep flowing with Valid cleared until StartTracking is called again.
func (ch *Channel) Disable() { ch.enabled = false }

// ProcessEpoch runs one epoch of tracking over the supplied sample
// block and returns the measurement record. Exactly one record is
// produced per call in every state. The record's RequestSamples and
// SkipSamples fields carry the contract the sample source must honor
// before the next call.
func (ch *Channel) ProcessEpoch(in []complex64) Measurement {
	m := Measurement{
		Channel:        ch.id,
		PRN:            ch.acq.PRN,
		SampleCount:    ch.sampleCounter,
		CodePeriods:    1,
		RequestSamples: ch.epochSamples,
	}

	if !ch.enabled {
		ch.corr.Reset()
		ch.writeDump(m, 0, 0, 0, 0)
		ch.sampleCounter += uint64(ch.epochSamples)
		return m
	}

	if ch.pullIn {
		return ch.alignToEpoch(&m)
	}

	n := ch.epochSamples
	if len(in) < n {
		ch.log.Warn("short sample block",
			logging.Field{Key: "want", Value: n},
			logging.Field{Key: "got", Value: len(in)})
		n = len(in)
	}
	if n == 0 {
		return m
	}

	// Carrier wipe-off and five-tap correlation. Code phase is handed
	// to the resampler in replica samples (half chips).
	carrStepRad := twoPi * (ch.cfg.IFFreqHz + ch.dopplerHz) / ch.cfg.SampleRateHz
	codeStepHalfChips := 2 * ch.codeFreqHz / ch.cfg.SampleRateHz
	remCodeHalfChips := ch.remCodePhaseSamples * codeStepHalfChips
	ch.corr.Reset()
	taps := ch.corr.Accumulate(in[:n], ch.remCarrPhaseRad, carrStepRad, remCodeHalfChips, codeStepHalfChips)
	prompt := taps[dsp.TapPrompt]

	// Carrier loop. The Doppler estimate stays anchored to the
	// acquisition value; the filter output is a correction on top.
	carrErrCycles := dsp.PLLTwoQuadrantAtan(prompt) / twoPi
	carrErrFiltHz := ch.carrFilter.Update(carrErrCycles)
	ch.dopplerHz = ch.acq.DopplerHz + carrErrFiltHz

	// Code loop, carrier aided.
	chipRate := ch.cfg.Signal.ChipRateHz()
	ch.codeFreqHz = chipRate + ch.dopplerHz*chipRate/ch.cfg.Signal.CarrierFreqHz()

	epochFrac := float64(n) / ch.cfg.SampleRateHz
	ch.accCarrPhaseRad -= twoPi * ch.dopplerHz * epochFrac
	ch.remCarrPhaseRad = math.Mod(ch.remCarrPhaseRad+twoPi*(ch.cfg.IFFreqHz+ch.dopplerHz)*epochFrac, twoPi)

	codeErrChips := dsp.DLLVEMLNormalized(taps[dsp.TapVeryEarly], taps[dsp.TapEarly], taps[dsp.TapLate], taps[dsp.TapVeryLate])
	codeErrFiltChips := ch.codeFilter.Update(codeErrChips)
	codeErrFiltSecs := ch.cfg.Signal.CodePeriod() * codeErrFiltChips / chipRate
	ch.accCodePhaseSecs += codeErrFiltSecs

	// Epoch framer: length of the next block from the updated code
	// frequency, the carried residual, and the filtered code error.
	tPrnSamples := float64(ch.cfg.Signal.CodeLengthChips()) / ch.codeFreqHz * ch.cfg.SampleRateHz
	kBlkSamples := tPrnSamples + ch.remCodePhaseSamples + codeErrFiltSecs*ch.cfg.SampleRateHz
	nextSamples := int(math.Round(kBlkSamples))

	ch.updateQuality(prompt)

	m.PromptI = real(prompt)
	m.PromptQ = imag(prompt)
	m.CodePhaseSamples = ch.remCodePhaseSamples
	m.CarrierPhaseRad = ch.accCarrPhaseRad
	m.DopplerHz = ch.dopplerHz
	m.CN0DBHz = ch.cn0DBHz
	m.Valid = true
	m.RequestSamples = nextSamples

	// Residual for the next epoch is the rounding remainder, below one
	// sample in magnitude.
	ch.remCodePhaseSamples = kBlkSamples - float64(nextSamples)

	ch.writeDump(m, carrErrCycles, carrErrFiltHz, codeErrChips, codeErrFiltChips)

	ch.sampleCounter += uint64(n)
	ch.epochSamples = nextSamples
	return m
}

// alignToEpoch performs the one-shot pull-in: it converts the
// acquisition code phase and sample stamp into a skip count that puts
// the next block exactly on a code epoch boundary.
func (ch *Channel) alignToEpoch(m *Measurement) Measurement {
	// Signed: the acquisition stamp may lie ahead of the channel's
	// counter, and the negative delay must survive into the modulo.
	delay := int64(ch.sampleCounter) - int64(ch.acq.SampleStamp)
	correction := float64(ch.epochSamples) - math.Mod(float64(delay), float64(ch.epochSamples))
	offset := int(math.Round(ch.acq.CodePhaseSamples + correction))

	ch.sampleCounter += uint64(offset)
	ch.pullIn = false

	m.PullIn = true
	m.SkipSamples = offset
	m.SampleCount = ch.sampleCounter
	m.DopplerHz = ch.acq.DopplerHz
	m.CodePhaseSamples = ch.acq.CodePhaseSamples
	m.RequestSamples = ch.epochSamples

	ch.log.Info("pull-in complete",
		logging.Field{Key: "prn", Value: ch.acq.PRN},
		logging.Field{Key: "skip_samples", Value: offset})
	return *m
}

// updateQuality feeds the prompt into the sliding window and, once per
// full window, refreshes CN0 and the carrier lock statistic and steps
// the hysteresis fail counter.
func (ch *Channel) updateQuality(prompt complex128) {
	ch.promptWindow[ch.windowIdx] = prompt
	ch.windowIdx = (ch.windowIdx + 1) % len(ch.promptWindow)
	ch.windowFill++
	if ch.windowFill < len(ch.promptWindow) {
		return
	}
	ch.windowFill = 0

	ch.cn0DBHz = dsp.CN0SNV(ch.promptWindow, ch.cfg.SampleRateHz, float64(ch.cfg.Signal.CodeLengthChips()))
	ch.lockStat = dsp.CarrierLockStatistic(ch.promptWindow)

	if ch.lockStat < ch.cfg.LockThreshold || ch.cn0DBHz < ch.cfg.MinCN0DBHz {
		ch.lockFails++
	} else if ch.lockFails > 0 {
		ch.lockFails--
	}
	if ch.lockFails > ch.cfg.MaxLockFailures {
		ch.log.Warn("loss of lock",
			logging.Field{Key: "prn", Value: ch.acq.PRN},
			logging.Field{Key: "cn0_dbhz", Value: ch.cn0DBHz},
			logging.Field{Key: "lock_stat", Value: ch.lockStat})
		if ch.events != nil {
			ch.events.LossOfLock(ch.id, ch.acq.PRN)
		}
		ch.lockFails = 0
		ch.enabled = false
	}
}

// writeDump forwards the epoch's diagnostics to the dump sink. Sink
// errors are logged and swallowed.
func (ch *Channel) writeDump(m Measurement, carrErr, carrErrFilt, codeErr, codeErrFilt float64) {
	if ch.dump == nil {
		return
	}
	taps := ch.corr.Outputs()
	rec := DumpRecord{
		AbsVE:           float32(cmplxAbs(taps[dsp.TapVeryEarly])),
		AbsE:            float32(cmplxAbs(taps[dsp.TapEarly])),
		AbsP:            float32(cmplxAbs(taps[dsp.TapPrompt])),
		AbsL:            float32(cmplxAbs(taps[dsp.TapLate])),
		AbsVL:           float32(cmplxAbs(taps[dsp.TapVeryLate])),
		PromptI:         float32(m.PromptI),
		PromptQ:         float32(m.PromptQ),
		SampleCount:     m.SampleCount,
		CarrierPhaseRad: float32(ch.accCarrPhaseRad),
		DopplerHz:       float32(ch.dopplerHz),
		CodeFreqHz:      float32(ch.codeFreqHz),
		CarrierErr:      float32(carrErr),
		CarrierErrFilt:  float32(carrErrFilt),
		CodeErr:         float32(codeErr),
		CodeErrFilt:     float32(codeErrFilt),
		CN0DBHz:         float32(ch.cn0DBHz),
		LockStat:        float32(ch.lockStat),
		RemCodePhase:    float32(ch.remCodePhaseSamples),
		EpochEndSample:  float64(ch.sampleCounter) + float64(ch.epochSamples),
		PRN:             uint32(ch.acq.PRN),
	}
	if err := ch.dump.WriteEpoch(rec); err != nil {
		ch.log.Warn("dump write failed", logging.Field{Key: "err", Value: err.Error()})
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
