package tracking

// Measurement is the per-epoch output record handed to the host. After
// emission the channel retains no reference to it.
type Measurement struct {
	Channel int
	PRN     int

	// SampleCount is the absolute sample count at the epoch start.
	SampleCount uint64
	// CodePhaseSamples is the residual code phase at that instant.
	CodePhaseSamples float64
	// CarrierPhaseRad is the accumulated (unwrapped) carrier phase.
	CarrierPhaseRad float64
	DopplerHz       float64
	CN0DBHz         float64
	PromptI         float64
	PromptQ         float64

	// Valid is set on steady-state epochs where the loops ran.
	Valid bool
	// PullIn marks the one-shot alignment record.
	PullIn bool
	// CodePeriods is the epoch duration in code periods.
	CodePeriods float64

	// RequestSamples is the block length the sample source must
	// deliver for the next invocation.
	RequestSamples int
	// SkipSamples is the number of samples the source must discard
	// before the next invocation (nonzero only on pull-in).
	SkipSamples int
}
