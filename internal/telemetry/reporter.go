package telemetry

import (
	"github.com/shangzhen6688/gnss-sdr/internal/logging"
	"github.com/shangzhen6688/gnss-sdr/internal/tracking"
)

// Reporter captures per-epoch measurement records.
type Reporter interface {
	Report(m tracking.Measurement)
}

// MultiReporter fans out records to multiple destinations.
type MultiReporter []Reporter

func (mr MultiReporter) Report(m tracking.Measurement) {
	for _, r := range mr {
		if r != nil {
			r.Report(m)
		}
	}
}

// LogReporter writes tracking updates to the logger.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter builds a reporter over the provided logger.
func NewLogReporter(logger logging.Logger) LogReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return LogReporter{logger: logger}
}

func (r LogReporter) Report(m tracking.Measurement) {
	fields := []logging.Field{
		{Key: "channel", Value: m.Channel},
		{Key: "prn", Value: m.PRN},
		{Key: "sample_count", Value: m.SampleCount},
		{Key: "doppler_hz", Value: m.DopplerHz},
		{Key: "cn0_dbhz", Value: m.CN0DBHz},
		{Key: "valid", Value: m.Valid},
	}
	if m.PullIn {
		fields = append(fields, logging.Field{Key: "pull_in", Value: true},
			logging.Field{Key: "skip_samples", Value: m.SkipSamples})
	}
	r.logger.Info("tracking epoch", fields...)
}
