// Package source provides complex baseband sample sources for tracking
// channels: a synthetic signal generator, an interleaved int16 IQ file
// reader, and a TCP stream client with mDNS discovery.
package source

import "context"

// Source supplies complex baseband samples to a tracking channel. The
// host reads exactly the block length the channel requested for the
// next epoch, and skips samples when the channel's pull-in alignment
// asks for it.
type Source interface {
	// Read returns the next n samples. It blocks until n samples are
	// available or the context is canceled.
	Read(ctx context.Context, n int) ([]complex64, error)
	// Skip discards the next n samples from the stream.
	Skip(n int) error
	Close() error
}
