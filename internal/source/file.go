package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// adcScale converts 12-bit signed front-end samples to unit range.
const adcScale = 2048.0

// IQFile reads complex baseband samples from a file of interleaved
// little-endian int16 I/Q pairs, the common raw capture format of SDR
// front ends.
type IQFile struct {
	f   *os.File
	r   *bufio.Reader
	buf []byte
}

// OpenIQFile opens a raw IQ capture for streaming.
func OpenIQFile(path string) (*IQFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open IQ file: %w", err)
	}
	return &IQFile{f: f, r: bufio.NewReaderSize(f, 1<<16)}, nil
}

func (s *IQFile) Read(_ context.Context, n int) ([]complex64, error) {
	need := 4 * n
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]
	if _, err := io.ReadFull(s.r, b); err != nil {
		return nil, fmt.Errorf("read IQ file: %w", err)
	}
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		re := int16(binary.LittleEndian.Uint16(b[4*i:]))
		im := int16(binary.LittleEndian.Uint16(b[4*i+2:]))
		out[i] = complex(float32(re)/adcScale, float32(im)/adcScale)
	}
	return out, nil
}

func (s *IQFile) Skip(n int) error {
	if _, err := s.r.Discard(4 * n); err != nil {
		return fmt.Errorf("skip IQ file: %w", err)
	}
	return nil
}

func (s *IQFile) Close() error { return s.f.Close() }
