package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/shangzhen6688/gnss-sdr/internal/logging"
)

// TCPStream reads interleaved little-endian int16 I/Q pairs from a
// network IQ server. Lost connections are re-established with
// exponential backoff; samples missed while disconnected are gone, so
// the consuming channel is expected to re-acquire after long outages.
type TCPStream struct {
	addr    string
	timeout time.Duration
	log     logging.Logger

	conn net.Conn
	buf  []byte
}

// DialIQ connects to an IQ streaming server at addr (host:port).
func DialIQ(addr string, logger logging.Logger) (*TCPStream, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TCPStream{addr: addr, timeout: 5 * time.Second, log: logger}
	if err := s.connect(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TCPStream) connect(ctx context.Context) error {
	op := func() error {
		c, err := net.DialTimeout("tcp", s.addr, s.timeout)
		if err != nil {
			s.log.Warn("IQ stream connect failed",
				logging.Field{Key: "addr", Value: s.addr},
				logging.Field{Key: "err", Value: err.Error()})
			return err
		}
		s.conn = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("connect IQ stream %s: %w", s.addr, err)
	}
	return nil
}

func (s *TCPStream) Read(ctx context.Context, n int) ([]complex64, error) {
	need := 4 * n
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]
	if err := s.readFull(ctx, b); err != nil {
		return nil, err
	}
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		re := int16(binary.LittleEndian.Uint16(b[4*i:]))
		im := int16(binary.LittleEndian.Uint16(b[4*i+2:]))
		out[i] = complex(float32(re)/adcScale, float32(im)/adcScale)
	}
	return out, nil
}

// readFull fills b from the connection, reconnecting once on error.
func (s *TCPStream) readFull(ctx context.Context, b []byte) error {
	read := func() error {
		if s.conn == nil {
			return fmt.Errorf("not connected")
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
		total := 0
		for total < len(b) {
			n, err := s.conn.Read(b[total:])
			total += n
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := read(); err != nil {
		s.log.Warn("IQ stream read failed, reconnecting",
			logging.Field{Key: "err", Value: err.Error()})
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		if err := s.connect(ctx); err != nil {
			return err
		}
		if err := read(); err != nil {
			return fmt.Errorf("read IQ stream: %w", err)
		}
	}
	return nil
}

func (s *TCPStream) Skip(n int) error {
	b := make([]byte, 4*n)
	return s.readFull(context.Background(), b)
}

func (s *TCPStream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
