package tracking

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"
)

// DumpRecord is the fixed-schema diagnostic trace written once per
// epoch: the five tap magnitudes, prompt I/Q, loop state, and the raw
// and filtered discriminator outputs.
type DumpRecord struct {
	AbsVE, AbsE, AbsP, AbsL, AbsVL float32
	PromptI, PromptQ               float32
	SampleCount                    uint64
	CarrierPhaseRad                float32
	DopplerHz                      float32
	CodeFreqHz                     float32
	CarrierErr, CarrierErrFilt     float32
	CodeErr, CodeErrFilt           float32
	CN0DBHz                        float32
	LockStat                       float32
	RemCodePhase                   float32
	EpochEndSample                 float64
	PRN                            uint32
}

// DumpRecordSize is the on-disk size of one record in bytes:
// 17 float32 fields, the sample counter, the epoch end stamp, the PRN.
const DumpRecordSize = 17*4 + 8 + 8 + 4

// DumpWriter streams DumpRecords to a file in little-endian binary.
// Safe for use from one channel; the mutex guards the shared header
// buffer against accidental concurrent writers.
type DumpWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewDumpWriter creates (truncating) the trace file at path.
func NewDumpWriter(path string) (*DumpWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &DumpWriter{w: f, buf: make([]byte, DumpRecordSize)}, nil
}

// WriteEpoch appends one record.
func (dw *DumpWriter) WriteEpoch(rec DumpRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	b := dw.buf[:0]
	for _, v := range [...]float32{rec.AbsVE, rec.AbsE, rec.AbsP, rec.AbsL, rec.AbsVL, rec.PromptI, rec.PromptQ} {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	b = binary.LittleEndian.AppendUint64(b, rec.SampleCount)
	for _, v := range [...]float32{
		rec.CarrierPhaseRad, rec.DopplerHz, rec.CodeFreqHz,
		rec.CarrierErr, rec.CarrierErrFilt, rec.CodeErr, rec.CodeErrFilt,
		rec.CN0DBHz, rec.LockStat, rec.RemCodePhase,
	} {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(rec.EpochEndSample))
	b = binary.LittleEndian.AppendUint32(b, rec.PRN)

	_, err := dw.w.Write(b)
	return err
}

// Close closes the underlying file.
func (dw *DumpWriter) Close() error {
	if c, ok := dw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadDumpRecord decodes one record, the inverse of WriteEpoch. Used by
// trace inspection tooling and tests.
func ReadDumpRecord(b []byte) (DumpRecord, bool) {
	if len(b) < DumpRecordSize {
		return DumpRecord{}, false
	}
	var rec DumpRecord
	off := 0
	f32 := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		return v
	}
	rec.AbsVE, rec.AbsE, rec.AbsP, rec.AbsL, rec.AbsVL = f32(), f32(), f32(), f32(), f32()
	rec.PromptI, rec.PromptQ = f32(), f32()
	rec.SampleCount = binary.LittleEndian.Uint64(b[off:])
	off += 8
	rec.CarrierPhaseRad = f32()
	rec.DopplerHz = f32()
	rec.CodeFreqHz = f32()
	rec.CarrierErr, rec.CarrierErrFilt = f32(), f32()
	rec.CodeErr, rec.CodeErrFilt = f32(), f32()
	rec.CN0DBHz = f32()
	rec.LockStat = f32()
	rec.RemCodePhase = f32()
	rec.EpochEndSample = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	rec.PRN = binary.LittleEndian.Uint32(b[off:])
	return rec, true
}
