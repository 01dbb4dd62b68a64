package tracking

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDumpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.bin")
	dw, err := NewDumpWriter(path)
	if err != nil {
		t.Fatalf("NewDumpWriter: %v", err)
	}

	recs := []DumpRecord{
		{
			AbsVE: 10, AbsE: 20, AbsP: 100, AbsL: 21, AbsVL: 11,
			PromptI: 99.5, PromptQ: -0.25,
			SampleCount:     123456789,
			CarrierPhaseRad: -3.14,
			DopplerHz:       1234.5,
			CodeFreqHz:      1.023e6,
			CarrierErr:      0.01, CarrierErrFilt: 0.5,
			CodeErr: -0.002, CodeErrFilt: -0.1,
			CN0DBHz:        44.5,
			LockStat:       0.97,
			RemCodePhase:   -0.3,
			EpochEndSample: 2046.25,
			PRN:            17,
		},
		{}, // all-zero record must survive too
	}
	for _, rec := range recs {
		if err := dw.WriteEpoch(rec); err != nil {
			t.Fatalf("WriteEpoch: %v", err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(recs)*DumpRecordSize {
		t.Fatalf("file size = %d, want %d", len(data), len(recs)*DumpRecordSize)
	}

	for i, want := range recs {
		got, ok := ReadDumpRecord(data[i*DumpRecordSize:])
		if !ok {
			t.Fatalf("record %d: decode failed", i)
		}
		if got != want {
			t.Fatalf("record %d mismatch:\ngot  %+v\nwant %+v", i, got, want)
		}
	}
}

func TestReadDumpRecordShortBuffer(t *testing.T) {
	if _, ok := ReadDumpRecord(make([]byte, DumpRecordSize-1)); ok {
		t.Fatal("expected decode failure on a truncated buffer")
	}
}
