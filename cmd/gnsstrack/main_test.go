package main

import (
	"io"
	"testing"

	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
	"github.com/shangzhen6688/gnss-sdr/internal/logging"
)

func TestParseConfigDefaults(t *testing.T) {
	defaults := defaultPersistentConfig()
	cfg, err := parseConfig([]string{}, func(string) (string, bool) { return "", false }, defaults)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.signal != "gps-l1ca" || cfg.sampleRate != 4.092e6 || cfg.prn != 1 || cfg.pllBandwidth != 25 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestParseConfigEnvOverrides(t *testing.T) {
	env := map[string]string{
		"GNSST_SAMPLE_RATE": "2046000",
		"GNSST_PRN":         "22",
		"GNSST_SOURCE":      "file",
		"GNSST_SOURCE_PATH": "capture.bin",
		"GNSST_ACQ_DOPPLER": "-1250",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	defaults := defaultPersistentConfig()
	cfg, err := parseConfig([]string{"--pll-bw", "18"}, lookup, defaults)
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.sampleRate != 2.046e6 || cfg.prn != 22 || cfg.sourceBackend != "file" ||
		cfg.sourcePath != "capture.bin" || cfg.acqDoppler != -1250 || cfg.pllBandwidth != 18 {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
}

func TestSelectSourceError(t *testing.T) {
	logger := logging.New(logging.Error, false, io.Discard)
	if _, err := selectSource(cliConfig{sourceBackend: "unknown"}, gnss.SignalGPSL1CA, logger); err == nil {
		t.Fatalf("expected error for unknown source backend")
	}
}

func TestSelectSourceSynthetic(t *testing.T) {
	logger := logging.New(logging.Error, false, io.Discard)
	cfg := cliConfig{sourceBackend: "synthetic", prn: 4, sampleRate: 2.046e6}
	src, err := selectSource(cfg, gnss.SignalGPSL1CA, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src == nil {
		t.Fatalf("source should not be nil")
	}
	src.Close()
}
