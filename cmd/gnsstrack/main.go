package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shangzhen6688/gnss-sdr/internal/app"
	"github.com/shangzhen6688/gnss-sdr/internal/gnss"
	"github.com/shangzhen6688/gnss-sdr/internal/logging"
	"github.com/shangzhen6688/gnss-sdr/internal/source"
	"github.com/shangzhen6688/gnss-sdr/internal/telemetry"
	"github.com/shangzhen6688/gnss-sdr/internal/tracking"
)

func main() {
	const configPath = "config.json"

	persistentCfg, err := loadOrCreateConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv, persistentCfg)
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	if err := saveConfig(configPath, persistentFromCLI(cfg)); err != nil {
		log.Fatalf("save config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		log.Fatalf("parse log level: %v", err)
	}
	logger := logging.New(level, false, os.Stderr)
	logging.SetDefault(logger)

	if cfg.discover {
		servers, err := source.Discover(5 * time.Second)
		if err != nil {
			log.Fatalf("discover: %v", err)
		}
		for _, s := range servers {
			fmt.Printf("%s\t%s\n", s.Instance, s.Addr())
		}
		return
	}

	sig, err := gnss.ParseSignal(cfg.signal)
	if err != nil {
		log.Fatalf("parse signal: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, err := selectSource(cfg, sig, logger)
	if err != nil {
		log.Fatalf("select source: %v", err)
	}
	defer src.Close()

	vectorLength := int(math.Round(sig.CodePeriod() * cfg.sampleRate))
	ch, err := tracking.NewChannel(tracking.Config{
		Signal:                  sig,
		SampleRateHz:            cfg.sampleRate,
		IFFreqHz:                cfg.ifFreq,
		PLLBandwidthHz:          cfg.pllBandwidth,
		DLLBandwidthHz:          cfg.dllBandwidth,
		EarlyLateSpaceChips:     cfg.earlyLateSpace,
		VeryEarlyLateSpaceChips: cfg.veryEarlyLateSpace,
		VectorLength:            vectorLength,
	}, logger)
	if err != nil {
		log.Fatalf("new channel: %v", err)
	}

	if cfg.dumpPath != "" {
		dump, err := tracking.NewDumpWriter(cfg.dumpPath)
		if err != nil {
			log.Fatalf("open dump: %v", err)
		}
		defer dump.Close()
		ch.SetDumpSink(dump)
	}

	var reporters []telemetry.Reporter
	if cfg.webAddr != "" {
		hub := telemetry.NewHub(cfg.historyLimit)
		reporters = append(reporters, hub)
		mux := http.NewServeMux()
		hub.RegisterHandlers(mux)
		srv := &http.Server{Addr: cfg.webAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("telemetry server: %v", err)
			}
		}()
		log.Printf("Telemetry: http://localhost%s/history", cfg.webAddr)
	} else {
		reporters = append(reporters, telemetry.NewLogReporter(logger))
	}

	runner := app.NewRunner(src, ch, telemetry.MultiReporter(reporters), logger, app.Config{
		Acquisition: tracking.Acquisition{
			PRN:              cfg.prn,
			CodePhaseSamples: cfg.acqCodePhase,
			DopplerHz:        cfg.acqDoppler,
		},
		MaxEpochs:     cfg.epochs,
		ReArmOnUnlock: cfg.rearm,
	})

	log.Printf("Tracking PRN %d (Ctrl+C to stop)...", cfg.prn)
	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("run: %v", err)
	}
}

type cliConfig struct {
	signal             string
	prn                int
	sampleRate         float64
	ifFreq             float64
	acqDoppler         float64
	acqCodePhase       float64
	pllBandwidth       float64
	dllBandwidth       float64
	earlyLateSpace     float64
	veryEarlyLateSpace float64
	epochs             int
	rearm              bool
	sourceBackend      string
	sourcePath         string
	sourceAddr         string
	discover           bool
	dumpPath           string
	historyLimit       int
	webAddr            string
	logLevel           string
}

type persistentConfig struct {
	Signal             string  `json:"signal"`
	PRN                int     `json:"prn"`
	SampleRate         float64 `json:"sample_rate"`
	IFFreq             float64 `json:"if_freq"`
	AcqDoppler         float64 `json:"acq_doppler"`
	AcqCodePhase       float64 `json:"acq_code_phase"`
	PLLBandwidth       float64 `json:"pll_bandwidth"`
	DLLBandwidth       float64 `json:"dll_bandwidth"`
	EarlyLateSpace     float64 `json:"early_late_space"`
	VeryEarlyLateSpace float64 `json:"very_early_late_space"`
	Epochs             int     `json:"epochs"`
	ReArm              bool    `json:"rearm"`
	SourceBackend      string  `json:"source_backend"`
	SourcePath         string  `json:"source_path"`
	SourceAddr         string  `json:"source_addr"`
	DumpPath           string  `json:"dump_path"`
	HistoryLimit       int     `json:"history_limit"`
	WebAddr            string  `json:"web_addr"`
	LogLevel           string  `json:"log_level"`
}

func parseConfig(args []string, lookup func(string) (string, bool), defaults persistentConfig) (cliConfig, error) {
	cfg := cliConfig{}
	fs := flag.NewFlagSet("gnsstrack", flag.ContinueOnError)
	fs.StringVar(&cfg.signal, "signal", envString(lookup, "GNSST_SIGNAL", defaults.Signal), "Signal to track (gps-l1ca)")
	fs.IntVar(&cfg.prn, "prn", envInt(lookup, "GNSST_PRN", defaults.PRN), "Satellite PRN")
	fs.Float64Var(&cfg.sampleRate, "sample-rate", envFloat(lookup, "GNSST_SAMPLE_RATE", defaults.SampleRate), "Sample rate in Hz")
	fs.Float64Var(&cfg.ifFreq, "if-freq", envFloat(lookup, "GNSST_IF_FREQ", defaults.IFFreq), "Intermediate frequency in Hz")
	fs.Float64Var(&cfg.acqDoppler, "acq-doppler", envFloat(lookup, "GNSST_ACQ_DOPPLER", defaults.AcqDoppler), "Acquisition Doppler estimate in Hz")
	fs.Float64Var(&cfg.acqCodePhase, "acq-code-phase", envFloat(lookup, "GNSST_ACQ_CODE_PHASE", defaults.AcqCodePhase), "Acquisition code phase in samples")
	fs.Float64Var(&cfg.pllBandwidth, "pll-bw", envFloat(lookup, "GNSST_PLL_BW", defaults.PLLBandwidth), "Carrier loop bandwidth in Hz")
	fs.Float64Var(&cfg.dllBandwidth, "dll-bw", envFloat(lookup, "GNSST_DLL_BW", defaults.DLLBandwidth), "Code loop bandwidth in Hz")
	fs.Float64Var(&cfg.earlyLateSpace, "el-space", envFloat(lookup, "GNSST_EL_SPACE", defaults.EarlyLateSpace), "Early-late correlator spacing in chips")
	fs.Float64Var(&cfg.veryEarlyLateSpace, "vel-space", envFloat(lookup, "GNSST_VEL_SPACE", defaults.VeryEarlyLateSpace), "Very-early-late correlator spacing in chips")
	fs.IntVar(&cfg.epochs, "epochs", envInt(lookup, "GNSST_EPOCHS", defaults.Epochs), "Number of epochs to process (0 = unlimited)")
	fs.BoolVar(&cfg.rearm, "rearm", defaults.ReArm, "Restart tracking from the acquisition hint after loss of lock")
	fs.StringVar(&cfg.sourceBackend, "source", envString(lookup, "GNSST_SOURCE", defaults.SourceBackend), "Sample source (synthetic|file|tcp)")
	fs.StringVar(&cfg.sourcePath, "source-path", envString(lookup, "GNSST_SOURCE_PATH", defaults.SourcePath), "Path to interleaved int16 IQ file")
	fs.StringVar(&cfg.sourceAddr, "source-addr", envString(lookup, "GNSST_SOURCE_ADDR", defaults.SourceAddr), "TCP IQ stream address")
	fs.BoolVar(&cfg.discover, "discover", false, "List IQ stream servers on the local network and exit")
	fs.StringVar(&cfg.dumpPath, "dump", envString(lookup, "GNSST_DUMP", defaults.DumpPath), "Optional binary dump file path")
	fs.IntVar(&cfg.historyLimit, "history-limit", envInt(lookup, "GNSST_HISTORY_LIMIT", defaults.HistoryLimit), "Maximum samples to keep in telemetry history")
	fs.StringVar(&cfg.webAddr, "web-addr", envString(lookup, "GNSST_WEB_ADDR", defaults.WebAddr), "Optional telemetry listen address (e.g. :8080)")
	fs.StringVar(&cfg.logLevel, "log-level", envString(lookup, "GNSST_LOG_LEVEL", defaults.LogLevel), "Log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func persistentFromCLI(cfg cliConfig) persistentConfig {
	return persistentConfig{
		Signal:             cfg.signal,
		PRN:                cfg.prn,
		SampleRate:         cfg.sampleRate,
		IFFreq:             cfg.ifFreq,
		AcqDoppler:         cfg.acqDoppler,
		AcqCodePhase:       cfg.acqCodePhase,
		PLLBandwidth:       cfg.pllBandwidth,
		DLLBandwidth:       cfg.dllBandwidth,
		EarlyLateSpace:     cfg.earlyLateSpace,
		VeryEarlyLateSpace: cfg.veryEarlyLateSpace,
		Epochs:             cfg.epochs,
		ReArm:              cfg.rearm,
		SourceBackend:      cfg.sourceBackend,
		SourcePath:         cfg.sourcePath,
		SourceAddr:         cfg.sourceAddr,
		DumpPath:           cfg.dumpPath,
		HistoryLimit:       cfg.historyLimit,
		WebAddr:            cfg.webAddr,
		LogLevel:           cfg.logLevel,
	}
}

func loadOrCreateConfig(path string) (persistentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultPersistentConfig()
			if saveErr := saveConfig(path, cfg); saveErr != nil {
				return persistentConfig{}, saveErr
			}
			return cfg, nil
		}
		return persistentConfig{}, err
	}
	defer f.Close()

	var cfg persistentConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return persistentConfig{}, err
	}
	return cfg, nil
}

func saveConfig(path string, cfg persistentConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func defaultPersistentConfig() persistentConfig {
	return persistentConfig{
		Signal:             "gps-l1ca",
		PRN:                1,
		SampleRate:         4.092e6,
		IFFreq:             0,
		AcqDoppler:         0,
		AcqCodePhase:       0,
		PLLBandwidth:       25,
		DLLBandwidth:       2,
		EarlyLateSpace:     0.25,
		VeryEarlyLateSpace: 0.5,
		Epochs:             0,
		ReArm:              false,
		SourceBackend:      "synthetic",
		SourcePath:         "",
		SourceAddr:         "",
		DumpPath:           "",
		HistoryLimit:       500,
		WebAddr:            ":8080",
		LogLevel:           "info",
	}
}

func envFloat(lookup func(string) (string, bool), key string, def float64) float64 {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(lookup func(string) (string, bool), key string, def int) int {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}

func selectSource(cfg cliConfig, sig gnss.Signal, logger logging.Logger) (source.Source, error) {
	switch cfg.sourceBackend {
	case "synthetic":
		return source.NewSynthetic(source.SyntheticConfig{
			Signal:           sig,
			PRN:              cfg.prn,
			SampleRateHz:     cfg.sampleRate,
			IFFreqHz:         cfg.ifFreq,
			DopplerHz:        cfg.acqDoppler,
			CodePhaseSamples: cfg.acqCodePhase,
			Amplitude:        1,
			NoiseSigma:       0.1,
		})
	case "file":
		return source.OpenIQFile(cfg.sourcePath)
	case "tcp":
		return source.DialIQ(cfg.sourceAddr, logger)
	default:
		return nil, fmt.Errorf("unknown source %s", cfg.sourceBackend)
	}
}
