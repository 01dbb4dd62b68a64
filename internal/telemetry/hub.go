package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/shangzhen6688/gnss-sdr/internal/tracking"
)

// Sample is one telemetry point derived from a measurement record.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Channel     int       `json:"channel"`
	PRN         int       `json:"prn"`
	SampleCount uint64    `json:"sampleCount"`
	DopplerHz   float64   `json:"dopplerHz"`
	CN0DBHz     float64   `json:"cn0DbHz"`
	PromptI     float64   `json:"promptI"`
	PromptQ     float64   `json:"promptQ"`
	Valid       bool      `json:"valid"`
}

func sampleFrom(m tracking.Measurement) Sample {
	return Sample{
		Timestamp:   time.Now(),
		Channel:     m.Channel,
		PRN:         m.PRN,
		SampleCount: m.SampleCount,
		DopplerHz:   m.DopplerHz,
		CN0DBHz:     m.CN0DBHz,
		PromptI:     m.PromptI,
		PromptQ:     m.PromptQ,
		Valid:       m.Valid,
	}
}

// Hub collects measurement history and fans out live updates to
// subscribers. It implements Reporter.
type Hub struct {
	mu           sync.RWMutex
	history      []Sample
	historyLimit int
	subscribers  map[chan Sample]struct{}
}

// NewHub builds a telemetry hub keeping at most historyLimit samples.
func NewHub(historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Hub{
		historyLimit: historyLimit,
		subscribers:  make(map[chan Sample]struct{}),
	}
}

// Report records a new measurement and notifies subscribers. Slow
// subscribers drop samples rather than stalling the tracking loop.
func (h *Hub) Report(m tracking.Measurement) {
	sample := sampleFrom(m)

	h.mu.Lock()
	h.history = append(h.history, sample)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- sample:
		default:
		}
	}
	h.mu.Unlock()
}

// History returns a copy of stored samples.
func (h *Hub) History() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.history))
	copy(out, h.history)
	return out
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Sample, func()) {
	ch := make(chan Sample, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// RegisterHandlers mounts the hub's HTTP endpoints on mux.
func (h *Hub) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/history", h.handleHistory)
	mux.HandleFunc("/live", h.handleLive)
}

func (h *Hub) handleHistory(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History())
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	for _, sample := range h.History() {
		writeEvent(w, sample)
	}
	flusher.Flush()

	for {
		select {
		case sample, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, sample)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, sample Sample) {
	payload, _ := json.Marshal(sample)
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
