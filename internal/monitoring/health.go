package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu          sync.RWMutex
	lastEvent   time.Time
	lastPrice   float64
	isConnected bool
	halted      bool
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastEvent   time.Time `json:"last_event"`
	LastPrice   float64   `json:"last_price"`
	IsConnected bool      `json:"is_connected"`
	Halted      bool      `json:"circuit_breaker_tripped"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RecordEvent marks a successfully processed market data event.
func (h *HealthChecker) RecordEvent(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvent = time.Now()
	h.lastPrice = price
	h.isConnected = true
	h.errors = h.errors[:0]
}

// RecordFailure notes a data or gateway failure.
func (h *HealthChecker) RecordFailure(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errors) < 10 {
		h.errors = append(h.errors, msg)
	}
}

// SetHalted reflects the account circuit breaker state.
func (h *HealthChecker) SetHalted(halted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = halted
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || time.Since(h.lastEvent) > 5*time.Minute {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastEvent:   h.lastEvent,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		Halted:      h.halted,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
