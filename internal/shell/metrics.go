package shell

import (
	"sort"
	"sync"
	"time"

	"github.com/dshills/lsp-shell/internal/command"
)

// OutcomeClass is the branch an outcome was rendered in.
type OutcomeClass uint8

const (
	// ClassSuccess is a result.
	ClassSuccess OutcomeClass = iota
	// ClassApplicationError is a JSON-RPC error from the server.
	ClassApplicationError
	// ClassTransportFailure is a failed exchange.
	ClassTransportFailure
)

// String returns a string representation of the class.
func (c OutcomeClass) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassApplicationError:
		return "application error"
	case ClassTransportFailure:
		return "transport failure"
	default:
		return "unknown"
	}
}

// Classify returns the class of o.
func Classify(o command.Outcome) OutcomeClass {
	switch o.(type) {
	case *command.Success:
		return ClassSuccess
	case *command.ApplicationError:
		return ClassApplicationError
	default:
		return ClassTransportFailure
	}
}

// Metrics collects request statistics for one shell run.
type Metrics struct {
	mu sync.RWMutex

	methods map[string]*MethodMetrics

	totalRequests      uint64
	totalNotifications uint64
	totalDuration      time.Duration
}

// MethodMetrics holds metrics for one LSP method.
type MethodMetrics struct {
	Method            string
	Requests          uint64
	ApplicationErrors uint64
	TransportFailures uint64
	TotalDuration     time.Duration
	MaxDuration       time.Duration
	LastClass         OutcomeClass
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		methods: make(map[string]*MethodMetrics),
	}
}

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(method string, duration time.Duration, class OutcomeClass) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.totalDuration += duration

	mm := m.methods[method]
	if mm == nil {
		mm = &MethodMetrics{Method: method}
		m.methods[method] = mm
	}

	mm.Requests++
	mm.TotalDuration += duration
	mm.LastClass = class
	if duration > mm.MaxDuration {
		mm.MaxDuration = duration
	}

	switch class {
	case ClassApplicationError:
		mm.ApplicationErrors++
	case ClassTransportFailure:
		mm.TransportFailures++
	}
}

// RecordNotification records one delivered notification.
func (m *Metrics) RecordNotification() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalNotifications++
}

// TotalRequests returns the number of completed requests.
func (m *Metrics) TotalRequests() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests
}

// TotalNotifications returns the number of delivered notifications.
func (m *Metrics) TotalNotifications() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalNotifications
}

// AverageDuration returns the average request duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalRequests == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalRequests)
}

// MethodStats returns a copy of the metrics for method, or nil.
func (m *Metrics) MethodStats(method string) *MethodMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mm := m.methods[method]
	if mm == nil {
		return nil
	}
	c := *mm
	return &c
}

// SlowestMethods returns the n methods with the highest average duration.
func (m *Metrics) SlowestMethods(n int) []*MethodMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*MethodMetrics, 0, len(m.methods))
	for _, mm := range m.methods {
		c := *mm
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		avgI := out[i].TotalDuration / time.Duration(out[i].Requests)
		avgJ := out[j].TotalDuration / time.Duration(out[j].Requests)
		if avgI == avgJ {
			return out[i].Method < out[j].Method
		}
		return avgI > avgJ
	})

	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}
