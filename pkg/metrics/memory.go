package metrics

import (
	"sync"
	"time"
)

// Memory keeps running totals in process. The CLI and tests read them back
// through Snapshot.
type Memory struct {
	mu sync.RWMutex

	errorsByLevel map[string]int64
	filteredBy    map[string]int64
	sentByKind    map[string]int64
	failedByKind  map[string]int64
	totalSent     int64
	totalFailed   int64
	shed          int64
	taskFailures  int64
	reports       int64
	avgProcessing time.Duration
	maxProcessing time.Duration
	startTime     time.Time
}

// NewMemory creates an empty Memory observer
func NewMemory() *Memory {
	return &Memory{
		errorsByLevel: make(map[string]int64),
		filteredBy:    make(map[string]int64),
		sentByKind:    make(map[string]int64),
		failedByKind:  make(map[string]int64),
		startTime:     time.Now(),
	}
}

func (m *Memory) RecordError(level, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByLevel[level]++
}

func (m *Memory) RecordFiltered(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filteredBy[reason]++
}

func (m *Memory) RecordNotification(kind string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.totalSent++
		m.sentByKind[kind]++
		return
	}
	m.totalFailed++
	m.failedByKind[kind]++
}

func (m *Memory) RecordProcessingTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports++
	m.avgProcessing = time.Duration((int64(m.avgProcessing)*(m.reports-1) + int64(d)) / m.reports)
	if d > m.maxProcessing {
		m.maxProcessing = d
	}
}

func (m *Memory) RecordShed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shed++
}

func (m *Memory) RecordTaskFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskFailures++
}

// SuccessRate is the share of successful notifications, 1 when none were sent
func (m *Memory) SuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successRate()
}

func (m *Memory) successRate() float64 {
	total := m.totalSent + m.totalFailed
	if total == 0 {
		return 1.0
	}
	return float64(m.totalSent) / float64(total)
}

// Snapshot is a point-in-time copy of Memory
type Snapshot struct {
	ErrorsByLevel map[string]int64 `json:"errors_by_level"`
	FilteredBy    map[string]int64 `json:"filtered_by"`
	SentByKind    map[string]int64 `json:"sent_by_kind"`
	FailedByKind  map[string]int64 `json:"failed_by_kind"`
	TotalSent     int64            `json:"total_sent"`
	TotalFailed   int64            `json:"total_failed"`
	SuccessRate   float64          `json:"success_rate"`
	Shed          int64            `json:"shed"`
	TaskFailures  int64            `json:"task_failures"`
	AvgProcessing time.Duration    `json:"avg_processing"`
	MaxProcessing time.Duration    `json:"max_processing"`
	Uptime        time.Duration    `json:"uptime"`
}

// Snapshot copies the current totals
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		ErrorsByLevel: copyCounts(m.errorsByLevel),
		FilteredBy:    copyCounts(m.filteredBy),
		SentByKind:    copyCounts(m.sentByKind),
		FailedByKind:  copyCounts(m.failedByKind),
		TotalSent:     m.totalSent,
		TotalFailed:   m.totalFailed,
		SuccessRate:   m.successRate(),
		Shed:          m.shed,
		TaskFailures:  m.taskFailures,
		AvgProcessing: m.avgProcessing,
		MaxProcessing: m.maxProcessing,
		Uptime:        time.Since(m.startTime),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
