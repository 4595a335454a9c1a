package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Metrics is a set of monotonically increasing counters. Gauges (active
// sessions, workflow states) are read from the stores at scrape time rather
// than tracked here.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.counters[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// RenderText formats counters plus the supplied gauges as sorted
// "name value" lines.
func (m *Metrics) RenderText(gauges map[string]int64) string {
	m.mu.Lock()
	merged := make(map[string]int64, len(m.counters)+len(gauges))
	for k, v := range m.counters {
		merged[k] = v
	}
	m.mu.Unlock()
	for k, v := range gauges {
		merged[k] = v
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s %d\n", name, merged[name])
	}
	return b.String()
}
