// Package profiler records per-stage latencies of the prediction pipeline.
package profiler

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Pipeline stage names recorded by the predictor.
const (
	StageNormalize = "normalize"
	StageFeatures  = "features"
	StageScore     = "score"
	StagePredict   = "predict"
	StageBatch     = "batch"
)

// Profiler collects durations per stage. Safe for concurrent use.
type Profiler struct {
	mu    sync.RWMutex
	times map[string][]time.Duration
}

func New() *Profiler {
	return &Profiler{
		times: make(map[string][]time.Duration),
	}
}

// Timer measures one stage execution.
type Timer struct {
	profiler *Profiler
	stage    string
	start    time.Time
}

// Start begins timing a stage. A nil Profiler returns a Timer that records nothing.
func (p *Profiler) Start(stage string) *Timer {
	return &Timer{
		profiler: p,
		stage:    stage,
		start:    time.Now(),
	}
}

// Stop records the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.profiler.Record(t.stage, elapsed)
	return elapsed
}

func (p *Profiler) Record(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.times[stage] = append(p.times[stage], d)
	p.mu.Unlock()
}

// Stats summarizes one stage.
type Stats struct {
	Stage   string        `json:"stage"`
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Median  time.Duration `json:"median"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

func (p *Profiler) Stats(stage string) Stats {
	p.mu.RLock()
	sorted := append([]time.Duration(nil), p.times[stage]...)
	p.mu.RUnlock()

	if len(sorted) == 0 {
		return Stats{Stage: stage}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return Stats{
		Stage:   stage,
		Count:   len(sorted),
		Total:   total,
		Average: total / time.Duration(len(sorted)),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  sorted[len(sorted)/2],
		P95:     percentile(sorted, 0.95),
		P99:     percentile(sorted, 0.99),
	}
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// All returns stats for every recorded stage, sorted by name.
func (p *Profiler) All() []Stats {
	p.mu.RLock()
	stages := make([]string, 0, len(p.times))
	for stage := range p.times {
		stages = append(stages, stage)
	}
	p.mu.RUnlock()

	sort.Strings(stages)

	out := make([]Stats, 0, len(stages))
	for _, stage := range stages {
		out = append(out, p.Stats(stage))
	}
	return out
}

func (p *Profiler) Reset() {
	p.mu.Lock()
	p.times = make(map[string][]time.Duration)
	p.mu.Unlock()
}

// WriteReport prints a latency table for all stages.
func (p *Profiler) WriteReport(w io.Writer) {
	all := p.All()
	if len(all) == 0 {
		fmt.Fprintln(w, "No timing data available")
		return
	}

	fmt.Fprintf(w, "⏱️  Pipeline Latency Report\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "%-12s %8s %10s %9s %9s %9s %9s %9s\n",
		"Stage", "Count", "Total", "Avg", "Min", "Max", "P95", "P99")
	fmt.Fprintf(w, "───────────────────────────────────────────────────────────────────────\n")

	for _, s := range all {
		fmt.Fprintf(w, "%-12s %8d %10s %9s %9s %9s %9s %9s\n",
			s.Stage, s.Count,
			FormatDuration(s.Total), FormatDuration(s.Average),
			FormatDuration(s.Min), FormatDuration(s.Max),
			FormatDuration(s.P95), FormatDuration(s.P99))
	}
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════════════\n")
}

// FormatDuration picks a unit that keeps the number short.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}
