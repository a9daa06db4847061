package profiler

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStats(t *testing.T) {
	p := New()
	for i := 1; i <= 100; i++ {
		p.Record(StageScore, time.Duration(i)*time.Millisecond)
	}

	s := p.Stats(StageScore)
	if s.Count != 100 {
		t.Fatalf("Count = %d, expected 100", s.Count)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	if s.P95 != 96*time.Millisecond {
		t.Errorf("P95 = %v, expected 96ms", s.P95)
	}
	if s.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v, expected 100ms", s.P99)
	}
	if s.Average != 50500*time.Microsecond {
		t.Errorf("Average = %v, expected 50.5ms", s.Average)
	}
}

func TestSingleSample(t *testing.T) {
	p := New()
	p.Record(StagePredict, time.Second)

	s := p.Stats(StagePredict)
	if s.P95 != time.Second || s.P99 != time.Second || s.Median != time.Second {
		t.Errorf("single sample percentiles = %+v", s)
	}
	if got := p.Stats("unknown"); got.Count != 0 {
		t.Errorf("unknown stage Count = %d", got.Count)
	}
}

func TestNilProfilerTimer(t *testing.T) {
	var p *Profiler
	timer := p.Start(StageNormalize)
	if d := timer.Stop(); d < 0 {
		t.Errorf("negative duration %v", d)
	}
}

func TestWriteReport(t *testing.T) {
	p := New()
	var buf bytes.Buffer
	p.WriteReport(&buf)
	if !strings.Contains(buf.String(), "No timing data") {
		t.Errorf("empty report = %q", buf.String())
	}

	timer := p.Start(StageFeatures)
	timer.Stop()
	p.Record(StageNormalize, 1500*time.Nanosecond)

	buf.Reset()
	p.WriteReport(&buf)
	out := buf.String()
	for _, stage := range []string{StageFeatures, StageNormalize} {
		if !strings.Contains(out, stage) {
			t.Errorf("report missing stage %q", stage)
		}
	}

	p.Reset()
	if len(p.All()) != 0 {
		t.Error("Reset did not clear stages")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1.5μs"},
		{2500 * time.Microsecond, "2.50ms"},
		{1500 * time.Millisecond, "1.500s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, expected %q", tt.d, got, tt.expected)
		}
	}
}
