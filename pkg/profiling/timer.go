// Package profiling records nested wall-clock spans and CPU/heap profiles for
// the pkgview commands.
package profiling

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Stopper ends a span.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	depth    int
	start    time.Time
	duration time.Duration
	profiler *Profiler
	once     sync.Once
}

func (s *span) Stop() {
	s.once.Do(func() { s.profiler.end(s) })
}

// Profiler collects spans in start order. Spans are expected to stop in
// reverse start order; depth follows that nesting.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	now     func() time.Time
	start   time.Time
	depth   int
	spans   []*span
}

// New returns an enabled profiler.
func New() *Profiler {
	p := &Profiler{now: time.Now}
	p.enable()
	return p
}

var defaultProfiler = &Profiler{now: time.Now}

// Enable turns on the process-wide profiler.
func Enable() {
	defaultProfiler.enable()
}

// Start begins a span on the process-wide profiler. It is a no-op until
// Enable is called.
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Summarize prints the process-wide spans.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

func (p *Profiler) enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.start = p.now()
}

// Start begins a span nested under the spans still running.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return noopStopper{}
	}
	s := &span{name: name, depth: p.depth, start: p.now(), profiler: p}
	p.spans = append(p.spans, s)
	p.depth++
	return s
}

func (p *Profiler) end(s *span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.duration = p.now().Sub(s.start)
	if p.depth > 0 {
		p.depth--
	}
}

// Summarize prints every span with its share of the time since the
// profiler was enabled.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}

	total := p.now().Sub(p.start)
	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, s := range p.spans {
		percentage := 0.0
		if total > 0 {
			percentage = float64(s.duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", s.depth), s.name, s.duration.Round(100*time.Microsecond), percentage)
	}
	fmt.Fprintf(w, "total %v\n", total.Round(100*time.Microsecond))
}

type noopStopper struct{}

func (noopStopper) Stop() {}
