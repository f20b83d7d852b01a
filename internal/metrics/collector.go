// Package metrics exposes briefing counters, gauges and histograms in the
// Prometheus text exposition format.
package metrics

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry served at the metrics endpoint.
var Collector = NewRegistry()

// Registry holds metric families by name. Each family has one series per
// label set, e.g. `provider="gemini"`.
type Registry struct {
	started time.Time

	mu       sync.Mutex
	families map[string]*family
}

type family struct {
	name, help, kind string
	series           map[string]writerTo // by label set
}

// writerTo renders the sample lines of one series.
type writerTo interface {
	writeSamples(w io.Writer, name, labels string)
}

func NewRegistry() *Registry {
	return &Registry{started: time.Now(), families: map[string]*family{}}
}

// Uptime is the time since the registry was created.
func (r *Registry) Uptime() time.Duration { return time.Since(r.started) }

// lookup returns the series name{labels}, creating it with create on first use.
func (r *Registry) lookup(name, help, kind, labels string, create func() writerTo) writerTo {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.families[name]
	if f == nil {
		f = &family{name: name, help: help, kind: kind, series: map[string]writerTo{}}
		r.families[name] = f
	}
	s := f.series[labels]
	if s == nil {
		s = create()
		f.series[labels] = s
	}
	return s
}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()          { c.n.Add(1) }
func (c *Counter) Add(n int64)   { c.n.Add(n) }
func (c *Counter) Value() int64 { return c.n.Load() }

func (c *Counter) writeSamples(w io.Writer, name, labels string) {
	fmt.Fprintf(w, "%s %d\n", withLabels(name, labels), c.Value())
}

// Gauge is a value that goes up and down.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

func (g *Gauge) writeSamples(w io.Writer, name, labels string) {
	fmt.Fprintf(w, "%s %d\n", withLabels(name, labels), g.Value())
}

// Histogram counts observations into cumulative buckets. The last bound is
// always +Inf.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []int64
	total  int64
	sum    float64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }

func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func (h *Histogram) writeSamples(w io.Writer, name, labels string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prefix := ""
	if labels != "" {
		prefix = labels + ","
	}
	for i, le := range h.bounds {
		bound := "+Inf"
		if !math.IsInf(le, 1) {
			bound = strconv.FormatFloat(le, 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s_bucket{%sle=%q} %d\n", name, prefix, bound, h.counts[i])
	}
	fmt.Fprintf(w, "%s %d\n", withLabels(name+"_count", labels), h.total)
	fmt.Fprintf(w, "%s %g\n", withLabels(name+"_sum", labels), h.sum)
}

// Counter returns the counter name{labels}. Calls with the same name and
// labels share one counter.
func (r *Registry) Counter(name, help, labels string) *Counter {
	return r.lookup(name, help, "counter", labels, func() writerTo { return &Counter{} }).(*Counter)
}

func (r *Registry) Gauge(name, help, labels string) *Gauge {
	return r.lookup(name, help, "gauge", labels, func() writerTo { return &Gauge{} }).(*Gauge)
}

// Histogram returns the histogram name{labels} with the given upper bounds.
// The bounds of the first call win.
func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	return r.lookup(name, help, "histogram", labels, func() writerTo {
		b := slices.Sorted(slices.Values(bounds))
		if len(b) == 0 || !math.IsInf(b[len(b)-1], 1) {
			b = append(b, math.Inf(1))
		}
		return &Histogram{bounds: b, counts: make([]int64, len(b))}
	}).(*Histogram)
}

func withLabels(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

// Expose renders every family, sorted by name, after the uptime gauge.
func (r *Registry) Expose(w io.Writer) {
	fmt.Fprintf(w, "# HELP stadthirsch_uptime_seconds Time since start in seconds\n"+
		"# TYPE stadthirsch_uptime_seconds gauge\nstadthirsch_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	r.mu.Lock()
	families := make([]*family, 0, len(r.families))
	for _, f := range r.families {
		families = append(families, f)
	}
	r.mu.Unlock()
	slices.SortFunc(families, func(a, b *family) int { return cmp.Compare(a.name, b.name) })

	for _, f := range families {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
		r.mu.Lock()
		labelSets := slices.Sorted(maps.Keys(f.series))
		series := make([]writerTo, len(labelSets))
		for i, l := range labelSets {
			series[i] = f.series[l]
		}
		r.mu.Unlock()
		for i, s := range series {
			s.writeSamples(w, f.name, labelSets[i])
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Expose(w)
	}
}

var (
	MessagesTotal       = Collector.Counter("stadthirsch_messages_total", "Client messages accepted", "")
	MessagesRejected    = Collector.Counter("stadthirsch_messages_rejected_total", "Client messages rejected as malformed or rate limited", "")
	LLMRequestsTotal    = Collector.Counter("stadthirsch_llm_requests_total", "LLM chain invocations", "")
	LLMFailures         = Collector.Counter("stadthirsch_llm_failures_total", "LLM chain invocations without a reply", "")
	LLMTimeouts         = Collector.Counter("stadthirsch_llm_timeouts_total", "LLM chain invocations cancelled by the deadline", "")
	FallbackReplies     = Collector.Counter("stadthirsch_fallback_replies_total", "Replies served from the fallback text", "")
	PersistenceErrors   = Collector.Counter("stadthirsch_persistence_errors_total", "Failed memory store operations", "")
	CasesDetected       = Collector.Counter("stadthirsch_cases_detected_total", "Conversations assigned a case", "")
	BriefingsComplete   = Collector.Counter("stadthirsch_briefings_complete_total", "Briefings that reached full confidence", "")
	BriefingsConfirmed  = Collector.Counter("stadthirsch_briefings_confirmed_total", "Briefings confirmed by the client", "")
	ExportsTotal        = Collector.Counter("stadthirsch_exports_total", "Briefing documents written", "")
	ActiveConversations = Collector.Gauge("stadthirsch_active_conversations", "Conversations held in memory", "")

	LLMLatency = Collector.Histogram("stadthirsch_llm_latency_seconds", "LLM chain latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 15, 25})
	ResearchLatency = Collector.Histogram("stadthirsch_research_latency_seconds", "Website research latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10})
)
