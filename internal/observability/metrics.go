package observability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	MetricPreviewRuns     = "crystalball_preview_runs_total"
	MetricPreviewAborted  = "crystalball_preview_aborted_total"
	MetricSlotsEvaluated  = "crystalball_slots_evaluated_total"
	MetricSlotsFitting    = "crystalball_slots_fitting_total"
	MetricInventorySlots  = "crystalball_inventory_slots"
	MetricInventoryLoads  = "crystalball_inventory_loads_total"
	MetricHTTPRequests    = "crystalball_http_requests_total"
	metricNameReplacement = "crystalball_metric"
)

type MetricPoint struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

type Snapshot struct {
	Counters []MetricPoint `json:"counters"`
	Gauges   []MetricPoint `json:"gauges"`
}

type metricKind int

const (
	kindCounter metricKind = iota
	kindGauge
)

type series struct {
	kind   metricKind
	name   string
	labels map[string]string
	value  float64
}

// Registry holds in-process counters and gauges. Engines and servers get one
// injected; Default exists for binaries that only need a single registry.
type Registry struct {
	mu     sync.Mutex
	series map[string]*series
}

func NewRegistry() *Registry {
	return &Registry{series: make(map[string]*series)}
}

var Default = NewRegistry()

func (r *Registry) IncCounter(name string, labels map[string]string, delta float64) {
	if r == nil || delta == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(kindCounter, name, labels).value += delta
}

func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(kindGauge, name, labels).value = value
}

func (r *Registry) Counter(name string, labels map[string]string) float64 {
	return r.value(kindCounter, name, labels)
}

func (r *Registry) Gauge(name string, labels map[string]string) float64 {
	return r.value(kindGauge, name, labels)
}

func (r *Registry) value(kind metricKind, name string, labels map[string]string) float64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[seriesKey(kind, name, labels)]
	if !ok {
		return 0
	}
	return s.value
}

// lookup must be called with r.mu held.
func (r *Registry) lookup(kind metricKind, name string, labels map[string]string) *series {
	k := seriesKey(kind, name, labels)
	s, ok := r.series[k]
	if !ok {
		s = &series{kind: kind, name: name, labels: cloneLabels(labels)}
		r.series[k] = s
	}
	return s
}

func (r *Registry) Snapshot() Snapshot {
	out := Snapshot{Counters: []MetricPoint{}, Gauges: []MetricPoint{}}
	if r == nil {
		return out
	}
	r.mu.Lock()
	for _, s := range r.series {
		p := MetricPoint{Name: s.name, Labels: cloneLabels(s.labels), Value: s.value}
		if s.kind == kindCounter {
			out.Counters = append(out.Counters, p)
		} else {
			out.Gauges = append(out.Gauges, p)
		}
	}
	r.mu.Unlock()
	sortPoints(out.Counters)
	sortPoints(out.Gauges)
	return out
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = make(map[string]*series)
}

// RenderPrometheus writes the registry in the Prometheus text exposition
// format, one TYPE line per metric family.
func (r *Registry) RenderPrometheus() string {
	snap := r.Snapshot()
	var b strings.Builder
	writeFamilies(&b, "counter", snap.Counters)
	writeFamilies(&b, "gauge", snap.Gauges)
	return b.String()
}

func writeFamilies(b *strings.Builder, typ string, points []MetricPoint) {
	last := ""
	for _, p := range points {
		name := sanitizeMetricName(p.Name)
		if name != last {
			fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
			last = name
		}
		b.WriteString(name)
		if len(p.Labels) > 0 {
			b.WriteByte('{')
			for i, k := range sortedKeys(p.Labels) {
				if i > 0 {
					b.WriteByte(',')
				}
				fmt.Fprintf(b, "%s=%q", sanitizeMetricName(k), p.Labels[k])
			}
			b.WriteByte('}')
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Value, 'f', -1, 64))
		b.WriteByte('\n')
	}
}

func seriesKey(kind metricKind, name string, labels map[string]string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(kind)))
	b.WriteByte('|')
	b.WriteString(name)
	for _, k := range sortedKeys(labels) {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

func sortPoints(points []MetricPoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return seriesKey(0, "", points[i].Labels) < seriesKey(0, "", points[j].Labels)
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sanitizeMetricName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return metricNameReplacement
	}
	out := []byte(name)
	for i := 0; i < len(out); i++ {
		c := out[i]
		valid := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || (c >= '0' && c <= '9' && i > 0)
		if !valid {
			out[i] = '_'
		}
	}
	return string(out)
}
