package metrics

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const (
	requestsMetric    = "http_server_requests_seconds"
	requestsMaxMetric = "http_server_requests_seconds_max"
)

// Metrics agrupa el registro Prometheus del servicio y las métricas HTTP.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.HistogramVec
	maxDur   *prometheus.GaugeVec

	mu  sync.Mutex
	max map[string]float64
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    requestsMetric,
			Help:    "HTTP server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "uri", "status"}),
		maxDur: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: requestsMaxMetric,
			Help: "Maximum HTTP server request duration in seconds",
		}, []string{"method", "uri", "status"}),
		max: make(map[string]float64),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.maxDur,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe registra la duración de una petición.
func (m *Metrics) Observe(method, uri string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	secs := d.Seconds()
	m.requests.WithLabelValues(method, uri, code).Observe(secs)

	key := method + " " + uri + " " + code
	m.mu.Lock()
	defer m.mu.Unlock()
	if secs > m.max[key] {
		m.max[key] = secs
		m.maxDur.WithLabelValues(method, uri, code).Set(secs)
	}
}

// Handler expone el formato de texto de Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type requestStats struct {
	Count float64 `json:"count"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// Snapshot resume las familias recolectadas para /management/metrics.
// Los tiempos se expresan en milisegundos.
func (m *Metrics) Snapshot() (map[string]any, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	return map[string]any{
		"memory":               memoryMetrics(families),
		"http.server.requests": httpRequestsMetrics(byName),
		"services":             serviceMetrics(byName),
		"garbageCollector":     garbageCollectorMetrics(byName),
		"processMetrics":       processMetrics(families),
	}, nil
}

func memoryMetrics(families []*dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, f := range families {
		name := f.GetName()
		if !strings.HasPrefix(name, "go_memstats_") {
			continue
		}
		if v, ok := scalar(f); ok {
			out[strings.TrimPrefix(name, "go_memstats_")] = v
		}
	}
	return out
}

func processMetrics(families []*dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, f := range families {
		name := f.GetName()
		if !strings.HasPrefix(name, "process_") && name != "go_goroutines" && name != "go_threads" {
			continue
		}
		if v, ok := scalar(f); ok {
			out[name] = v
		}
	}
	return out
}

func garbageCollectorMetrics(byName map[string]*dto.MetricFamily) map[string]any {
	out := make(map[string]any)
	f, ok := byName["go_gc_duration_seconds"]
	if !ok || len(f.GetMetric()) == 0 {
		out["gc.pause"] = map[string]float64{}
		return out
	}
	s := f.GetMetric()[0].GetSummary()
	pause := map[string]float64{
		"count":     float64(s.GetSampleCount()),
		"totalTime": s.GetSampleSum() * 1000,
	}
	if s.GetSampleCount() > 0 {
		pause["mean"] = s.GetSampleSum() * 1000 / float64(s.GetSampleCount())
	}
	for _, q := range s.GetQuantile() {
		if math.IsNaN(q.GetValue()) {
			continue
		}
		key := strconv.FormatFloat(q.GetQuantile(), 'f', -1, 64)
		pause[key] = q.GetValue() * 1000
		if q.GetQuantile() == 1 {
			pause["max"] = q.GetValue() * 1000
		}
	}
	out["gc.pause"] = pause
	return out
}

type requestSample struct {
	method, uri, status string
	count, sum, max     float64
}

func requestSamples(byName map[string]*dto.MetricFamily) []requestSample {
	f, ok := byName[requestsMetric]
	if !ok {
		return nil
	}
	maxByKey := make(map[string]float64)
	if mf, ok := byName[requestsMaxMetric]; ok {
		for _, metric := range mf.GetMetric() {
			l := labels(metric)
			maxByKey[l["method"]+" "+l["uri"]+" "+l["status"]] = metric.GetGauge().GetValue()
		}
	}
	out := make([]requestSample, 0, len(f.GetMetric()))
	for _, metric := range f.GetMetric() {
		l := labels(metric)
		h := metric.GetHistogram()
		out = append(out, requestSample{
			method: l["method"],
			uri:    l["uri"],
			status: l["status"],
			count:  float64(h.GetSampleCount()),
			sum:    h.GetSampleSum(),
			max:    maxByKey[l["method"]+" "+l["uri"]+" "+l["status"]],
		})
	}
	return out
}

func httpRequestsMetrics(byName map[string]*dto.MetricFamily) map[string]any {
	perCode := make(map[string]*requestStats)
	sums := make(map[string]float64)
	var total float64
	for _, s := range requestSamples(byName) {
		st, ok := perCode[s.status]
		if !ok {
			st = &requestStats{}
			perCode[s.status] = st
		}
		st.Count += s.count
		sums[s.status] += s.sum
		if s.max*1000 > st.Max {
			st.Max = s.max * 1000
		}
		total += s.count
	}
	for code, st := range perCode {
		if st.Count > 0 {
			st.Mean = sums[code] * 1000 / st.Count
		}
	}
	return map[string]any{
		"all":     map[string]float64{"count": total},
		"percode": perCode,
	}
}

func serviceMetrics(byName map[string]*dto.MetricFamily) map[string]map[string]*requestStats {
	out := make(map[string]map[string]*requestStats)
	sums := make(map[string]float64)
	for _, s := range requestSamples(byName) {
		methods, ok := out[s.uri]
		if !ok {
			methods = make(map[string]*requestStats)
			out[s.uri] = methods
		}
		st, ok := methods[s.method]
		if !ok {
			st = &requestStats{}
			methods[s.method] = st
		}
		st.Count += s.count
		sums[s.uri+" "+s.method] += s.sum
		if s.max*1000 > st.Max {
			st.Max = s.max * 1000
		}
	}
	for uri, methods := range out {
		for method, st := range methods {
			if st.Count > 0 {
				st.Mean = sums[uri+" "+method] * 1000 / st.Count
			}
		}
	}
	return out
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// scalar devuelve el valor de una familia gauge/counter sin etiquetas relevantes.
func scalar(f *dto.MetricFamily) (float64, bool) {
	if len(f.GetMetric()) == 0 {
		return 0, false
	}
	m := f.GetMetric()[0]
	var v float64
	switch f.GetType() {
	case dto.MetricType_GAUGE:
		v = m.GetGauge().GetValue()
	case dto.MetricType_COUNTER:
		v = m.GetCounter().GetValue()
	case dto.MetricType_UNTYPED:
		v = m.GetUntyped().GetValue()
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
