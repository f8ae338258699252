package metrics

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/session"
)

const namespace = "eightysix"

// Failure reasons used as the "reason" label of update failures.
const (
	ReasonInvalid      = "invalid_update"
	ReasonPersistence  = "persistence"
	ReasonInconsistent = "registry_inconsistency"
	ReasonScope        = "invalid_scope"
	ReasonOther        = "other"
)

// sampled is a value read from another component at scrape time.
type sampled struct {
	name string
	help string
	typ  dto.MetricType
	fn   func() float64
}

// Registry accumulates counters for applied and rejected updates and
// broadcast outcomes.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	applied   map[string]uint64 // scope -> count
	status    map[string]uint64 // status -> count
	failures  map[string]uint64 // reason -> count
	delivered uint64
	evicted   uint64
	sampled   []sampled
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		applied:  make(map[string]uint64),
		status:   make(map[string]uint64),
		failures: make(map[string]uint64),
	}
}

// Applied records one successful update and the outcome of its fan-out.
func (r *Registry) Applied(scope string, rec types.Record, fanout session.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[scope]++
	r.status[string(rec.Status)]++
	r.delivered += uint64(fanout.Delivered)
	r.evicted += uint64(fanout.Evicted)
}

// Rejected records one failed update.
func (r *Registry) Rejected(_ string, err error) {
	reason := Reason(err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[reason]++
}

// GaugeFunc registers a gauge whose value is read from fn on every scrape.
func (r *Registry) GaugeFunc(name, help string, fn func() float64) {
	r.addSampled(name, help, dto.MetricType_GAUGE, fn)
}

// CounterFunc registers a counter whose value is read from fn on every scrape.
func (r *Registry) CounterFunc(name, help string, fn func() float64) {
	r.addSampled(name, help, dto.MetricType_COUNTER, fn)
}

func (r *Registry) addSampled(name, help string, typ dto.MetricType, fn func() float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sampled = append(r.sampled, sampled{name: namespace + "_" + name, help: help, typ: typ, fn: fn})
}

// Reason maps an update error to its failure label.
func Reason(err error) string {
	switch {
	case errors.Is(err, availability.ErrInvalidUpdate):
		return ReasonInvalid
	case errors.Is(err, availability.ErrPersistence):
		return ReasonPersistence
	case errors.Is(err, availability.ErrRegistryInconsistency):
		return ReasonInconsistent
	case errors.Is(err, availability.ErrInvalidScope):
		return ReasonScope
	default:
		return ReasonOther
	}
}

// Gather returns a point-in-time copy of every metric family, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	families := []*dto.MetricFamily{
		labelledCounter(namespace+"_updates_applied_total",
			"Availability updates applied, by scope.", "scope", r.applied),
		labelledCounter(namespace+"_updates_by_status_total",
			"Availability updates applied, by resulting status.", "status", r.status),
		labelledCounter(namespace+"_update_failures_total",
			"Availability updates rejected, by reason.", "reason", r.failures),
		counter(namespace+"_broadcast_delivered_total",
			"Messages delivered to realtime sessions.", float64(r.delivered)),
		counter(namespace+"_broadcast_evicted_total",
			"Sessions dropped after a failed delivery.", float64(r.evicted)),
	}
	samples := append([]sampled(nil), r.sampled...)
	r.mu.Unlock()

	// Sampled funcs call into other components; run them without r.mu held.
	for _, s := range samples {
		families = append(families, single(s.name, s.help, s.typ, s.fn()))
	}
	// The text encoder rejects families without samples.
	out := families[:0]
	for _, mf := range families {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// WriteText encodes every metric family in the text exposition format.
func (r *Registry) WriteText(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the text exposition.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := r.WriteText(w); err != nil {
			slog.Error("metrics: write exposition", "err", err)
		}
	})
}

// --- helpers ---

func counter(name, help string, v float64) *dto.MetricFamily {
	return single(name, help, dto.MetricType_COUNTER, v)
}

func single(name, help string, typ dto.MetricType, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   typ.Enum(),
		Metric: []*dto.Metric{sample(typ, v, nil)},
	}
}

func labelledCounter(name, help, label string, values map[string]uint64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		lp := []*dto.LabelPair{{Name: proto.String(label), Value: proto.String(k)}}
		mf.Metric = append(mf.Metric, sample(dto.MetricType_COUNTER, float64(values[k]), lp))
	}
	return mf
}

func sample(typ dto.MetricType, v float64, labels []*dto.LabelPair) *dto.Metric {
	m := &dto.Metric{Label: labels}
	if typ == dto.MetricType_GAUGE {
		m.Gauge = &dto.Gauge{Value: proto.Float64(v)}
	} else {
		m.Counter = &dto.Counter{Value: proto.Float64(v)}
	}
	return m
}
