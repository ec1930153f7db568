package prom

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/refreshcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	loads      *prometheus.CounterVec
	loadErrors *prometheus.CounterVec
	changes    *prometheus.CounterVec
	sizeEnt    prometheus.GaugeFunc

	// size_entries is read at scrape time: from sizeFn when set, otherwise
	// from the last value pushed through Size.
	sizeFn   atomic.Pointer[func() int]
	lastSize atomic.Int64
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "loads_total",
				Help:        "Loader calls by mode (foreground, background)",
				ConstLabels: constLabels,
			},
			[]string{"mode"},
		),
		loadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_errors_total",
				Help:        "Failed Loader calls by mode (foreground, background)",
				ConstLabels: constLabels,
			},
			[]string{"mode"},
		),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "changes_total",
				Help:        "Entry changes by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
	}
	a.sizeEnt = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   ns,
		Subsystem:   sub,
		Name:        "size_entries",
		Help:        "Number of resident entries",
		ConstLabels: constLabels,
	}, a.size)
	reg.MustRegister(a.hits, a.misses, a.loads, a.loadErrors, a.changes, a.sizeEnt)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Load counts a Loader call.
func (a *Adapter) Load(background bool) { a.loads.WithLabelValues(mode(background)).Inc() }

// LoadError counts a failed Loader call.
func (a *Adapter) LoadError(background bool) {
	a.loadErrors.WithLabelValues(mode(background)).Inc()
}

// Change counts an insert, update or removal with its reason label.
func (a *Adapter) Change(r cache.ChangeReason) {
	a.changes.WithLabelValues(r.String()).Inc()
}

// Size records the entry count pushed by the cache. Concurrent writers may
// publish their snapshots out of order; use SizeFrom for an exact gauge.
func (a *Adapter) Size(entries int) { a.lastSize.Store(int64(entries)) }

// SizeFrom makes size_entries sample fn at scrape time, e.g.
// a.SizeFrom(c.Size) once the cache exists.
func (a *Adapter) SizeFrom(fn func() int) {
	if fn == nil {
		a.sizeFn.Store(nil)
		return
	}
	a.sizeFn.Store(&fn)
}

func (a *Adapter) size() float64 {
	if fn := a.sizeFn.Load(); fn != nil {
		return float64((*fn)())
	}
	return float64(a.lastSize.Load())
}

func mode(background bool) string {
	if background {
		return "background"
	}
	return "foreground"
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
