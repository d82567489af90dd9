// Package metrics wires the Watcher's runtime counters into Prometheus.
// internal/watcher never imports prometheus directly: it talks to the
// Recorder interface so a nil recorder (or a test double) costs nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder receives point-in-time updates from the Watcher's mailbox loop.
// Every method must tolerate a nil receiver so callers can pass a zero
// value when metrics are disabled.
type Recorder interface {
	SetWatchedOrders(n int)
	SetCacheEntries(balances, allowances, filled, cancelled int)
	IncEmissions()
	IncCleanupRuns()
	IncDispatchErrors()
}

// Prometheus implements Recorder with a small set of gauges and counters,
// registered against the supplied registerer (typically
// prometheus.DefaultRegisterer).
type Prometheus struct {
	watchedOrders prometheus.Gauge
	cacheBalances prometheus.Gauge
	cacheAllowances prometheus.Gauge
	cacheFilled     prometheus.Gauge
	cacheCancelled  prometheus.Gauge
	emissionsTotal    prometheus.Counter
	cleanupRunsTotal  prometheus.Counter
	dispatchErrsTotal prometheus.Counter
}

// cacheEntriesHelp is shared by every orderwatch_cache_entries series: a
// registry rejects collectors that reuse a metric name with different help
// text, so the series differ only by their "store" label.
const cacheEntriesHelp = "Entries currently memoized in each LazyStateCache store."

// New creates and registers the orderwatch metric family under reg.
func New(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		watchedOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderwatch_watched_orders",
			Help: "Number of orders currently in the watched set.",
		}),
		cacheBalances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderwatch_cache_entries",
			Help: cacheEntriesHelp,
			ConstLabels: prometheus.Labels{"store": "balance"},
		}),
		cacheAllowances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "orderwatch_cache_entries",
			Help:        cacheEntriesHelp,
			ConstLabels: prometheus.Labels{"store": "allowance"},
		}),
		cacheFilled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "orderwatch_cache_entries",
			Help:        cacheEntriesHelp,
			ConstLabels: prometheus.Labels{"store": "filled"},
		}),
		cacheCancelled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "orderwatch_cache_entries",
			Help:        cacheEntriesHelp,
			ConstLabels: prometheus.Labels{"store": "cancelled"},
		}),
		emissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderwatch_emissions_total",
			Help: "Total OrderState emissions delivered to the subscriber.",
		}),
		cleanupRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderwatch_cleanup_runs_total",
			Help: "Total periodic cleanup sweeps completed.",
		}),
		dispatchErrsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderwatch_dispatch_errors_total",
			Help: "Total transient chain or upstream event errors surfaced to the subscriber.",
		}),
	}
	reg.MustRegister(
		p.watchedOrders, p.cacheBalances, p.cacheAllowances, p.cacheFilled, p.cacheCancelled,
		p.emissionsTotal, p.cleanupRunsTotal, p.dispatchErrsTotal,
	)
	return p
}

func (p *Prometheus) SetWatchedOrders(n int) {
	if p == nil {
		return
	}
	p.watchedOrders.Set(float64(n))
}

func (p *Prometheus) SetCacheEntries(balances, allowances, filled, cancelled int) {
	if p == nil {
		return
	}
	p.cacheBalances.Set(float64(balances))
	p.cacheAllowances.Set(float64(allowances))
	p.cacheFilled.Set(float64(filled))
	p.cacheCancelled.Set(float64(cancelled))
}

func (p *Prometheus) IncEmissions() {
	if p == nil {
		return
	}
	p.emissionsTotal.Inc()
}

func (p *Prometheus) IncCleanupRuns() {
	if p == nil {
		return
	}
	p.cleanupRunsTotal.Inc()
}

func (p *Prometheus) IncDispatchErrors() {
	if p == nil {
		return
	}
	p.dispatchErrsTotal.Inc()
}
