// Package metrics holds the Prometheus collectors of the bot. A nil
// *Registry is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gastos"

type Registry struct {
	reg *prometheus.Registry

	Updates             *prometheus.CounterVec
	RecordsSaved        *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	BudgetAlerts        *prometheus.CounterVec
	CacheReloads        *prometheus.CounterVec
	CacheSkippedRows    prometheus.Gauge
	ActiveConversations prometheus.Gauge
	ReminderDeliveries  *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Chat updates handled by kind (command, text, callback).",
		}, []string{"kind"}),

		RecordsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Ledger rows appended by record kind and result.",
		}, []string{"kind", "result"}),

		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Latency of spreadsheet operations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		BudgetAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_alerts_total",
			Help:      "Budget alerts raised by level.",
		}, []string{"level"}),

		CacheReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reloads_total",
			Help:      "Forced budget cache reloads by result.",
		}, []string{"result"}),

		CacheSkippedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_skipped_rows",
			Help:      "Expense rows excluded by the last cache load.",
		}),

		ActiveConversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Chats with a flow in progress.",
		}),

		ReminderDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_deliveries_total",
			Help:      "Reminder messages sent by slot and result.",
		}, []string{"slot", "result"}),

		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Ledger events published by routing key and result.",
		}, []string{"routing_key", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Updates,
		r.RecordsSaved,
		r.StoreDuration,
		r.BudgetAlerts,
		r.CacheReloads,
		r.CacheSkippedRows,
		r.ActiveConversations,
		r.ReminderDeliveries,
		r.EventsPublished,
	)
	return r
}

// Gatherer exposes the registry to the HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Registry) ObserveUpdate(kind string) {
	if r == nil {
		return
	}
	r.Updates.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveSave(kind string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.RecordsSaved.WithLabelValues(kind, result(err)).Inc()
	r.StoreDuration.WithLabelValues("append_" + kind).Observe(time.Since(started).Seconds())
}

func (r *Registry) ObserveReload(skipped int, err error) {
	if r == nil {
		return
	}
	r.CacheReloads.WithLabelValues(result(err)).Inc()
	if err == nil {
		r.CacheSkippedRows.Set(float64(skipped))
	}
}

func (r *Registry) ObserveAlert(level string) {
	if r == nil {
		return
	}
	r.BudgetAlerts.WithLabelValues(level).Inc()
}

func (r *Registry) SetActiveConversations(n int) {
	if r == nil {
		return
	}
	r.ActiveConversations.Set(float64(n))
}

func (r *Registry) ObserveReminder(slot string, err error) {
	if r == nil {
		return
	}
	r.ReminderDeliveries.WithLabelValues(slot, result(err)).Inc()
}

func (r *Registry) ObservePublish(routingKey string, err error) {
	if r == nil {
		return
	}
	r.EventsPublished.WithLabelValues(routingKey, result(err)).Inc()
}
