package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AttendanceSaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance", Name: "saves_total", Help: "Attendance roster saves by result",
	}, []string{"result"})
	NotificationsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance", Name: "notifications_emitted_total", Help: "Derived notifications by type",
	}, []string{"type"})
	Escalations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance", Name: "escalations_total", Help: "Consecutive absence threshold crossings",
	})
	OutboxEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance", Name: "outbox_events_total", Help: "Processed outbox events by result",
	}, []string{"result"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance", Name: "handler_errors_total", Help: "HTTP handler errors",
	})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendance", Name: "http_request_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendance", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(AttendanceSaves, NotificationsEmitted, Escalations, OutboxEvents,
		HandlerErrors, HTTPDuration, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
