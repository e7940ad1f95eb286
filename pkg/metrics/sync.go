package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records the polling loop's behavior.
type SyncMetrics struct {
	cycleDuration *prometheus.HistogramVec
	cycleSuccess  *prometheus.CounterVec
	cycleFailure  *prometheus.CounterVec
	notifications *prometheus.CounterVec
	unreadTotal   *prometheus.GaugeVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_cycle_duration_seconds",
		Help:    "Duration of poll cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"shape"})
	cycleSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycle_success",
		Help: "Poll cycles that completed without error.",
	}, []string{"shape"})
	cycleFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_cycle_failure",
		Help: "Poll cycles that reported at least one error.",
	}, []string{"shape"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_notifications_emitted",
		Help: "Notification entries raised by the synchronizer.",
	}, []string{"shape"})
	unreadTotal := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_unread_messages",
		Help: "Current total of unread messages tracked by the inbox.",
	}, []string{"shape"})
	reg.MustRegister(cycleDuration, cycleSuccess, cycleFailure, notifications, unreadTotal)
	return &SyncMetrics{
		cycleDuration: cycleDuration,
		cycleSuccess:  cycleSuccess,
		cycleFailure:  cycleFailure,
		notifications: notifications,
		unreadTotal:   unreadTotal,
	}
}

// ObserveCycle records one poll cycle's duration and outcome.
func (m *SyncMetrics) ObserveCycle(shape string, duration time.Duration, failed bool) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	label := normalizeLabel(shape)
	m.cycleDuration.WithLabelValues(label).Observe(duration.Seconds())
	if failed {
		m.cycleFailure.WithLabelValues(label).Inc()
		return
	}
	m.cycleSuccess.WithLabelValues(label).Inc()
}

// AddNotifications counts newly raised notification entries.
func (m *SyncMetrics) AddNotifications(shape string, n int) {
	if m == nil || m.notifications == nil || n <= 0 {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(shape)).Add(float64(n))
}

// SetUnread reports the current unread total.
func (m *SyncMetrics) SetUnread(shape string, n int) {
	if m == nil || m.unreadTotal == nil {
		return
	}
	m.unreadTotal.WithLabelValues(normalizeLabel(shape)).Set(float64(n))
}

func normalizeLabel(shape string) string {
	if shape == "" {
		return "unknown"
	}
	return shape
}
