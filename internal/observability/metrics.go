package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	pollCyclesTotal     prometheus.Counter
	fetchErrorsTotal    *prometheus.CounterVec
	directoryErrsTotal  prometheus.Counter
	appendErrorsTotal   prometheus.Counter
	rowsAppendedTotal   prometheus.Counter
	onlineUsersSnapshot prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the poll loop.
func RegisterMetrics() {
	registerOnce.Do(func() {
		pollCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_poll_cycles_total",
			Help: "Total number of poll cycles started.",
		})

		fetchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_fetch_errors_total",
			Help: "Presence fetches that failed, by failure kind.",
		}, []string{"kind"})

		directoryErrsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_directory_errors_total",
			Help: "Directory lookups that failed and degraded to unknown addresses.",
		})

		appendErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_sheet_append_errors_total",
			Help: "Sheet append batches that failed and will be retried.",
		})

		rowsAppendedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_rows_appended_total",
			Help: "Rows appended to the presence log.",
		})

		onlineUsersSnapshot = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Online users observed in the most recent cycle.",
		})

		prometheus.MustRegister(pollCyclesTotal, fetchErrorsTotal, directoryErrsTotal,
			appendErrorsTotal, rowsAppendedTotal, onlineUsersSnapshot)
	})
}

// PollCycles exposes the cycle counter.
func PollCycles() prometheus.Counter {
	RegisterMetrics()
	return pollCyclesTotal
}

// FetchErrors exposes the per-kind fetch failure counter.
func FetchErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return fetchErrorsTotal
}

// DirectoryErrors exposes the directory failure counter.
func DirectoryErrors() prometheus.Counter {
	RegisterMetrics()
	return directoryErrsTotal
}

// AppendErrors exposes the sheet append failure counter.
func AppendErrors() prometheus.Counter {
	RegisterMetrics()
	return appendErrorsTotal
}

// RowsAppended exposes the appended-row counter.
func RowsAppended() prometheus.Counter {
	RegisterMetrics()
	return rowsAppendedTotal
}

// OnlineUsers exposes the last-cycle online user gauge.
func OnlineUsers() prometheus.Gauge {
	RegisterMetrics()
	return onlineUsersSnapshot
}
