// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	// ReadingsIngested counts readings accepted through the ingestion API.
	ReadingsIngested = metrics.NewCounter(`pulsegrid_readings_ingested_total`)

	// ReadingsRejected counts readings refused by validation.
	ReadingsRejected = metrics.NewCounter(`pulsegrid_readings_rejected_total`)

	// NotificationsSent counts successful alert email dispatches.
	NotificationsSent = metrics.NewCounter(`pulsegrid_notifications_sent_total`)

	// NotificationsFailed counts dispatch attempts that errored.
	NotificationsFailed = metrics.NewCounter(`pulsegrid_notifications_failed_total`)

	// EventsPublished counts events fanned out on the device stream.
	EventsPublished = metrics.NewCounter(`pulsegrid_stream_events_published_total`)
)

// AlertsRaised returns the raised-alerts counter for one severity.
func AlertsRaised(severity string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`pulsegrid_alerts_raised_total{severity=%q}`, severity))
}

// AlertsHandled counts alerts acknowledged by an operator.
var AlertsHandled = metrics.NewCounter(`pulsegrid_alerts_handled_total`)

// WritePrometheus dumps all registered metrics in Prometheus text format.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
