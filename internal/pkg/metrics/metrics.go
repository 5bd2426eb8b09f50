// Package metrics exposes decoded values and poll health as Prometheus
// metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

const namespace = "solax"

type Metrics struct {
	reg        *prometheus.Registry
	values     *prometheus.GaugeVec
	refreshes  *prometheus.CounterVec
	duration   prometheus.Histogram
	lastUpdate prometheus.Gauge
	device     *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Latest decoded sensor value.",
		}, []string{"identifier", "key", "unit"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of poll cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last successful poll cycle.",
		}),
		device: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_info",
			Help:      "Identity of the polled device.",
		}, []string{"identifier", "model", "serial", "firmware"}),
	}
	m.reg.MustRegister(m.values, m.refreshes, m.duration, m.lastUpdate, m.device)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveRefresh records the outcome of one poll cycle.
func (m *Metrics) ObserveRefresh(d time.Duration, err error) {
	m.duration.Observe(d.Seconds())
	switch {
	case err == nil:
		m.refreshes.WithLabelValues("ok").Inc()
		m.lastUpdate.SetToCurrentTime()
	case errors.Is(err, context.DeadlineExceeded):
		m.refreshes.WithLabelValues("timeout").Inc()
	default:
		m.refreshes.WithLabelValues("error").Inc()
	}
}

// Write implements the publisher sink. Unavailable values remove their series.
func (m *Metrics) Write(_ context.Context, records []model.Record) error {
	for _, r := range records {
		labels := prometheus.Labels{"identifier": r.Identifier, "key": r.Key, "unit": r.Unit}
		if !r.Value.Available() {
			m.values.Delete(labels)
			continue
		}
		m.values.With(labels).Set(r.Value.Float64())
	}
	return nil
}

func (m *Metrics) RegisterDevice(_ context.Context, device model.Device, _ []*model.Descriptor) error {
	m.device.WithLabelValues(device.ID, device.Model, device.SerialNumber, device.FirmwareVersion).Set(1)
	return nil
}
