/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package monitor holds the Prometheus metrics of model runs and of the
// site series service.
package monitor

import (
	"sort"
	"strings"
	"time"

	"github.com/cosflux/cosflux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Collector holds the COSFlux metrics.
type Collector struct {
	StepsTotal        prometheus.Counter
	NonPositiveCells  prometheus.Gauge
	RunDuration       *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	StoreErrorsTotal  *prometheus.CounterVec
	SeriesStoredTotal prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_steps_total",
			Help:      "Total number of forward model time steps computed",
		}),
		NonPositiveCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nonpositive_cells",
			Help:      "Number of cells with a non-positive COS-32 pool at the last computed step",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of model runs in seconds by model",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 10, 60, 600},
		}, []string{"model"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests by route and status",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
		StoreErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of database errors by operation",
		}, []string{"operation"}),
		SeriesStoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_points_stored_total",
			Help:      "Total number of site series points written to the database",
		}),
	}
	for _, col := range []prometheus.Collector{c.StepsTotal, c.NonPositiveCells, c.RunDuration,
		c.RequestsTotal, c.RequestDuration, c.StoreErrorsTotal, c.SeriesStoredTotal} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RunForward runs m from its cursor to the end of the domain, recording
// the number of steps computed, the run duration and the number of cells
// whose COS-32 pool is not positive at the last step.
func (c *Collector) RunForward(m *cosflux.ForwardModel) error {
	start := time.Now()
	before := m.Cursor()
	err := m.Resume()
	c.RunDuration.WithLabelValues("forward").Observe(time.Since(start).Seconds())
	c.StepsTotal.Add(float64(m.Cursor() - before))
	if m.Cursor() > 0 {
		c.NonPositiveCells.Set(float64(len(m.NonPositiveCells(m.Cursor() - 1))))
	}
	return err
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
	obs   prometheus.Observer
}

// NewTimer starts timing an operation whose duration will be recorded in
// obs.
func NewTimer(obs prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), obs: obs}
}

// ObserveDuration records the time since the timer started.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.obs.Observe(d.Seconds())
	return d
}

// Values gathers the metrics in g and returns the value of each series,
// keyed by metric name followed by its label values in braces. Histograms
// give their sample count and sum as name_count and name_sum.
func Values(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := seriesKey(f.GetName(), m.GetLabel())
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[seriesKey(f.GetName()+"_count", m.GetLabel())] = float64(m.GetHistogram().GetSampleCount())
				out[seriesKey(f.GetName()+"_sum", m.GetLabel())] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	vals := make([]string, len(labels))
	for i, l := range labels {
		vals[i] = l.GetName() + "=" + l.GetValue()
	}
	sort.Strings(vals)
	return name + "{" + strings.Join(vals, ",") + "}"
}
