/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics wires a Prometheus registry into the method registry's
// dispatch path and exposes it over HTTP, grounded on the exporter
// shape in ptp/sptp/stats/prom_exporter.go (a dedicated
// prometheus.Registry, registered collectors, served via promhttp).
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Recorder owns the registry backing /metrics and its collectors: the
// dispatch collectors fed by InstrumentedExecute and the live-connection
// gauge.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	faultsTotal     *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec
	activeConns     prometheus.Gauge
}

// NewRecorder builds a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anyrpc_rpc_requests_total",
			Help: "Successful dispatches, by method, transport and codec.",
		}, []string{"method", "transport", "codec"}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anyrpc_rpc_faults_total",
			Help: "Fault responses, by error code.",
		}, []string{"code"}),
		dispatchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anyrpc_rpc_dispatch_seconds",
			Help:    "Method execution latency, from registry lookup to result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anyrpc_active_connections",
			Help: "Connections currently held open by a server.",
		}),
	}
	reg.MustRegister(r.requestsTotal, r.faultsTotal, r.dispatchSeconds, r.activeConns)
	return r
}

// RecordDispatch reports one completed call: requestsTotal/dispatchSeconds
// on success, faultsTotal on failure. transport is "http" or
// "netstring"; codec is "json", "xml", or "msgpack".
func (r *Recorder) RecordDispatch(method, transport, codec string, faultCode int, took time.Duration) {
	if faultCode != 0 {
		r.faultsTotal.WithLabelValues(strconv.Itoa(faultCode)).Inc()
		return
	}
	r.requestsTotal.WithLabelValues(method, transport, codec).Inc()
	r.dispatchSeconds.WithLabelValues(method).Observe(took.Seconds())
}

// ConnectionOpened and ConnectionClosed move the live-connection gauge.
// The rpcserver strategies do not call them.
func (r *Recorder) ConnectionOpened() { r.activeConns.Inc() }
func (r *Recorder) ConnectionClosed() { r.activeConns.Dec() }

// Handler returns the /metrics HTTP handler, only mounted when a
// deployment's config enables metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve runs a dedicated /metrics listener, mirroring
// PrometheusExporter.Start's fire-and-forget http.ListenAndServe.
func (r *Recorder) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	log.Infof("metrics: serving Prometheus exposition on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
