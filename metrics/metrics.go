// Package metrics exports benchmark summaries in the Prometheus text format,
// for a node exporter textfile collector to pick up.
package metrics

import (
	"strconv"

	"github.com/fep-sdk/fep-harness/results"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fep_compare"

var labels = []string{"plan", "legend", "x"}

// Registry holds the gauges of one set of comparisons.
type Registry struct {
	*prometheus.Registry

	rtt     *prometheus.GaugeVec
	packets *prometheus.GaugeVec
	errors  *prometheus.GaugeVec
}

// NewRegistry ...
func NewRegistry() *Registry {
	r := &Registry{
		Registry: prometheus.NewRegistry(),
		rtt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rtt_microseconds",
			Help:      "Round trip time of a measurement point by layer and statistic.",
		}, append([]string{"layer", "stat"}, labels...)),
		packets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packets",
			Help:      "Packets of a measurement point by kind.",
		}, append([]string{"kind"}, labels...)),
		errors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors",
			Help:      "Errors reported by the client of a measurement point.",
		}, labels),
	}
	r.MustRegister(r.rtt, r.packets, r.errors)
	return r
}

// Observe sets the gauges of every point of c.
func (r *Registry) Observe(c results.Comparison) {
	for _, line := range c.Lines {
		for _, p := range line.Points {
			x := strconv.Itoa(p.X)
			s := p.Summary

			for layer, rtt := range map[string]results.RTT{"usr": s.Usr, "llv": s.Llv, "dds": s.Dds} {
				r.rtt.WithLabelValues(layer, "min", c.Title, line.Legend, x).Set(float64(rtt.Min))
				r.rtt.WithLabelValues(layer, "avg", c.Title, line.Legend, x).Set(float64(rtt.Avg))
				r.rtt.WithLabelValues(layer, "max", c.Title, line.Legend, x).Set(float64(rtt.Max))
			}

			r.packets.WithLabelValues("sent", c.Title, line.Legend, x).Set(float64(s.Sent))
			r.packets.WithLabelValues("received", c.Title, line.Legend, x).Set(float64(s.Received))
			r.packets.WithLabelValues("lost", c.Title, line.Legend, x).Set(float64(s.Lost))
			r.errors.WithLabelValues(c.Title, line.Legend, x).Set(float64(s.Errors))
		}
	}
}

// Export writes the summaries of all comparisons to pth.
func Export(pth string, comparisons []results.Comparison) error {
	r := NewRegistry()
	for _, c := range comparisons {
		r.Observe(c)
	}
	return prometheus.WriteToTextfile(pth, r)
}
