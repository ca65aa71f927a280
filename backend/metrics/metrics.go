// Package metrics defines the client the engine and the stores report to.
// Plug in an adapter for the metrics system of your choice, the default
// client drops everything.
package metrics

import "time"

type Tags map[string]string

type Client interface {
	// Counter adds value to the named counter.
	Counter(name string, tags Tags, value int64)

	// Distribution records a sample, for example an action duration in
	// milliseconds.
	Distribution(name string, tags Tags, value float64)

	// Gauge reports the current value of the named gauge.
	Gauge(name string, tags Tags, value int64)

	// Timing records the duration of a settled execution.
	Timing(name string, tags Tags, duration time.Duration)

	// WithTags returns a client that adds tags to every metric.
	WithTags(tags Tags) Client
}
