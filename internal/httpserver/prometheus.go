package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wattbench/wattbench/internal/telemetry"
)

type telemetryCollector struct {
	sampler *telemetry.Sampler
	metrics []telemetryMetric
}

type telemetryMetric struct {
	desc    *prometheus.Desc
	extract func(sample telemetry.Sample) (float64, bool)
}

func newTelemetryCollector(sampler *telemetry.Sampler) prometheus.Collector {
	if sampler == nil {
		return nil
	}

	collector := &telemetryCollector{sampler: sampler}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("wattbench", "gpu", name),
			help,
			[]string{"backend"},
			nil,
		)
	}

	optional := func(field func(telemetry.Sample) *float64) func(telemetry.Sample) (float64, bool) {
		return func(sample telemetry.Sample) (float64, bool) {
			v := field(sample)
			if v == nil {
				return 0, false
			}
			return *v, true
		}
	}

	collector.metrics = []telemetryMetric{
		{
			desc: desc("power_watts", "Latest sampled GPU power draw in Watts."),
			extract: func(sample telemetry.Sample) (float64, bool) {
				return sample.PowerW, true
			},
		},
		{
			desc:    desc("temperature_celsius", "Latest sampled GPU temperature in Celsius."),
			extract: optional(func(s telemetry.Sample) *float64 { return s.TempC }),
		},
		{
			desc:    desc("utilization_percent", "Latest sampled graphics engine utilization percentage."),
			extract: optional(func(s telemetry.Sample) *float64 { return s.GPUUtilPct }),
		},
		{
			desc:    desc("memory_utilization_percent", "Latest sampled memory controller utilization percentage."),
			extract: optional(func(s telemetry.Sample) *float64 { return s.MemUtilPct }),
		},
		{
			desc:    desc("memory_used_megabytes", "Latest sampled GPU memory usage in MiB."),
			extract: optional(func(s telemetry.Sample) *float64 { return s.MemUsedMB }),
		},
		{
			desc:    desc("memory_total_megabytes", "GPU memory capacity in MiB."),
			extract: optional(func(s telemetry.Sample) *float64 { return s.MemTotalMB }),
		},
		{
			desc: desc("sample_timestamp_seconds", "Run-relative timestamp of the latest sample."),
			extract: func(sample telemetry.Sample) (float64, bool) {
				return sample.TS, true
			},
		},
	}

	return collector
}

func (c *telemetryCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
}

func (c *telemetryCollector) Collect(ch chan<- prometheus.Metric) {
	sample, ok := c.sampler.Latest()
	if !ok {
		return
	}
	backend := c.sampler.Backend()
	for _, metric := range c.metrics {
		value, ok := metric.extract(sample)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(metric.desc, prometheus.GaugeValue, value, backend)
	}
}
