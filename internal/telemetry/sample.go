// Package telemetry samples GPU power and utilization in the background while
// a workload runs, and reduces the collected samples to an energy receipt.
package telemetry

// Sample is a single telemetry reading stamped with the elapsed time since
// sampling began. Pointer fields are nil when the backend did not report the
// metric for this reading; nil is never conflated with zero.
type Sample struct {
	TS         float64  `json:"t_s"`
	PowerW     float64  `json:"power_w"`
	TempC      *float64 `json:"temp_c,omitempty"`
	GPUUtilPct *float64 `json:"gpu_util_pct,omitempty"`
	MemUtilPct *float64 `json:"mem_util_pct,omitempty"`
	MemUsedMB  *float64 `json:"mem_used_mb,omitempty"`
	MemTotalMB *float64 `json:"mem_total_mb,omitempty"`
}

// Reading is an instantaneous backend measurement before it is timestamped.
type Reading struct {
	PowerW     float64
	TempC      *float64
	GPUUtilPct *float64
	MemUtilPct *float64
	MemUsedMB  *float64
	MemTotalMB *float64
}

func (r Reading) at(ts float64) Sample {
	return Sample{
		TS:         ts,
		PowerW:     r.PowerW,
		TempC:      r.TempC,
		GPUUtilPct: r.GPUUtilPct,
		MemUtilPct: r.MemUtilPct,
		MemUsedMB:  r.MemUsedMB,
		MemTotalMB: r.MemTotalMB,
	}
}

func float64Ptr(value float64) *float64 {
	v := value
	return &v
}
