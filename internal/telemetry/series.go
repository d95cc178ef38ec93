package telemetry

import "sort"

// DefaultMaxSeriesPoints bounds the per-metric timeseries kept in a receipt.
const DefaultMaxSeriesPoints = 1200

// Series is a column-oriented view of the sample buffer, downsampled to at
// most MaxPoints entries per metric. Optional metrics keep their per-sample
// absence as nil entries so columns stay aligned with TS.
type Series struct {
	TS         []float64  `json:"t_s"`
	PowerW     []float64  `json:"power_w"`
	TempC      []*float64 `json:"temp_c"`
	GPUUtilPct []*float64 `json:"gpu_util_pct"`
	MemUtilPct []*float64 `json:"mem_util_pct"`
	MemUsedMB  []*float64 `json:"mem_used_mb"`
	MemTotalMB []*float64 `json:"mem_total_mb"`

	Downsample Downsample `json:"downsample"`
}

// Downsample records how the series was reduced from the raw buffer.
type Downsample struct {
	OriginalSamples int `json:"original_samples"`
	Kept            int `json:"kept"`
	MaxPoints       int `json:"max_points"`
}

// CompactSeries reduces samples to a bounded columnar series by sorting on
// timestamp and keeping every stride-th sample. The first sample is always
// kept, and the last sample is force-appended when the stride skips it, so
// the series always covers the full sampled window.
func CompactSeries(samples []Sample, maxPoints int) Series {
	if maxPoints <= 0 {
		maxPoints = 1
	}

	n := len(samples)
	s := Series{
		Downsample: Downsample{
			OriginalSamples: n,
			MaxPoints:       maxPoints,
		},
	}
	if n == 0 {
		return s
	}

	sorted := make([]Sample, n)
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })

	stride := n / maxPoints
	if stride < 1 {
		stride = 1
	}

	lastKept := -1
	for i := 0; i < n; i += stride {
		s.appendSample(sorted[i])
		lastKept = i
	}
	if lastKept != n-1 {
		s.appendSample(sorted[n-1])
	}

	s.Downsample.Kept = len(s.TS)
	return s
}

func (s *Series) appendSample(sample Sample) {
	s.TS = append(s.TS, sample.TS)
	s.PowerW = append(s.PowerW, sample.PowerW)
	s.TempC = append(s.TempC, sample.TempC)
	s.GPUUtilPct = append(s.GPUUtilPct, sample.GPUUtilPct)
	s.MemUtilPct = append(s.MemUtilPct, sample.MemUtilPct)
	s.MemUsedMB = append(s.MemUsedMB, sample.MemUsedMB)
	s.MemTotalMB = append(s.MemTotalMB, sample.MemTotalMB)
}
