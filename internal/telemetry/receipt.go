package telemetry

// Receipt summarizes one sampled measurement window: which backend supplied
// the data, the integrated energy estimate, aggregate statistics over the
// optional metrics, and a bounded timeseries for plotting.
type Receipt struct {
	Backend   string  `json:"backend"`
	Error     string  `json:"error,omitempty"`
	DurationS float64 `json:"duration_s"`
	Samples   int     `json:"samples"`

	EnergyJ *float64 `json:"energy_j,omitempty"`

	PowerWAvg    *float64 `json:"power_w_avg,omitempty"`
	PowerWMax    *float64 `json:"power_w_max,omitempty"`
	GPUUtilAvg   *float64 `json:"gpu_util_pct_avg,omitempty"`
	GPUUtilMax   *float64 `json:"gpu_util_pct_max,omitempty"`
	TempCAvg     *float64 `json:"temp_c_avg,omitempty"`
	TempCMax     *float64 `json:"temp_c_max,omitempty"`
	MemUsedMBAvg *float64 `json:"mem_used_mb_avg,omitempty"`
	MemUsedMBMax *float64 `json:"mem_used_mb_max,omitempty"`

	Metadata   Metadata `json:"device,omitempty"`
	Timeseries *Series  `json:"timeseries,omitempty"`
}

// BuildReceipt reduces a stopped sampler's buffer to a receipt covering the
// given measurement duration. Aggregates over optional metrics consider only
// the samples that reported them.
func BuildReceipt(s *Sampler, duration float64, maxPoints int) Receipt {
	samples := s.Samples()

	r := Receipt{
		Backend:   s.Backend(),
		DurationS: duration,
		Samples:   len(samples),
		Metadata:  s.DeviceMetadata(),
	}
	if len(samples) == 0 {
		return r
	}

	if energy, ok := IntegrateEnergy(samples, duration); ok {
		r.EnergyJ = float64Ptr(energy)
	}

	power := make([]*float64, len(samples))
	for i := range samples {
		power[i] = float64Ptr(samples[i].PowerW)
	}
	r.PowerWAvg, r.PowerWMax = aggregate(power)
	r.GPUUtilAvg, r.GPUUtilMax = aggregate(collect(samples, func(s Sample) *float64 { return s.GPUUtilPct }))
	r.TempCAvg, r.TempCMax = aggregate(collect(samples, func(s Sample) *float64 { return s.TempC }))
	r.MemUsedMBAvg, r.MemUsedMBMax = aggregate(collect(samples, func(s Sample) *float64 { return s.MemUsedMB }))

	series := CompactSeries(samples, maxPoints)
	r.Timeseries = &series

	return r
}

func collect(samples []Sample, field func(Sample) *float64) []*float64 {
	values := make([]*float64, len(samples))
	for i := range samples {
		values[i] = field(samples[i])
	}
	return values
}

// aggregate returns the mean and max over the non-nil values, or nils when
// no sample reported the metric.
func aggregate(values []*float64) (avg, max *float64) {
	sum := 0.0
	count := 0
	best := 0.0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		if count == 0 || *v > best {
			best = *v
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}
	return float64Ptr(sum / float64(count)), float64Ptr(best)
}
