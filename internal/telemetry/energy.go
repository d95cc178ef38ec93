package telemetry

import "sort"

// IntegrateEnergy estimates the energy in joules consumed over the first
// duration seconds of a run, given timestamped power samples. Power is
// assumed piecewise linear between samples and constant beyond the first and
// last sample. Segments are clipped to [0, duration].
//
// The second return is false when the estimate is undefined: no samples, or
// a non-positive duration.
func IntegrateEnergy(samples []Sample, duration float64) (float64, bool) {
	if len(samples) == 0 || duration <= 0 {
		return 0, false
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })

	energy := 0.0

	// Power before the first sample is taken as the first sample's value.
	first := sorted[0]
	if first.TS > 0 {
		lead := first.TS
		if lead > duration {
			lead = duration
		}
		energy += first.PowerW * lead
	}

	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if a.TS >= duration {
			break
		}

		ta, tb := a.TS, b.TS
		pa, pb := a.PowerW, b.PowerW
		if tb > duration {
			if tb > ta {
				frac := (duration - ta) / (tb - ta)
				pb = pa + (pb-pa)*frac
			}
			tb = duration
		}
		if tb > ta {
			energy += (pa + pb) / 2 * (tb - ta)
		}
	}

	// Power after the last sample is taken as the last sample's value.
	last := sorted[len(sorted)-1]
	if last.TS < duration {
		energy += last.PowerW * (duration - last.TS)
	}

	return energy, true
}
