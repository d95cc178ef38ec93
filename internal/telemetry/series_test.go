package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{TS: float64(i), PowerW: float64(i * 10)}
		if i%2 == 0 {
			samples[i].TempC = float64Ptr(60 + float64(i))
		}
	}
	return samples
}

func TestCompactSeriesSmallBufferKeptWhole(t *testing.T) {
	samples := rampSamples(10)

	s := CompactSeries(samples, 100)

	assert.Len(t, s.TS, 10)
	assert.Equal(t, 10, s.Downsample.OriginalSamples)
	assert.Equal(t, 10, s.Downsample.Kept)
	assert.Equal(t, 100, s.Downsample.MaxPoints)
}

func TestCompactSeriesStridesLargeBuffer(t *testing.T) {
	samples := rampSamples(2400)

	s := CompactSeries(samples, 100)

	// Stride 24 keeps indices 0, 24, ..., 2376, then the last sample is
	// force-appended.
	require.Len(t, s.TS, 101)
	assert.Equal(t, 0.0, s.TS[0], "first sample always kept")
	assert.Equal(t, 24.0, s.TS[1])
	assert.Equal(t, 2399.0, s.TS[len(s.TS)-1], "last sample always kept")
	assert.Equal(t, 101, s.Downsample.Kept)
}

func TestCompactSeriesForcesLastSample(t *testing.T) {
	// 10 samples at maxPoints 3 gives stride 3: indices 0, 3, 6, 9 land
	// on the stride, so shift to 11 samples where index 10 does not.
	samples := rampSamples(11)

	s := CompactSeries(samples, 3)

	require.NotEmpty(t, s.TS)
	assert.Equal(t, 10.0, s.TS[len(s.TS)-1])
	assert.Equal(t, []float64{0, 3, 6, 9, 10}, s.TS)
}

func TestCompactSeriesColumnsStayAligned(t *testing.T) {
	samples := rampSamples(100)

	s := CompactSeries(samples, 10)

	n := len(s.TS)
	assert.Len(t, s.PowerW, n)
	assert.Len(t, s.TempC, n)
	assert.Len(t, s.GPUUtilPct, n)
	assert.Len(t, s.MemUtilPct, n)
	assert.Len(t, s.MemUsedMB, n)
	assert.Len(t, s.MemTotalMB, n)

	for i, ts := range s.TS {
		idx := int(ts)
		assert.Equal(t, float64(idx*10), s.PowerW[i])
		if idx%2 == 0 {
			require.NotNil(t, s.TempC[i])
			assert.Equal(t, 60+float64(idx), *s.TempC[i])
		} else {
			assert.Nil(t, s.TempC[i])
		}
	}
}

func TestCompactSeriesNonPositiveMaxPoints(t *testing.T) {
	samples := rampSamples(10)

	s := CompactSeries(samples, 0)

	// Treated as one point: first sample plus the forced last sample.
	assert.Equal(t, []float64{0, 9}, s.TS)
	assert.Equal(t, 1, s.Downsample.MaxPoints)
}

func TestCompactSeriesEmpty(t *testing.T) {
	s := CompactSeries(nil, 100)

	assert.Empty(t, s.TS)
	assert.Equal(t, 0, s.Downsample.OriginalSamples)
	assert.Equal(t, 0, s.Downsample.Kept)
}
