package telemetry

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const bytesPerMB = 1024.0 * 1024.0

// nvmlBackend reads telemetry through the NVML library. It initializes NVML
// once at construction and shuts it down on Close. Individual metric calls
// that fail are omitted from the reading rather than failing the whole read.
type nvmlBackend struct {
	device nvml.Device
	meta   Metadata
}

func newNVMLBackend(deviceIndex int) (*nvmlBackend, error) {
	if ret := nvml.Init(); !errors.Is(ret, nvml.SUCCESS) {
		return nil, fmt.Errorf("initialize NVML: %s", nvml.ErrorString(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(deviceIndex)
	if !errors.Is(ret, nvml.SUCCESS) {
		nvml.Shutdown()
		return nil, fmt.Errorf("device handle %d: %s", deviceIndex, nvml.ErrorString(ret))
	}

	b := &nvmlBackend{device: device}
	if name, ret := device.GetName(); errors.Is(ret, nvml.SUCCESS) {
		b.meta.DeviceName = name
	}
	if limit, ret := device.GetPowerManagementLimit(); errors.Is(ret, nvml.SUCCESS) {
		b.meta.PowerLimitW = float64Ptr(float64(limit) / 1000.0)
	}

	return b, nil
}

func (b *nvmlBackend) Name() string { return BackendNVML }

func (b *nvmlBackend) Metadata() Metadata { return b.meta }

func (b *nvmlBackend) Close() { nvml.Shutdown() }

// Read reports power in watts plus whatever optional metrics NVML returns.
// Power is the one required field: if it cannot be read there is no sample.
func (b *nvmlBackend) Read() (Reading, bool) {
	powerMw, ret := b.device.GetPowerUsage()
	if !errors.Is(ret, nvml.SUCCESS) {
		return Reading{}, false
	}

	r := Reading{PowerW: float64(powerMw) / 1000.0}

	if temp, ret := b.device.GetTemperature(nvml.TEMPERATURE_GPU); errors.Is(ret, nvml.SUCCESS) {
		r.TempC = float64Ptr(float64(temp))
	}
	if util, ret := b.device.GetUtilizationRates(); errors.Is(ret, nvml.SUCCESS) {
		r.GPUUtilPct = float64Ptr(float64(util.Gpu))
		r.MemUtilPct = float64Ptr(float64(util.Memory))
	}
	if mem, ret := b.device.GetMemoryInfo(); errors.Is(ret, nvml.SUCCESS) {
		r.MemUsedMB = float64Ptr(float64(mem.Used) / bytesPerMB)
		r.MemTotalMB = float64Ptr(float64(mem.Total) / bytesPerMB)
	}

	return r, true
}
