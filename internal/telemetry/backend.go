package telemetry

// Backend identifiers as they appear in receipts.
const (
	BackendUnresolved = "unresolved"
	BackendNVML       = "nvml"
	BackendSMI        = "nvidia-smi"
)

// Metadata carries device information reported by whichever backend resolved.
type Metadata struct {
	DeviceName  string   `json:"name,omitempty"`
	PowerLimitW *float64 `json:"power_limit_w,omitempty"`
}

// Backend reads instantaneous telemetry for one device. Read returns false
// when no usable measurement is available for this tick; the sampler records
// nothing and keeps polling. Backend selection happens once per sampler run
// and never changes mid-run.
type Backend interface {
	Name() string
	Read() (Reading, bool)
	Metadata() Metadata
	Close()
}
