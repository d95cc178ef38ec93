// Package version exposes build metadata injected at link time.
package version

import "sync"

// Info carries the version string, commit hash and build timestamp baked into
// the binary via ldflags.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

var (
	mu      sync.RWMutex
	current = Info{Version: "dev"}
)

// Set records the build metadata. An empty version falls back to "dev" so
// unflagged local builds stay identifiable.
func Set(v Info) {
	if v.Version == "" {
		v.Version = "dev"
	}

	mu.Lock()
	current = v
	mu.Unlock()
}

// Current returns the recorded build metadata.
func Current() Info {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
