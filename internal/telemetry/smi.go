package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	smiPollTimeout = 3 * time.Second
	smiQueryFields = "power.draw,temperature.gpu,utilization.gpu,utilization.memory,memory.used,memory.total"
)

// smiBackend polls telemetry by invoking nvidia-smi and parsing its
// single-line CSV output. It is the fallback when NVML cannot be initialized.
// A failed or malformed poll yields no reading for that tick; it never stops
// the sampler.
type smiBackend struct {
	exe         string
	deviceIndex int
	logger      *slog.Logger
	meta        Metadata
}

func newSMIBackend(deviceIndex int, logger *slog.Logger) *smiBackend {
	b := &smiBackend{
		exe:         smiExecutable(),
		deviceIndex: deviceIndex,
		logger:      logger,
	}
	b.meta = b.queryMetadata()
	return b
}

func (b *smiBackend) Name() string { return BackendSMI }

func (b *smiBackend) Metadata() Metadata { return b.meta }

func (b *smiBackend) Close() {}

func (b *smiBackend) Read() (Reading, bool) {
	out, err := b.query(smiQueryFields)
	if err != nil {
		b.logger.Debug("nvidia-smi poll failed", "err", err)
		return Reading{}, false
	}
	return parseSMILine(out)
}

func (b *smiBackend) queryMetadata() Metadata {
	var meta Metadata
	out, err := b.query("name,power.limit")
	if err != nil {
		return meta
	}
	parts := splitCSVLine(out)
	if len(parts) >= 1 && parts[0] != "" {
		meta.DeviceName = parts[0]
	}
	if len(parts) >= 2 {
		if limit, err := strconv.ParseFloat(parts[1], 64); err == nil {
			meta.PowerLimitW = float64Ptr(limit)
		}
	}
	return meta
}

func (b *smiBackend) query(fields string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), smiPollTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.exe,
		fmt.Sprintf("--id=%d", b.deviceIndex),
		"--query-gpu="+fields,
		"--format=csv,noheader,nounits",
	)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", b.exe, err)
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return "", fmt.Errorf("empty output from %s", b.exe)
	}
	return line, nil
}

// parseSMILine parses the six-field CSV response of a telemetry poll. Power
// is required; an optional field that does not parse (e.g. "[N/A]") is
// omitted from the reading instead of discarding the poll.
func parseSMILine(line string) (Reading, bool) {
	parts := splitCSVLine(line)
	if len(parts) < 6 {
		return Reading{}, false
	}

	power, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Reading{}, false
	}

	r := Reading{PowerW: power}
	r.TempC = parseOptionalFloat(parts[1])
	r.GPUUtilPct = parseOptionalFloat(parts[2])
	r.MemUtilPct = parseOptionalFloat(parts[3])
	r.MemUsedMB = parseOptionalFloat(parts[4])
	r.MemTotalMB = parseOptionalFloat(parts[5])
	return r, true
}

func parseOptionalFloat(raw string) *float64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return float64Ptr(value)
}

func splitCSVLine(line string) []string {
	raw := strings.Split(line, ",")
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func smiExecutable() string {
	if path, err := exec.LookPath("nvidia-smi"); err == nil {
		return path
	}
	if _, err := os.Stat("/usr/bin/nvidia-smi"); err == nil {
		return "/usr/bin/nvidia-smi"
	}
	return "nvidia-smi"
}
