package health

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// #region sys-reader

// SystemReader reads signals from procfs/sysfs on Linux. Paths are fields so
// tests can point the reader at fixture files.
type SystemReader struct {
	StatPath     string // /proc/stat
	MeminfoPath  string // /proc/meminfo
	ThermalPath  string // /sys/class/thermal/thermal_zone0/temp (millidegrees)
	CapacityPath string // /sys/class/power_supply/BAT0/capacity

	mu        sync.Mutex
	prevBusy  uint64
	prevTotal uint64
}

// NewSystemReader returns a reader wired to the standard Linux paths.
func NewSystemReader() *SystemReader {
	return &SystemReader{
		StatPath:     "/proc/stat",
		MeminfoPath:  "/proc/meminfo",
		ThermalPath:  "/sys/class/thermal/thermal_zone0/temp",
		CapacityPath: "/sys/class/power_supply/BAT0/capacity",
	}
}

// Read returns the current value for sig: CPU and memory utilization in
// percent, temperature in celsius, battery charge in percent.
func (r *SystemReader) Read(ctx context.Context, sig Signal) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	switch sig {
	case SignalCPU:
		return r.readCPU()
	case SignalMemory:
		return r.readMemory()
	case SignalTemperature:
		return r.readScaled(r.ThermalPath, 1000)
	case SignalBattery:
		return r.readScaled(r.CapacityPath, 1)
	default:
		return 0, fmt.Errorf("unknown signal %q", sig)
	}
}

// #endregion sys-reader

// #region cpu

// readCPU computes busy percent from the delta of the aggregate cpu line in
// /proc/stat. The first call has no previous counters and reports 0.
func (r *SystemReader) readCPU() (float64, error) {
	data, err := os.ReadFile(r.StatPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.StatPath, err)
	}

	line, ok := firstLineWithPrefix(string(data), "cpu ")
	if !ok {
		return 0, fmt.Errorf("no aggregate cpu line in %s", r.StatPath)
	}

	fields := strings.Fields(line)[1:]
	if len(fields) < 5 {
		return 0, fmt.Errorf("short cpu line in %s", r.StatPath)
	}

	var total, idle uint64
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse cpu field %d: %w", i, err)
		}
		total += v
		if i == 3 || i == 4 { // idle + iowait
			idle += v
		}
	}
	busy := total - idle

	r.mu.Lock()
	defer r.mu.Unlock()

	dBusy := busy - r.prevBusy
	dTotal := total - r.prevTotal
	first := r.prevTotal == 0
	r.prevBusy = busy
	r.prevTotal = total

	if first || dTotal == 0 {
		return 0, nil
	}
	return 100 * float64(dBusy) / float64(dTotal), nil
}

// #endregion cpu

// #region memory

// readMemory computes used percent from MemTotal and MemAvailable.
func (r *SystemReader) readMemory() (float64, error) {
	data, err := os.ReadFile(r.MeminfoPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.MeminfoPath, err)
	}

	var total, avail float64
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			avail = parseMeminfoKB(line)
		}
	}
	if total <= 0 {
		return 0, fmt.Errorf("no MemTotal in %s", r.MeminfoPath)
	}
	return 100 * (total - avail) / total, nil
}

// #endregion memory

// #region helpers

// readScaled reads a single integer file and divides by scale.
func (r *SystemReader) readScaled(path string, scale float64) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / scale, nil
}

func firstLineWithPrefix(s, prefix string) (string, bool) {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, prefix) {
			return line, true
		}
	}
	return "", false
}

func parseMeminfoKB(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// #endregion helpers
