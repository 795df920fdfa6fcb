package sync

import (
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"dockhand"
)

// extractPorts emits one binding per published container-side port.
// Ports without a host binding are skipped; protocol defaults to tcp
// when the port spec carries none. Output is ordered by port spec so
// repeated syncs produce identical records.
func extractPorts(ports nat.PortMap) []dockhand.PortBinding {
	specs := make([]string, 0, len(ports))
	for port := range ports {
		specs = append(specs, string(port))
	}
	sort.Strings(specs)

	var out []dockhand.PortBinding
	for _, spec := range specs {
		port := nat.Port(spec)
		bindings := ports[port]
		if len(bindings) == 0 {
			continue
		}
		out = append(out, dockhand.PortBinding{
			HostPort:      bindings[0].HostPort,
			ContainerPort: port.Port(),
			Protocol:      port.Proto(),
		})
	}
	return out
}

// splitEnv parses KEY=VALUE entries, splitting on the first "=" only;
// values may themselves contain "=".
func splitEnv(entries []string) []dockhand.EnvVar {
	var out []dockhand.EnvVar
	for _, entry := range entries {
		key, value, _ := strings.Cut(entry, "=")
		if key == "" {
			continue
		}
		out = append(out, dockhand.EnvVar{Key: key, Value: value})
	}
	return out
}

// extractMounts maps runtime mount points to records. Mode is rw unless
// the mount is read-only.
func extractMounts(mounts []container.MountPoint) []dockhand.Mount {
	var out []dockhand.Mount
	for _, m := range mounts {
		mode := "rw"
		if !m.RW {
			mode = "ro"
		}
		out = append(out, dockhand.Mount{
			HostPath:      m.Source,
			ContainerPath: m.Destination,
			Mode:          mode,
		})
	}
	return out
}

// cpuPercent derives usage from the deltas between the current and
// previous sampling period. A non-positive system delta yields 0,
// never a negative value or NaN.
func cpuPercent(stats container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta < 0 {
		return 0
	}
	return cpuDelta / systemDelta * 100
}
