// Package dockhand defines the core types shared by the daemon's
// components: normalized container records mirrored from the Docker
// runtime, and the principal resolved from a bearer credential.
package dockhand

import "time"

// ContainerStatus is the normalized lifecycle state of a container.
type ContainerStatus string

const (
	StatusCreated    ContainerStatus = "created"
	StatusRunning    ContainerStatus = "running"
	StatusPaused     ContainerStatus = "paused"
	StatusRestarting ContainerStatus = "restarting"
	StatusExited     ContainerStatus = "exited"
	StatusStopped    ContainerStatus = "stopped"
)

// NormalizeStatus maps a raw Docker state string onto the record enum.
// Unknown and terminal-but-unnamed states ("dead", "removing") fold into
// StatusStopped.
func NormalizeStatus(raw string) ContainerStatus {
	switch ContainerStatus(raw) {
	case StatusCreated, StatusRunning, StatusPaused, StatusRestarting, StatusExited:
		return ContainerStatus(raw)
	default:
		return StatusStopped
	}
}

// PortBinding is one published host-to-container port mapping.
type PortBinding struct {
	HostPort      string `json:"hostPort"`
	ContainerPort string `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

// EnvVar is one container environment entry, split on the first "=".
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Mount is one volume mount. Mode is "rw" or "ro".
type Mount struct {
	HostPath      string `json:"host"`
	ContainerPath string `json:"container"`
	Mode          string `json:"mode"`
}

// ContainerRecord is the persisted mirror of one container's runtime
// state. A record is written whole from a successful inspect or not at
// all; usage fields default to zero when the stats snapshot fails.
type ContainerRecord struct {
	ID          string          `json:"containerId"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Status      ContainerStatus `json:"status"`
	CPUPercent  float64         `json:"cpuUsage"`
	MemoryUsage uint64          `json:"memoryUsage"`
	MemoryLimit uint64          `json:"memoryLimit"`
	Ports       []PortBinding   `json:"ports"`
	Env         []EnvVar        `json:"environment"`
	Mounts      []Mount         `json:"volumes"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Principal is the authenticated identity resolved from a credential.
type Principal struct {
	Subject string
	Role    string
}
