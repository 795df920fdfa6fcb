package sync

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

func TestSplitEnv(t *testing.T) {
	t.Run("splits on first equals only", func(t *testing.T) {
		got := splitEnv([]string{"PATH=/usr/bin:/bin", "OPTS=a=b=c"})
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got[0].Key != "PATH" || got[0].Value != "/usr/bin:/bin" {
			t.Fatalf("unexpected PATH entry: %+v", got[0])
		}
		if got[1].Key != "OPTS" || got[1].Value != "a=b=c" {
			t.Fatalf("unexpected OPTS entry: %+v", got[1])
		}
	})

	t.Run("value may be empty", func(t *testing.T) {
		got := splitEnv([]string{"EMPTY="})
		if len(got) != 1 || got[0].Key != "EMPTY" || got[0].Value != "" {
			t.Fatalf("unexpected result: %+v", got)
		}
	})

	t.Run("entries without a key are dropped", func(t *testing.T) {
		if got := splitEnv([]string{"=oops", ""}); len(got) != 0 {
			t.Fatalf("expected no entries, got %+v", got)
		}
	})
}

func TestExtractPorts(t *testing.T) {
	t.Run("bound port yields one record", func(t *testing.T) {
		ports := nat.PortMap{
			"80/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "8080"}},
		}
		got := extractPorts(ports)
		if len(got) != 1 {
			t.Fatalf("expected 1 binding, got %d", len(got))
		}
		b := got[0]
		if b.HostPort != "8080" || b.ContainerPort != "80" || b.Protocol != "tcp" {
			t.Fatalf("unexpected binding: %+v", b)
		}
	})

	t.Run("unbound port yields no record", func(t *testing.T) {
		ports := nat.PortMap{"9000/tcp": nil}
		if got := extractPorts(ports); len(got) != 0 {
			t.Fatalf("expected no bindings, got %+v", got)
		}
	})

	t.Run("udp protocol preserved", func(t *testing.T) {
		ports := nat.PortMap{
			"53/udp": []nat.PortBinding{{HostPort: "5353"}},
		}
		got := extractPorts(ports)
		if len(got) != 1 || got[0].Protocol != "udp" {
			t.Fatalf("unexpected result: %+v", got)
		}
	})

	t.Run("output ordered by port spec", func(t *testing.T) {
		ports := nat.PortMap{
			"80/tcp":   []nat.PortBinding{{HostPort: "8080"}},
			"443/tcp":  []nat.PortBinding{{HostPort: "8443"}},
			"5432/tcp": []nat.PortBinding{{HostPort: "15432"}},
		}
		got := extractPorts(ports)
		if len(got) != 3 {
			t.Fatalf("expected 3 bindings, got %d", len(got))
		}
		want := []string{"443", "5432", "80"}
		for i, cp := range want {
			if got[i].ContainerPort != cp {
				t.Fatalf("position %d: expected container port %s, got %s", i, cp, got[i].ContainerPort)
			}
		}
	})
}

func TestExtractMounts(t *testing.T) {
	mounts := []container.MountPoint{
		{Source: "/data", Destination: "/var/lib/data", RW: true},
		{Source: "/etc/conf", Destination: "/conf", RW: false},
	}
	got := extractMounts(mounts)
	if len(got) != 2 {
		t.Fatalf("expected 2 mounts, got %d", len(got))
	}
	if got[0].Mode != "rw" {
		t.Fatalf("expected rw mode, got %s", got[0].Mode)
	}
	if got[1].Mode != "ro" {
		t.Fatalf("expected ro mode, got %s", got[1].Mode)
	}
}

func TestCPUPercent(t *testing.T) {
	mkStats := func(cpu, precpu, sys, presys uint64) container.StatsResponse {
		var s container.StatsResponse
		s.CPUStats.CPUUsage.TotalUsage = cpu
		s.CPUStats.SystemUsage = sys
		s.PreCPUStats.CPUUsage.TotalUsage = precpu
		s.PreCPUStats.SystemUsage = presys
		return s
	}

	t.Run("normal delta", func(t *testing.T) {
		got := cpuPercent(mkStats(200, 100, 1000, 0))
		if got != 10 {
			t.Fatalf("expected 10%%, got %v", got)
		}
	})

	t.Run("zero system delta reports zero", func(t *testing.T) {
		if got := cpuPercent(mkStats(200, 100, 500, 500)); got != 0 {
			t.Fatalf("expected 0, got %v", got)
		}
	})

	t.Run("negative system delta reports zero", func(t *testing.T) {
		if got := cpuPercent(mkStats(200, 100, 400, 500)); got != 0 {
			t.Fatalf("expected 0, got %v", got)
		}
	})

	t.Run("counter reset reports zero not negative", func(t *testing.T) {
		if got := cpuPercent(mkStats(50, 100, 1000, 500)); got != 0 {
			t.Fatalf("expected 0, got %v", got)
		}
	})

	t.Run("empty stats report zero", func(t *testing.T) {
		if got := cpuPercent(container.StatsResponse{}); got != 0 {
			t.Fatalf("expected 0, got %v", got)
		}
	})
}
