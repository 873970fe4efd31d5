package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

// LXCDriver shells out to the `lxc` CLI, the same command surface the
// original coordinator used via popen. ConfigDir is where generated
// per-container config fragments are written; the fragments are not
// applied to the container.
type LXCDriver struct {
	ConfigDir string
	Logger    *zap.Logger

	// run executes name with args and returns combined output; overridable
	// in tests so they don't require an actual lxc install.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLXCDriver builds a driver that writes generated config fragments
// under configDir (created if missing).
func NewLXCDriver(configDir string, logger *zap.Logger) *LXCDriver {
	d := &LXCDriver{ConfigDir: configDir, Logger: logger}
	d.run = d.exec
	return d
}

func (d *LXCDriver) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

func (d *LXCDriver) exists(ctx context.Context, name string) bool {
	_, err := d.run(ctx, "lxc", "info", name)
	return err == nil
}

// Create mirrors lxc_create_container: launch from the configured image
// (defaulting to ubuntu:20.04), stop it (it starts running by default),
// write a generated config fragment to ConfigDir, then apply environment variables one
// at a time via `lxc config set`.
func (d *LXCDriver) Create(ctx context.Context, cfg models.ContainerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("driver: container config has no name")
	}
	if d.exists(ctx, cfg.Name) {
		d.Logger.Info("container already exists", zap.String("container", cfg.Name))
		return nil
	}

	image := cfg.Image
	if image == "" {
		image = "ubuntu:20.04"
	}

	d.Logger.Info("🚀 creating container", zap.String("container", cfg.Name), zap.String("image", image))
	if out, err := d.run(ctx, "lxc", "launch", image, cfg.Name); err != nil {
		return fmt.Errorf("driver: lxc launch failed: %w (%s)", err, out)
	}

	if _, err := d.run(ctx, "lxc", "stop", cfg.Name); err != nil {
		d.Logger.Warn("failed to stop newly launched container", zap.String("container", cfg.Name), zap.Error(err))
	}

	if err := d.applyConfig(cfg); err != nil {
		d.Logger.Warn("failed to apply custom configuration", zap.String("container", cfg.Name), zap.Error(err))
	}

	for _, kv := range strings.Split(cfg.Environment, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, err := d.run(ctx, "lxc", "config", "set", cfg.Name, "environment."+key, value); err != nil {
			d.Logger.Warn("failed to set environment variable", zap.String("container", cfg.Name), zap.String("key", key), zap.Error(err))
		}
	}

	d.Logger.Info("container created", zap.String("container", cfg.Name))
	return nil
}

// applyConfig writes a generated lxc config fragment, mirroring
// generate_lxc_config_file. The file is informational here: applying it
// against a running `lxc` daemon's container config format is out of
// scope, so it is written to ConfigDir rather than /var/lib/lxc/<name>/config.
func (d *LXCDriver) applyConfig(cfg models.ContainerConfig) error {
	if d.ConfigDir == "" {
		return nil
	}
	if err := os.MkdirAll(d.ConfigDir, 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# LXC configuration for %s\n", cfg.Name)
	fmt.Fprintf(&b, "lxc.uts.name = %s\n", cfg.Name)
	if cfg.CPULimit > 0 {
		fmt.Fprintf(&b, "lxc.cgroup2.cpu.max = %d\n", cfg.CPULimit)
	}
	if cfg.MemLimit > 0 {
		fmt.Fprintf(&b, "lxc.cgroup2.memory.max = %dM\n", cfg.MemLimit)
	}
	if cfg.Privileged {
		b.WriteString("lxc.init.uid = 0\n")
		b.WriteString("lxc.init.gid = 0\n")
	} else {
		b.WriteString("lxc.idmap = u 0 100000 65536\n")
		b.WriteString("lxc.idmap = g 0 100000 65536\n")
	}
	if cfg.Network != "" {
		b.WriteString("lxc.net.0.type = veth\n")
		b.WriteString("lxc.net.0.link = lxcbr0\n")
		b.WriteString("lxc.net.0.flags = up\n")
	}
	for _, mount := range strings.Split(cfg.Mounts, ",") {
		mount = strings.TrimSpace(mount)
		if mount != "" {
			fmt.Fprintf(&b, "lxc.mount.entry = %s\n", mount)
		}
	}

	path := filepath.Join(d.ConfigDir, cfg.Name+".conf")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Start mirrors lxc_start_container.
func (d *LXCDriver) Start(ctx context.Context, name string) error {
	if !d.exists(ctx, name) {
		return fmt.Errorf("driver: container %s does not exist", name)
	}
	if out, err := d.run(ctx, "lxc", "start", name); err != nil {
		return fmt.Errorf("driver: lxc start failed: %w (%s)", err, out)
	}
	return nil
}

// Stop mirrors lxc_stop_container.
func (d *LXCDriver) Stop(ctx context.Context, name string) error {
	if !d.exists(ctx, name) {
		return fmt.Errorf("driver: container %s does not exist", name)
	}
	if out, err := d.run(ctx, "lxc", "stop", name); err != nil {
		return fmt.Errorf("driver: lxc stop failed: %w (%s)", err, out)
	}
	return nil
}

// Destroy mirrors lxc_destroy_container: stop-then-delete, tolerating a
// container that's already stopped or already gone.
func (d *LXCDriver) Destroy(ctx context.Context, name string) error {
	if !d.exists(ctx, name) {
		return nil
	}
	_ = d.Stop(ctx, name)
	if out, err := d.run(ctx, "lxc", "delete", name); err != nil {
		return fmt.Errorf("driver: lxc delete failed: %w (%s)", err, out)
	}
	return nil
}

// State mirrors lxc_get_container_state, parsing `lxc list --format csv`.
func (d *LXCDriver) State(ctx context.Context, name string) (models.ContainerState, error) {
	if !d.exists(ctx, name) {
		return models.ContainerError, fmt.Errorf("driver: container %s does not exist", name)
	}
	out, err := d.run(ctx, "lxc", "list", name, "--format", "csv", "-c", "s")
	if err != nil {
		return models.ContainerError, fmt.Errorf("driver: lxc list failed: %w", err)
	}

	status := strings.TrimSpace(string(out))
	switch {
	case strings.Contains(status, "RUNNING"):
		return models.ContainerRunning, nil
	case strings.Contains(status, "STOPPED"):
		return models.ContainerStopped, nil
	case strings.Contains(status, "STARTING"):
		return models.ContainerStarting, nil
	case strings.Contains(status, "STOPPING"):
		return models.ContainerStopping, nil
	default:
		return models.ContainerError, nil
	}
}
