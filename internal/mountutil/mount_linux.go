// Package mountutil implements the boot-time filesystem setup named in
// spec.md §6: the /proc, /dev, /dev/pts mounts established before the
// reactor starts, the sandbox and virtual-exec-container directories, the
// optional shared-directory mount, and the kernel limits set at boot.
// Grounded on the teacher's internal/harness/mount_linux.go mountEssential,
// generalised from its hard-coded single-container-VM assumptions to the
// pod/container model.
package mountutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	sandboxDir = "/tmp/hyper"
)

// MountEssential mounts /proc, /sys, devtmpfs on /dev, and devpts on
// /dev/pts, then symlinks /dev/ptmx, matching init.c's main(). Unlike the
// teacher's single read-only-rootfs-remount model, this does not remount /
// read-only: a pod's root is the VM's own filesystem and multiple
// containers pivot into their own rootfs independently (§4.E).
func MountEssential(log *logrus.Entry) error {
	mounts := []struct {
		source, target, fstype string
		flags                  uintptr
	}{
		{"proc", "/proc", "proc", 0},
		{"sysfs", "/sys", "sysfs", 0},
		{"devtmpfs", "/dev", "devtmpfs", 0},
		{"devpts", "/dev/pts", "devpts", 0},
	}
	for _, m := range mounts {
		os.MkdirAll(m.target, 0755)
		if err := unix.Mount(m.source, m.target, m.fstype, m.flags, ""); err != nil && err != unix.EBUSY {
			return fmt.Errorf("mountutil: mount %s on %s: %w", m.source, m.target, err)
		}
	}

	os.Remove("/dev/ptmx")
	if err := os.Symlink("pts/ptmx", "/dev/ptmx"); err != nil && !os.IsExist(err) {
		if log != nil {
			log.WithError(err).Warn("symlink /dev/ptmx")
		}
	}
	return nil
}

// PrepareSandboxDirs creates the sandbox directory and the virtual
// hyperstart-exec container directory with its devpts symlink, per
// spec.md §4.F step 6 and §6.
func PrepareSandboxDirs(execContainerName string) error {
	execDir := filepath.Join(sandboxDir, execContainerName)
	if err := os.MkdirAll(execDir, 0755); err != nil {
		return fmt.Errorf("mountutil: mkdir %s: %w", execDir, err)
	}
	link := filepath.Join(execDir, "devpts")
	os.Remove(link)
	if err := os.Symlink("/dev/pts", link); err != nil && !os.IsExist(err) {
		return fmt.Errorf("mountutil: symlink %s: %w", link, err)
	}
	return nil
}

// SetRlimits applies the kernel limits spec.md §6 lists: file-max via
// /proc/sys, and RLIMIT_NOFILE/RLIMIT_NPROC/RLIMIT_SIGPENDING via setrlimit.
func SetRlimits() error {
	if err := os.WriteFile("/proc/sys/fs/file-max", []byte("1000000"), 0644); err != nil {
		// Non-fatal: a restrictive container environment may not expose
		// this sysctl as writable; the reactor still works within whatever
		// limit is already configured.
	}

	limits := []struct {
		resource int
		cur, max uint64
	}{
		{unix.RLIMIT_NOFILE, 1000000, 1000000},
		{unix.RLIMIT_NPROC, 30604, 30604},
		{unix.RLIMIT_SIGPENDING, 30604, 30604},
	}
	for _, l := range limits {
		rlim := unix.Rlimit{Cur: l.cur, Max: l.max}
		if err := unix.Setrlimit(l.resource, &rlim); err != nil {
			return fmt.Errorf("mountutil: setrlimit %d: %w", l.resource, err)
		}
	}
	return nil
}

// shareManager implements hyper.ShareMount for the 9p and vboxsf variants
// (SPEC_FULL.md §5 "VirtualBox transport and share variant").
type shareManager struct {
	Target string
	VBox   bool
}

func NewShareMount(target string, vbox bool) *shareManager {
	return &shareManager{Target: target, VBox: vbox}
}

func (s *shareManager) Mount(shareTag string) error {
	if shareTag == "" {
		return nil // no share configured, skip silently (§4.F step 3)
	}
	os.MkdirAll(s.Target, 0755)
	if s.VBox {
		return unix.Mount(shareTag, s.Target, "vboxsf", 0, "")
	}
	const opts = "trans=virtio,version=9p2000.L,rw"
	return unix.Mount(shareTag, s.Target, "9p", 0, opts)
}
