package hyper

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// PodSpec is the already-JSON-decoded STARTPOD body.
type PodSpec struct {
	Hostname   string
	ShareTag   string
	Network    []byte // forwarded to NetworkSetup.ConfigurePod
	PortMaps   []byte // forwarded to PortMapper.Apply
	Containers []ContainerSpec
}

// StartPod implements spec.md §4.F steps 1-7, except for step 5 (the
// sandbox-init clone), which is internal/sandbox's responsibility and is
// invoked by the caller before containers are started — see cmd/hyperstart.
func (p *Pod) StartPod(spec PodSpec, net NetworkSetup, share ShareMount, ports PortMapper, rootfs RootfsSetup, log *logrus.Entry) error {
	syncClock(log)
	logUptime(log)

	p.Hostname = spec.Hostname
	p.ShareTag = spec.ShareTag

	if err := net.ConfigurePod(spec.Network); err != nil {
		return fmt.Errorf("hyper: configure network: %w", err)
	}
	if err := share.Mount(spec.ShareTag); err != nil {
		return fmt.Errorf("hyper: mount share: %w", err)
	}
	if err := ports.Apply(spec.PortMaps); err != nil {
		return fmt.Errorf("hyper: apply port maps: %w", err)
	}

	// Step 7: start declared containers in order. Open Question decision
	// #3 (DESIGN.md): abort the whole pod on the first failure, matching
	// init.c's hyper_start_containers rather than a partial-start policy.
	for _, cs := range spec.Containers {
		if _, err := p.NewContainer(cs, rootfs, log); err != nil {
			return fmt.Errorf("hyper: start container %q: %w", cs.ID, err)
		}
	}
	return nil
}

// syncClock is a best-effort hardware-clock sync, matching init.c's
// hyper_sync_time_hctosys: the original treats a failure here as non-fatal,
// and there is no portable non-cgo primitive for it, so this is a logged
// no-op (DESIGN.md Open Question decision #4).
func syncClock(log *logrus.Entry) {
	if log != nil {
		log.Debug("hardware clock sync skipped (no non-cgo primitive available)")
	}
}

// logUptime reports /proc/uptime at pod start, matching init.c's
// hyper_print_uptime (SPEC_FULL.md §5).
func logUptime(log *logrus.Entry) {
	if log == nil {
		return
	}
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return
	}
	fields := strings.Fields(string(data))
	if len(fields) > 0 {
		log.WithField("uptime_seconds", fields[0]).Info("pod starting")
	}
}

// Teardown implements spec.md §4.F's teardown procedure. If the sandbox init
// has never been created or no exec is left alive, it reports "quiesced"
// and the caller should flush channels and halt the VM. Otherwise it begins
// the SIGTERM sweep and returns false — the reap loop drives the pod to
// quiescence as SIGCHLD arrives.
func (p *Pod) Teardown(log *logrus.Entry) (quiesced bool) {
	p.ReqDestroy = true
	if p.InitPID == 0 || p.Remains == 0 {
		return true
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("teardown: read /proc")
		}
		return false
	}

	var pids []int
	for _, ent := range entries {
		var pid int
		if _, err := fmt.Sscanf(ent.Name(), "%d", &pid); err != nil || pid <= 1 {
			continue
		}
		pids = append(pids, pid)
	}
	for i := len(pids) - 1; i >= 0; i-- {
		syscall.Kill(pids[i], syscall.SIGTERM)
	}

	// Escalate to SIGKILL for any exec whose process ignores SIGTERM,
	// matching init.c's /proc/<pid>/status SigIgn-mask check.
	for _, c := range p.Containers {
		if c.Exec != nil && c.Exec.Pid > 0 && ignoresSigterm(c.Exec.Pid) {
			syscall.Kill(c.Exec.Pid, syscall.SIGKILL)
		}
	}
	for _, e := range p.Execs {
		if e.Pid > 0 && ignoresSigterm(e.Pid) {
			syscall.Kill(e.Pid, syscall.SIGKILL)
		}
	}
	return false
}

// ignoresSigterm reads /proc/<pid>/status and tests bit 14 (SIGTERM) of the
// SigIgn bitmask, exactly as init.c's hyper_kill_process does.
func ignoresSigterm(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return false
	}
	const sigtermBit = 1 << (syscall.SIGTERM - 1)
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "SigIgn:") {
			continue
		}
		var mask uint64
		fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, "SigIgn:")), "%x", &mask)
		return mask&sigtermBit != 0
	}
	return false
}
