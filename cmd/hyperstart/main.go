// Command hyperstart is the guest PID 1 process that runs inside a
// lightweight VM, accepts pod/container commands from a host controller
// over two virtio-serial byte streams, and supervises the resulting
// container processes until pod teardown.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xfeldman/hyperstart/internal/channel"
	"github.com/xfeldman/hyperstart/internal/control"
	"github.com/xfeldman/hyperstart/internal/hyper"
	"github.com/xfeldman/hyperstart/internal/mountutil"
	"github.com/xfeldman/hyperstart/internal/netconf"
	"github.com/xfeldman/hyperstart/internal/protocol"
	"github.com/xfeldman/hyperstart/internal/reactor"
	"github.com/xfeldman/hyperstart/internal/reap"
	"github.com/xfeldman/hyperstart/internal/rootfs"
	"github.com/xfeldman/hyperstart/internal/sandbox"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := log.WithField("component", "hyperstart")

	if err := run(entry); err != nil {
		entry.WithError(err).Fatal("hyperstart exiting")
	}
}

func run(log *logrus.Entry) error {
	if err := mountutil.MountEssential(log); err != nil {
		return fmt.Errorf("mount essential filesystems: %w", err)
	}
	if err := mountutil.SetRlimits(); err != nil {
		log.WithError(err).Warn("set rlimits")
	}
	if err := mountutil.PrepareSandboxDirs(protocol.HyperstartExecContainer); err != nil {
		return fmt.Errorf("prepare sandbox dirs: %w", err)
	}
	if err := reap.BecomeSubreaper(); err != nil {
		log.WithError(err).Warn("become subreaper")
	}
	if err := reap.BlockSigchld(); err != nil {
		return fmt.Errorf("block sigchld: %w", err)
	}

	transport := resolveTransport()
	ctlFile, ttyFile, err := channel.Open(transport)
	if err != nil {
		return fmt.Errorf("open channels: %w", err)
	}
	defer ctlFile.Close()
	defer ttyFile.Close()

	r, err := reactor.New()
	if err != nil {
		return fmt.Errorf("new reactor: %w", err)
	}
	defer r.Close()

	sigchldFd, err := reap.NewSignalFD()
	if err != nil {
		return fmt.Errorf("new signalfd: %w", err)
	}
	defer sigchldFd.Close()

	pod := hyper.NewPod()
	disp := &control.Dispatcher{
		Pod:          pod,
		Net:          netconf.New(),
		Share:        mountutil.NewShareMount("/run/hyperstart/share", transport == channel.TransportVBoxSerial),
		Ports:        netconf.NewPortMapper(),
		Rootfs:       rootfs.New("/run/hyperstart/containers"),
		ModuleLoader: hyper.NoopModuleLoader{},
		Rescanner:    hyper.NoopDeviceRescanner{},
		Log:          log,
		OnStartPod: func(hostname string) (int, error) {
			return sandbox.Start(hostname)
		},
	}

	io := control.NewChannelIO(ctlFile, ttyFile, disp, r)
	disp.Reactor = r
	disp.Sink = io.TtySink()
	if err := io.Register(); err != nil {
		return fmt.Errorf("register channels: %w", err)
	}

	sigEv := &reactor.Event{
		Fd: int(sigchldFd.Fd()),
		Read: func() (reactor.Disposition, error) {
			reap.Drain1(sigchldFd)
			reapErr := reap.Drain(func(res reap.ExitResult) {
				onChildExit(pod, io, res, log)
			})
			if reapErr != nil {
				log.WithError(reapErr).Warn("reap drain")
			}
			return reactor.More, nil
		},
	}
	if err := r.Register(sigEv, false); err != nil {
		return fmt.Errorf("register signalfd: %w", err)
	}

	log.Info("hyperstart ready")
	for {
		if err := r.RunOnce(-1); err != nil {
			return fmt.Errorf("reactor: %w", err)
		}
		if pod.ReqDestroy && pod.Remains == 0 {
			log.Info("pod quiesced, halting")
			return nil
		}
	}
}

// onChildExit implements the tail of spec.md §4.H: mark the exec exited,
// record its exit code, clear its pid, decrement remains, and emit the
// exit-status frame if stdout has already reached EOF (otherwise the
// stdout-EOF path emits it later). Shutdown is not started here: the main
// loop in run stops once the pod is both destroy-requested and quiesced.
func onChildExit(pod *hyper.Pod, io *control.ChannelIO, res reap.ExitResult, log *logrus.Entry) {
	e, ok := pod.FindExecByPid(res.Pid)
	if !ok {
		return // reaped orphan, discarded silently per §4.H
	}
	e.State = protocol.ExitExited
	e.Code = res.Code
	e.Pid = -1
	pod.Remains--

	hyper.EmitExitIfReady(e, io.TtySink())
	log.WithFields(logrus.Fields{
		"container": e.ContainerID,
		"process":   e.ProcessID,
		"code":      e.Code,
	}).Info("exec exited")
}

func resolveTransport() channel.Transport {
	if os.Getenv("HYPERSTART_VBOX") == "1" {
		return channel.TransportVBoxSerial
	}
	return channel.TransportVirtioSerial
}
