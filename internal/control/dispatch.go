// Package control implements spec.md §4.G: decode a command frame's type,
// invoke the matching handler, and produce the ACK/ERROR reply. JSON
// decoding of command payloads is itself the external collaborator named in
// spec.md §1 — this package is the thin boundary that turns raw bytes into
// the structs internal/hyper's handlers expect, using plain encoding/json
// (DESIGN.md explains why no ecosystem JSON library improves on that here).
package control

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/xfeldman/hyperstart/internal/hyper"
	"github.com/xfeldman/hyperstart/internal/protocol"
	"github.com/xfeldman/hyperstart/internal/reactor"
)

// Reply is the dispatcher's answer to one command frame: always exactly one
// ACK or ERROR, satisfying invariant I3's one-to-one FIFO response rule.
type Reply struct {
	Type    uint32
	Payload []byte
}

func ack(payload []byte) Reply  { return Reply{Type: protocol.Ack, Payload: payload} }
func errReply(err error) Reply {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Reply{Type: protocol.Error, Payload: []byte(msg)}
}

// Dispatcher holds everything a command handler needs: the pod state and
// the external collaborators spec.md §6 enumerates.
type Dispatcher struct {
	Pod          *hyper.Pod
	Net          hyper.NetworkSetup
	Share        hyper.ShareMount
	Ports        hyper.PortMapper
	Rootfs       hyper.RootfsSetup
	ModuleLoader hyper.ModuleLoader
	Rescanner    hyper.DeviceRescanner
	Shutdown     hyper.Shutdown
	Log          *logrus.Entry

	// Reactor and Sink are set by cmd/hyperstart after the channel I/O is
	// constructed, so every newly spawned exec can be wired into tty
	// forwarding (RegisterExecIO) at the point it is created.
	Reactor *reactor.Reactor
	Sink    hyper.TtySink

	// OnStartPod runs the sandbox-init clone (§4.F step 5). It is invoked
	// before Pod.StartPod, so the clone happens ahead of STARTPOD's
	// network, share-mount and port-map steps as well as the container
	// starts; it does not wait for those steps. It is set by
	// cmd/hyperstart.
	OnStartPod func(hostname string) (initPid int, err error)

	podStarted bool // gates I6: nothing but GETVERSION/PING/DESTROYPOD before STARTPOD
}

// Dispatch implements the single entry point the reactor's control-channel
// read callback calls once per decoded frame.
func (d *Dispatcher) Dispatch(typ uint32, body []byte) Reply {
	if protocol.DeprecatedCommands[typ] {
		return errReply(fmt.Errorf("control: command %d is deprecated", typ))
	}

	if !d.podStarted && typ != protocol.StartPod && !gateExempt(typ) {
		return errReply(fmt.Errorf("control: command %d received before STARTPOD", typ))
	}

	switch typ {
	case protocol.GetVersion:
		return d.handleGetVersion()
	case protocol.Ping:
		return ack(nil)
	case protocol.Ready:
		if err := d.Rescanner.Rescan(); err != nil {
			return errReply(err)
		}
		return ack(nil)
	case protocol.StartPod:
		return d.handleStartPod(body)
	case protocol.DestroyPod:
		return d.handleDestroyPod()
	case protocol.NewContainer:
		return d.handleNewContainer(body)
	case protocol.RemoveContainer:
		return d.handleRemoveContainer(body)
	case protocol.KillContainer:
		return d.handleKillContainer(body)
	case protocol.SignalProcess:
		return d.handleSignalProcess(body)
	case protocol.ExecCmd:
		return d.handleExecCmd(body)
	case protocol.WinSize:
		return d.handleWinSize(body)
	case protocol.WriteFile:
		return d.handleWriteFile(body)
	case protocol.ReadFile:
		return d.handleReadFile(body)
	case protocol.OnlineCPUMem:
		return d.handleOnlineCPUMem()
	case protocol.SetupInterface:
		if err := d.Net.SetupInterface(body); err != nil {
			return errReply(err)
		}
		return ack(nil)
	case protocol.SetupRoute:
		if err := d.Net.SetupRoute(body); err != nil {
			return errReply(err)
		}
		return ack(nil)
	default:
		return errReply(fmt.Errorf("control: unknown command %d", typ))
	}
}

// gateExempt lists the commands allowed before STARTPOD (I6).
func gateExempt(typ uint32) bool {
	switch typ {
	case protocol.GetVersion, protocol.Ping, protocol.DestroyPod:
		return true
	}
	return false
}

func (d *Dispatcher) handleGetVersion() Reply {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, protocol.APIVersion)
	return ack(body)
}

type startPodWire struct {
	Hostname   string              `json:"hostname"`
	ShareTag   string              `json:"shareTag,omitempty"`
	Network    json.RawMessage     `json:"network,omitempty"`
	PortMaps   json.RawMessage     `json:"portMaps,omitempty"`
	Containers []containerSpecWire `json:"containers"`
}

type containerSpecWire struct {
	ID      string          `json:"id"`
	Rootfs  json.RawMessage `json:"rootfs"`
	Process processWire     `json:"process"`
}

type processWire struct {
	Args    []string `json:"args"`
	Env     []string `json:"env,omitempty"`
	Workdir string   `json:"workdir,omitempty"`
	TTY     bool     `json:"terminal,omitempty"`
	Seq     uint64   `json:"stdioSeq,omitempty"`
}

func (d *Dispatcher) handleStartPod(body []byte) Reply {
	var wire startPodWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return errReply(fmt.Errorf("control: decode pod spec: %w", err))
	}

	spec := hyper.PodSpec{
		Hostname: wire.Hostname,
		ShareTag: wire.ShareTag,
		Network:  wire.Network,
		PortMaps: wire.PortMaps,
	}
	for _, c := range wire.Containers {
		spec.Containers = append(spec.Containers, hyper.ContainerSpec{
			ID:      c.ID,
			Rootfs:  c.Rootfs,
			Args:    c.Process.Args,
			Env:     c.Process.Env,
			Workdir: c.Process.Workdir,
			TTY:     c.Process.TTY,
			Seq:     c.Process.Seq,
		})
	}

	initPid, err := d.OnStartPod(wire.Hostname)
	if err != nil {
		return errReply(fmt.Errorf("control: sandbox init: %w", err))
	}
	d.Pod.InitPID = initPid

	if err := d.Pod.StartPod(spec, d.Net, d.Share, d.Ports, d.Rootfs, d.Log); err != nil {
		return errReply(err)
	}
	d.podStarted = true
	return ack(nil)
}

func (d *Dispatcher) handleDestroyPod() Reply {
	if d.Pod != nil {
		d.Pod.Teardown(d.Log)
	}
	return ack(nil)
}

func (d *Dispatcher) handleNewContainer(body []byte) Reply {
	var c containerSpecWire
	if err := json.Unmarshal(body, &c); err != nil {
		return errReply(fmt.Errorf("control: decode container spec: %w", err))
	}
	spec := hyper.ContainerSpec{
		ID:      c.ID,
		Rootfs:  c.Rootfs,
		Args:    c.Process.Args,
		Env:     c.Process.Env,
		Workdir: c.Process.Workdir,
		TTY:     c.Process.TTY,
		Seq:     c.Process.Seq,
	}
	ctr, err := d.Pod.NewContainer(spec, d.Rootfs, d.Log)
	if err != nil {
		return errReply(err)
	}
	if err := hyper.RegisterExecIO(d.Reactor, ctr.Exec, d.Sink); err != nil {
		d.Log.WithError(err).Warn("register container exec io")
	}
	return ack(nil)
}

type containerRefWire struct {
	Container string `json:"container"`
}

func (d *Dispatcher) handleRemoveContainer(body []byte) Reply {
	var r containerRefWire
	if err := json.Unmarshal(body, &r); err != nil {
		return errReply(err)
	}
	if err := d.Pod.RemoveContainer(r.Container, d.Rootfs); err != nil {
		return errReply(err)
	}
	return ack(nil)
}

type signalWire struct {
	Container string `json:"container"`
	Process   string `json:"process,omitempty"`
	Signal    int    `json:"signal"`
}

func (d *Dispatcher) handleKillContainer(body []byte) Reply {
	var s signalWire
	if err := json.Unmarshal(body, &s); err != nil {
		return errReply(err)
	}
	if err := d.Pod.KillContainer(s.Container, syscall.Signal(s.Signal)); err != nil {
		return errReply(err)
	}
	return ack(nil)
}

func (d *Dispatcher) handleSignalProcess(body []byte) Reply {
	var s signalWire
	if err := json.Unmarshal(body, &s); err != nil {
		return errReply(err)
	}
	if err := d.Pod.SignalProcess(s.Container, s.Process, syscall.Signal(s.Signal)); err != nil {
		return errReply(err)
	}
	return ack(nil)
}

type execSpecWire struct {
	Container string      `json:"container"`
	Process   processWire `json:"process"`
}

func (d *Dispatcher) handleExecCmd(body []byte) Reply {
	var w execSpecWire
	if err := json.Unmarshal(body, &w); err != nil {
		return errReply(err)
	}
	containerID := w.Container
	if containerID == "" {
		containerID = protocol.HyperstartExecContainer
	}

	rootPath := ""
	if containerID != protocol.HyperstartExecContainer {
		c, ok := d.Pod.FindContainer(containerID)
		if !ok {
			return errReply(fmt.Errorf("control: exec: unknown container %q", containerID))
		}
		rootPath = c.RootPath
	}

	e, err := hyper.Spawn(hyper.ExecSpec{
		ContainerID: containerID,
		ProcessID:   fmt.Sprintf("exec-%d", w.Process.Seq),
		Args:        w.Process.Args,
		Env:         w.Process.Env,
		Workdir:     w.Process.Workdir,
		TTY:         w.Process.TTY,
		Seq:         w.Process.Seq,
	}, rootPath, d.Log)
	if err != nil {
		return errReply(err)
	}
	d.Pod.Execs = append(d.Pod.Execs, e)
	if err := hyper.RegisterExecIO(d.Reactor, e, d.Sink); err != nil {
		d.Log.WithError(err).Warn("register exec io")
	}
	return ack(nil)
}

type winSizeWire struct {
	Container string `json:"container"`
	Process   string `json:"process"`
	Row       uint16 `json:"row"`
	Column    uint16 `json:"column"`
}

func (d *Dispatcher) handleWinSize(body []byte) Reply {
	var w winSizeWire
	if err := json.Unmarshal(body, &w); err != nil {
		return errReply(err)
	}
	e, ok := d.Pod.FindExec(w.Container, w.Process)
	if !ok || e.PtyMaster == nil {
		return errReply(fmt.Errorf("control: winsize: no pty for %s/%s", w.Container, w.Process))
	}
	if err := resizePty(e, w.Row, w.Column); err != nil {
		return errReply(err)
	}
	return ack(nil)
}

func (d *Dispatcher) handleOnlineCPUMem() Reply {
	go onlineCPUMemAsync()
	return ack(nil)
}
