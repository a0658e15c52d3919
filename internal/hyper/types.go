package hyper

import (
	"os"

	"github.com/xfeldman/hyperstart/internal/protocol"
)

// Exec is one supervised process: a container's init or an ad-hoc command
// run against the virtual hyperstart-exec container. Spec.md §3.
type Exec struct {
	ContainerID string // or protocol.HyperstartExecContainer for pod-level execs
	ProcessID   string
	Pid         int // 0 before fork, -1 after reap
	Seq         uint64
	TTY         bool

	PtyMaster *os.File // set when TTY
	StdinW    *os.File // set when !TTY
	StdoutR   *os.File // set when !TTY

	State             protocol.ExitState
	Code              int
	CloseStdinRequest bool
	stdoutEOFSent     bool // tracks I4: EOF frame must precede exit-status frame
}

// ReadyForExitFrame reports whether stdout has drained so the exit-status
// frame may follow the EOF frame (spec.md §4.D ordering rule).
func (e *Exec) ReadyForExitFrame() bool {
	return e.State == protocol.ExitExited && e.stdoutEOFSent
}

// MarkStdoutEOF latches that the EOF frame for this exec has been sent.
func (e *Exec) MarkStdoutEOF() { e.stdoutEOFSent = true }

// EmitExitIfReady sends the exit-status frame once both halves of I4's
// ordering requirement are satisfied (reaped, and stdout drained),
// whichever happened second. It is safe to call from both the reap path
// and the stdout-EOF path; it is a no-op once already reported.
func EmitExitIfReady(e *Exec, sink TtySink) {
	if !e.ReadyForExitFrame() {
		return
	}
	sink.Enqueue(e.Seq, []byte{byte(e.Code)})
	e.State = protocol.ExitReported
}

// Container is one pod member. Spec.md §3.
type Container struct {
	ID       string
	RootPath string   // resolved by the RootfsSetup collaborator
	NS       *os.File // handle to the container's mount namespace (/proc/<pid>/ns/mnt)
	Exec     *Exec
}

// Pod is the process-wide singleton state, owned by main and threaded
// explicitly rather than held in a package-level global (Design Notes).
type Pod struct {
	Hostname   string
	ShareTag   string
	InitPID    int
	Remains    int
	ReqDestroy bool

	Containers []*Container
	Execs      []*Exec // pod-owned ad-hoc execs (EXECCMD against hyperstart-exec)
}

// NewPod returns an empty pod ready for STARTPOD.
func NewPod() *Pod {
	return &Pod{}
}
