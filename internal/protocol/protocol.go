// Package protocol defines the wire-level constants shared by the control
// and tty channels: command type codes, frame sizes, and the fixed
// environment spawned processes run under.
package protocol

// Control channel command/reply type codes. Values are fixed by the literal
// bytes in the end-to-end scenarios the host and guest exchange (GETVERSION
// must be 1, PING must be 9, ACK must be 11); the remaining values are this
// implementation's own assignment and are not otherwise specified.
const (
	GetVersion uint32 = 1
	StartPod   uint32 = 2

	getPodDeprecated          uint32 = 3
	stopPodDeprecated         uint32 = 4
	DestroyPod                uint32 = 5
	restartContainerDeprecated uint32 = 6

	ExecCmd uint32 = 7

	cmdFinishedDeprecated uint32 = 8

	Ping uint32 = 9

	podFinishedDeprecated uint32 = 10

	Ack   uint32 = 11
	Error uint32 = 12

	WinSize         uint32 = 13
	Ready           uint32 = 14
	Next            uint32 = 15
	WriteFile       uint32 = 16
	ReadFile        uint32 = 17
	NewContainer    uint32 = 18
	KillContainer   uint32 = 19
	OnlineCPUMem    uint32 = 20
	SetupInterface  uint32 = 21
	SetupRoute      uint32 = 22
	RemoveContainer uint32 = 23
	SignalProcess   uint32 = 24
)

// DeprecatedCommands is the set of type codes the dispatcher must answer
// with ERROR without further processing.
var DeprecatedCommands = map[uint32]bool{
	getPodDeprecated:           true,
	stopPodDeprecated:          true,
	restartContainerDeprecated: true,
	cmdFinishedDeprecated:      true,
	podFinishedDeprecated:      true,
}

// APIVersion is the value returned by GETVERSION.
const APIVersion uint32 = 4426

// DefaultPATH is the fixed PATH spawned processes run under, independent of
// whatever the rootfs image sets.
const DefaultPATH = "PATH=/bin:/sbin/:/usr/bin/:/usr/sbin/"

// ExitState is the tri-state lifecycle of an Exec's exit reporting.
type ExitState int

const (
	ExitRunning ExitState = iota
	ExitExited
	ExitReported
)

// HyperstartExecContainer is the directory name of the virtual container
// used to host execs with no concrete container target.
const HyperstartExecContainer = "hyperstart-exec"
