package hyper

// This file declares the interfaces the core lifecycle consumes but does not
// implement, per spec.md §1 "Out of scope (external collaborators)" and §6
// "External Interfaces". Concrete implementations live in internal/rootfs,
// internal/netconf and internal/mountutil and are injected by cmd/hyperstart;
// tests inject fakes. Keeping these as interfaces (rather than importing the
// concrete packages directly) is what lets internal/hyper stay a pure,
// synchronously-testable state machine with no fork/mount/netlink side
// effects of its own.

// RootfsSetup prepares a container's filesystem (mount or unpack its rootfs,
// bind-mount volumes, seed /dev and hostname files) and later tears it down.
// Spec.md §4.E step 3.
type RootfsSetup interface {
	Setup(containerID string, spec []byte) (rootPath string, err error)
	Cleanup(containerID string, rootPath string) error
}

// NetworkSetup configures the pod's network, DNS and routes. Spec.md §4.F
// step 2 and the SETUPINTERFACE/SETUPROUTE control commands (§4.G).
type NetworkSetup interface {
	ConfigurePod(spec []byte) error
	SetupInterface(spec []byte) error
	SetupRoute(spec []byte) error
}

// ShareMount mounts (or skips, if no tag is configured) the host-shared
// directory. Spec.md §4.F step 3; supports both the 9p and vboxsf variants
// (SUPPLEMENTED FEATURES in SPEC_FULL.md §5).
type ShareMount interface {
	Mount(shareTag string) error
}

// PortMapper configures host↔pod port forwarding. Spec.md §4.F step 4.
type PortMapper interface {
	Apply(spec []byte) error
}

// ModuleLoader loads any kernel modules the rootfs/share backend requires
// (e.g. vboxsf). Explicit Non-goal collaborator (spec.md §1); the default
// implementation is a no-op.
type ModuleLoader interface {
	Load(name string) error
}

// DeviceRescanner triggers a kernel rescan for newly attached channel
// devices. Explicit Non-goal collaborator (spec.md §1); the default
// implementation is a no-op.
type DeviceRescanner interface {
	Rescan() error
}

// Shutdown halts the VM once teardown has flushed both channels. Spec.md
// §4.B "an external shutdown collaborator".
type Shutdown interface {
	Halt() error
}

// NoopModuleLoader and NoopDeviceRescanner are the defaults used whenever a
// host transport genuinely has nothing to load or rescan.
type NoopModuleLoader struct{}

func (NoopModuleLoader) Load(string) error { return nil }

type NoopDeviceRescanner struct{}

func (NoopDeviceRescanner) Rescan() error { return nil }
