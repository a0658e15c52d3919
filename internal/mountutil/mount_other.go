//go:build !linux

package mountutil

import "github.com/sirupsen/logrus"

// This binary only ever runs as PID 1 inside a Linux guest; these stubs
// exist solely so the package still builds on a development machine.

func MountEssential(log *logrus.Entry) error { return nil }

func PrepareSandboxDirs(execContainerName string) error { return nil }

func SetRlimits() error { return nil }

type shareManager struct{}

func NewShareMount(target string, vbox bool) *shareManager { return &shareManager{} }

func (s *shareManager) Mount(shareTag string) error { return nil }
