package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

type fileRefWire struct {
	Container string `json:"container"`
	File      string `json:"file"`
}

// handleWriteFile implements spec.md §4.G's WRITEFILE: the payload boundary
// is the first '}' in the JSON header prefix, with raw file bytes
// immediately following in the same frame.
func (d *Dispatcher) handleWriteFile(body []byte) Reply {
	idx := bytes.IndexByte(body, '}')
	if idx < 0 {
		return errReply(fmt.Errorf("control: writefile: no JSON header boundary"))
	}
	var ref fileRefWire
	if err := json.Unmarshal(body[:idx+1], &ref); err != nil {
		return errReply(fmt.Errorf("control: writefile: decode header: %w", err))
	}
	data := body[idx+1:]

	if err := d.withContainerNS(ref.Container, func() error {
		return os.WriteFile(ref.File, data, 0644)
	}); err != nil {
		return errReply(err)
	}
	return ack(nil)
}

func (d *Dispatcher) handleReadFile(body []byte) Reply {
	var ref fileRefWire
	if err := json.Unmarshal(body, &ref); err != nil {
		return errReply(err)
	}
	var data []byte
	if err := d.withContainerNS(ref.Container, func() error {
		b, err := os.ReadFile(ref.File)
		data = b
		return err
	}); err != nil {
		return errReply(err)
	}
	return ack(data)
}

// withContainerNS runs fn with the calling goroutine's OS thread entered
// into the target container's mount namespace, then returns the thread to
// its original namespace before releasing it. This is the Go-idiomatic
// equivalent of the original's setns-in-a-forked-helper-child: a dedicated,
// OS-thread-locked goroutine stands in for the helper process, since Go
// cannot safely fork() without exec'ing.
func (d *Dispatcher) withContainerNS(containerID string, fn func() error) error {
	if containerID == "" {
		return fn()
	}
	c, ok := d.Pod.FindContainer(containerID)
	if !ok || c.NS == nil {
		return fmt.Errorf("control: unknown container %q", containerID)
	}

	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		self, err := os.Open("/proc/thread-self/ns/mnt")
		if err != nil {
			errCh <- fmt.Errorf("control: open self mnt ns: %w", err)
			return
		}
		defer self.Close()

		if err := unix.Setns(int(c.NS.Fd()), unix.CLONE_NEWNS); err != nil {
			errCh <- fmt.Errorf("control: setns into container %q: %w", containerID, err)
			return
		}

		fnErr := fn()

		if err := unix.Setns(int(self.Fd()), unix.CLONE_NEWNS); err != nil && fnErr == nil {
			fnErr = fmt.Errorf("control: restore mnt ns: %w", err)
		}
		errCh <- fnErr
	}()
	return <-errCh
}
