package control

import (
	"os"
	"path/filepath"
)

// onlineCPUMemAsync implements ONLINECPUMEM's hotplug scan: write "1" to
// every offline cpu/memory-block "online" sysfs node. Spec.md §4.G marks
// this ACK-then-async, matching init.c's fork-and-return behaviour — here a
// goroutine stands in for the forked helper since nothing needs to block
// the reactor on its completion.
func onlineCPUMemAsync() {
	onlineAll("/sys/devices/system/cpu/cpu*/online")
	onlineAll("/sys/devices/system/memory/memory*/online")
}

func onlineAll(pattern string) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(data) > 0 && data[0] == '0' {
			os.WriteFile(path, []byte("1"), 0644)
		}
	}
}
