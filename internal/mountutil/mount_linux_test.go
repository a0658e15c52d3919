package mountutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareSandboxDirsCreatesExecContainerLayout(t *testing.T) {
	name := "test-hyperstart-exec"
	defer os.RemoveAll(filepath.Join(sandboxDir, name))

	require.NoError(t, PrepareSandboxDirs(name))

	execDir := filepath.Join(sandboxDir, name)
	info, err := os.Stat(execDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	link := filepath.Join(execDir, "devpts")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "/dev/pts", target)
}

func TestShareMountSkipsWhenNoTag(t *testing.T) {
	s := NewShareMount(t.TempDir(), false)
	assert.NoError(t, s.Mount(""))
}
