// Package rootfs implements the external rootfs-image collaborator named in
// spec.md §1 ("filesystem mounting of container rootfs images") and used by
// internal/hyper's NEWCONTAINER handler (§4.E step 3). It resolves an OCI
// image reference and unpacks its layers onto a per-container directory;
// the namespace/mount-tree construction and the eventual chroot stay in
// internal/hyper/exec.go.
package rootfs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/klauspost/compress/gzip"
)

// Spec is the decoded NEWCONTAINER "rootfs" body for the OCI-image variant.
type Spec struct {
	Image string `json:"image"`
}

// Manager implements hyper.RootfsSetup against a directory tree under Base.
type Manager struct {
	Base string // e.g. "/run/hyperstart/containers"
}

func New(base string) *Manager { return &Manager{Base: base} }

// Setup resolves spec.Image, pulls its manifest, and extracts every layer
// (gzip-compressed tars, per the OCI image spec) into a fresh directory.
func (m *Manager) Setup(containerID string, rawSpec []byte) (string, error) {
	var spec Spec
	if err := json.Unmarshal(rawSpec, &spec); err != nil {
		return "", fmt.Errorf("rootfs: decode spec for %q: %w", containerID, err)
	}
	if spec.Image == "" {
		return "", fmt.Errorf("rootfs: container %q has no image reference", containerID)
	}

	root := filepath.Join(m.Base, containerID)
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("rootfs: mkdir %s: %w", root, err)
	}

	ref, err := name.ParseReference(spec.Image)
	if err != nil {
		return "", fmt.Errorf("rootfs: parse image ref %q: %w", spec.Image, err)
	}
	img, err := remote.Image(ref)
	if err != nil {
		return "", fmt.Errorf("rootfs: fetch image %q: %w", spec.Image, err)
	}
	layers, err := img.Layers()
	if err != nil {
		return "", fmt.Errorf("rootfs: list layers for %q: %w", spec.Image, err)
	}

	for i, l := range layers {
		if err := extractLayer(l, root); err != nil {
			os.RemoveAll(root)
			return "", fmt.Errorf("rootfs: extract layer %d of %q: %w", i, spec.Image, err)
		}
	}
	return root, nil
}

// Cleanup removes a container's extracted rootfs directory.
func (m *Manager) Cleanup(containerID string, rootPath string) error {
	if rootPath == "" {
		return nil
	}
	return os.RemoveAll(rootPath)
}

type layerOpener interface {
	Compressed() (io.ReadCloser, error)
}

// extractLayer decompresses one OCI layer blob with klauspost/compress's
// gzip reader (faster than compress/gzip for the layer sizes real images
// carry) and unpacks its tar entries under dest. Tar entry walking itself
// uses the standard archive/tar reader, which has no ecosystem replacement
// in the corpus.
func extractLayer(l layerOpener, dest string) error {
	rc, err := l.Compressed()
	if err != nil {
		return err
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	return untar(gz, dest)
}
