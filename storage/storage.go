// Package storage defines the artifact store holding original images and
// rendered overlays under the media root.
package storage

// Area names under the media root. Overlays move from the pending area to the
// verified area when an annotation is approved.
const (
	AreaImages     = "images"
	AreaPending    = "pending_verifications"
	AreaVerified   = "verified_annotations"
	AreaThumbnails = "thumbnails"
)

// Store is the interface for artifact file operations. All paths are relative
// to the media root.
type Store interface {
	// Read returns the raw bytes of the artifact at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Move renames srcPath to dstPath.
	Move(srcPath, dstPath string) error
	// Exists reports whether an artifact is present at path.
	Exists(path string) bool
	// Abs resolves path to an absolute location on disk.
	Abs(path string) (string, error)
}
