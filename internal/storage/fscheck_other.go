//go:build !darwin && !linux

package storage

// Filesystem type detection is not wired on this platform; treat as local.
func detectFilesystemType(path string) (string, error) {
	return "unknown", nil
}
