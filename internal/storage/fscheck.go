package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var remoteFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// fsDetector reports the filesystem type name of an existing path.
type fsDetector func(path string) (string, error)

// checkLocalFilesystem refuses settings databases on network mounts, where a
// synchronous commit is not a durable one.
func checkLocalFilesystem(path string) error {
	return checkLocalFilesystemWith(path, detectFilesystemType)
}

func checkLocalFilesystemWith(path string, detect fsDetector) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	existing, err := closestExisting(path)
	if err != nil {
		return fmt.Errorf("resolve settings path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if isRemote(fsType) {
		return fmt.Errorf("settings database %q is on network filesystem %q; crash recovery needs a local user directory (use -u /local/dir)", path, fsType)
	}
	return nil
}

// closestExisting walks up from path to the first component that exists.
func closestExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	for candidate := abs; ; {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", abs)
		}
		candidate = parent
	}
}

func isRemote(fsType string) bool {
	_, found := remoteFilesystems[strings.TrimSpace(strings.ToLower(fsType))]
	return found
}
