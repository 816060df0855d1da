package storage

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckLocalFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.db")
	err := checkLocalFilesystemWith(path, func(string) (string, error) { return "ext4", nil })
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystemRejectsNetwork(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.db")
	err := checkLocalFilesystemWith(path, func(string) (string, error) { return "nfs", nil })
	if err == nil {
		t.Fatal("expected network filesystem error")
	}
	for _, want := range []string{"nfs", "crash recovery", "-u /local/dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestCheckLocalFilesystemInspectsClosestExisting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	err := checkLocalFilesystemWith(filepath.Join(root, "a", "b", "settings.db"), func(p string) (string, error) {
		inspected = p
		return "apfs", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{"nfs": true, "SMBFS": true, " cifs ": true, "apfs": false, "0x6969": false}
	for fs, want := range cases {
		if got := isRemote(fs); got != want {
			t.Errorf("isRemote(%q) = %v, want %v", fs, got, want)
		}
	}
}
