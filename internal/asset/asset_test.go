package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDevModeUsesWorkingDirectory(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	d, err := Resolve(true, "", "")
	require.NoError(t, err)
	assert.Equal(t, cwd, d.System)
	assert.Equal(t, cwd, d.User)
}

func TestResolveExplicitOverrides(t *testing.T) {
	sys, user := t.TempDir(), t.TempDir()
	d, err := Resolve(true, sys, user)
	require.NoError(t, err)
	assert.Equal(t, sys, d.System)
	assert.Equal(t, user, d.User)
	assert.Equal(t, filepath.Join(user, "autosave.vcv"), d.Autosave())
	assert.Equal(t, filepath.Join(user, "settings.db"), d.Settings())
	assert.Equal(t, filepath.Join(sys, "plugins"), d.SystemPath("plugins"))
}

func TestInitCreatesUserDir(t *testing.T) {
	user := filepath.Join(t.TempDir(), "a", "b")
	d := Dirs{System: t.TempDir(), User: user}
	require.NoError(t, d.Init())
	info, err := os.Stat(user)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
