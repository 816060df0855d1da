package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/rackhost/internal/param"
)

func newBank(t *testing.T) *param.Bank {
	t.Helper()
	b := param.NewBank()
	_, err := b.Add(param.Spec{ID: "vco.freq", Min: -4, Max: 4, Default: 0})
	require.NoError(t, err)
	_, err = b.Add(param.Spec{ID: "vcf.cutoff", Min: 0, Max: 1, Default: 0.5})
	require.NoError(t, err)
	return b
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestWorkspaceSaveLoadRestoresParams(t *testing.T) {
	bank := newBank(t)
	ws := NewWorkspace(bank, sequentialIDs(), nil)
	path := filepath.Join(t.TempDir(), "autosave.vcv")

	p, _ := bank.Get("vco.freq")
	p.Slot.Propose(1.5)
	require.NoError(t, ws.Save(path))

	ws.Clear()
	assert.Equal(t, 0.0, p.Slot.Read())

	require.NoError(t, ws.Load(path))
	assert.Equal(t, 1.5, p.Slot.Read())
	assert.Equal(t, "id-1", ws.ID())
}

func TestWorkspaceFailedLoadLeavesDocumentUntouched(t *testing.T) {
	bank := newBank(t)
	ws := NewWorkspace(bank, sequentialIDs(), nil)
	p, _ := bank.Get("vcf.cutoff")
	p.Slot.Propose(0.9)

	bad := filepath.Join(t.TempDir(), "bad.vcv")
	require.NoError(t, os.WriteFile(bad, []byte("not a patch"), 0o644))

	assert.Error(t, ws.Load(bad))
	assert.Equal(t, 0.9, p.Slot.Read())
	assert.Equal(t, "id-1", ws.ID())
}

func TestWorkspaceClearIssuesNewID(t *testing.T) {
	ws := NewWorkspace(newBank(t), sequentialIDs(), nil)
	ws.SetLastPath("/tmp/x.vcv")
	ws.Clear()
	assert.Equal(t, "id-2", ws.ID())
	assert.Equal(t, "/tmp/x.vcv", ws.LastPath(), "Clear does not touch lastPath")
}
