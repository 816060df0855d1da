package patch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattjoyce/rackhost/internal/log"
	"github.com/mattjoyce/rackhost/internal/param"
)

// Workspace is the working document bound to a live parameter bank.
type Workspace struct {
	bank   *param.Bank
	newID  func() string
	logger *slog.Logger

	mu       sync.Mutex
	doc      *Document
	lastPath string
}

// NewWorkspace starts with an empty document.
func NewWorkspace(bank *param.Bank, newID func() string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = log.WithComponent("workspace")
	}
	w := &Workspace{bank: bank, newID: newID, logger: logger}
	w.doc = w.emptyDoc()
	return w
}

func (w *Workspace) emptyDoc() *Document {
	return &Document{ID: w.newID(), Version: FormatVersion, Params: map[string]float64{}}
}

// Load replaces the working document with the one at path. On failure the
// working document is left untouched.
func (w *Workspace) Load(path string) error {
	doc, err := Read(path)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = w.newID()
	}

	unknown := w.bank.Apply(doc.Params)
	for _, id := range unknown {
		w.logger.Warn("patch references unknown parameter", "param", id, "path", path)
	}

	w.mu.Lock()
	w.doc = doc
	w.mu.Unlock()
	w.logger.Info("patch loaded", "path", path, "patch_id", doc.ID, "params", len(doc.Params))
	return nil
}

// Save writes the working document, with current parameter values, to path.
func (w *Workspace) Save(path string) error {
	w.mu.Lock()
	doc := *w.doc
	w.mu.Unlock()

	doc.Params = w.bank.Snapshot()
	if err := Write(path, &doc); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	w.logger.Info("patch saved", "path", path, "patch_id", doc.ID)
	return nil
}

// Clear resets to an empty document with default parameter values.
func (w *Workspace) Clear() {
	w.bank.Reset()
	w.mu.Lock()
	w.doc = w.emptyDoc()
	w.mu.Unlock()
}

func (w *Workspace) LastPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPath
}

func (w *Workspace) SetLastPath(path string) {
	w.mu.Lock()
	w.lastPath = path
	w.mu.Unlock()
}

// ID returns the current document id.
func (w *Workspace) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.ID
}
