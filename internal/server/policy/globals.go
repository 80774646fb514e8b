package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/filex"
)

// Globals holds the process-wide default policy. It is loaded once at
// start, replaced by explicit administrative updates and flushed to disk on
// shutdown. Reads never block on each other.
type Globals struct {
	mu    sync.RWMutex
	path  string
	desc  Descriptor
	dirty bool
}

// LoadGlobals reads the defaults from path. An empty path keeps the
// defaults in memory only; a missing file starts empty.
func LoadGlobals(path string) (*Globals, error) {
	g := &Globals{path: path, desc: Descriptor{}}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewGlobals returns in-memory defaults.
func NewGlobals(d Descriptor) *Globals {
	return &Globals{desc: d.Clone()}
}

// Reload re-reads the file, discarding unsaved changes.
func (g *Globals) Reload() error {
	if g.path == "" {
		return nil
	}
	data, err := os.ReadFile(g.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read global policy: %w", common.ErrStorage, err)
	}
	d, err := Decode(string(data))
	if err != nil {
		return err
	}
	if _, err := Parse(d); err != nil {
		return err
	}

	g.mu.Lock()
	g.desc, g.dirty = d, false
	g.mu.Unlock()
	return nil
}

// Get returns a copy of the current defaults.
func (g *Globals) Get() Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.desc.Clone()
}

// Update validates and installs d, then persists it. When persisting fails
// the new defaults stay active and the next Flush retries the write.
func (g *Globals) Update(d Descriptor) error {
	if _, err := Parse(d); err != nil {
		return err
	}
	g.mu.Lock()
	g.desc, g.dirty = d.Clone(), true
	g.mu.Unlock()
	return g.Flush()
}

// Flush writes unsaved defaults to disk.
func (g *Globals) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.dirty || g.path == "" {
		g.dirty = false
		return nil
	}
	if err := filex.WriteFileAtomic(g.path, []byte(g.desc.Encode()), 0o600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	g.dirty = false
	return nil
}

// Effective merges account overrides onto the defaults and parses the
// result.
func (g *Globals) Effective(account Descriptor) (Policy, error) {
	return Parse(g.Get().Merge(account))
}
