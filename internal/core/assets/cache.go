package assets

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Cache is the resource lookup the binder resolves child references through. It
// indexes every node of every loaded file by asset id and remembers which file each
// came from, so a changed file can be swapped in without touching the others.
type Cache struct {
	mu     sync.RWMutex
	defs   map[btree.AssetID]*btree.Definition
	owner  map[btree.AssetID]string
	files  map[string][]btree.AssetID
	roots  map[string]string
	logger log.Log
}

var _ btree.ResourceLookup = (*Cache)(nil)

func NewCache(logger log.Log) *Cache {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Cache{
		defs:   make(map[btree.AssetID]*btree.Definition),
		owner:  make(map[btree.AssetID]string),
		files:  make(map[string][]btree.AssetID),
		roots:  make(map[string]string),
		logger: logger,
	}
}

// GetAsset implements btree.ResourceLookup.
func (c *Cache) GetAsset(id btree.AssetID) (*btree.Definition, error) {
	c.mu.RLock()
	d, ok := c.defs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, &btree.MissingAssetError{ID: id}
	}
	return d, nil
}

// Lookup resolves an asset by path.
func (c *Cache) Lookup(path string) (*btree.Definition, error) {
	d, err := c.GetAsset(btree.AssetIDFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", path, err)
	}
	return d, nil
}

// Put installs the nodes of a file, replacing whatever that file provided before.
// A node path already provided by another file is rejected and nothing changes.
func (c *Cache) Put(name string, f *File) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, d := range f.Nodes {
		if prev, ok := c.owner[d.ID()]; ok && prev != name {
			return fmt.Errorf("node %q in %s already defined by %s", path, name, prev)
		}
	}

	c.drop(name)
	ids := make([]btree.AssetID, 0, len(f.Nodes))
	for _, d := range f.Nodes {
		id := d.ID()
		c.defs[id] = d
		c.owner[id] = name
		ids = append(ids, id)
	}
	c.files[name] = ids
	if f.Root != "" {
		c.roots[name] = f.Root
	}
	c.logger.Debug("tree file cached", log.String("file", name), log.Int("nodes", len(ids)))
	return nil
}

// Remove forgets a file and its nodes.
func (c *Cache) Remove(name string) {
	c.mu.Lock()
	c.drop(name)
	c.mu.Unlock()
}

func (c *Cache) drop(name string) {
	for _, id := range c.files[name] {
		delete(c.defs, id)
		delete(c.owner, id)
	}
	delete(c.files, name)
	delete(c.roots, name)
}

// LoadFile (re)loads one file from disk. A file that no longer exists is removed.
func (c *Cache) LoadFile(path string) error {
	f, err := LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Remove(path)
			return nil
		}
		return err
	}
	return c.Put(path, f)
}

// LoadDir loads every tree file directly under dir.
func (c *Cache) LoadDir(dir string) error {
	files, err := TreeFiles(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, path := range files {
		if err := c.LoadFile(path); err != nil {
			return err
		}
	}
	c.logger.Info("tree assets loaded", log.String("dir", dir), log.Int("files", len(files)), log.Int("nodes", c.Len()))
	return nil
}

// Roots lists the root node paths files declared, sorted.
func (c *Cache) Roots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roots))
	for _, r := range c.roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of cached node assets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
