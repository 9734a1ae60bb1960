// Package catalog loads function metadata documents from a directory into a
// functions.Service and keeps the service in sync as files change.
//
// A document is a YAML (.yaml, .yml) or JSON (.json) file holding either one
// function or a list of functions. Files are applied independently: a broken
// file is logged and skipped without affecting the others. Removing a file
// removes the functions it declared.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/appfunctions-go/functions"
	"github.com/ggoodman/appfunctions-go/metadata"
	"gopkg.in/yaml.v3"
)

type fnKey struct{ pkg, id string }

// Catalog mirrors a directory of metadata documents into a service.
type Catalog struct {
	dir      string
	svc      *functions.Service
	log      *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	files map[string][]fnKey
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading. The default is 100ms.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// New returns a catalog over dir feeding svc.
func New(dir string, svc *functions.Service, opts ...Option) *Catalog {
	c := &Catalog{
		dir:      filepath.Clean(dir),
		svc:      svc,
		log:      slog.Default(),
		debounce: 100 * time.Millisecond,
		files:    make(map[string][]fnKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// Load reads every document in the directory and unloads functions whose
// file disappeared. Per-file failures are joined into the returned error but
// do not stop the load.
func (c *Catalog) Load(ctx context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", c.dir, err)
	}
	seen := make(map[string]bool)
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isDocument(e.Name()) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		seen[path] = true
		if err := c.apply(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	c.mu.Lock()
	var stale []string
	for path := range c.files {
		if !seen[path] {
			stale = append(stale, path)
		}
	}
	c.mu.Unlock()
	for _, path := range stale {
		c.forget(ctx, path)
	}
	return errors.Join(errs...)
}

// Functions returns the keys of the functions currently loaded from path.
func (c *Catalog) Functions(path string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, k := range c.files[path] {
		out = append(out, k.pkg+"/"+k.id)
	}
	return out
}

func (c *Catalog) apply(ctx context.Context, path string) error {
	metas, err := ReadFile(path)
	if err != nil {
		c.log.WarnContext(ctx, "catalog.load.failed", slog.String("path", path), slog.String("err", err.Error()))
		return err
	}
	if err := c.svc.Upsert(metas...); err != nil {
		c.log.WarnContext(ctx, "catalog.load.rejected", slog.String("path", path), slog.String("err", err.Error()))
		return fmt.Errorf("catalog: %s: %w", path, err)
	}

	keys := make([]fnKey, 0, len(metas))
	for _, m := range metas {
		keys = append(keys, fnKey{m.PackageName, m.ID})
	}

	c.mu.Lock()
	previous := c.files[path]
	c.files[path] = keys
	c.mu.Unlock()

	for _, k := range previous {
		if !slices.Contains(keys, k) && !c.declaredElsewhere(path, k) {
			c.svc.Remove(k.pkg, k.id)
		}
	}
	c.log.InfoContext(ctx, "catalog.load", slog.String("path", path), slog.Int("functions", len(keys)))
	return nil
}

func (c *Catalog) forget(ctx context.Context, path string) {
	c.mu.Lock()
	keys := c.files[path]
	delete(c.files, path)
	c.mu.Unlock()

	for _, k := range keys {
		if !c.declaredElsewhere(path, k) {
			c.svc.Remove(k.pkg, k.id)
		}
	}
	c.log.InfoContext(ctx, "catalog.unload", slog.String("path", path), slog.Int("functions", len(keys)))
}

func (c *Catalog) declaredElsewhere(path string, k fnKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, keys := range c.files {
		if p != path && slices.Contains(keys, k) {
			return true
		}
	}
	return false
}

// ReadFile parses one metadata document.
func ReadFile(path string) ([]metadata.FunctionMetadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var metas []metadata.FunctionMetadata
	if strings.EqualFold(filepath.Ext(path), ".json") {
		metas, err = parseJSON(b)
	} else {
		metas, err = parseYAML(b)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return metas, nil
}

func parseJSON(b []byte) ([]metadata.FunctionMetadata, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var metas []metadata.FunctionMetadata
		err := json.Unmarshal(trimmed, &metas)
		return metas, err
	}
	var m metadata.FunctionMetadata
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	return []metadata.FunctionMetadata{m}, nil
}

// parseYAML accepts a single function, a sequence of functions, or several
// documents separated by "---".
func parseYAML(b []byte) ([]metadata.FunctionMetadata, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	var metas []metadata.FunctionMetadata
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return metas, nil
		}
		if err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}
		root := node.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			var list []metadata.FunctionMetadata
			if err := root.Decode(&list); err != nil {
				return nil, err
			}
			metas = append(metas, list...)
		case yaml.MappingNode:
			var m metadata.FunctionMetadata
			if err := root.Decode(&m); err != nil {
				return nil, err
			}
			metas = append(metas, m)
		default:
			return nil, fmt.Errorf("line %d: expected a function or a list of functions", root.Line)
		}
	}
}

// Watch reloads documents as they change until ctx is done. Load should be
// called first.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := c.openWatcher()
	if err != nil {
		return err
	}
	return c.run(ctx, w)
}

func (c *Catalog) openWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("catalog: watch %s: %w", c.dir, err)
	}
	return w, nil
}

func (c *Catalog) run(ctx context.Context, w *fsnotify.Watcher) error {
	defer w.Close()

	pending := make(map[string]bool)
	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.WarnContext(ctx, "catalog.watch.error", slog.String("err", err.Error()))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDocument(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[filepath.Clean(ev.Name)] = true
			timer.Reset(c.debounce)
		case <-timer.C:
			for path := range pending {
				c.refresh(ctx, path)
			}
			clear(pending)
		}
	}
}

func (c *Catalog) refresh(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c.forget(ctx, path)
		return
	}
	// failures are logged by apply; the previous functions stay loaded
	_ = c.apply(ctx, path)
}
