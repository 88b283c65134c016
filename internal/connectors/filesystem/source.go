// Package filesystem watches a vault directory on the local disk.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/logger"
)

// Verify interface compliance at compile time.
var _ driven.ChangeSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithSkipDir excludes directories from watching and listing.
// The function receives the vault-relative directory path.
func WithSkipDir(skip func(rel string) bool) Option {
	return func(s *Source) { s.skipDir = skip }
}

// WithBuffer sets the capacity of each watch channel.
func WithBuffer(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// Source is a recursive fsnotify watcher rooted at a vault directory.
type Source struct {
	root    string
	skipDir func(rel string) bool
	buffer  int

	mu       sync.Mutex
	closed   bool
	watchers map[*fsnotify.Watcher]struct{}
}

// New creates a Source for the given vault directory.
func New(root string, opts ...Option) *Source {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	s := &Source{
		root:     filepath.Clean(root),
		buffer:   256,
		watchers: make(map[*fsnotify.Watcher]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the absolute vault directory.
func (s *Source) Root() string {
	return s.root
}

// Watch starts a recursive watch of the vault.
func (s *Source) Watch(ctx context.Context) (<-chan domain.RawChange, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSourceClosed
	}
	s.mu.Unlock()

	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", s.root)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	ws := &watchState{
		source:  s,
		watcher: w,
		dirs:    make(map[string]struct{}),
		files:   make(map[string]string),
	}
	if _, err := ws.addTree(s.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = w.Close()
		return nil, domain.ErrSourceClosed
	}
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	out := make(chan domain.RawChange, s.buffer)
	go ws.run(ctx, out)
	return out, nil
}

// List returns every regular file under the vault, sorted by path.
func (s *Source) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return err
			}
			// Entries can vanish mid-walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, ok := s.relative(p)
		if d.IsDir() {
			if p != s.root && ok && s.skipped(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ok && d.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Read returns the content of a vault file.
func (s *Source) Read(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Close stops every open watch. Close is idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for w := range s.watchers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.watchers, w)
	}
	return errors.Join(errs...)
}

func (s *Source) release(w *fsnotify.Watcher) {
	s.mu.Lock()
	_, open := s.watchers[w]
	delete(s.watchers, w)
	s.mu.Unlock()
	if open {
		_ = w.Close()
	}
}

// resolve maps a vault-relative path to an absolute one inside the root.
// Symlinks that leave the vault are rejected.
func (s *Source) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %q", domain.ErrOutsideVault, path)
	}
	full := filepath.Join(s.root, filepath.FromSlash(strings.ReplaceAll(path, "\\", "/")))
	if _, ok := s.relative(full); !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrOutsideVault, path)
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		// Missing files resolve lexically; Read reports them as not found.
		return full, nil
	}
	realRoot, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		realRoot = s.root
	}
	if !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %q", domain.ErrOutsideVault, path)
	}
	return resolved, nil
}

// relative converts an absolute path to its vault-relative form.
func (s *Source) relative(full string) (string, bool) {
	if !within(s.root, full) {
		return "", false
	}
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", false
	}
	rel = domain.NormalisePath(filepath.ToSlash(rel))
	return rel, rel != ""
}

func (s *Source) skipped(rel string) bool {
	return s.skipDir != nil && s.skipDir(rel)
}

func within(root, full string) bool {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// watchState is the per-Watch bookkeeping.
type watchState struct {
	source  *Source
	watcher *fsnotify.Watcher
	dirs    map[string]struct{}
	// files maps each known regular file's absolute path to its
	// vault-relative path, so a removed directory can report its files.
	files map[string]string
}

func (ws *watchState) run(ctx context.Context, out chan<- domain.RawChange) {
	defer close(out)
	defer ws.source.release(ws.watcher)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ws.watcher.Events:
			if !ok {
				return
			}
			for _, change := range ws.handleEvent(event) {
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-ws.watcher.Errors:
			if !ok {
				return
			}
			// Overflow and similar failures lose events; disconnect so the
			// caller reconnects and resyncs.
			logger.Warn("vault watcher error: %v", err)
			return
		}
	}
}

// handleEvent translates one fsnotify event into raw changes.
func (ws *watchState) handleEvent(event fsnotify.Event) []domain.RawChange {
	name := filepath.Clean(event.Name)
	rel, ok := ws.source.relative(name)
	if !ok {
		return nil
	}
	now := time.Now().UTC()

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, isDir := ws.dirs[name]; isDir {
			gone := ws.forgetTree(name)
			changes := make([]domain.RawChange, 0, len(gone))
			for _, f := range gone {
				changes = append(changes, domain.RawChange{Path: f, Kind: domain.ChangeRemoved, ObservedAt: now})
			}
			return changes
		}
		delete(ws.files, name)
		return []domain.RawChange{{Path: rel, Kind: domain.ChangeRemoved, ObservedAt: now}}

	case event.Has(fsnotify.Create):
		info, err := os.Lstat(name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if ws.source.skipped(rel) {
				return nil
			}
			// Files written before the watch was added would be missed.
			files, err := ws.addTree(name)
			if err != nil {
				logger.Warn("watch %s: %v", rel, err)
			}
			changes := make([]domain.RawChange, 0, len(files))
			for _, f := range files {
				changes = append(changes, domain.RawChange{Path: f, Kind: domain.ChangeCreated, ObservedAt: now})
			}
			return changes
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		ws.files[name] = rel
		return []domain.RawChange{{Path: rel, Kind: domain.ChangeCreated, ObservedAt: now}}

	case event.Has(fsnotify.Write):
		if _, isDir := ws.dirs[name]; isDir {
			return nil
		}
		ws.files[name] = rel
		return []domain.RawChange{{Path: rel, Kind: domain.ChangeModified, ObservedAt: now}}
	}
	return nil
}

// addTree watches dir and every directory below it, returning the
// vault-relative paths of regular files found on the way.
func (ws *watchState) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		rel, ok := ws.source.relative(p)
		if !d.IsDir() {
			if ok && d.Type().IsRegular() {
				files = append(files, rel)
				ws.files[filepath.Clean(p)] = rel
			}
			return nil
		}
		if p != ws.source.root && ok && ws.source.skipped(rel) {
			return filepath.SkipDir
		}
		if err := ws.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		ws.dirs[filepath.Clean(p)] = struct{}{}
		return nil
	})
	return files, err
}

// forgetTree drops dir and everything below it from the bookkeeping and
// returns the vault-relative paths of the files it held, sorted.
func (ws *watchState) forgetTree(dir string) []string {
	prefix := dir + string(filepath.Separator)
	for d := range ws.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(ws.dirs, d)
		}
	}
	var gone []string
	for full, rel := range ws.files {
		if strings.HasPrefix(full, prefix) {
			gone = append(gone, rel)
			delete(ws.files, full)
		}
	}
	sort.Strings(gone)
	return gone
}
