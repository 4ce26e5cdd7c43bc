// SPDX-License-Identifier: MPL-2.0

// Package watch monitors a set of directory trees and invokes a debounced
// callback when anything below them changes.
//
// Events within the debounce window are coalesced so the callback fires once
// with the full set of changed paths. Roots that do not exist yet are watched
// through their nearest existing ancestor and picked up once created.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing the onChange callback after the
// last filesystem event. This allows rapid successive events (e.g., an editor
// writing then renaming a temp file) to coalesce into a single callback.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores lists path patterns that are always excluded from watching,
// regardless of user-supplied ignore patterns. They are matched against
// slash-separated paths relative to the root that contains them.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
	"**/__MACOSX/**",
}

// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

// ErrResourceExhausted is wrapped by Run when the platform refuses further
// watches or descriptors.
var ErrResourceExhausted = errors.New("watch resources exhausted")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directory trees to watch. At least one is required.
		Roots []string

		// Ignore are additional doublestar-compatible glob patterns, relative to
		// the containing root, for paths that should never trigger callbacks.
		// These are merged with the built-in default ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange is called after the debounce window closes with the sorted,
		// deduplicated list of changed absolute paths. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives diagnostics. nil uses slog.Default().
		Logger *slog.Logger
	}

	// InvalidWatchConfigError collects Config validation failures.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors directory trees and fires a debounced callback when
	// anything below them changes. Run must be called exactly once; calling
	// it a second time returns an error.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		log      *slog.Logger
		debounce time.Duration
		roots    []string
		started  atomic.Bool

		// live tracks roots whose trees are registered with fsw. Only the
		// event loop touches it after New returns.
		live map[string]bool
	}
)

// Validate checks that at least one root is set and every ignore pattern is a
// valid doublestar glob.
func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("no roots to watch"))
	}
	for _, root := range c.Roots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, errors.New("empty root"))
		}
	}
	for _, pat := range c.Ignore {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid ignore pattern %q", pat))
		}
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidWatchConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid watch config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid watch config: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// New creates a Watcher from the given Config. It resolves every root to an
// absolute path, initialises the underlying fsnotify watcher, and registers
// all non-ignored directories under the existing roots.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve root %q: %w", root, err)
		}
		if !slices.Contains(roots, abs) {
			roots = append(roots, abs)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		log:      logger,
		debounce: debounce,
		roots:    roots,
		live:     make(map[string]bool, len(roots)),
	}

	if _, err := w.refreshRoots(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("watch: close after init failure", "error", closeErr)
		}
		return nil, err
	}

	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on clean context
// cancellation and propagates any fatal watcher errors.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains the pending set and invokes the OnChange callback. A run
	// that is still in progress causes a rescheduled retry instead of a
	// concurrent invocation.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.log.Debug("watch: previous callback still running, retrying later")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.log.Error("watch: callback failed", "error", err)
			}
		}
	}

	record := func(paths ...string) {
		mu.Lock()
		defer mu.Unlock()
		for _, p := range paths {
			pending[p] = struct{}{}
		}
		if timer == nil {
			timer = time.AfterFunc(w.debounce, fire)
		} else {
			timer.Reset(w.debounce)
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil {
			localTimer.Stop()
		}
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.log.Warn("watch: close fsnotify", "error", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}

			if root, rel, inside := w.rootFor(evt.Name); inside && w.live[root] {
				if w.isIgnored(rel) {
					continue
				}
				if evt.Has(fsnotify.Create) {
					w.maybeAddTree(evt.Name)
				}
				record(evt.Name)
				continue
			}

			// Events outside live roots come from ancestors of missing roots.
			if evt.Has(fsnotify.Create) {
				appeared, err := w.refreshRoots()
				if err != nil {
					w.log.Warn("watch: register new root", "error", err)
				}
				if len(appeared) > 0 {
					record(appeared...)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			if resourceExhausted(err) {
				return fmt.Errorf("watch: %w: %w", ErrResourceExhausted, err)
			}
			w.log.Warn("watch: fsnotify error", "error", err)
		}
	}
}

// refreshRoots registers the trees of roots that exist and are not yet live,
// and watches the nearest existing ancestor of every root that is still
// missing. It returns the roots that became live.
func (w *Watcher) refreshRoots() ([]string, error) {
	var appeared []string
	for _, root := range w.roots {
		if w.live[root] {
			continue
		}
		if isDir(root) {
			if err := w.addTree(root); err != nil {
				return appeared, err
			}
			w.live[root] = true
			appeared = append(appeared, root)
			continue
		}
		if anchor := existingAncestor(root); anchor != "" {
			if err := w.fsw.Add(anchor); err != nil {
				w.log.Debug("watch: cannot watch ancestor of missing root", "root", root, "ancestor", anchor, "error", err)
			}
		}
	}
	return appeared, nil
}

// addTree adds every non-ignored directory below dir, dir included, to the
// fsnotify watcher.
func (w *Watcher) addTree(dir string) error {
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			// Permission errors on individual dirs should not prevent watching
			// the rest of the tree.
			w.log.Debug("watch: skipping inaccessible path", "path", path, "error", walkDirErr)
			return nil //nolint:nilerr // intentional skip of inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		if _, rel, ok := w.rootFor(path); ok && rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			if resourceExhausted(addErr) {
				return fmt.Errorf("watch: add directory %q: %w: %w", path, ErrResourceExhausted, addErr)
			}
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddTree extends the watch to a directory created after startup.
func (w *Watcher) maybeAddTree(path string) {
	if !isDir(path) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.log.Warn("watch: add new directory", "path", path, "error", err)
	}
}

// rootFor returns the root containing path and the slash-separated path
// relative to it ("." for the root itself).
func (w *Watcher) rootFor(path string) (root, rel string, ok bool) {
	for _, root := range w.roots {
		r, err := filepath.Rel(root, path)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			continue
		}
		return root, filepath.ToSlash(r), true
	}
	return "", "", false
}

// isIgnored returns true if rel (relative to its root) matches any ignore
// pattern.
func (w *Watcher) isIgnored(rel string) bool {
	for _, pat := range w.ignores {
		if matched, matchErr := doublestar.Match(pat, rel); matchErr == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

// existingAncestor returns the closest existing directory above path, or "".
func existingAncestor(path string) string {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if isDir(dir) {
			return dir
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
