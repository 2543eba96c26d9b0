// Package drift watches the projects root for out-of-band mutation of
// sealed snapshot directories.
//
// Snapshots are immutable once cut; nothing in this process writes into a
// version directory after it is sealed. Any write, removal, or rename seen
// inside a sealed directory therefore comes from outside the subsystem and
// is reported, never repaired — the on-disk invariant has already been
// violated and repair is an operator decision.
package drift

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Callback is called for each detected drift event. kind is one of
// "modified" or "removed"; path is relative to the projects root.
type Callback func(kind, path string)

// sealDelay is how long after creation a version directory is considered
// still under construction by the snapshot store. Events inside it are
// ignored until the window passes.
const sealDelay = 30 * time.Second

var versionDirRe = regexp.MustCompile(`^[^/\\]+[/\\]versions[/\\]v\d+\.\d+$`)

// Watch starts an fsnotify watcher on the projects root and reports drift
// until ctx is cancelled. It calls cb (if non-nil) after logging each event.
//
// New project and version directories created at runtime are automatically
// added to the watch list. The "current" pointer, lock files, and temp
// names used by atomic switches are ignored; pointer consistency is the
// reconciler's job, not the watcher's.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("drift: watcher started", slog.String("root", root))

	// Version dirs created while watching are sealed once sealDelay passes.
	pending := make(map[string]time.Time)
	sweep := time.NewTicker(sealDelay / 3)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("drift: watcher stopped")
			return nil

		case now := <-sweep.C:
			for dir, created := range pending {
				if now.Sub(created) >= sealDelay {
					delete(pending, dir)
					logger.Debug("drift: sealed", slog.String("dir", dir))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil || ignored(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("drift: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					if versionDirRe.MatchString(rel) {
						pending[ev.Name] = time.Now()
					}
					continue
				}
			}

			dir, sealed := sealedVersionDir(root, ev.Name, pending)
			if !sealed {
				continue
			}

			var kind string
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = "removed"
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0:
				kind = "modified"
			default:
				continue
			}
			logger.Warn("drift: sealed snapshot changed",
				slog.String("snapshot", dir),
				slog.String("path", rel),
				slog.String("op", ev.Op.String()))
			if cb != nil {
				cb(kind, filepath.ToSlash(rel))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("drift: watcher error", slog.String("error", err.Error()))
		}
	}
}

// ignored filters paths the subsystem mutates legitimately at any time.
func ignored(rel string) bool {
	base := filepath.Base(rel)
	if base == ".lock" || strings.Contains(base, ".tmp-") {
		return true
	}
	// <project>/current and its replacements.
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return len(parts) == 2 && strings.HasPrefix(parts[1], "current")
}

// sealedVersionDir reports whether path sits inside a version directory
// that is past its construction window, returning that directory.
func sealedVersionDir(root, path string, pending map[string]time.Time) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	// <project>/versions/vM.m/...
	if len(parts) < 4 || parts[1] != "versions" {
		return "", false
	}
	dir := filepath.Join(root, parts[0], parts[1], parts[2])
	if _, underConstruction := pending[dir]; underConstruction {
		return "", false
	}
	return dir, true
}

func addDirsRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// The entry may have vanished between event and walk.
			return nil
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
