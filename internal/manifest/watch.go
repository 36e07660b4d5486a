package manifest

import (
	"github.com/atomize-hq/substrate/internal/substratelog"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the manifest whenever the overlay file changes, so a long-running
// interactive shell session picks up manager_hooks.local.yaml edits without restart.
type Watcher struct {
	basePath    string
	overlayPath string
	fsw         *fsnotify.Watcher
	reload      chan *Manifest
	errs        chan error
}

// WatchOverlay starts watching overlayPath (if non-empty) for writes and re-runs Load
// on every change, publishing the new Manifest on Reloaded(). The overlay file need
// not exist yet: fsnotify.Add on a missing path simply means changes are not observed
// until the directory is watched by the caller; callers that need to see a brand-new
// overlay file appear should watch its parent directory instead.
func WatchOverlay(basePath, overlayPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		basePath:    basePath,
		overlayPath: overlayPath,
		fsw:         fsw,
		reload:      make(chan *Manifest, 1),
		errs:        make(chan error, 1),
	}
	if overlayPath != "" {
		if err := fsw.Add(overlayPath); err != nil {
			substratelog.Warn("manifest: cannot watch overlay", "path", overlayPath, "err", err)
		}
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m, err := Load(w.basePath, w.overlayPath)
			if err != nil {
				select {
				case w.errs <- err:
				default:
				}
				continue
			}
			select {
			case w.reload <- m:
			default:
				// Drop the stale pending reload, keep the newest.
				select {
				case <-w.reload:
				default:
				}
				w.reload <- m
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			substratelog.Warn("manifest: watch error", "err", err)
		}
	}
}

// Reloaded delivers a freshly merged Manifest each time the overlay file changes.
func (w *Watcher) Reloaded() <-chan *Manifest { return w.reload }

// Errors delivers Load failures encountered after a file-change event.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }
