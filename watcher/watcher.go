// Package watcher reports changes anywhere below a directory tree.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options configures a Watcher.
type Options struct {
	// Ignore lists directories whose contents never trigger a change,
	// typically the cargo target directory.
	Ignore []string
	Logger *zap.Logger
}

// Watcher watches a directory tree. fsnotify watches single directories,
// so every subdirectory is added, including ones created later.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func(fsnotify.Event)
	logger   *zap.Logger
	done     chan struct{}
	ignore   []string
	once     sync.Once
}

// Watch starts watching root. onChange runs on the watcher goroutine for
// every write, create, remove and rename below root.
func Watch(root string, opts Options, onChange func(fsnotify.Event)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, filepath.Clean(abs))
		}
	}

	root, err = filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) ignored(path string) bool {
	path = filepath.Clean(path)
	for _, ig := range w.ignore {
		if path == ig || strings.HasPrefix(path, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between the event and the walk.
			if os.IsNotExist(err) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching", zap.String("dir", path))
		return nil
	})
}

const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(ev.Name) || ev.Op&relevant == 0 {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !strings.HasPrefix(fi.Name(), ".") {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("watch new directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			w.onChange(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Close stops watching and waits for the event loop to exit, so onChange
// is never called after Close returns. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
