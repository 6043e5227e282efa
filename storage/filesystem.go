package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Filesystem is a KVStorage rooted at a base directory on disk.
type Filesystem struct {
	root string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	onChange func(path string)
	closed   chan struct{}
}

// NewFilesystem returns a Filesystem rooted at root. The directory is
// created if it does not already exist.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &Error{Op: "mkdir", Path: root, Err: err}
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) abs(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

func (f *Filesystem) Read(_ context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(f.abs(path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	return b, nil
}

func (f *Filesystem) Write(_ context.Context, path string, data []byte) error {
	full := f.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	root := f.abs(prefix)
	base := root
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		base = filepath.Dir(root)
	}
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, &Error{Op: "list", Path: prefix, Err: err}
	}
	return out, nil
}

func (f *Filesystem) Delete(_ context.Context, path string) error {
	if err := os.Remove(f.abs(path)); err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// Watch starts an fsnotify watch on the storage root. onChange is called
// with the storage-relative path for every write or create event in the
// root directory, including those caused by this Filesystem's own Write
// calls; subdirectories are not watched. This is optional and off by
// default; the persistence package does not call it.
func (f *Filesystem) Watch(onChange func(path string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return &Error{Op: "watch", Path: f.root, Err: err}
	}
	if err := w.Add(f.root); err != nil {
		w.Close()
		return &Error{Op: "watch", Path: f.root, Err: err}
	}
	f.watcher = w
	f.onChange = onChange
	f.closed = make(chan struct{})
	go f.loop()
	return nil
}

func (f *Filesystem) loop() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rel, err := filepath.Rel(f.root, ev.Name)
			if err != nil {
				continue
			}
			if f.onChange != nil {
				f.onChange(filepath.ToSlash(rel))
			}
		case <-f.watcher.Errors:
		case <-f.closed:
			return
		}
	}
}

// Close stops the fsnotify watch, if one was started.
func (f *Filesystem) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher == nil {
		return nil
	}
	close(f.closed)
	err := f.watcher.Close()
	f.watcher = nil
	return err
}

var _ KVStorage = (*Filesystem)(nil)
