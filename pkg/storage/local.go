package storage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
)

var _ Sink = (*Local)(nil)

// Local implements Sink on top of a directory of the local filesystem.
type Local struct {
	root string
}

// NewLocal creates a Local sink rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute directory of the sink.
func (l *Local) Root() string {
	return l.root
}

// Put writes data to a temporary file and renames it into place, so readers
// never see a partial document.
func (l *Local) Put(_ context.Context, name string, data []byte, _ string) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := os.CreateTemp(l.root, ".put-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(l.root, name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (l *Local) Get(_ context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(l.root, name))
}

// List returns the regular files of the directory, skipping in-progress
// writes.
func (l *Local) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}
