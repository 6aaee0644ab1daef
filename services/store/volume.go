package store

import (
	"io"
	"os"
	"path/filepath"
)

// Volume is persistent storage that is mounted only for the duration of one
// operation.
type Volume interface {
	Mount() (FS, error)
	Unmount() error
}

// FS is the mounted view of a Volume.
type FS interface {
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
}

// Aborter is implemented by Create writers that can drop what was written
// instead of committing it on Close.
type Aborter interface {
	Abort() error
}

// Dir is a Volume backed by a host directory.
type Dir struct {
	Path string
}

func (d Dir) Mount() (FS, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return nil, err
	}
	return dirFS(d.Path), nil
}

func (Dir) Unmount() error { return nil }

type dirFS string

func (d dirFS) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), name))
}

// Create writes to a temporary file that replaces name on Close, so a reader
// never sees a half-written config. After a failed write or an Abort the
// temporary file is removed and name is left as it was.
func (d dirFS) Create(name string) (io.WriteCloser, error) {
	dst := filepath.Join(string(d), name)
	f, err := os.CreateTemp(string(d), name+".*")
	if err != nil {
		return nil, err
	}
	return &replaceOnClose{File: f, dst: dst}, nil
}

type replaceOnClose struct {
	*os.File
	dst string
	err error // first write error
}

func (r *replaceOnClose) Write(p []byte) (int, error) {
	n, err := r.File.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}

func (r *replaceOnClose) Close() error {
	if r.err != nil {
		_ = r.Abort()
		return r.err
	}
	tmp := r.File.Name()
	if err := r.File.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, r.dst)
}

func (r *replaceOnClose) Abort() error {
	_ = r.File.Close()
	return os.Remove(r.File.Name())
}
