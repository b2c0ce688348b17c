// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package io

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing/fstest"
)

// CreateFS defines a file system interface that supports creating files and directories.
// Dumps are written through it.
type CreateFS interface {
	// Sub returns a filesystem for a subdirectory.
	Sub(name string) (sub CreateFS, err error)
	// Create creates a new file for writing.
	Create(name string) (file io.WriteCloser, err error)
	// Mkdir creates a new directory with the specified permissions.
	Mkdir(name string, filemode fs.FileMode) (err error)
}

// FileFS is a readable CreateFS that can also append, as needed by the
// file syscalls.
type FileFS interface {
	fs.FS
	CreateFS
	// Append opens a file for writing at its end, creating it if needed.
	Append(name string) (file io.WriteCloser, err error)
}

// DirFS is a FileFS rooted at a host directory. Absolute names bypass
// the root.
type DirFS struct {
	Root string
}

var _ FileFS = (*DirFS)(nil)

func (dir *DirFS) path(name string) (full string, err error) {
	if name == "" {
		err = &fs.PathError{Op: "open", Path: name, Err: ErrFilePath}
		return
	}
	if filepath.IsAbs(name) {
		full = name
		return
	}
	full = filepath.Join(dir.Root, filepath.FromSlash(name))
	return
}

// Open opens a file for reading.
func (dir *DirFS) Open(name string) (file fs.File, err error) {
	full, err := dir.path(name)
	if err != nil {
		return
	}
	return os.Open(full)
}

// Sub returns the filesystem rooted at a subdirectory.
func (dir *DirFS) Sub(name string) (sub CreateFS, err error) {
	full, err := dir.path(name)
	if err != nil {
		return
	}
	info, err := os.Stat(full)
	if err != nil {
		return
	}
	if !info.IsDir() {
		err = &fs.PathError{Op: "sub", Path: name, Err: fs.ErrInvalid}
		return
	}
	sub = &DirFS{Root: full}
	return
}

// Create creates or truncates a file.
func (dir *DirFS) Create(name string) (file io.WriteCloser, err error) {
	full, err := dir.path(name)
	if err != nil {
		return
	}
	return os.Create(full)
}

// Append opens a file for appending.
func (dir *DirFS) Append(name string) (file io.WriteCloser, err error) {
	full, err := dir.path(name)
	if err != nil {
		return
	}
	return os.OpenFile(full, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
}

// Mkdir creates a directory.
func (dir *DirFS) Mkdir(name string, filemode fs.FileMode) (err error) {
	full, err := dir.path(name)
	if err != nil {
		return
	}
	return os.Mkdir(full, filemode)
}

// MemFS is an in-memory FileFS. Sub filesystems share their parent's
// storage.
type MemFS struct {
	Files fstest.MapFS

	root string
}

var _ FileFS = (*MemFS)(nil)

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{Files: fstest.MapFS{}}
}

func (mfs *MemFS) path(op string, name string) (full string, err error) {
	if !fs.ValidPath(name) {
		err = &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
		return
	}
	full = path.Join(mfs.root, name)
	return
}

// isDir returns true if the name is the root, a created directory, or
// the parent of any file.
func (mfs *MemFS) isDir(name string) bool {
	if name == "." || name == "" {
		return true
	}
	if file, ok := mfs.Files[name]; ok {
		return file.Mode.IsDir()
	}
	prefix := name + "/"
	for key := range mfs.Files {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Open opens a file for reading.
func (mfs *MemFS) Open(name string) (file fs.File, err error) {
	full, err := mfs.path("open", name)
	if err != nil {
		return
	}
	return mfs.Files.Open(full)
}

// Sub returns the filesystem rooted at a subdirectory.
func (mfs *MemFS) Sub(name string) (sub CreateFS, err error) {
	full, err := mfs.path("sub", name)
	if err != nil {
		return
	}
	if !mfs.isDir(full) {
		err = &fs.PathError{Op: "sub", Path: name, Err: fs.ErrNotExist}
		return
	}
	sub = &MemFS{Files: mfs.Files, root: full}
	return
}

// Mkdir creates a directory.
func (mfs *MemFS) Mkdir(name string, filemode fs.FileMode) (err error) {
	full, err := mfs.path("mkdir", name)
	if err != nil {
		return
	}
	if !mfs.isDir(path.Dir(full)) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrNotExist}
	}
	if _, ok := mfs.Files[full]; ok || mfs.isDir(full) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	mfs.Files[full] = &fstest.MapFile{Mode: fs.ModeDir | filemode.Perm()}
	return
}

// Create creates or truncates a file. Contents appear when it is closed.
func (mfs *MemFS) Create(name string) (file io.WriteCloser, err error) {
	return mfs.open("create", name, false)
}

// Append opens a file for appending.
func (mfs *MemFS) Append(name string) (file io.WriteCloser, err error) {
	return mfs.open("append", name, true)
}

func (mfs *MemFS) open(op string, name string, appending bool) (file io.WriteCloser, err error) {
	full, err := mfs.path(op, name)
	if err != nil {
		return
	}
	if !mfs.isDir(path.Dir(full)) {
		err = &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		return
	}
	if mfs.isDir(full) {
		err = &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
		return
	}

	mf := &memFile{files: mfs.Files, name: full}
	if existing, ok := mfs.Files[full]; ok && appending {
		mf.data.Write(existing.Data)
	}
	mfs.Files[full] = &fstest.MapFile{Mode: 0o644, Data: mf.data.Bytes()}

	file = mf
	return
}

type memFile struct {
	files fstest.MapFS
	name  string
	data  bytes.Buffer
}

func (mf *memFile) Write(data []byte) (n int, err error) {
	return mf.data.Write(data)
}

func (mf *memFile) Close() (err error) {
	mf.files[mf.name] = &fstest.MapFile{Mode: 0o644, Data: bytes.Clone(mf.data.Bytes())}
	return
}
