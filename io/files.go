// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package io

import (
	"io"
	"io/fs"
	"log"
	"maps"
	"slices"
)

const (
	FD_STDIN  = 0
	FD_STDOUT = 1
	FD_STDERR = 2

	FD_FIRST_FILE = 3 // First descriptor handed out by Open.
)

// File open flags.
const (
	OPEN_READ   = 0 // Read only.
	OPEN_WRITE  = 1 // Write only, create or truncate.
	OPEN_APPEND = 9 // Write only, create or append.
)

type openFile struct {
	name   string
	reader fs.File
	writer io.WriteCloser
}

// Files is the descriptor table of the file syscalls. Descriptors 0, 1
// and 2 are the console input, console output, and Stderr.
type Files struct {
	Verbose bool
	Console *Console
	Stderr  io.Writer
	FS      FileFS // Backing filesystem; if nil, Open always fails.

	files map[int]*openFile
}

// Open opens a file, returning its descriptor.
func (fds *Files) Open(name string, flags int) (fd int, err error) {
	if fds.FS == nil {
		err = &fs.PathError{Op: "open", Path: name, Err: ErrFileSystem}
		return
	}

	file := &openFile{name: name}
	switch flags {
	case OPEN_READ:
		file.reader, err = fds.FS.Open(name)
	case OPEN_WRITE:
		file.writer, err = fds.FS.Create(name)
	case OPEN_APPEND:
		file.writer, err = fds.FS.Append(name)
	default:
		err = &fs.PathError{Op: "open", Path: name, Err: ErrFileFlags}
	}
	if err != nil {
		return
	}

	if fds.files == nil {
		fds.files = make(map[int]*openFile)
	}

	fd = FD_FIRST_FILE
	for fds.files[fd] != nil {
		fd++
	}
	fds.files[fd] = file

	if fds.Verbose {
		log.Printf("files: open %q flags %d: fd %d", name, flags, fd)
	}

	return
}

// Read reads from a descriptor.
func (fds *Files) Read(fd int, data []byte) (n int, err error) {
	if fd == FD_STDIN && fds.Console != nil {
		return fds.Console.Read(data)
	}

	file, ok := fds.files[fd]
	if !ok || file.reader == nil {
		err = ErrFileDescriptor
		return
	}

	n, err = io.ReadFull(file.reader, data)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return
}

// Write writes to a descriptor.
func (fds *Files) Write(fd int, data []byte) (n int, err error) {
	switch fd {
	case FD_STDOUT:
		if fds.Console != nil {
			return fds.Console.Write(data)
		}
	case FD_STDERR:
		if fds.Stderr != nil {
			return fds.Stderr.Write(data)
		}
		return len(data), nil
	}

	file, ok := fds.files[fd]
	if !ok || file.writer == nil {
		err = ErrFileDescriptor
		return
	}

	return file.writer.Write(data)
}

// Close closes a descriptor. The standard descriptors are not closed.
func (fds *Files) Close(fd int) (err error) {
	file, ok := fds.files[fd]
	if !ok {
		if fd >= FD_STDIN && fd <= FD_STDERR {
			return
		}
		return ErrFileDescriptor
	}

	delete(fds.files, fd)

	if fds.Verbose {
		log.Printf("files: close %q: fd %d", file.name, fd)
	}

	if file.reader != nil {
		return file.reader.Close()
	}
	return file.writer.Close()
}

// CloseAll closes every open file.
func (fds *Files) CloseAll() {
	for _, fd := range slices.Sorted(maps.Keys(fds.files)) {
		fds.Close(fd)
	}
}

// Opened returns the number of open files.
func (fds *Files) Opened() int {
	return len(fds.files)
}
