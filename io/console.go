// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package io

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Console provides the line-oriented terminal used by the syscall
// services. It wraps an io.Reader for input and an io.Writer for output.
// A zero Console reads end-of-file and discards output.
type Console struct {
	Input  io.Reader
	Output io.Writer

	reader *bufio.Reader
	source io.Reader
}

func (con *Console) in() *bufio.Reader {
	if con.Input == nil {
		con.Input = strings.NewReader("")
	}
	if con.reader == nil || con.source != con.Input {
		con.reader = bufio.NewReader(con.Input)
		con.source = con.Input
	}
	return con.reader
}

func (con *Console) out() io.Writer {
	if con.Output == nil {
		return io.Discard
	}
	return con.Output
}

// Read reads raw bytes from the console input.
func (con *Console) Read(data []byte) (n int, err error) {
	return con.in().Read(data)
}

// Write writes raw bytes to the console output.
func (con *Console) Write(data []byte) (n int, err error) {
	return con.out().Write(data)
}

// WriteString writes a string to the console output.
func (con *Console) WriteString(text string) (n int, err error) {
	return io.WriteString(con.out(), text)
}

// ReadLine reads a line of input, without its line terminator.
// A final unterminated line is returned without error.
func (con *Console) ReadLine() (line string, err error) {
	line, err = con.in().ReadString('\n')
	if errors.Is(err, io.EOF) && len(line) > 0 {
		err = nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return
}

// ReadInt reads a line of input as a decimal integer.
func (con *Console) ReadInt() (value int32, err error) {
	line, err := con.ReadLine()
	if err != nil {
		return
	}

	v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 32)
	if err != nil {
		err = errors.Join(ErrInputInteger, err)
		return
	}

	value = int32(v)
	return
}

// ReadChar reads a single byte of input.
func (con *Console) ReadChar() (value byte, err error) {
	return con.in().ReadByte()
}
