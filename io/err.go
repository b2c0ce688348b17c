// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package io

import (
	"errors"

	"github.com/ezrec/mipsim/translate"
)

var f = translate.From

var (
	// Console errors
	ErrInputInteger = errors.New(f("invalid integer input"))

	// File errors
	ErrFileDescriptor = errors.New(f("invalid file descriptor"))
	ErrFileFlags      = errors.New(f("invalid file flags"))
	ErrFileSystem     = errors.New(f("no file system"))
	ErrFilePath       = errors.New(f("invalid file path"))

	// Device errors
	ErrDeviceAttached = errors.New(f("device already attached"))
	ErrDeviceRange    = errors.New(f("device does not fit in MMIO region"))
)
