// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
)

// BinaryChecker verifies that an executable resolves on PATH or as a path.
type BinaryChecker struct {
	name string
	bin  string
}

// NewBinaryChecker creates a checker for an external executable.
func NewBinaryChecker(name, bin string) *BinaryChecker {
	return &BinaryChecker{name: name, bin: bin}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	path, err := exec.LookPath(c.bin)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "executable not found", Message: c.bin}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// WritableDirChecker verifies a directory exists and accepts new files.
type WritableDirChecker struct {
	name string
	dir  string
}

// NewWritableDirChecker creates a checker for a writable directory.
func NewWritableDirChecker(name, dir string) *WritableDirChecker {
	return &WritableDirChecker{name: name, dir: dir}
}

func (c *WritableDirChecker) Name() string { return c.name }

func (c *WritableDirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.dir}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.dir}
	}

	f, err := os.CreateTemp(c.dir, ".write-check-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "directory not writable", Message: c.dir}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return CheckResult{Status: StatusHealthy, Message: c.dir}
}
