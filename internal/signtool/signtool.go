//
// Copyright 2024 The Signbatch Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package signtool invokes the external code-signing utilities and turns
// their free-text output into structured results. All cryptography is
// delegated to the tools; this package only runs them and reads what they
// print.
package signtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// Runner executes one external tool invocation and returns its combined
// stdout+stderr. When check is true a non-zero exit is returned as a
// *ToolError. Implementations must never open a visible window for the
// subprocess.
type Runner interface {
	Run(ctx context.Context, args []string, check bool) (string, error)
}

// Tool runs a single external executable located on construction.
type Tool struct {
	// Name is the bare executable name, e.g. "signtool.exe".
	Name string
	// Path is the resolved location used for invocation.
	Path string
	// Dir, when set, is the working directory for invocations. Certificate
	// tools write their artifacts relative to it.
	Dir string
}

// Locate resolves an executable: the tools directory directly, then a
// recursive walk of it, then the system search path, then the bare name as a
// last resort. The bare-name fallback keeps invocation working when the tool
// is resolvable only at exec time.
func Locate(toolsDir, name string) *Tool {
	if toolsDir != "" {
		direct := filepath.Join(toolsDir, name)
		if exists(direct) {
			return &Tool{Name: name, Path: abs(direct)}
		}
		var found string
		filepath.WalkDir(toolsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || found != "" {
				return fs.SkipAll
			}
			if !d.IsDir() && d.Name() == name {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			return &Tool{Name: name, Path: abs(found)}
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return &Tool{Name: name, Path: p}
	}
	return &Tool{Name: name, Path: name}
}

// Check verifies the tool is actually invocable, reporting ErrToolNotFound
// otherwise. Callers treat this as fatal at session start.
func (t *Tool) Check() error {
	if _, err := exec.LookPath(t.Path); err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, t.Name)
	}
	return nil
}

// Run invokes the tool with the given argument vector and returns combined
// output. Subprocess bytes are decoded with a lossy fallback so malformed
// output never fails the call.
func (t *Tool) Run(ctx context.Context, args []string, check bool) (string, error) {
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Dir = t.Dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	hideWindow(cmd)

	err := cmd.Run()
	out := decodeOutput(buf.Bytes())
	if err != nil {
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			if check {
				return out, &ToolError{Tool: t.Name, ExitCode: xerr.ExitCode(), Output: out}
			}
			return out, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrToolNotFound, t.Name)
		}
		return out, fmt.Errorf("running %s: %w", t.Name, err)
	}
	return out, nil
}

func exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func abs(path string) string {
	if a, err := filepath.Abs(path); err == nil {
		return a
	}
	return path
}
