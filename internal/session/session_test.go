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

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGatherFiles(t *testing.T) {
	dir := t.TempDir()
	exe := touch(t, filepath.Join(dir, "app.exe"))
	dll := touch(t, filepath.Join(dir, "lib.DLL"))
	txt := touch(t, filepath.Join(dir, "notes.txt"))

	files, skipped, err := GatherFiles([]string{exe, dll, txt})
	if err != nil {
		t.Fatalf("GatherFiles: %v", err)
	}
	if diff := cmp.Diff([]string{exe, dll}, files); diff != "" {
		t.Errorf("files diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{txt}, skipped); diff != "" {
		t.Errorf("skipped diff (-want +got):\n%s", diff)
	}
}

func TestGatherFilesMissingFile(t *testing.T) {
	if _, _, err := GatherFiles([]string{"does-not-exist.exe"}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGatherFilesAllUnsupported(t *testing.T) {
	dir := t.TempDir()
	txt := touch(t, filepath.Join(dir, "notes.txt"))
	if _, _, err := GatherFiles([]string{txt}); err == nil {
		t.Fatal("expected error when nothing is left to process")
	}
}
