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

package signtool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLocateDirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signtool.exe")
	if err := os.WriteFile(path, []byte{}, 0o755); err != nil {
		t.Fatal(err)
	}

	tool := Locate(dir, "signtool.exe")
	if tool.Path != path {
		t.Errorf("Path = %q, want %q", tool.Path, path)
	}
}

func TestLocateRecursive(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "x64", "bin")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(nested, "signtool.exe")
	if err := os.WriteFile(path, []byte{}, 0o755); err != nil {
		t.Fatal(err)
	}

	tool := Locate(dir, "signtool.exe")
	if tool.Path != path {
		t.Errorf("Path = %q, want %q", tool.Path, path)
	}
}

func TestLocateFallsBackToBareName(t *testing.T) {
	tool := Locate(t.TempDir(), "definitely-not-a-real-tool.exe")
	if tool.Path != "definitely-not-a-real-tool.exe" {
		t.Errorf("Path = %q, want bare name", tool.Path)
	}
	if err := tool.Check(); err == nil {
		t.Error("Check: expected error for missing tool")
	}
}

func TestDecodeOutput(t *testing.T) {
	if got := decodeOutput([]byte("Successfully verified")); got != "Successfully verified" {
		t.Errorf("utf8 passthrough = %q", got)
	}

	// 0x93/0x94 are Windows-1252 curly quotes and invalid UTF-8.
	got := decodeOutput([]byte{'S', 'i', 'g', 'n', 0x93, 'o', 'k', 0x94})
	if !utf8.ValidString(got) {
		t.Errorf("decoded output is not valid UTF-8: %q", got)
	}
	if !strings.Contains(got, "Sign") || !strings.Contains(got, "ok") {
		t.Errorf("decoded output lost ASCII content: %q", got)
	}
}

func TestPasswordKeywords(t *testing.T) {
	for _, msg := range []string{
		"SignTool Error: The specified PFX password is not correct.",
		"error: bad password supplied",
		"密码不正确",
	} {
		if !IndicatesPassword(msg) {
			t.Errorf("IndicatesPassword(%q) = false", msg)
		}
	}
	if IndicatesPassword("SignTool Error: file not found") {
		t.Error("IndicatesPassword matched an unrelated error")
	}
	if !IndicatesWrongPassword("The password is incorrect") {
		t.Error("IndicatesWrongPassword missed an explicit rejection")
	}
	if IndicatesWrongPassword("please supply a password") {
		t.Error("IndicatesWrongPassword matched a non-rejection")
	}
}
