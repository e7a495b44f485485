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
	"errors"
	"fmt"
	"strings"
)

// ErrToolNotFound is returned when the external signing utility cannot be
// located in the configured tools directory or on the search path. This is
// the only error that is fatal to a whole session.
var ErrToolNotFound = errors.New("signing tool not found")

// ErrCancelled is returned when the user declines a password prompt. It fails
// only the task that asked.
var ErrCancelled = errors.New("signing cancelled by user")

// ToolError is a non-zero exit from the external utility, carrying its
// combined stdout+stderr.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}
	return fmt.Sprintf("%s failed (exit %d)", e.Tool, e.ExitCode)
}

var passwordKeywords = []string{"password", "pfx", "pass", "密碼", "密码"}

var wrongPasswordKeywords = []string{
	"wrong password",
	"password is incorrect",
	"密碼不正確",
	"密码不正确",
}

// IndicatesPassword reports whether tool output looks like a missing or bad
// credential password. The match is deliberately loose; signtool localizes
// its messages.
func IndicatesPassword(msg string) bool {
	return containsAny(msg, passwordKeywords)
}

// IndicatesWrongPassword reports whether tool output names an explicitly
// rejected password.
func IndicatesWrongPassword(msg string) bool {
	return containsAny(msg, wrongPasswordKeywords)
}

func containsAny(msg string, keywords []string) bool {
	s := strings.ToLower(msg)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
