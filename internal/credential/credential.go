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

// Package credential caches PFX passwords for the lifetime of a session and
// escalates to an interactive prompt when a sign attempt reports a password
// failure. Passwords are never written to disk.
package credential

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/signbatch/signbatch/internal/signtool"
)

// Store maps credential files to their last known-good password. Keys are
// normalized absolute paths, so the same PFX referenced through different
// relative spellings shares one entry. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	passwords map[string]string
}

func NewStore() *Store {
	return &Store{passwords: map[string]string{}}
}

func (s *Store) Get(pfxPath string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.passwords[normalize(pfxPath)]
	return pw, ok
}

// Put records the password for a credential file, replacing any previous
// entry.
func (s *Store) Put(pfxPath, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[normalize(pfxPath)] = password
}

func normalize(path string) string {
	if a, err := filepath.Abs(path); err == nil {
		return filepath.Clean(a)
	}
	return filepath.Clean(path)
}

// PromptFunc asks the user for a password. A nil result means the user
// declined. Implementations may block indefinitely; there is no timeout.
type PromptFunc func(title string) *string

// SignAttempt runs one complete sign attempt with the given password,
// including any timestamp fallback, and returns the tool error on failure.
type SignAttempt func(password string) error

// Resolver drives the retry/prompt cycle around a sign attempt.
type Resolver struct {
	Store  *Store
	Prompt PromptFunc
}

// Resolve runs attempt with the supplied password (empty-string convention
// when the caller has none). On a password-flavored failure it retries with
// a differing cached password, then prompts at most once, caching a newly
// entered password for the rest of the session. Failures that don't look
// password-related propagate untouched.
func (r *Resolver) Resolve(pfxPath, supplied string, attempt SignAttempt) error {
	err := attempt(supplied)
	if err == nil {
		return nil
	}
	if !signtool.IndicatesPassword(err.Error()) {
		return err
	}

	if cached, ok := r.Store.Get(pfxPath); ok && cached != supplied {
		cerr := attempt(cached)
		if cerr == nil {
			return nil
		}
		if !signtool.IndicatesWrongPassword(cerr.Error()) && !signtool.IndicatesPassword(cerr.Error()) {
			return cerr
		}
	}

	title := fmt.Sprintf("Enter PFX password (%s):", filepath.Base(pfxPath))
	answer := r.Prompt(title)
	if answer == nil {
		return fmt.Errorf("%w: password prompt declined for %s", signtool.ErrCancelled, filepath.Base(pfxPath))
	}
	r.Store.Put(pfxPath, *answer)
	return attempt(*answer)
}
