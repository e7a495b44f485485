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

// Package executor implements the per-file operations: verify, sign,
// timestamp-only, and self-signed certificate creation. It composes the
// tool runners, the credential resolver, and the output classifier.
package executor

import (
	"context"
	"sync"

	"github.com/signbatch/signbatch/internal/credential"
	"github.com/signbatch/signbatch/internal/signtool"
)

const defaultDigest = "sha256"

// Executor runs signing-tool operations for single files. Verify, Sign and
// Timestamp may run concurrently with each other; certificate creation
// mutates the shared working directory and excludes everything else.
type Executor struct {
	Signtool signtool.Runner
	MakeCert signtool.Runner
	Cert2SPC signtool.Runner
	Pvk2PFX  signtool.Runner

	Resolver *credential.Resolver

	// Digest is the file digest algorithm passed to sign/timestamp
	// operations. Defaults to sha256.
	Digest string

	// WorkDir holds transient certificate-creation artifacts (name.pvk,
	// name.cer, name.spc, Key.pfx). Usually the tools directory.
	WorkDir string

	workMu sync.RWMutex
}

func (e *Executor) digest() string {
	if e.Digest != "" {
		return e.Digest
	}
	return defaultDigest
}

// Verify runs the verify command permitting any certificate chain and
// classifies the output. It never fails: invocation errors surface through
// the classifier's invalid status.
func (e *Executor) Verify(ctx context.Context, path string) signtool.SignatureInfo {
	e.workMu.RLock()
	defer e.workMu.RUnlock()

	out, err := e.Signtool.Run(ctx, []string{"verify", "/pa", "/v", path}, false)
	if err != nil {
		return signtool.SignatureInfo{
			Status:       signtool.StatusInvalid,
			ErrorMessage: err.Error(),
		}
	}
	return signtool.Classify(out)
}

// Sign signs one file with the given PFX, delegating password handling to
// the credential resolver. With addTimestamp set, each attempt tries an
// RFC 3161 request first and falls back to the legacy timestamp protocol,
// so a password retry re-attempts both.
func (e *Executor) Sign(ctx context.Context, path, pfxPath, password string, addTimestamp bool, tsURL string) error {
	e.workMu.RLock()
	defer e.workMu.RUnlock()

	attempt := func(pwd string) error {
		base := []string{"sign", "/f", pfxPath, "/fd", e.digest(), "/v", "/p", pwd}
		if addTimestamp && tsURL != "" {
			rfc := append(append([]string{}, base...), "/tr", tsURL, "/td", e.digest(), path)
			if _, err := e.Signtool.Run(ctx, rfc, true); err == nil {
				return nil
			}
			legacy := append(append([]string{}, base...), "/t", tsURL, path)
			_, err := e.Signtool.Run(ctx, legacy, true)
			return err
		}
		_, err := e.Signtool.Run(ctx, append(append([]string{}, base...), path), true)
		return err
	}

	return e.Resolver.Resolve(pfxPath, password, attempt)
}

// Timestamp attaches a trust timestamp to an already-signed file, with the
// same RFC 3161 to legacy fallback as Sign. No credential is involved.
func (e *Executor) Timestamp(ctx context.Context, path, tsURL string) error {
	e.workMu.RLock()
	defer e.workMu.RUnlock()

	if _, err := e.Signtool.Run(ctx, []string{"timestamp", "/tr", tsURL, "/td", e.digest(), path}, true); err == nil {
		return nil
	}
	_, err := e.Signtool.Run(ctx, []string{"timestamp", "/t", tsURL, path}, true)
	return err
}
