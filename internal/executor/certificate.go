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

package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SigningConfig is the subject of a new self-signed certificate.
type SigningConfig struct {
	// Name is the certificate common name. Required.
	Name string
	// Email is appended to the subject when set.
	Email string
}

// ErrPVKPassword is returned by CreatePFX when pvk2pfx rejects the private
// key password. Callers may re-prompt and retry.
var ErrPVKPassword = errors.New("private key password incorrect")

const pvkPasswordMarker = "ERROR: Password incorrect or PVK file corrupted."

// Artifact names produced in WorkDir by the makecert pipeline.
const (
	artifactPVK = "name.pvk"
	artifactCER = "name.cer"
	artifactSPC = "name.spc"
	// PFXName is the bundled credential produced by CreatePFX.
	PFXName = "Key.pfx"
	// CERName is the renamed certificate produced by CreateCertificateFile.
	CERName = "Key.cer"
)

// CreateCertificate generates a self-signed certificate and private key in
// WorkDir (name.pvk, name.cer) and converts the certificate to SPC form.
// The whole pipeline holds the working-directory lock: it must not overlap
// with batch operations.
func (e *Executor) CreateCertificate(ctx context.Context, cfg SigningConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return errors.New("signer name is required")
	}

	e.workMu.Lock()
	defer e.workMu.Unlock()

	subject := "CN=" + cfg.Name
	if cfg.Email != "" {
		subject += "+EMAIL=" + cfg.Email
	}

	if _, err := e.MakeCert.Run(ctx, []string{"-sv", artifactPVK, "-r", "-n", subject, artifactCER}, true); err != nil {
		return fmt.Errorf("creating certificate: %w", err)
	}
	if _, err := e.Cert2SPC.Run(ctx, []string{artifactCER, artifactSPC}, true); err != nil {
		return fmt.Errorf("converting certificate: %w", err)
	}
	return nil
}

// CreatePFX bundles the generated key and certificate into Key.pfx using the
// given private key password (empty for none). A rejected password returns
// ErrPVKPassword so the caller can re-prompt.
func (e *Executor) CreatePFX(ctx context.Context, password string) (string, error) {
	e.workMu.Lock()
	defer e.workMu.Unlock()

	args := []string{"-pvk", artifactPVK}
	if password != "" {
		args = append(args, "-pi", password)
	}
	args = append(args, "-spc", artifactSPC, "-pfx", PFXName, "-f")

	out, err := e.Pvk2PFX.Run(ctx, args, false)
	if strings.Contains(out, pvkPasswordMarker) {
		return "", ErrPVKPassword
	}
	if err != nil {
		return "", fmt.Errorf("creating PFX: %w", err)
	}

	pfx := filepath.Join(e.WorkDir, PFXName)
	if _, serr := os.Stat(pfx); serr != nil {
		return "", fmt.Errorf("creating PFX: %s not produced", PFXName)
	}
	return pfx, nil
}

// CreateCertificateFile renames the generated certificate to Key.cer and
// returns its path.
func (e *Executor) CreateCertificateFile() (string, error) {
	e.workMu.Lock()
	defer e.workMu.Unlock()

	src := filepath.Join(e.WorkDir, artifactCER)
	dst := filepath.Join(e.WorkDir, CERName)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("generated certificate not found: %w", err)
	}
	return dst, nil
}

// Cleanup removes transient name.* artifacts from WorkDir. Failures are
// ignored; leftovers are harmless and retried on the next run.
func (e *Executor) Cleanup() {
	e.workMu.Lock()
	defer e.workMu.Unlock()

	matches, _ := filepath.Glob(filepath.Join(e.WorkDir, "name.*"))
	for _, m := range matches {
		os.Remove(m)
	}
}
