// Copyright 2024 The Signbatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"strconv"
	"strings"
)

// TimestampServers are the selectable timestamp authorities. The first entry
// is the default.
var TimestampServers = []string{
	"http://timestamp.comodoca.com/authenticode",
	"http://timestamp.digicert.com",
	"http://timestamp.sectigo.com",
	"http://tsa.starfieldtech.com",
}

// supportedExtensions is the fixed allow-list of signable file types.
var supportedExtensions = []string{
	".exe", ".dll", ".sys", ".msi", ".cab", ".cat", ".ocx",
	".ps1", ".psm1", ".psd1", ".js", ".vbs", ".wsf",
}

// Config represents configuration options for signbatch.
type Config struct {
	// Directory searched for signtool and the certificate tools.
	ToolsDir string

	// Timestamp authority URL. Must be one of TimestampServers unless
	// overridden explicitly.
	TimestampURL string

	// Digest algorithm for sign and timestamp operations.
	Digest string

	// Worker count for concurrent batches (verify, sign without
	// timestamp). Minimum 1.
	Concurrency int

	// Path to tee log output to. Helpful for debugging when no TTY is
	// available in the environment.
	LogPath string
}

// Get builds the config from defaults overlaid with SIGNBATCH_* environment
// variables.
func Get() *Config {
	out := &Config{
		ToolsDir:     "tools",
		TimestampURL: TimestampServers[0],
		Digest:       "sha256",
		Concurrency:  4,
	}

	out.ToolsDir = envOrValue("SIGNBATCH_TOOLS_DIR", out.ToolsDir)
	out.TimestampURL = envOrValue("SIGNBATCH_TIMESTAMP_URL", out.TimestampURL)
	out.Digest = envOrValue("SIGNBATCH_DIGEST", out.Digest)
	out.LogPath = envOrValue("SIGNBATCH_LOG", out.LogPath)

	if v, ok := os.LookupEnv("SIGNBATCH_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			out.Concurrency = n
		}
	}

	return out
}

// IsSupported reports whether path has one of the signable extensions,
// matched case-insensitively on the suffix.
func IsSupported(path string) bool {
	p := strings.ToLower(path)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// SupportedExtensions returns the allow-list for display.
func SupportedExtensions() []string {
	out := make([]string, len(supportedExtensions))
	copy(out, supportedExtensions)
	return out
}

func envOrValue(env, value string) string {
	// Only override values if the environment variable is set.
	if v, ok := os.LookupEnv(env); ok {
		return v
	}
	return value
}
