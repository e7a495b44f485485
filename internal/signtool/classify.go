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

import "strings"

// Status is the signature state of one file as reported by the verify
// command. The set is closed; ordering carries no meaning.
type Status int

const (
	StatusUnknown Status = iota
	StatusTrusted
	StatusSelfSigned
	StatusUnsigned
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusTrusted:
		return "trusted"
	case StatusSelfSigned:
		return "self-signed"
	case StatusUnsigned:
		return "unsigned"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// SignatureInfo is the parsed result of one verify invocation.
type SignatureInfo struct {
	Status       Status
	SignerName   string
	Issuer       string
	Timestamp    string
	TrustedChain bool
	ErrorMessage string
}

// Issuer substrings recognized as well-known authorities. Matched
// case-insensitively against the extracted issuer line.
var trustedAuthorities = []string{
	"Microsoft Corporation",
	"Microsoft Code Signing",
	"Microsoft Windows",
	"Windows Verified Publisher",
	"DigiCert",
	"VeriSign",
	"Symantec",
	"GlobalSign",
	"Sectigo",
	"Comodo",
	"Thawte",
	"GeoTrust",
}

const (
	markerNoSignature   = "SignTool Error: No signature found"
	markerNoSignatureZH = "未找到签名"
	markerUntrustedRoot = "terminated in a root certificate which is not trusted"
	markerGenericError  = "SignTool Error"
	markerZeroErrors    = "Number of errors"
	markerVerifiedOK    = "Successfully verified"
	markerVerifiedOne   = "Number of files successfully Verified: 1"
)

// Classify parses raw verify output into a SignatureInfo. It is total: any
// input, including garbage or the empty string, yields a result.
//
// Precedence is load-bearing and mirrors observed signtool behavior:
// no-signature beats everything, an untrusted root beats a generic error,
// and field extraction keeps the first line per field.
func Classify(raw string) SignatureInfo {
	info := SignatureInfo{Status: StatusUnknown}
	if strings.TrimSpace(raw) == "" {
		return info
	}

	if strings.Contains(raw, markerNoSignature) || strings.Contains(raw, markerNoSignatureZH) {
		info.Status = StatusUnsigned
		return info
	}

	// An untrusted root means the file is signed, just not by a chain the
	// system trusts. Not an error.
	selfSigned := strings.Contains(raw, markerUntrustedRoot)
	if selfSigned {
		info.Status = StatusSelfSigned
	} else if strings.Contains(raw, markerGenericError) && !strings.Contains(raw, markerZeroErrors) {
		info.Status = StatusInvalid
		info.ErrorMessage = "signature verification failed"
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasField(line, "Issued to:", "颁发给:"):
			if info.SignerName == "" {
				info.SignerName = fieldValue(line)
			}
		case hasField(line, "Issued by:", "颁发者:"):
			if info.Issuer == "" {
				info.Issuer = fieldValue(line)
			}
		case hasField(line, "Timestamp:", "时间戳:", "Timestamped:"):
			if info.Timestamp == "" {
				info.Timestamp = fieldValue(line)
			}
		}
	}

	if selfSigned {
		return info
	}

	if info.Issuer != "" {
		lower := strings.ToLower(info.Issuer)
		for _, name := range trustedAuthorities {
			if strings.Contains(lower, strings.ToLower(name)) {
				info.TrustedChain = true
				break
			}
		}
	}

	if info.Status == StatusUnknown {
		switch {
		case strings.Contains(raw, markerVerifiedOK), strings.Contains(raw, markerVerifiedOne):
			info.Status = StatusTrusted
		case info.SignerName != "" && info.Issuer != "":
			// Signed but no success marker. Deliberately coarse: a chain the
			// tool could not verify is reported as self-signed whether or not
			// signer and issuer match.
			info.Status = StatusSelfSigned
		default:
			info.Status = StatusInvalid
		}
	}

	return info
}

func hasField(line string, names ...string) bool {
	for _, n := range names {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}

func fieldValue(line string) string {
	if _, after, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
