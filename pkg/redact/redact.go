// Package redact implements the secret-redaction interface named in
// SPEC_FULL.md §1: redact(text) -> (text', refs[]). It is a pure,
// replaceable implementation; pkg/manager depends only on Redact.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// pattern pairs a detector with the literal token it is replaced with.
type pattern struct {
	re          *regexp.Regexp
	placeholder string
}

var patterns = []pattern{
	{regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`), "sk-REDACTED"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AKIA-REDACTED"},
	{regexp.MustCompile(`(?i)ghp_[A-Za-z0-9]{30,}`), "ghp-REDACTED"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED PRIVATE KEY]"},
	{regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key)\s*[:=]\s*["']?[^\s"']{6,}["']?`), "REDACTED"},
}

// Redact scans text for common secret shapes (API keys, private key blocks,
// inline "password=..." assignments) and replaces each match with a fixed
// placeholder. It returns the redacted text and a stable hash reference per
// distinct match, so the original item's security.secretHashRefs can record
// that a secret was present without retaining the secret itself.
func Redact(text string) (redacted string, refs []string) {
	if text == "" {
		return text, nil
	}
	redacted = text
	seen := make(map[string]bool)
	for _, p := range patterns {
		redacted = p.re.ReplaceAllStringFunc(redacted, func(match string) string {
			ref := hashRef(match)
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
			return p.placeholder
		})
	}
	return redacted, refs
}

func hashRef(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:16]
}
