// Package redact scrubs sensitive information from strings before they are
// logged, stored on a queue item or returned in an API response. Errors coming
// back from the analysis service or the database can carry API keys, connection
// strings, host names and local file paths; none of that should reach a user.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Placeholders substituted for redacted text.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedDataPlaceholder       = "[REDACTED_DATA]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"

	// Ellipsis is appended to messages shortened by Truncate.
	Ellipsis = "..."
)

type rule struct {
	re          *regexp.Regexp
	placeholder string
}

// fileExtensions are suffixes that make a dotted token a file name rather than a host.
var fileExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
	"bmp": true, "tif": true, "tiff": true, "heic": true, "heif": true,
	"pdf": true, "json": true, "txt": true, "csv": true, "tmpl": true,
	"yaml": true, "yml": true, "go": true, "zip": true,
}

func isFileName(match string) bool {
	if strings.Contains(match, ":") {
		return false
	}
	ext := match[strings.LastIndexByte(match, '.')+1:]
	return fileExtensions[strings.ToLower(ext)]
}

// rules run in order. Credentials go first so the host and path rules never
// see half of a secret.
var rules = []rule{
	{regexp.MustCompile(`(?i)(postgres|postgresql|db|database|connection)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]{8,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`data:[a-z]+/[a-z0-9.+-]+;base64,[A-Za-z0-9+/=]+`), RedactedDataPlaceholder},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), RedactedStackPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"$]+)?`), RedactedSQLPlaceholder},
}

// hostPattern runs after rules. Matches that are file names are kept.
var hostPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`)

// String returns s with every sensitive fragment replaced by a placeholder.
func String(s string) string {
	for _, r := range rules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, r.placeholder)
	}
	return hostPattern.ReplaceAllStringFunc(s, func(m string) string {
		if isFileName(m) {
			return m
		}
		return RedactedHostPlaceholder
	})
}

// Error redacts err.Error(); a nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Truncate shortens s to at most maxRunes runes, ending it with Ellipsis when cut.
// A non-positive maxRunes disables truncation.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= len(Ellipsis) {
		return string(runes[:maxRunes])
	}
	return strings.TrimSpace(string(runes[:maxRunes-len(Ellipsis)])) + Ellipsis
}

// Message produces the short, user-facing form of err: redacted, collapsed to
// a single line and truncated to maxRunes.
func Message(err error, maxRunes int) string {
	if err == nil {
		return ""
	}
	return Truncate(strings.Join(strings.Fields(Error(err)), " "), maxRunes)
}
