package health

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes for message sanitization
var (
	authSchemeRegex  = regexp.MustCompile(`(?i)\b(SSWS|Bearer|Basic)\s+[A-Za-z0-9_\-.~+/=]+`)
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex     = regexp.MustCompile(`nats://[^\s]+`)
	wsURLRegex       = regexp.MustCompile(`wss?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Sanitize removes potentially sensitive information from a message before it
// is exposed through health endpoints or API error responses. The Monitor
// applies it to every message on the way in; the gateway applies it to error
// strings returned to clients.
//
// Sanitization patterns:
//   - Authorization scheme values (SSWS <token>, Bearer <token>) → [REDACTED]
//   - URLs (http://, https://, nats://, ws://, wss://) → [URL]
//   - File paths (Unix: /path/to/file, Windows: C:\path\to\file) → [PATH]
//   - IP addresses (192.168.1.100) → [IP]
//   - Port numbers (:8080) → [PORT]
//   - Credential assignments (password=X, token=X, key=X, secret=X) → [REDACTED]
func Sanitize(message string) string {
	if message == "" {
		return ""
	}

	sanitized := message

	// Remove authorization header values first. Provider API errors echo the
	// request and would otherwise leak the SSWS token.
	sanitized = authSchemeRegex.ReplaceAllString(sanitized, "[REDACTED]")

	// Remove URLs before paths, as URLs contain paths. This also strips any
	// userinfo embedded in the URL.
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = natsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = wsURLRegex.ReplaceAllString(sanitized, "[URL]")

	// Remove file paths (Unix and Windows)
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")

	// Remove IP addresses
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")

	// Remove port numbers
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	// Remove credential assignments. Check against lowercase but replace in
	// the original case.
	lowerSanitized := strings.ToLower(sanitized)
	if strings.Contains(lowerSanitized, "password") || strings.Contains(lowerSanitized, "token") ||
		strings.Contains(lowerSanitized, "key") || strings.Contains(lowerSanitized, "secret") ||
		strings.Contains(lowerSanitized, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}
