package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, submitted email, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
func IPKeyExtractor(r *http.Request) string {
	return ClientIP(r)
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", JSONFieldKeyExtractor("email"), IPKeyExtractor)
// would produce keys like "alice@example.com:192.168.1.1"
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// maxKeyExtractBody bounds how much of a request body a key extractor will
// buffer. Login payloads are tiny; anything bigger is not worth keying on.
const maxKeyExtractBody = 64 * 1024

// JSONFieldKeyExtractor extracts a string field from a JSON request body.
// The body is buffered and restored so the downstream handler can still
// read it. Use this for keying login throttles on the submitted email.
func JSONFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, maxKeyExtractBody))
		_ = r.Body.Close()
		// Restore the body regardless of decode outcome.
		r.Body = io.NopCloser(bytes.NewReader(buf))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(buf, &fields); err != nil {
			return ""
		}

		var value string
		if raw, ok := fields[fieldName]; ok {
			_ = json.Unmarshal(raw, &value)
		}
		return strings.ToLower(strings.TrimSpace(value))
	}
}
