// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// excerptLen bounds how much of a bad response is echoed in errors.
const excerptLen = 300

// ParseJSON unmarshals content into T. When direct parsing fails it tries
// a markdown code fence, then the outermost brace-delimited span. Failure
// wraps ErrParse.
func ParseJSON[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)
	if content == "" {
		return result, fmt.Errorf("%w: empty", ErrParse)
	}

	err := json.Unmarshal([]byte(content), &result)
	if err == nil {
		return result, nil
	}

	if m := jsonBlockRegex.FindStringSubmatch(content); len(m) >= 2 {
		var fenced T
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fenced) == nil {
			return fenced, nil
		}
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		var braced T
		if json.Unmarshal([]byte(content[start:end+1]), &braced) == nil {
			return braced, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("%w: %v: %s", ErrParse, err, Excerpt(content, excerptLen))
}

// Excerpt shortens s to at most n bytes on a rune boundary.
func Excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
