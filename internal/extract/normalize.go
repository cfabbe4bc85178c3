// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the fixed character-to-token ratio of the size guard.
const charsPerToken = 4

// TruncationMarker is appended to tail-truncated text.
const TruncationMarker = "\n\n[... remainder truncated due to length ...]"

const (
	// repeatedLineMin is how often a short line must recur to count as a
	// running header or footer.
	repeatedLineMin = 4
	repeatedLineMax = 100
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	pageNumberLine  = regexp.MustCompile(`^\d{1,3}$`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: horizontal whitespace is collapsed,
// bare page numbers and recurring short lines (running headers and footers)
// are dropped, and runs of blank lines shrink to one.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	counts := make(map[string]int, len(lines))
	for i, l := range lines {
		l = strings.TrimSpace(horizontalSpace.ReplaceAllString(l, " "))
		lines[i] = l
		if l != "" {
			counts[l]++
		}
	}

	kept := lines[:0]
	for _, l := range lines {
		if pageNumberLine.MatchString(l) {
			continue
		}
		if l != "" && counts[l] >= repeatedLineMin && len(l) < repeatedLineMax {
			continue
		}
		kept = append(kept, l)
	}

	out := blankRuns.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens applies the fixed character-to-token ratio.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// Truncate keeps the head of text when its token estimate exceeds
// maxTokens. The cut moves back to the last paragraph break when one lies
// in the final fifth of the kept head, and TruncationMarker is appended.
// A non-positive maxTokens disables the guard.
func Truncate(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}

	head := runePrefix(text, maxTokens*charsPerToken)

	if idx := strings.LastIndex(head, "\n\n"); idx > len(head)*4/5 {
		head = head[:idx]
	}
	return strings.TrimRight(head, " \n") + TruncationMarker, true
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
