// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses blank runs",
			in:   "Intro\n\n\n\n\nMethod",
			want: "Intro\n\nMethod",
		},
		{
			name: "drops bare page numbers",
			in:   "end of page\n  12  \nnext page\n3\nmore",
			want: "end of page\nnext page\nmore",
		},
		{
			name: "keeps numbers inside sentences",
			in:   "We ran 12 trials.\n2024",
			want: "We ran 12 trials.\n2024",
		},
		{
			name: "collapses horizontal whitespace",
			in:   "a \t  b\r\nc",
			want: "a b\nc",
		},
		{
			name: "drops running headers",
			in:   "Preprint. Under review.\npara one\nPreprint. Under review.\npara two\nPreprint. Under review.\npara three\nPreprint. Under review.\npara four",
			want: "para one\npara two\npara three\npara four",
		},
		{
			name: "keeps short lines seen three times",
			in:   "Table 1\nx\nTable 1\ny\nTable 1",
			want: "Table 1\nx\nTable 1\ny\nTable 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanKeepsLongRepeatedLines(t *testing.T) {
	long := strings.Repeat("x", 120)
	in := strings.Repeat(long+"\n", 5)
	assert.Equal(t, 5, strings.Count(Clean(in), long))
}

func TestWordCountAndEstimate(t *testing.T) {
	text := words(10_000)
	assert.Equal(t, 10_000, WordCount(text))
	assert.Equal(t, len(text)/4, EstimateTokens(text))
}

func TestTruncateUnderCeiling(t *testing.T) {
	text := words(10_000)
	out, truncated := Truncate(text, 80_000)
	assert.False(t, truncated)
	assert.Equal(t, text, out)
}

func TestTruncateOverCeiling(t *testing.T) {
	text := words(200_000)
	assert.Greater(t, EstimateTokens(text), 80_000)

	out, truncated := Truncate(text, 80_000)
	assert.True(t, truncated)
	assert.Less(t, len(out), len(text))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.True(t, strings.HasPrefix(text, strings.TrimSuffix(out, TruncationMarker)))
	assert.LessOrEqual(t, EstimateTokens(strings.TrimSuffix(out, TruncationMarker)), 80_000)
}

func TestTruncateBacksUpToParagraphBreak(t *testing.T) {
	// Ceiling of 25 tokens keeps 100 chars; the break sits at char 90.
	text := strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 200)
	out, truncated := Truncate(text, 25)
	assert.True(t, truncated)
	assert.Equal(t, strings.Repeat("a", 90)+TruncationMarker, out)
}

func TestTruncateIgnoresEarlyParagraphBreak(t *testing.T) {
	// Break at char 10 is outside the final fifth of the 100 kept chars.
	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 300)
	out, truncated := Truncate(text, 25)
	assert.True(t, truncated)
	assert.Equal(t, 100+len(TruncationMarker), len(out))
}

func TestTruncateDisabled(t *testing.T) {
	text := words(1000)
	out, truncated := Truncate(text, 0)
	assert.False(t, truncated)
	assert.Equal(t, text, out)
}

func TestTruncateMultibyte(t *testing.T) {
	text := strings.Repeat("é", 200)
	out, truncated := Truncate(text, 10)
	assert.True(t, truncated)
	assert.Equal(t, strings.Repeat("é", 40)+TruncationMarker, out)
}
