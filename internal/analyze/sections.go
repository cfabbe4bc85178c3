// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// sectionKeywords map heading text to section keys, checked in order.
var sectionKeywords = []struct {
	keyword string
	section string
}{
	{"so what", types.SectionMotivation},
	{"core idea", types.SectionCoreIdea},
	{"how it works", types.SectionMechanism},
	{"result", types.SectionResults},
	{"limitation", types.SectionLimitations},
	{"open question", types.SectionLimitations},
	{"application", types.SectionApplications},
	{"opportunit", types.SectionApplications},
}

// ParseSections splits a markdown summary on its headings and maps each
// recognized heading to a section key. Text before the first heading and
// under unrecognized headings is dropped.
func ParseSections(body string) map[string]string {
	sections := make(map[string]string)
	current := ""
	var buf []string

	flush := func() {
		if current != "" {
			if text := strings.TrimSpace(strings.Join(buf, "\n")); text != "" {
				sections[current] = text
			}
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = sectionFor(strings.TrimLeft(trimmed, "# "))
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

func sectionFor(heading string) string {
	h := strings.ToLower(heading)
	for _, k := range sectionKeywords {
		if strings.Contains(h, k.keyword) {
			return k.section
		}
	}
	return ""
}

// missingSections lists the section keys absent from sections, in order.
func missingSections(sections map[string]string) []string {
	var missing []string
	for _, s := range types.SummarySections {
		if _, ok := sections[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
