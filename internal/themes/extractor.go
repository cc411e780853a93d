package themes

import (
	"regexp"
	"strings"
)

// conceptsHeading matches the bolded "Core Concepts & Topics" heading,
// tolerating a colon inside or outside the bold markers.
var conceptsHeading = regexp.MustCompile(`(?i)\*\*\s*core concepts\s*&\s*topics\s*:?\s*\*\*\s*:?`)

// nextHeading matches the next bolded section heading: a line holding only
// bold text, optionally numbered, optionally ending in a colon.
var nextHeading = regexp.MustCompile(`(?m)^\s*(?:\d+\.\s*)?\*\*[^*\n]+\*\*:?\s*$`)

// ExtractConcepts parses a formatted analysis and returns the concept labels
// listed under the "Core Concepts & Topics" heading, in order. The function
// is pure and total: malformed or absent structure yields fewer concepts,
// never an error. Bullet lines contribute the text before their first colon;
// anything else in the section is dropped.
func ExtractConcepts(analysisText string) []string {
	loc := conceptsHeading.FindStringIndex(analysisText)
	if loc == nil {
		return nil
	}

	section := analysisText[loc[1]:]
	if next := nextHeading.FindStringIndex(section); next != nil {
		section = section[:next[0]]
	}

	var concepts []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		label := strings.TrimPrefix(line, "- ")
		if i := strings.Index(label, ":"); i >= 0 {
			label = label[:i]
		}
		label = strings.Trim(label, "* \t")
		if label == "" {
			continue
		}
		concepts = append(concepts, label)
	}
	return concepts
}
