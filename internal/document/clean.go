package document

import (
	"regexp"
	"strings"
)

// Patterns applied by CleanText. Header/footer patterns are specific to the
// institutional documents this corpus is built from.
var (
	reWhitespace   = regexp.MustCompile(`\s+`)
	rePageFooter   = regexp.MustCompile(`Página \d+`)
	rePageFraction = regexp.MustCompile(`\d+/\d+`)
	reInstitution  = regexp.MustCompile(`(?i)Universidad de La Frontera.*?UFRO`)
	reWebsite      = regexp.MustCompile(`(?i)www\.ufro\.cl`)
	reNumbering    = regexp.MustCompile(`(\d+\.)\s*`)
	reSentenceGap  = regexp.MustCompile(`([a-z])\.\s*([A-ZÁÉÍÓÚÑ])`)
	reHeading      = regexp.MustCompile(`(?i)(Art[íi]culo|Secci[óo]n|Cap[íi]tulo)\s*(\d+)`)
	reStrayChars   = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:()\-]`)
)

// CleanText normalizes extracted page text before chunking: collapses
// whitespace, strips recurring headers and footers, restores list numbering
// and sentence spacing, and tags article/section headings with a colon so
// boundary detection can cut after them.
func CleanText(text string) string {
	text = reWhitespace.ReplaceAllString(text, " ")

	text = rePageFooter.ReplaceAllString(text, "")
	text = rePageFraction.ReplaceAllString(text, "")
	text = reInstitution.ReplaceAllString(text, "")
	text = reWebsite.ReplaceAllString(text, "")

	text = reNumbering.ReplaceAllString(text, "$1 ")
	text = reSentenceGap.ReplaceAllString(text, "$1. $2")
	text = reHeading.ReplaceAllString(text, "$1 $2:")

	text = reStrayChars.ReplaceAllString(text, " ")
	text = reWhitespace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// normalizeWhitespace collapses runs of spaces within lines while keeping
// paragraph breaks, and limits consecutive blank lines to one.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
