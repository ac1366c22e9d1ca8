package casedb

import (
	"regexp"
	"strings"
)

// Section markers are line-anchored, case-insensitive SQL comments whose
// first word is UP or DOWN: optional leading blanks, "--", optional blanks,
// the word, then anything to the end of the line. The word boundary keeps
// lines like "-- update statistics" from reading as markers. Detection is
// not string-literal aware; a marker-shaped line inside a SQL literal is
// still treated as a marker.
var (
	upMarkerRe   = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*up\b[^\n]*`)
	downMarkerRe = regexp.MustCompile(`(?im)^[ \t]*--[ \t]*down\b[^\n]*`)
)

// ParseSections splits a migration file's content into its UP and DOWN
// sections.
//
// The UP section is everything between the first UP marker and the first
// DOWN marker (or end of file). The DOWN section is everything after the
// first DOWN marker. When no UP marker exists, all content before the first
// marker of either kind is the implicit UP section; a file without markers
// is entirely UP. The first marker of each kind wins; later marker lines are
// left in place as ordinary text. Both sections are returned trimmed of
// leading and trailing whitespace.
func ParseSections(content string) (up, down string) {
	upLoc := upMarkerRe.FindStringIndex(content)
	downLoc := downMarkerRe.FindStringIndex(content)

	switch {
	case upLoc == nil && downLoc == nil:
		return strings.TrimSpace(content), ""
	case upLoc == nil:
		// Only a DOWN marker: leading content is the implicit UP section.
		return strings.TrimSpace(content[:downLoc[0]]), strings.TrimSpace(content[downLoc[1]:])
	case downLoc == nil:
		return strings.TrimSpace(content[upLoc[1]:]), ""
	case downLoc[0] < upLoc[0]:
		// DOWN appears before UP: leading content is the implicit UP
		// section and the later UP marker is not re-interpreted.
		return strings.TrimSpace(content[:downLoc[0]]), strings.TrimSpace(content[downLoc[1]:])
	default:
		return strings.TrimSpace(content[upLoc[1]:downLoc[0]]), strings.TrimSpace(content[downLoc[1]:])
	}
}
