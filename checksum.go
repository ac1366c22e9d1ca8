package casedb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var newlineRe = regexp.MustCompile(`\r\n|\r|\n`)

// convertLineEnding converts all newline variations in content to the target style.
func convertLineEnding(content, lineEnding string) (string, error) {
	var target string
	switch lineEnding {
	case "LF":
		target = "\n"
	case "CR":
		target = "\r"
	case "CRLF":
		target = "\r\n"
	default:
		return "", fmt.Errorf("newline must be one of: LF, CR, CRLF")
	}
	return newlineRe.ReplaceAllString(content, target), nil
}

// checksum computes the SHA-256 checksum of the content after converting
// line endings if a style is set. The hash covers the whole file, not the
// parsed sections, so any edit to an applied migration is detectable.
func checksum(content, lineEnding string) (string, error) {
	if lineEnding != "" {
		var err error
		content, err = convertLineEnding(content, lineEnding)
		if err != nil {
			return "", err
		}
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:]), nil
}
