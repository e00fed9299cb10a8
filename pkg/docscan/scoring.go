package docscan

import (
	"regexp"
	"strings"
)

var (
	wordRE = regexp.MustCompile(`[A-Za-z]{3,}`)
	dateRE = regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b|\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b`)
)

// legibilityScore estimates how readable a document scan is, in [0,1]. It is
// a coarse proxy, not a verification decision: enough recognizable words plus
// structural hints (an ID-like number, a date) push the score up.
func legibilityScore(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	score := 0.0

	words := wordRE.FindAllString(text, -1)
	switch {
	case len(words) >= 12:
		score += 0.5
	case len(words) >= 5:
		score += 0.35
	case len(words) >= 2:
		score += 0.2
	}

	// ratio of alphanumeric content to total length penalizes noise-heavy scans
	alnum := 0
	for _, r := range text {
		if r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == ' ' {
			alnum++
		}
	}
	ratio := float64(alnum) / float64(len(text))
	score += 0.25 * ratio

	if dateRE.MatchString(text) {
		score += 0.1
	}
	if _, ok := bestIDNumber(digitRuns(text)); ok {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}
	return score
}

var digitRunRE = regexp.MustCompile(`[0-9][0-9 .\-]{6,20}[0-9]`)

// digitRuns extracts candidate digit sequences (allowing OCR spacing noise).
func digitRuns(text string) []string {
	return digitRunRE.FindAllString(text, -1)
}
