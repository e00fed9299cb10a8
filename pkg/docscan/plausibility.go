package docscan

import "strings"

// isPlausibleIDNumber applies lightweight heuristics to decide whether a
// matched digit run likely represents an identity-document number rather than
// a date, postcode, or OCR noise. Intentionally conservative: identity numbers
// on the supported documents run 8-16 digits and are never a single repeated
// digit.
func isPlausibleIDNumber(s string) bool {
	d := onlyDigits(strings.TrimSpace(s))
	if len(d) < 8 || len(d) > 16 {
		return false
	}
	first := d[0]
	same := true
	for i := 1; i < len(d); i++ {
		if d[i] != first {
			same = false
			break
		}
	}
	if same {
		return false
	}
	// long runs of zeros are scanner artifacts, not document numbers
	if strings.Contains(d, "00000") {
		return false
	}
	return true
}

// bestIDNumber picks the longest plausible candidate; ties go to the
// lexicographically smaller one so the choice is deterministic.
func bestIDNumber(candidates []string) (string, bool) {
	best := ""
	for _, c := range candidates {
		d := onlyDigits(c)
		if !isPlausibleIDNumber(d) {
			continue
		}
		if len(d) > len(best) || (len(d) == len(best) && d < best) {
			best = d
		}
	}
	return best, best != ""
}
