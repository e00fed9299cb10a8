package docscan

import "testing"

func TestLegibilityScoreEmpty(t *testing.T) {
	if got := legibilityScore(""); got != 0 {
		t.Fatalf("empty text should score 0, got %f", got)
	}
	if got := legibilityScore("   \n\t "); got != 0 {
		t.Fatalf("whitespace-only text should score 0, got %f", got)
	}
}

func TestLegibilityScoreOrdering(t *testing.T) {
	gibberish := legibilityScore("@#$%^& !!")
	partial := legibilityScore("NAME ONLY TWO WORDS")
	full := legibilityScore("REPUBLIC OF EXAMPLE NATIONAL IDENTITY CARD FULL NAME AYU LESTARI DATE OF BIRTH 12-05-1994 DOCUMENT NUMBER 3201012345678901")

	if !(gibberish < partial && partial < full) {
		t.Fatalf("expected gibberish < partial < full, got %f %f %f", gibberish, partial, full)
	}
	if full < 0.85 {
		t.Fatalf("clean ID text should score high, got %f", full)
	}
	for _, s := range []float64{gibberish, partial, full} {
		if s < 0 || s > 1 {
			t.Fatalf("score out of range: %f", s)
		}
	}
}

func TestDigitRuns(t *testing.T) {
	runs := digitRuns("ID 3201 0123 4567 8901 issued 12-05-1994")
	if len(runs) != 2 {
		t.Fatalf("expected 2 digit runs, got %d: %v", len(runs), runs)
	}
	if runs[0] != "3201 0123 4567 8901" {
		t.Errorf("unexpected first run: %q", runs[0])
	}
	if len(digitRuns("no numbers here")) != 0 {
		t.Error("expected no runs in plain text")
	}
}
