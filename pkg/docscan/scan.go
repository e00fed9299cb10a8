// Package docscan runs light image preprocessing plus Tesseract OCR over a
// captured identity document and derives a legibility score. It never decides
// whether a document is genuine; that happens in the external review system.
package docscan

import (
	"fmt"
	"log"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Result is the outcome of scanning one document image.
type Result struct {
	// Text is the normalized aggregate OCR text.
	Text string
	// Legibility is a coarse readability score in [0,1].
	Legibility float64
	// IDNumber is the most plausible document-number candidate, if any.
	IDNumber string
	// HasDate reports whether a date-like token was recognized.
	HasDate bool
}

// ScanDocument preprocesses the image at path and runs the multi-pass OCR
// strategy. Returns ErrNoText when no pass yields usable text.
func ScanDocument(path string) (Result, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("docscan: open image: %w", err)
	}
	prepped := prepare(img)

	tmp := path
	if tmpFile, err := os.CreateTemp("", "docscan-*.png"); err == nil {
		tmp = tmpFile.Name()
		_ = tmpFile.Close()
		_ = imaging.Save(prepped, tmp)
		defer os.Remove(tmp)
	}

	// Base pass over the preprocessed image.
	text, err := runPass(tmp, "", gosseract.PSM_AUTO)
	if err != nil {
		return Result{}, fmt.Errorf("docscan: ocr: %w", err)
	}

	// Digits pass helps recover document numbers from noisy captures.
	digits, _ := runPass(tmp, "0123456789 ./-", gosseract.PSM_SPARSE_TEXT)

	// Original-image pass catches cases the thresholding destroyed.
	orig, _ := runPass(path, "", gosseract.PSM_SINGLE_BLOCK)

	aggregate := normalizeText(text + " " + digits + " " + orig)
	if aggregate == "" {
		return Result{}, ErrNoText
	}

	res := Result{
		Text:       aggregate,
		Legibility: legibilityScore(aggregate),
		HasDate:    dateRE.MatchString(aggregate),
	}
	if id, ok := bestIDNumber(digitRuns(aggregate)); ok {
		res.IDNumber = id
	}
	log.Printf("docscan: path=%s legibility=%.2f id_found=%t text=%q", path, res.Legibility, res.IDNumber != "", snippet(aggregate, 120))
	return res, nil
}

// Legibility is the convenience form used by the upload runner: score only.
func Legibility(path string) (float64, error) {
	res, err := ScanDocument(path)
	if err != nil {
		return 0, err
	}
	return res.Legibility, nil
}

func runPass(imgPath, whitelist string, psm gosseract.PageSegMode) (string, error) {
	cl := gosseract.NewClient()
	defer cl.Close()
	_ = cl.SetLanguage("eng")
	if whitelist != "" {
		_ = cl.SetWhitelist(whitelist)
	}
	_ = cl.SetPageSegMode(psm)
	cl.SetImage(imgPath)
	t, err := cl.Text()
	if err != nil {
		return "", err
	}
	return normalizeText(t), nil
}
